package service

import (
	"context"
	"time"

	"github.com/pharmastock/pharmastock-backend/internal/stock/domain"
	"github.com/pharmastock/pharmastock-backend/internal/stock/events"
	"github.com/pharmastock/pharmastock-backend/internal/stock/rotation"
	"github.com/pharmastock/pharmastock-backend/internal/stock/urgency"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
)

// SignalementStore is what the updater needs from signalement persistence
type SignalementStore interface {
	GetByID(ctx context.Context, id string) (*domain.Signalement, error)
	ListOpen(ctx context.Context) ([]*domain.Signalement, error)
	SaveUrgency(ctx context.Context, id string, update domain.UrgencyUpdate) error
}

// Recomputation is the outcome of recomputing one signalement
type Recomputation struct {
	Signalement *domain.Signalement `json:"signalement"`
	Result      urgency.Result      `json:"result"`
	Strategy    rotation.Strategy   `json:"match_strategy,omitempty"`
}

// RecomputeSummary counts the outcome of a bulk recompute
type RecomputeSummary struct {
	Processed    int `json:"processed"`
	WithRotation int `json:"with_rotation"`
	AutoVerified int `json:"auto_verified"`
	Failed       int `json:"failed"`
}

// UpdaterService recomputes and persists the urgency of signalements
type UpdaterService struct {
	signalements SignalementStore
	rotations    rotation.Store
	matcher      *rotation.Matcher
	engine       *urgency.Engine
	publisher    *events.StockEventPublisher
	now          func() time.Time
	logger       *logger.Logger
}

// NewUpdaterService creates a new updater. rotations backs single-record
// matching and provides the candidate snapshot for bulk runs.
func NewUpdaterService(
	signalements SignalementStore,
	rotations rotation.Store,
	engine *urgency.Engine,
	publisher *events.StockEventPublisher,
	log *logger.Logger,
) *UpdaterService {
	if log == nil {
		log = logger.Nop()
	}
	return &UpdaterService{
		signalements: signalements,
		rotations:    rotations,
		matcher:      rotation.NewMatcher(rotations, log),
		engine:       engine,
		publisher:    publisher,
		now:          time.Now,
		logger:       log.WithComponent("urgency_updater"),
	}
}

// WithClock sets the clock stamped on updated_at
func (s *UpdaterService) WithClock(now func() time.Time) *UpdaterService {
	s.now = now
	return s
}

// RecomputeOne recomputes the urgency of one signalement and persists it
func (s *UpdaterService) RecomputeOne(ctx context.Context, id string) (*Recomputation, error) {
	sig, err := s.signalements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.recompute(ctx, s.matcher, sig)
}

// RecomputeAllOpen recomputes every PENDING or IN_PROGRESS signalement.
// Failures are logged and counted, they never stop the batch.
func (s *UpdaterService) RecomputeAllOpen(ctx context.Context) (*RecomputeSummary, error) {
	start := s.now()

	open, err := s.signalements.ListOpen(ctx)
	if err != nil {
		return nil, err
	}

	candidates, err := s.rotations.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	index := rotation.NewIndex(candidates)
	matcher := s.matcher.WithStore(index)

	s.logger.Info().
		Int("signalements", len(open)).
		Int("rotations", index.Len()).
		Msg("starting bulk urgency recompute")

	summary := &RecomputeSummary{}
	for _, sig := range open {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		summary.Processed++

		rc, err := s.recompute(ctx, matcher, sig)
		if err != nil {
			summary.Failed++
			s.logger.Error().Err(err).Str("signalement_id", sig.ID).Msg("urgency recompute failed")
			continue
		}

		if rc.Result.RotationKnown {
			summary.WithRotation++
		}
		if rc.Signalement.Status != sig.Status {
			summary.AutoVerified++
		}
	}

	s.logger.Info().
		Int("processed", summary.Processed).
		Int("with_rotation", summary.WithRotation).
		Int("auto_verified", summary.AutoVerified).
		Int("failed", summary.Failed).
		Dur("duration", s.now().Sub(start)).
		Msg("bulk urgency recompute completed")

	return summary, nil
}

// recompute runs match, compute and persist for one loaded signalement.
// sig is left untouched, the returned Recomputation carries an updated copy.
func (s *UpdaterService) recompute(ctx context.Context, matcher *rotation.Matcher, sig *domain.Signalement) (*Recomputation, error) {
	match, err := matcher.Find(ctx, sig.ProductCode)
	if err != nil {
		return nil, err
	}

	var monthly *float64
	if match != nil {
		figure := match.Rotation.RotationFigure()
		monthly = &figure
	}

	result, err := s.engine.Compute(sig.Quantity, sig.ExpirationDate, monthly)
	if err != nil {
		return nil, err
	}

	newStatus := sig.Status
	if result.ShouldAutoVerify && sig.Status == domain.StatusPending {
		newStatus = domain.StatusToVerify
	}

	update := domain.UrgencyUpdate{
		Tier:                   result.Tier,
		SellThroughProbability: result.SellThroughProbability,
		Status:                 newStatus,
		UpdatedAt:              s.now().UTC(),
	}
	if err := s.signalements.SaveUrgency(ctx, sig.ID, update); err != nil {
		return nil, err
	}

	updated := *sig
	updated.ComputedUrgency = update.Tier.Ptr()
	probability := update.SellThroughProbability
	updated.SellThroughProbability = &probability
	updated.Status = newStatus
	updated.UpdatedAt = update.UpdatedAt

	rc := &Recomputation{Signalement: &updated, Result: result}
	if match != nil {
		rc.Strategy = match.Strategy
	}

	s.publisher.PublishUrgencyUpdated(ctx, &updated, sig.Status, result.RotationKnown)
	if newStatus != sig.Status {
		s.publisher.PublishAutoVerified(ctx, &updated, result.Breakdown.MonthsRemaining)
		s.logger.Info().
			Str("signalement_id", sig.ID).
			Float64("sell_through_probability", result.SellThroughProbability).
			Msg("signalement auto-verified")
	}

	return rc, nil
}
