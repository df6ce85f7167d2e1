package service

import (
	"context"
	"time"

	"github.com/pharmastock/pharmastock-backend/internal/stock/domain"
	"github.com/pharmastock/pharmastock-backend/pkg/errors"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
)

// SignalementRepository is the signalement persistence used by the service
type SignalementRepository interface {
	Create(ctx context.Context, s *domain.Signalement) error
	GetByID(ctx context.Context, id string) (*domain.Signalement, error)
	List(ctx context.Context, filter domain.SignalementFilter) ([]*domain.Signalement, error)
	Count(ctx context.Context, filter domain.SignalementFilter) (int64, error)
	Update(ctx context.Context, s *domain.Signalement) error
	UpdateStatuses(ctx context.Context, ids []string, status domain.SignalementStatus) (int64, error)
	Delete(ctx context.Context, id string) error
}

// SignalementService handles signalement business logic
type SignalementService struct {
	repo    SignalementRepository
	updater *UpdaterService
	logger  *logger.Logger
}

// NewSignalementService creates a new signalement service
func NewSignalementService(repo SignalementRepository, updater *UpdaterService, log *logger.Logger) *SignalementService {
	if log == nil {
		log = logger.Nop()
	}
	return &SignalementService{
		repo:    repo,
		updater: updater,
		logger:  log,
	}
}

// SignalementChanges holds the user-editable fields; nil fields are left as is
type SignalementChanges struct {
	Quantity       *int
	ExpirationDate *time.Time
	Comment        *string
}

// Create stores a new PENDING signalement and computes its urgency.
// A failed recompute leaves the signalement stored without an urgency.
func (s *SignalementService) Create(ctx context.Context, sig *domain.Signalement) (*domain.Signalement, error) {
	sig.Status = domain.StatusPending
	sig.ComputedUrgency = nil
	sig.SellThroughProbability = nil

	if err := s.repo.Create(ctx, sig); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("signalement_id", sig.ID).
		Str("product_code", sig.ProductCode).
		Int("quantity", sig.Quantity).
		Msg("signalement created")

	return s.refresh(ctx, sig), nil
}

// Get gets a signalement by ID
func (s *SignalementService) Get(ctx context.Context, id string) (*domain.Signalement, error) {
	return s.repo.GetByID(ctx, id)
}

// List lists signalements matching filter with the total ignoring pagination
func (s *SignalementService) List(ctx context.Context, filter domain.SignalementFilter) ([]*domain.Signalement, int64, error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, 0, errors.Validation(map[string]string{"status": "unknown status " + string(st)})
		}
	}
	for _, u := range filter.Urgencies {
		if !u.Valid() {
			return nil, 0, errors.Validation(map[string]string{"urgency": "unknown urgency " + string(u)})
		}
	}

	signalements, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return signalements, total, nil
}

// Update applies changes and recomputes the urgency
func (s *SignalementService) Update(ctx context.Context, id string, changes SignalementChanges) (*domain.Signalement, error) {
	sig, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if changes.Quantity != nil {
		if *changes.Quantity < 1 {
			return nil, errors.InvalidInput("quantity", "quantity must be at least 1")
		}
		sig.Quantity = *changes.Quantity
	}
	if changes.ExpirationDate != nil {
		sig.ExpirationDate = *changes.ExpirationDate
	}
	if changes.Comment != nil {
		sig.Comment = changes.Comment
	}

	if err := s.repo.Update(ctx, sig); err != nil {
		return nil, err
	}

	return s.refresh(ctx, sig), nil
}

// BulkUpdateStatus sets status on every listed signalement
func (s *SignalementService) BulkUpdateStatus(ctx context.Context, ids []string, status domain.SignalementStatus) (int64, error) {
	if !status.Valid() {
		return 0, errors.Validation(map[string]string{"status": "unknown status " + string(status)})
	}
	if len(ids) == 0 {
		return 0, nil
	}

	updated, err := s.repo.UpdateStatuses(ctx, ids, status)
	if err != nil {
		return 0, err
	}

	s.logger.Info().
		Int("requested", len(ids)).
		Int64("updated", updated).
		Str("status", string(status)).
		Msg("signalement statuses updated")

	return updated, nil
}

// Delete deletes a signalement
func (s *SignalementService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// refresh recomputes the urgency of a just-written signalement
func (s *SignalementService) refresh(ctx context.Context, sig *domain.Signalement) *domain.Signalement {
	if s.updater == nil {
		return sig
	}

	rc, err := s.updater.RecomputeOne(ctx, sig.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("signalement_id", sig.ID).Msg("urgency recompute after write failed")
		return sig
	}
	return rc.Signalement
}
