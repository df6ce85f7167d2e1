package service

import (
	"context"
	"time"

	"github.com/pharmastock/pharmastock-backend/internal/stock/domain"
	"github.com/pharmastock/pharmastock-backend/pkg/errors"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
)

// InventaireRepository is the inventaire persistence used by the service
type InventaireRepository interface {
	Create(ctx context.Context, inv *domain.Inventaire) error
	GetByID(ctx context.Context, id string) (*domain.Inventaire, error)
	List(ctx context.Context) ([]*domain.Inventaire, error)
	Complete(ctx context.Context, inv *domain.Inventaire) error
	Delete(ctx context.Context, id string) error
	AddItem(ctx context.Context, item *domain.InventaireItem, sig *domain.Signalement) error
	ListItems(ctx context.Context, inventaireID string) ([]*domain.InventaireItem, error)
	Summary(ctx context.Context, inventaireID string) (*domain.InventaireSummary, error)
}

// InventaireDetail is an inventaire with its items and aggregate
type InventaireDetail struct {
	*domain.Inventaire
	Items   []*domain.InventaireItem  `json:"items"`
	Summary *domain.InventaireSummary `json:"summary"`
}

// NewItem is one scanned line to add to an inventaire
type NewItem struct {
	ProductCode    string
	Quantity       int
	ExpirationDate *time.Time
	LotNumber      *string
}

// InventaireService handles inventaire business logic
type InventaireService struct {
	repo    InventaireRepository
	updater *UpdaterService
	logger  *logger.Logger
}

// NewInventaireService creates a new inventaire service
func NewInventaireService(repo InventaireRepository, updater *UpdaterService, log *logger.Logger) *InventaireService {
	if log == nil {
		log = logger.Nop()
	}
	return &InventaireService{
		repo:    repo,
		updater: updater,
		logger:  log,
	}
}

// Create opens a new counting session
func (s *InventaireService) Create(ctx context.Context, name string) (*domain.Inventaire, error) {
	inv := &domain.Inventaire{Name: name}
	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info().Str("inventaire_id", inv.ID).Str("name", inv.Name).Msg("inventaire created")
	return inv, nil
}

// List lists inventaires
func (s *InventaireService) List(ctx context.Context) ([]*domain.Inventaire, error) {
	return s.repo.List(ctx)
}

// Get gets an inventaire with its items and aggregate
func (s *InventaireService) Get(ctx context.Context, id string) (*InventaireDetail, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}

	summary, err := s.repo.Summary(ctx, id)
	if err != nil {
		return nil, err
	}

	return &InventaireDetail{
		Inventaire: inv,
		Items:      items,
		Summary:    summary,
	}, nil
}

// AddItem records a scanned line. A line with an expiration date and a
// positive quantity also opens a PENDING signalement whose urgency is
// computed right away.
func (s *InventaireService) AddItem(ctx context.Context, inventaireID string, in NewItem) (*domain.InventaireItem, error) {
	inv, err := s.repo.GetByID(ctx, inventaireID)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.InventaireInProgress {
		return nil, errors.Conflict("inventaire is already completed")
	}
	if in.Quantity < 0 {
		return nil, errors.InvalidInput("quantity", "quantity must not be negative")
	}

	item := &domain.InventaireItem{
		InventaireID:   inventaireID,
		ProductCode:    in.ProductCode,
		Quantity:       in.Quantity,
		ExpirationDate: in.ExpirationDate,
		LotNumber:      in.LotNumber,
	}

	var sig *domain.Signalement
	if in.ExpirationDate != nil && in.Quantity >= 1 {
		sig = &domain.Signalement{
			ProductCode:    in.ProductCode,
			Quantity:       in.Quantity,
			ExpirationDate: *in.ExpirationDate,
			Status:         domain.StatusPending,
		}
		if in.LotNumber != nil {
			comment := "lot " + *in.LotNumber
			sig.Comment = &comment
		}
	}

	if err := s.repo.AddItem(ctx, item, sig); err != nil {
		return nil, err
	}

	if sig != nil && s.updater != nil {
		if _, err := s.updater.RecomputeOne(ctx, sig.ID); err != nil {
			s.logger.Warn().Err(err).Str("signalement_id", sig.ID).Msg("urgency recompute for inventaire item failed")
		}
	}

	return item, nil
}

// Complete closes a counting session
func (s *InventaireService) Complete(ctx context.Context, id string) (*domain.Inventaire, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Complete(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info().Str("inventaire_id", inv.ID).Msg("inventaire completed")
	return inv, nil
}

// Delete deletes an inventaire and its items
func (s *InventaireService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
