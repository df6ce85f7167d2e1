package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pharmastock/pharmastock-backend/internal/stock/domain"
	"github.com/pharmastock/pharmastock-backend/internal/stock/events"
	"github.com/pharmastock/pharmastock-backend/internal/stock/rotation"
	"github.com/pharmastock/pharmastock-backend/pkg/errors"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// RotationRepository is the rotation persistence used by the service
type RotationRepository interface {
	rotation.Store
	Upsert(ctx context.Context, rot *domain.ProductRotation) error
	BulkUpsert(ctx context.Context, rotations []*domain.ProductRotation) error
	List(ctx context.Context, limit, offset int) ([]*domain.ProductRotation, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
}

// RotationInput is one rotation row as submitted
type RotationInput struct {
	Code              string              `json:"code" validate:"required,max=64"`
	MonthlyRotation   decimal.Decimal     `json:"monthly_rotation"`
	UnitPurchasePrice decimal.NullDecimal `json:"unit_purchase_price"`
}

// RowRejection explains why one bulk row was not imported
type RowRejection struct {
	Row    int    `json:"row"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// ImportResult is the outcome of a bulk rotation import
type ImportResult struct {
	Imported int            `json:"imported"`
	Rejected []RowRejection `json:"rejected"`
}

// RotationService handles product rotation business logic
type RotationService struct {
	repo      RotationRepository
	matcher   *rotation.Matcher
	publisher *events.StockEventPublisher
	logger    *logger.Logger
}

// NewRotationService creates a new rotation service
func NewRotationService(repo RotationRepository, publisher *events.StockEventPublisher, log *logger.Logger) *RotationService {
	if log == nil {
		log = logger.Nop()
	}
	return &RotationService{
		repo:      repo,
		matcher:   rotation.NewMatcher(repo, log),
		publisher: publisher,
		logger:    log,
	}
}

var maxMonthlyRotation = decimal.NewFromInt(domain.MaxMonthlyRotation)

// toRotation validates one input row and normalizes its code
func toRotation(in RotationInput) (*domain.ProductRotation, error) {
	code := digitsOf(in.Code)
	normalized := rotation.NormalizeCode(in.Code)
	if normalized == "" {
		return nil, errors.InvalidInput("code", "code must contain digits")
	}
	if len(code) > domain.MaxCodeDigits {
		return nil, errors.InvalidInput("code", fmt.Sprintf("code must have at most %d digits", domain.MaxCodeDigits))
	}
	if in.MonthlyRotation.IsNegative() || in.MonthlyRotation.GreaterThan(maxMonthlyRotation) {
		return nil, errors.InvalidInput("monthly_rotation", "monthly rotation must be between 0 and 1000")
	}
	if in.UnitPurchasePrice.Valid && in.UnitPurchasePrice.Decimal.IsNegative() {
		return nil, errors.InvalidInput("unit_purchase_price", "unit purchase price must not be negative")
	}

	return &domain.ProductRotation{
		Code:              code,
		NormalizedCode:    normalized,
		MonthlyRotation:   in.MonthlyRotation.Round(2),
		UnitPurchasePrice: in.UnitPurchasePrice,
	}, nil
}

func digitsOf(code string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, code)
}

// Upsert creates or replaces the rotation of one product
func (s *RotationService) Upsert(ctx context.Context, in RotationInput) (*domain.ProductRotation, error) {
	rot, err := toRotation(in)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Upsert(ctx, rot); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("normalized_code", rot.NormalizedCode).
		Str("monthly_rotation", rot.MonthlyRotation.String()).
		Msg("rotation upserted")

	return rot, nil
}

// Import upserts every valid row in one transaction. Invalid rows are
// reported and skipped; when several rows share a normalized code the last wins.
func (s *RotationService) Import(ctx context.Context, rows []RotationInput) (*ImportResult, error) {
	result := &ImportResult{Rejected: []RowRejection{}}

	byCode := make(map[string]int)
	var valid []*domain.ProductRotation
	for i, in := range rows {
		rot, err := toRotation(in)
		if err != nil {
			result.Rejected = append(result.Rejected, RowRejection{
				Row:    i + 1,
				Code:   in.Code,
				Reason: rejectionReason(err),
			})
			continue
		}

		if idx, seen := byCode[rot.NormalizedCode]; seen {
			valid[idx] = rot
			continue
		}
		byCode[rot.NormalizedCode] = len(valid)
		valid = append(valid, rot)
	}

	if len(valid) > 0 {
		if err := s.repo.BulkUpsert(ctx, valid); err != nil {
			return nil, err
		}
	}
	result.Imported = len(valid)

	s.logger.Info().
		Int("rows", len(rows)).
		Int("imported", result.Imported).
		Int("rejected", len(result.Rejected)).
		Msg("rotation import completed")

	if result.Imported > 0 {
		s.publisher.PublishRotationImported(ctx, result.Imported, len(result.Rejected))
	}

	return result, nil
}

func rejectionReason(err error) string {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// List lists rotations with the total count
func (s *RotationService) List(ctx context.Context, limit, offset int) ([]*domain.ProductRotation, int64, error) {
	rotations, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	return rotations, total, nil
}

// Lookup runs the matcher for code and reports which strategy hit
func (s *RotationService) Lookup(ctx context.Context, code string) (*rotation.Match, error) {
	match, err := s.matcher.Find(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("rotation lookup: %w", err)
	}
	if match == nil {
		return nil, errors.NotFound("rotation")
	}
	return match, nil
}

// Delete deletes a rotation
func (s *RotationService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
