package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pharmastock/pharmastock-backend/internal/stock/domain"
	"github.com/shopspring/decimal"
)

// FixtureFactory builds domain values with unique codes for tests
type FixtureFactory struct {
	seq atomic.Int64
	now time.Time
}

// NewFixtureFactory creates a fixture factory anchored on the current day
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{now: time.Now().UTC().Truncate(24 * time.Hour)}
}

// ProductCode returns a fresh 13 digit product code
func (f *FixtureFactory) ProductCode() string {
	return fmt.Sprintf("34009%08d", f.seq.Add(1))
}

// Signalement returns a pending signalement expiring in the given number of days
func (f *FixtureFactory) Signalement(quantity, expiresInDays int) *domain.Signalement {
	return &domain.Signalement{
		ID:             uuid.New().String(),
		ProductCode:    f.ProductCode(),
		Quantity:       quantity,
		ExpirationDate: f.now.AddDate(0, 0, expiresInDays),
		Status:         domain.StatusPending,
		CreatedAt:      f.now,
		UpdatedAt:      f.now,
	}
}

// Rotation returns a rotation for code with the given monthly sales
func (f *FixtureFactory) Rotation(code string, monthly float64) *domain.ProductRotation {
	return &domain.ProductRotation{
		ID:              uuid.New().String(),
		Code:            code,
		NormalizedCode:  code,
		MonthlyRotation: decimal.NewFromFloat(monthly),
		LastUpdated:     f.now,
	}
}

// Inventaire returns an in-progress inventaire
func (f *FixtureFactory) Inventaire(name string) *domain.Inventaire {
	return &domain.Inventaire{
		ID:        uuid.New().String(),
		Name:      name,
		Status:    domain.InventaireInProgress,
		CreatedAt: f.now,
	}
}
