package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxMonthlyRotation is the upper bound accepted for a monthly rotation figure
const MaxMonthlyRotation = 1000

// MaxCodeDigits is the longest product code stored
const MaxCodeDigits = 20

// ProductRotation is the observed average monthly unit sales of one product code
type ProductRotation struct {
	ID                string              `db:"id" json:"id"`
	Code              string              `db:"code" json:"code"`
	NormalizedCode    string              `db:"normalized_code" json:"normalized_code"`
	MonthlyRotation   decimal.Decimal     `db:"monthly_rotation" json:"monthly_rotation"`
	UnitPurchasePrice decimal.NullDecimal `db:"unit_purchase_price" json:"unit_purchase_price"`
	LastUpdated       time.Time           `db:"last_updated" json:"last_updated"`
}

// RotationFigure returns the monthly rotation as the engine consumes it
func (r *ProductRotation) RotationFigure() float64 {
	return r.MonthlyRotation.InexactFloat64()
}

// StockValue is quantity times the unit purchase price, when the price is known
func (r *ProductRotation) StockValue(quantity int) decimal.NullDecimal {
	if r == nil || !r.UnitPurchasePrice.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{
		Decimal: r.UnitPurchasePrice.Decimal.Mul(decimal.NewFromInt(int64(quantity))),
		Valid:   true,
	}
}
