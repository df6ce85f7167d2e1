// Package urgency computes the urgency tier of an expiring batch and, when the
// product's sales rotation is known, the probability that it sells through
// before expiry.
package urgency

import (
	"math"
	"time"

	"github.com/pharmastock/pharmastock-backend/internal/stock/domain"
	"github.com/pharmastock/pharmastock-backend/pkg/errors"
)

const (
	// FIFOCompliance is the share of theoretical sales credited to a batch,
	// shelves are never rotated perfectly first-in first-out.
	FIFOCompliance = 0.65
	// AutoVerifyThreshold is the sell-through probability at or above which a
	// pending signalement is sent to field verification.
	AutoVerifyThreshold = 85.0
	// AutoVerifyMonths is the longest expiry window eligible for auto-verify.
	AutoVerifyMonths = 3

	criticalDays = 30
	highDays     = 75
	mediumDays   = 180
)

// Breakdown carries the intermediate figures of a computation for diagnostics
type Breakdown struct {
	DaysRemaining    int     `json:"days_remaining"`
	MonthsRemaining  int     `json:"months_remaining"`
	TheoreticalSold  float64 `json:"theoretical_sold"`
	FIFOAdjustedSold float64 `json:"fifo_adjusted_sold"`
	Surplus          float64 `json:"surplus"`
}

// Result is the outcome of one urgency computation.
// SellThroughProbability is 0 and ShouldAutoVerify false on the classic path.
type Result struct {
	Tier                   domain.UrgencyTier `json:"tier"`
	SellThroughProbability float64            `json:"sell_through_probability"`
	ShouldAutoVerify       bool               `json:"should_auto_verify"`
	RotationKnown          bool               `json:"rotation_known"`
	Breakdown              Breakdown          `json:"breakdown"`
}

// Engine evaluates urgencies against a clock. Expiration dates are calendar
// dates of the pharmacy's location; only their year, month and day are read.
type Engine struct {
	now func() time.Time
	loc *time.Location
}

// NewEngine creates an engine using the wall clock in UTC
func NewEngine() *Engine {
	return &Engine{now: time.Now, loc: time.UTC}
}

// NewEngineWithClock creates an engine reading the current time from now
func NewEngineWithClock(now func() time.Time) *Engine {
	return &Engine{now: now, loc: time.UTC}
}

// WithLocation sets the time zone days and months are counted in
func (e *Engine) WithLocation(loc *time.Location) *Engine {
	if loc != nil {
		e.loc = loc
	}
	return e
}

// clock returns the current time and expiration as local midnight, both in the engine location
func (e *Engine) clock(expiration time.Time) (time.Time, time.Time) {
	y, m, d := expiration.Date()
	return e.now().In(e.loc), time.Date(y, m, d, 0, 0, 0, 0, e.loc)
}

// Compute picks the rotation-aware path when monthlyRotation is known and
// the classic path otherwise.
func (e *Engine) Compute(quantity int, expiration time.Time, monthlyRotation *float64) (Result, error) {
	if monthlyRotation == nil {
		return e.ComputeClassic(quantity, expiration)
	}
	return e.ComputeWithRotation(quantity, expiration, *monthlyRotation)
}

// ComputeClassic grades urgency from the remaining calendar days and quantity only
func (e *Engine) ComputeClassic(quantity int, expiration time.Time) (Result, error) {
	if err := checkQuantity(quantity); err != nil {
		return Result{}, err
	}

	now, expiration := e.clock(expiration)
	days := DaysRemaining(now, expiration)

	return Result{
		Tier: ClassicTier(quantity, days),
		Breakdown: Breakdown{
			DaysRemaining: days,
		},
	}, nil
}

// ComputeWithRotation forecasts sell-through over the remaining calendar months
func (e *Engine) ComputeWithRotation(quantity int, expiration time.Time, monthlyRotation float64) (Result, error) {
	if err := checkQuantity(quantity); err != nil {
		return Result{}, err
	}
	if math.IsNaN(monthlyRotation) || monthlyRotation < 0 || monthlyRotation > domain.MaxMonthlyRotation {
		return Result{}, errors.InvalidInput("monthly_rotation", "monthly rotation must be between 0 and 1000")
	}

	now, expiration := e.clock(expiration)
	months := MonthsRemaining(now, expiration)

	qty := float64(quantity)
	theoretical := monthlyRotation * float64(months)
	fifo := theoretical * FIFOCompliance
	surplus := math.Max(0, qty-fifo)
	probability := roundTo2(math.Min(100, fifo/qty*100))
	surplusPct := surplus / qty * 100

	return Result{
		Tier:                   rotationTier(probability, surplusPct, months),
		SellThroughProbability: probability,
		ShouldAutoVerify:       shouldAutoVerify(probability, months),
		RotationKnown:          true,
		Breakdown: Breakdown{
			DaysRemaining:    DaysRemaining(now, expiration),
			MonthsRemaining:  months,
			TheoreticalSold:  theoretical,
			FIFOAdjustedSold: fifo,
			Surplus:          surplus,
		},
	}, nil
}

// ClassicTier is the rotation-less grading of quantity against days remaining
func ClassicTier(quantity, daysRemaining int) domain.UrgencyTier {
	switch {
	case daysRemaining <= criticalDays:
		return domain.UrgencyCritical
	case daysRemaining <= highDays:
		switch {
		case quantity >= 10:
			return domain.UrgencyHigh
		case quantity >= 5:
			return domain.UrgencyMedium
		default:
			return domain.UrgencyLow
		}
	case daysRemaining <= mediumDays:
		if quantity >= 5 {
			return domain.UrgencyMedium
		}
		return domain.UrgencyLow
	default:
		return domain.UrgencyLow
	}
}

// rotationTier grades a forecast. A confident sell-through overrides the surplus bands.
func rotationTier(probability, surplusPct float64, months int) domain.UrgencyTier {
	switch {
	case probability >= AutoVerifyThreshold:
		if months <= AutoVerifyMonths {
			return domain.UrgencyMedium
		}
		return domain.UrgencyLow
	case surplusPct >= 80:
		return byMonths(months, 2, 6, domain.UrgencyCritical, domain.UrgencyHigh, domain.UrgencyMedium)
	case surplusPct >= 50:
		return byMonths(months, 1, 4, domain.UrgencyCritical, domain.UrgencyHigh, domain.UrgencyMedium)
	default:
		return byMonths(months, 1, 3, domain.UrgencyHigh, domain.UrgencyMedium, domain.UrgencyLow)
	}
}

func byMonths(months, first, second int, within, next, beyond domain.UrgencyTier) domain.UrgencyTier {
	switch {
	case months <= first:
		return within
	case months <= second:
		return next
	default:
		return beyond
	}
}

func shouldAutoVerify(probability float64, months int) bool {
	return probability >= AutoVerifyThreshold && months <= AutoVerifyMonths
}

// DaysRemaining is the number of days until expiration, rounded up
func DaysRemaining(now, expiration time.Time) int {
	return int(math.Ceil(expiration.Sub(now).Hours() / 24))
}

// MonthsRemaining is the whole calendar-month difference between now and
// expiration, ignoring the day of month, floored at 0. Each side is read in
// its own location.
func MonthsRemaining(now, expiration time.Time) int {
	months := (expiration.Year()-now.Year())*12 + int(expiration.Month()) - int(now.Month())
	if months < 0 {
		return 0
	}
	return months
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}

func checkQuantity(quantity int) error {
	if quantity < 1 {
		return errors.InvalidInput("quantity", "quantity must be at least 1")
	}
	return nil
}
