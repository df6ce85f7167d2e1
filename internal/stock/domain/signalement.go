// Package domain holds the stock service entities and their closed enumerations.
package domain

import (
	"time"
)

// SignalementStatus is the workflow state of an expiry alert
type SignalementStatus string

const (
	StatusPending        SignalementStatus = "PENDING"
	StatusInProgress     SignalementStatus = "IN_PROGRESS"
	StatusToDestock      SignalementStatus = "TO_DESTOCK"
	StatusToVerify       SignalementStatus = "TO_VERIFY"
	StatusSellingThrough SignalementStatus = "SELLING_THROUGH"
	StatusDestroyed      SignalementStatus = "DESTROYED"
)

// AllStatuses lists every signalement status in workflow order
func AllStatuses() []SignalementStatus {
	return []SignalementStatus{
		StatusPending,
		StatusInProgress,
		StatusToDestock,
		StatusToVerify,
		StatusSellingThrough,
		StatusDestroyed,
	}
}

// OpenStatuses are the statuses picked up by the bulk urgency recompute
func OpenStatuses() []SignalementStatus {
	return []SignalementStatus{StatusPending, StatusInProgress}
}

// Valid reports whether s is a known status
func (s SignalementStatus) Valid() bool {
	for _, known := range AllStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// IsOpen reports whether s is picked up by the bulk recompute
func (s SignalementStatus) IsOpen() bool {
	return s == StatusPending || s == StatusInProgress
}

// Signalement is an expiry alert for a batch of product
type Signalement struct {
	ID             string            `db:"id" json:"id"`
	ProductCode    string            `db:"product_code" json:"product_code"`
	Quantity       int               `db:"quantity" json:"quantity"`
	ExpirationDate time.Time         `db:"expiration_date" json:"expiration_date"`
	Comment        *string           `db:"comment" json:"comment,omitempty"`
	Status         SignalementStatus `db:"status" json:"status"`

	// Derived by the urgency updater only
	ComputedUrgency        *UrgencyTier `db:"computed_urgency" json:"computed_urgency"`
	SellThroughProbability *float64     `db:"sell_through_probability" json:"sell_through_probability"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// UrgencyUpdate is the single write produced by one urgency recompute
type UrgencyUpdate struct {
	Tier                   UrgencyTier
	SellThroughProbability float64
	Status                 SignalementStatus
	UpdatedAt              time.Time
}

// SignalementFilter narrows signalement listings. Zero values mean no filter.
type SignalementFilter struct {
	Statuses          []SignalementStatus
	Urgencies         []UrgencyTier
	ProductCodePrefix string
	ExpiringBefore    *time.Time
	Limit             int
	Offset            int
}
