package domain

// UrgencyTier is the computed urgency of a signalement.
// It is a separate vocabulary from SignalementStatus.
type UrgencyTier string

const (
	UrgencyLow      UrgencyTier = "low"
	UrgencyMedium   UrgencyTier = "medium"
	UrgencyHigh     UrgencyTier = "high"
	UrgencyCritical UrgencyTier = "critical"
)

// AllUrgencies lists the tiers from least to most urgent
func AllUrgencies() []UrgencyTier {
	return []UrgencyTier{UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical}
}

// Rank orders tiers: low < medium < high < critical. Unknown tiers rank -1.
func (t UrgencyTier) Rank() int {
	for i, known := range AllUrgencies() {
		if t == known {
			return i
		}
	}
	return -1
}

// Valid reports whether t is a known tier
func (t UrgencyTier) Valid() bool {
	return t.Rank() >= 0
}

// Ptr returns a pointer to a copy of t
func (t UrgencyTier) Ptr() *UrgencyTier {
	return &t
}
