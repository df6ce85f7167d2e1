package service

import (
	"context"

	"github.com/pharmastock/pharmastock-backend/internal/stock/domain"
)

// DashboardStore provides the grouped signalement counts
type DashboardStore interface {
	CountByStatus(ctx context.Context) ([]domain.StatusCount, error)
	CountByUrgency(ctx context.Context) ([]domain.StatusCount, error)
}

// UrgencyNotComputed is the dashboard key for signalements without an urgency yet
const UrgencyNotComputed = "none"

// DashboardStats represents dashboard statistics
type DashboardStats struct {
	Total     int            `json:"total"`
	ByStatus  map[string]int `json:"by_status"`
	ByUrgency map[string]int `json:"by_urgency"`
}

// DashboardService aggregates signalement counts
type DashboardService struct {
	store DashboardStore
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(store DashboardStore) *DashboardService {
	return &DashboardService{store: store}
}

// Stats counts signalements per status and per urgency tier.
// Every known status and tier is present, zero when unused.
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	byStatus, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	byUrgency, err := s.store.CountByUrgency(ctx)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		ByStatus:  make(map[string]int),
		ByUrgency: map[string]int{UrgencyNotComputed: 0},
	}
	for _, st := range domain.AllStatuses() {
		stats.ByStatus[string(st)] = 0
	}
	for _, u := range domain.AllUrgencies() {
		stats.ByUrgency[string(u)] = 0
	}

	for _, c := range byStatus {
		stats.ByStatus[c.Key] += c.Count
		stats.Total += c.Count
	}
	for _, c := range byUrgency {
		stats.ByUrgency[c.Key] += c.Count
	}

	return stats, nil
}
