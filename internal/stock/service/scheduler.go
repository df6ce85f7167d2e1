package service

import (
	"context"
	"errors"
	"time"

	"github.com/pharmastock/pharmastock-backend/pkg/lock"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
)

// RecomputeLockKey guards the bulk recompute across replicas
const RecomputeLockKey = "urgency-recompute"

// Recomputer runs a bulk urgency recompute
type Recomputer interface {
	RecomputeAllOpen(ctx context.Context) (*RecomputeSummary, error)
}

// Exclusive runs fn while no other replica holds key
type Exclusive interface {
	RunExclusive(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// RecomputeScheduler runs the bulk urgency recompute periodically.
// Each cycle runs under a lock so only one replica recomputes at a time.
type RecomputeScheduler struct {
	updater  Recomputer
	locker   Exclusive
	interval time.Duration
	lockTTL  time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewRecomputeScheduler creates a new recompute scheduler
func NewRecomputeScheduler(updater Recomputer, locker Exclusive, interval, lockTTL time.Duration, log *logger.Logger) *RecomputeScheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &RecomputeScheduler{
		updater:  updater,
		locker:   locker,
		interval: interval,
		lockTTL:  lockTTL,
		logger:   log.WithComponent("recompute_scheduler"),
	}
}

// Start starts the scheduler in a background goroutine.
// A first cycle runs immediately, then one per interval.
func (s *RecomputeScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.logger.Info().Dur("interval", s.interval).Msg("recompute scheduler started")

		s.RunCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("recompute scheduler stopped")
				return
			case <-ticker.C:
				s.RunCycle(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine and waits for the running cycle
func (s *RecomputeScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// RunCycle runs one guarded recompute and reports whether it ran
func (s *RecomputeScheduler) RunCycle(ctx context.Context) bool {
	start := time.Now()

	var summary *RecomputeSummary
	run := func(ctx context.Context) error {
		var err error
		summary, err = s.updater.RecomputeAllOpen(ctx)
		return err
	}

	var err error
	if s.locker != nil {
		err = s.locker.RunExclusive(ctx, RecomputeLockKey, s.lockTTL, run)
	} else {
		err = run(ctx)
	}

	switch {
	case errors.Is(err, lock.ErrNotObtained):
		s.logger.Info().Msg("recompute already running on another replica, skipping cycle")
		return false
	case err != nil:
		s.logger.Error().Err(err).Msg("recompute cycle failed")
		return false
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("processed", summary.Processed).
		Int("failed", summary.Failed).
		Msg("recompute cycle completed")
	return true
}
