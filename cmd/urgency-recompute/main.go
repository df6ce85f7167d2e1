// Command urgency-recompute runs one bulk urgency recompute and exits.
// It is meant for cron jobs and for catching up after a rotation import.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/pharmastock/pharmastock-backend/internal/stock/repository"
	"github.com/pharmastock/pharmastock-backend/internal/stock/service"
	"github.com/pharmastock/pharmastock-backend/internal/stock/urgency"
	"github.com/pharmastock/pharmastock-backend/pkg/config"
	"github.com/pharmastock/pharmastock-backend/pkg/database"
	"github.com/pharmastock/pharmastock-backend/pkg/lock"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
)

func main() {
	useLock := flag.Bool("lock", true, "Skip the run when another replica holds the recompute lock (needs Redis)")
	timeout := flag.Duration("timeout", 30*time.Minute, "Abort the run after this duration")
	flag.Parse()

	cfg, err := config.LoadWithValidation("urgency-recompute")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("urgency-recompute", cfg.Server.Environment)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	signalementRepo := repository.NewSignalementRepository(db)
	rotationRepo := repository.NewRotationRepository(db)
	loc, err := cfg.Urgency.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid urgency timezone")
	}
	updater := service.NewUpdaterService(signalementRepo, rotationRepo, urgency.NewEngine().WithLocation(loc), nil, log)

	var locker *lock.Locker
	if *useLock {
		locker, err = lock.New(ctx, &cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer locker.Close()
	}

	var summary *service.RecomputeSummary
	err = locker.RunExclusive(ctx, service.RecomputeLockKey, cfg.Urgency.LockTTL, func(ctx context.Context) error {
		var err error
		summary, err = updater.RecomputeAllOpen(ctx)
		return err
	})
	switch {
	case errors.Is(err, lock.ErrNotObtained):
		log.Info().Msg("recompute already running on another replica, nothing to do")
		return
	case err != nil:
		log.Fatal().Err(err).Msg("recompute failed")
	}

	log.Info().
		Int("processed", summary.Processed).
		Int("with_rotation", summary.WithRotation).
		Int("auto_verified", summary.AutoVerified).
		Int("failed", summary.Failed).
		Msg("recompute completed")

	if summary.Failed > 0 {
		os.Exit(2)
	}
}
