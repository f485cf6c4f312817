// The retention binary periodically deletes telemetry events older than
// the configured window. Resume positions in watch_history are kept
// indefinitely; only the raw event log expires.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SyedJoN/mytube-backend/internal/config"
	"github.com/SyedJoN/mytube-backend/internal/db"
	"github.com/SyedJoN/mytube-backend/internal/db/repository"
	"github.com/SyedJoN/mytube-backend/internal/metrics"
	"github.com/SyedJoN/mytube-backend/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Log.Info("Retention sweeper starting",
		zap.Duration("window", cfg.Retention.Window),
		zap.Duration("sweepInterval", cfg.Retention.SweepInterval),
		zap.Int("sweepBatch", cfg.Retention.SweepBatch),
	)

	ctx := context.Background()

	pool, err := db.NewPool(ctx, &db.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Name,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxConnections),
		MinConns:        int32(cfg.Database.MinConnections),
		MaxConnLifetime: cfg.Database.MaxLifetime,
		MaxConnIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		logger.Log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close(pool)

	sweeper := &Sweeper{
		repo:      repository.NewTelemetryRepository(pool),
		window:    cfg.Retention.Window,
		batchSize: cfg.Retention.SweepBatch,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Retention.SweepInterval)
	defer ticker.Stop()

	// Run an initial sweep immediately
	if err := sweeper.Sweep(ctx); err != nil {
		logger.Log.Error("Initial sweep failed", zap.Error(err))
	}

	for {
		select {
		case <-ticker.C:
			if err := sweeper.Sweep(ctx); err != nil {
				logger.Log.Error("Scheduled sweep failed", zap.Error(err))
			}
		case sig := <-shutdown:
			logger.Log.Info("Shutdown signal received", zap.String("signal", sig.String()))
			return
		}
	}
}

// Sweeper deletes expired telemetry events in bounded batches.
type Sweeper struct {
	repo      repository.TelemetryRepository
	window    time.Duration
	batchSize int
}

// Sweep deletes expired events until none remain, one batch at a time so
// a large backlog never holds a long-running delete.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.window)
	var total int64

	for {
		deleted, err := s.repo.DeleteOlderThan(ctx, cutoff, s.batchSize)
		if err != nil {
			return err
		}
		total += deleted
		if deleted < int64(s.batchSize) {
			break
		}
	}

	if total > 0 {
		metrics.EventsExpiredTotal.Add(float64(total))
		logger.Log.Info("Retention sweep completed",
			zap.Int64("deleted", total),
			zap.Time("cutoff", cutoff),
		)
	} else {
		logger.Log.Debug("Retention sweep found nothing to delete",
			zap.Time("cutoff", cutoff),
		)
	}

	return nil
}
