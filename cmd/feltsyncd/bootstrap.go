package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofrs/flock"

	"feltsync/internal/config"
	"feltsync/internal/engine"
	"feltsync/internal/localstore"
	"feltsync/internal/logging"
	"feltsync/internal/metadata"
	"feltsync/internal/queue"
	"feltsync/internal/remote"
)

func lockPath(cfg *config.Config) string {
	if cfg == nil {
		return filepath.Join("", "feltsyncd.lock")
	}
	return filepath.Join(cfg.Paths.StateDir, "feltsyncd.lock")
}

// run wires the stores and the engine, then blocks until the context is
// cancelled by a shutdown signal.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	lock := flock.New(lockPath(cfg))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return errors.New("another feltsyncd instance holds the state directory")
	}
	defer lock.Unlock() //nolint:errcheck

	queueStore, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer queueStore.Close()

	metaStore, err := metadata.Open(cfg)
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}
	defer metaStore.Close()

	records, err := localstore.Open(cfg)
	if err != nil {
		return fmt.Errorf("open records store: %w", err)
	}
	defer records.Close()

	orch := engine.New(engine.Options{
		Config:   cfg,
		Queue:    queueStore,
		Metadata: metaStore,
		Local:    records,
		Remote:   remote.NewClient(cfg),
		Logger:   logger,
	})

	if err := orch.ReconcileStartup(ctx); err != nil {
		return err
	}
	if purged, err := orch.PurgeCompleted(ctx); err != nil {
		logger.Warn("completed-entry purge failed", logging.Error(err))
	} else if purged > 0 {
		logger.Info("purged completed queue entries", logging.Int64("count", purged))
	}

	scheduler := engine.NewScheduler(orch, cfg, logger)
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	logger.Info("feltsyncd running",
		logging.String("state_dir", cfg.Paths.StateDir),
		logging.Int("cycle_interval", cfg.Sync.CycleInterval))

	<-ctx.Done()
	logger.Info("feltsyncd shutting down")
	scheduler.Stop()
	return nil
}
