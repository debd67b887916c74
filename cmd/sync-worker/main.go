package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/assistance-scheduling/internal/availability"
	"github.com/hackgods/assistance-scheduling/internal/backend"
	"github.com/hackgods/assistance-scheduling/internal/config"
	"github.com/hackgods/assistance-scheduling/internal/logger"
	redisclient "github.com/hackgods/assistance-scheduling/internal/redis"
	"github.com/hackgods/assistance-scheduling/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewZapLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.APIToken == "" {
		log.Fatal("API_TOKEN is required for the sync worker")
	}
	if len(cfg.SyncVolunteers) == 0 {
		log.Fatal("SYNC_VOLUNTEER_IDS is empty, nothing to sync")
	}
	if cfg.StoreDriver == config.StoreMemory {
		log.Fatal("sync worker needs a shared store, STORE_DRIVER=memory is per process")
	}

	log.Info("sync-worker starting up",
		zap.Duration("interval", cfg.SyncInterval),
		zap.Int("volunteers", len(cfg.SyncVolunteers)),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storeCtx, cancelStore := context.WithTimeout(rootCtx, 10*time.Second)
	st, rdb, err := store.Open(storeCtx, cfg)
	cancelStore()
	if err != nil {
		log.Fatal("store connection error", zap.Error(err))
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn("error closing store", zap.Error(err))
		}
	}()

	var locker availability.Locker = availability.NewLocalLocker().WithTTL(cfg.LockTTL)
	if rdb != nil {
		locker = redisclient.NewVolunteerLocker(rdb, cfg.LockTTL, redisclient.WithAcquireWait(cfg.LockWait))
	}

	client := backend.NewClient(cfg.APIBaseURL,
		backend.WithTimeout(cfg.APITimeout),
		backend.WithTokenSource(backend.StaticToken(cfg.APIToken)),
		backend.WithLogger(log.Named("backend")),
	)
	calendar := availability.NewManager(
		availability.NewHTTPRepository(client),
		st,
		locker,
		log.Named("calendar"),
	)

	// Run once at startup
	runOnce(rootCtx, calendar, cfg.SyncVolunteers, log)

	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info("shutdown signal received, stopping sync worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, calendar, cfg.SyncVolunteers, log)
		}
	}
}

func runOnce(ctx context.Context, calendar *availability.Manager, volunteers []int64, log *zap.Logger) {
	start := time.Now()
	var synced, failed int

	for _, id := range volunteers {
		runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		view, err := calendar.Resync(runCtx, id)
		cancel()
		if err != nil {
			failed++
			log.Warn("calendar resync failed", zap.Int64("volunteer_id", id), zap.Error(err))
			continue
		}
		synced++
		log.Debug("calendar resynced", zap.Int64("volunteer_id", id), zap.Int("days", len(view.Days)))
	}

	log.Info("sync run complete",
		zap.Int("synced", synced),
		zap.Int("failed", failed),
		zap.Duration("took", time.Since(start)),
	)
}
