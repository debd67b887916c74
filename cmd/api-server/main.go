package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/assistance-scheduling/internal/api"
	"github.com/hackgods/assistance-scheduling/internal/appointment"
	"github.com/hackgods/assistance-scheduling/internal/availability"
	"github.com/hackgods/assistance-scheduling/internal/backend"
	"github.com/hackgods/assistance-scheduling/internal/booking"
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

	log.Info("api-server starting up",
		zap.String("port", cfg.HTTPPort),
		zap.String("store", cfg.StoreDriver),
		zap.String("backend", cfg.APIBaseURL),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect the session and cache store
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
	log.Info("store ready", zap.String("driver", cfg.StoreDriver))

	var locker availability.Locker = availability.NewLocalLocker().WithTTL(cfg.LockTTL)
	if rdb != nil {
		locker = redisclient.NewVolunteerLocker(rdb, cfg.LockTTL, redisclient.WithAcquireWait(cfg.LockWait))
	}

	tokens := store.NewSessionTokens(st)
	client := backend.NewClient(cfg.APIBaseURL,
		backend.WithTimeout(cfg.APITimeout),
		backend.WithTokenSource(tokens),
		backend.WithInvalidator(tokens),
		backend.WithLogger(log.Named("backend")),
	)

	apptRepo := appointment.NewHTTPRepository(client)
	apptSvc := appointment.NewService(apptRepo)
	calendar := availability.NewManager(
		availability.NewHTTPRepository(client),
		st,
		locker,
		log.Named("calendar"),
	)
	bookings := booking.NewRegistry(apptSvc, apptSvc, cfg.WizardIdleTTL, log.Named("booking"))

	go bookings.Run(rootCtx, time.Minute)
	go func() {
		if err := api.WatchSessions(rootCtx, st, bookings, log.Named("sessions")); err != nil {
			log.Error("session watcher stopped", zap.Error(err))
		}
	}()

	router := api.NewRouter(api.RouterConfig{
		Appointments: apptSvc,
		Calendar:     calendar,
		Bookings:     bookings,
		Store:        st,
		Log:          log,
		Env:          cfg.Env,
		Version:      cfg.Version,
		CORSOrigins:  cfg.CORSOrigins,
		RateLimitRPS: cfg.RateLimitRPS,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.WriteTimeout(),
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	log.Info("api-server stopped")
}
