/*
main.go - Application entry point

STARTUP SEQUENCE:
  1. Load configuration (.env + environment)
  2. Configure structured logging
  3. Open the store (PostgreSQL if DATABASE_URL is set, else SQLite)
  4. Wire recorder, payroll service and HTTP handlers
  5. Start the open-shift monitor and the HTTP server
  6. Shut down gracefully on SIGINT/SIGTERM

ENVIRONMENT:
  DAY_BOUNDARY is required (midnight or early_morning). See config/config.go
  for every key.

EXAMPLES:
  DAY_BOUNDARY=early_morning ./server
  DAY_BOUNDARY=midnight SQLITE_PATH=":memory:" ./server
  DAY_BOUNDARY=midnight DATABASE_URL=postgres://localhost/attendance ./server
*/
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/payroll"
	"github.com/warp/attendance-engine/store/postgres"
	"github.com/warp/attendance-engine/store/sqlite"
)

// backend is everything the server needs from a store.
type backend interface {
	attendance.TxStore
	payroll.ProfileStore
	generic.HolidayStore
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	store, closeStore, err := openStore(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to open store", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	recorder := attendance.NewRecorder(store, cfg.Resolver(), store)
	recorder.FutureTolerance = cfg.FutureTolerance
	recorder.MaxShiftLength = cfg.StaleShiftAfter
	recorder.Logger = logger

	svc := payroll.NewService(store, store, store)
	svc.Concurrency = cfg.PayrollConcurrency
	svc.Logger = logger

	handler := api.NewHandler(recorder, svc, store)
	handler.Ready = store.Ping
	handler.Logger = logger
	handler.Monitor.StaleAfter = cfg.StaleShiftAfter
	handler.Monitor.CheckInterval = cfg.StaleShiftInterval
	handler.Monitor.Logger = logger

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins:  cfg.AllowedOrigins,
		EnableScenarios: cfg.EnableScenarios,
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	handler.Monitor.Start()
	defer handler.Monitor.Stop()

	go func() {
		logger.Info("server starting",
			"addr", cfg.Addr, "env", cfg.AppEnv, "dayBoundary", cfg.DayBoundary, "cutoffHour", cfg.DayCutoffHour)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
	}
	logger.Info("server stopped")
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func openStore(ctx context.Context, cfg config.Config) (backend, func(), error) {
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		pg, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("using postgres store")
		return pg, pg.Close, nil
	}

	lite, err := sqlite.New(cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("using sqlite store", "path", cfg.SQLitePath)
	return lite, func() { _ = lite.Close() }, nil
}
