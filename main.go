// Command users-service serves CRUD over the users table:
//
//	GET    /users?limit=&offset=
//	GET    /users/{id}
//	POST   /users
//	PATCH  /users/{id}
//	DELETE /users/{id}
//	GET    /healthz
//	GET    /openapi.json
//	GET    /docs
//
// Configuration comes from the environment (see package config). The schema
// is migrated on startup; cmd/migrate manages it out of band.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Skryldev/users-service/api"
	"github.com/Skryldev/users-service/config"
	"github.com/Skryldev/users-service/db"
	"github.com/Skryldev/users-service/repo"
)

const readHeaderTimeout = 10 * time.Second

func main() {
	// ── 0. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fatalf("configuration: %v", err)
	}

	// ── 1. Structured logger ─────────────────────────────────────────────
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	// ── 2. Schema ─────────────────────────────────────────────────────────
	if err := db.Migrate(cfg.DB, logger); err != nil {
		fatalf("migrations: %v", err)
	}

	// ── 3. Connection pool ───────────────────────────────────────────────
	dbCfg := cfg.DB
	dbCfg.Hooks = []db.Hook{
		db.NewLogHook(db.LogHookConfig{
			Logger:             logger,
			SlowQueryThreshold: cfg.SlowQueryThreshold,
		}),
	}
	database, err := db.Open(dbCfg)
	if err != nil {
		fatalf("database: %v", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("database close failed", "error", err)
		}
	}()
	slog.Info("database ready", "driver", dbCfg.DriverName)

	// ── 4. HTTP wiring ───────────────────────────────────────────────────
	users := api.NewUserHandler(repo.NewUserRepo(database), logger)
	router := api.NewRouter(users, database, api.RouterConfig{
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
	})

	if err := serve(cfg, router); err != nil {
		slog.Error("server stopped with error", "error", err)
		return
	}
	slog.Info("server gracefully stopped")
}

// serve runs the HTTP server until SIGINT/SIGTERM, then drains in-flight
// requests for at most cfg.ShutdownTimeout.
func serve(cfg config.Config, handler http.Handler) error {
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutdown signal received, draining requests", "timeout", cfg.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
