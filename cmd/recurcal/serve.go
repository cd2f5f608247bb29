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

	"github.com/spf13/cobra"

	"github.com/cyp0633/recurcal/auth"
	"github.com/cyp0633/recurcal/internal/config"
	"github.com/cyp0633/recurcal/recurrence"
	"github.com/cyp0633/recurcal/server"
	"github.com/cyp0633/recurcal/storage"
	"github.com/cyp0633/recurcal/storage/memory"
	"github.com/cyp0633/recurcal/storage/sqlite"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Runs the HTTP API until interrupted.

Settings come from RECURCAL_* environment variables and an optional config
file. RECURCAL_JWT_SECRET is required.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.ValidateServe(); err != nil {
				return err
			}

			logger, err := newLogger(os.Stdout, cfg.Log)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}
}

func openStore(cfg config.StoreConfig) (storage.Storage, error) {
	switch cfg.Driver {
	case config.StoreSQLite:
		return sqlite.Open(cfg.SQLitePath)
	default:
		return memory.New(), nil
	}
}

// newHandler wires storage, auth and the engine into the API server
func newHandler(cfg *config.Config, store storage.Storage, engine *recurrence.Engine, logger *slog.Logger) (http.Handler, error) {
	users := auth.NewPasswordAuthenticator(store, auth.WithLogger(logger.With("component", "auth")))
	sessions, err := auth.NewSessionIssuer([]byte(cfg.Auth.JWTSecret), auth.WithSessionTTL(cfg.Auth.SessionTTL))
	if err != nil {
		return nil, err
	}

	return server.New(store, users, sessions,
		server.WithLogger(logger.With("component", "http")),
		server.WithEngine(engine),
		server.WithMetrics(server.NewMetrics(engine)),
		server.WithPublicURL(cfg.PublicURL),
		server.WithMaxAvatarBytes(cfg.MaxAvatarBytes),
		server.WithAuthRateLimit(cfg.Auth.RateLimit, time.Minute),
	)
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()
	logger.Info("store ready", "driver", cfg.Store.Driver)

	engine := recurrence.NewEngineWithConfig(cfg.RecurrenceConfig())
	defer engine.Close()

	handler, err := newHandler(cfg, store, engine, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", srv.Addr,
			"max_occurrences", cfg.Engine.MaxOccurrences,
			"overflow", cfg.Engine.Overflow)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
