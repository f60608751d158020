package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/orchestrator-service/config"
	"github.com/shipabox/shipment-saga/shared/logging"
	"github.com/shipabox/shipment-saga/shared/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	root := &cobra.Command{
		Use:           "orchestrator-service",
		Short:         "ShipABox shipment saga orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.AddCommand(serve, newMigrateCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Consume shipment events and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the PostgreSQL tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			db, err := config.OpenDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := config.Migrate(ctx, db); err != nil {
				return err
			}
			logger.Info("database migrated", zap.String("database", cfg.Database.Database))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.ReadConfig()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load config")
	}

	logger, err := logging.Init(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to initialize logger")
	}
	logger = logger.With(zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))
	logging.Set(logger)

	return cfg, logger, nil
}

func serve(ctx context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting",
		zap.String("version", version),
		zap.String("port", cfg.Port),
		zap.String("store", cfg.Store.Driver),
		zap.String("journal", cfg.Journal.Driver),
		zap.String("transport", cfg.Transport.Driver),
		zap.String("policy", cfg.Dispatch.Policy),
		zap.Int("max_concurrent", cfg.Dispatch.MaxConcurrent),
	)

	deps, err := config.BuildDependencies(ctx, cfg, logger)
	if err != nil {
		return errors.Wrap(err, "failed to build dependencies")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := deps.Close(closeCtx); err != nil {
			logger.Error("error closing dependencies", zap.Error(err))
		}
	}()

	if deps.Telemetry != nil {
		ctx = telemetry.WithTelemetry(ctx, deps.Telemetry)
	}

	if cfg.NeedsDatabase() {
		if err := config.Migrate(ctx, deps.DB); err != nil {
			return err
		}
	}

	if err := deps.Subscribe(ctx); err != nil {
		return errors.Wrap(err, "failed to subscribe")
	}

	go deps.StaleMonitor.Run(ctx)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return errors.Wrap(err, "http server failed")
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}

	logger.Info("stopped")
	return nil
}

func setupRouter(deps *config.Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	if deps.Telemetry != nil {
		r.Use(telemetry.Middleware(deps.Telemetry))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Handle("/metrics", telemetry.MetricsHandler())

	deps.ShipmentHandlers.RegisterRoutes(r)

	return r
}
