package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/payimport/internal/config"
	"github.com/JonMunkholm/payimport/internal/core"
	"github.com/JonMunkholm/payimport/internal/database"
	"github.com/JonMunkholm/payimport/internal/logging"
	"github.com/JonMunkholm/payimport/internal/store/memstore"
	"github.com/JonMunkholm/payimport/internal/web"
)

func main() {
	// Load .env file if it exists; set variables win.
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"per_step", cfg.Import.PerStep,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()
	core.StepTimeout = cfg.Import.StepTimeout

	var (
		store     core.Store
		jobs      core.JobStore
		templates core.TemplateStore
		audit     core.AuditStore
		health    web.HealthCheck
	)
	switch cfg.Database.Driver {
	case config.DriverMemory:
		mem := memstore.New()
		store, jobs, templates, audit = mem, mem, mem, mem
		slog.Warn("using in-memory store; payments are lost on restart")
	default:
		pool, err := database.Open(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		slog.Info("connected to database", "name", database.DatabaseName(cfg.Database.URL))

		db := database.New(pool)
		if cfg.Database.Migrate {
			if err := db.Migrate(ctx); err != nil {
				slog.Error("failed to apply schema", "error", err)
				os.Exit(1)
			}
		}
		store, jobs, templates, audit = db, db, db, db
		health = db.Ping
	}

	// Create service with config
	service, err := core.NewService(store, jobs, templates, nil, cfg.Import.ServiceConfig())
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}
	service.UseAuditLog(audit)
	slog.Info("gateways registered", "count", len(service.Gateways()))

	server := web.NewServer(service, cfg, health)

	// Background runner for jobs started through the API
	runCtx, stopRunner := context.WithCancel(ctx)
	go service.StartRunner(runCtx, cfg.Import.StepInterval)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		stopRunner()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let in-flight steps reach their batch boundary
		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for import steps to finish", "active", status.Active)
			if err := service.WaitForSteps(shutdownCtx); err != nil {
				slog.Warn("import steps did not finish in time", "error", err)
			} else {
				slog.Info("all import steps finished")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
