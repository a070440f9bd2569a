/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the incentive engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Configure logging
  3. Initialize SQLite store
  4. Load schemes (store, or a watched schemes file)
  5. Configure HTTP router and the log retention scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML configuration file (also INCENTIVE_CONFIG)
  -db      SQLite database path, overrides db_path
           Use ":memory:" for in-memory database

ENVIRONMENT:
  INCENTIVE_* overrides any configuration key, e.g. INCENTIVE_ADDR=:9090

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler and the schemes watcher
  4. Close database connection

EXAMPLES:
  ./server -config=./incentive.yaml
  ./server -db=":memory:"
  INCENTIVE_SCHEMES_FILE=./schemes.yaml ./server
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/warp/incentive-engine/api"
	"github.com/warp/incentive-engine/config"
	"github.com/warp/incentive-engine/factory"
	"github.com/warp/incentive-engine/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML configuration file")
	dbPath := flag.String("db", "", "SQLite database path (overrides db_path)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if err := cfg.ConfigureLogger(log.StandardLogger()); err != nil {
		log.WithError(err).Fatal("failed to configure logger")
	}
	logger := log.StandardLogger()

	// Initialize store
	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			log.WithError(err).Fatal("failed to create database directory")
		}
	}
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.WithError(err).WithField("db_path", cfg.DBPath).Fatal("failed to initialize database")
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store)
	handler.Factory = factory.NewSchemeFactory(factory.WithDefaultForwardRequirement(cfg.ForwardRequirement()))
	handler.Engine = cfg.Engine(logger)
	handler.Logger = logger
	handler.Metrics = api.NewMetrics()
	handler.ManagerColumns = cfg.ManagerColumns

	// Schemes: a watched file owns the registry when configured, otherwise
	// the store does.
	var watcherDone chan struct{}
	if cfg.SchemesFile != "" {
		handler.SchemesFromFile = true
		w := factory.NewWatcher(cfg.SchemesFile, handler.Factory, handler.Registry, logger)
		w.OnReload = handler.Metrics.ObserveReload
		watcherDone = make(chan struct{})
		go func() {
			defer close(watcherDone)
			if err := w.Run(ctx); err != nil {
				log.WithError(err).Error("schemes watcher stopped")
			}
		}()
	} else if _, err := handler.LoadSchemes(ctx); err != nil {
		log.WithError(err).Warn("failed to load schemes, starting with an empty set")
	}

	// Log retention
	scheduler := api.NewLogRetentionScheduler(store, logger)
	scheduler.CheckInterval = cfg.CleanupInterval
	scheduler.KeepMonths = cfg.LogRetentionMonths
	scheduler.Metrics = handler.Metrics
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithFields(log.Fields{
			"addr":         cfg.Addr,
			"db_path":      cfg.DBPath,
			"total_policy": cfg.TotalPolicy,
			"schemes_file": cfg.SchemesFile,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	if watcherDone != nil {
		<-watcherDone
	}

	log.Info("server stopped")
}
