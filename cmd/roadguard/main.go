package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/convoylab/roadguard/internal/alerts"
	"github.com/convoylab/roadguard/internal/analytics"
	"github.com/convoylab/roadguard/internal/anticheat"
	anticheatapi "github.com/convoylab/roadguard/internal/anticheat/api"
	anticheatstorage "github.com/convoylab/roadguard/internal/anticheat/storage"
	"github.com/convoylab/roadguard/internal/audit"
	"github.com/convoylab/roadguard/internal/config"
	"github.com/convoylab/roadguard/internal/eventstore"
	eventstoreapi "github.com/convoylab/roadguard/internal/eventstore/api"
	"github.com/convoylab/roadguard/internal/eventstore/storage"
	"github.com/convoylab/roadguard/internal/eventstore/storage/postgres"
	"github.com/convoylab/roadguard/internal/migrations"
	"github.com/convoylab/roadguard/internal/penalty"
	"github.com/convoylab/roadguard/internal/projection"
	"github.com/convoylab/roadguard/internal/server"
)

func main() {
	configPath := flag.String("config", "roadguard.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"database_type", cfg.Database.Type,
		"alerts_enabled", cfg.Alerts.Enabled)

	// 2. Initialize Event Log Storage
	var eventLog storage.EventLog
	var dbAdapter *postgres.Adapter
	switch cfg.Database.Type {
	case "postgres":
		dbAdapter, err = postgres.NewAdapter(
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
		)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer dbAdapter.Close()

		if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
			slog.Error("Failed to run database migrations", "error", err)
			os.Exit(1)
		}
		eventLog = dbAdapter
	default:
		eventLog = storage.NewMemoryLog()
	}

	// 3. Initialize Projections
	locationModel := projection.NewDriverLocationModel()
	jobModel := projection.NewJobModel()
	registry := projection.NewRegistry(locationModel, jobModel)
	projectionSvc := projection.NewService(locationModel, jobModel)

	// 4. Initialize Event Store
	store := eventstore.NewService(eventLog, registry)
	eventsSvc := eventstoreapi.NewService(store)

	// 5. Initialize Anti-Cheat Engine
	thresholds, err := anticheat.LoadThresholds(cfg.AntiCheat.RulesDir)
	if err != nil {
		slog.Error("Failed to load anti-cheat thresholds", "error", err)
		os.Exit(1)
	}

	var alertPublisher alerts.Publisher = alerts.NopPublisher{}
	if cfg.Alerts.Enabled {
		kafkaPublisher := alerts.NewKafkaPublisher(cfg.Alerts.Brokers, cfg.Alerts.Topic)
		defer kafkaPublisher.Close()
		alertPublisher = kafkaPublisher
		slog.Info("Alert publishing enabled",
			"brokers", cfg.Alerts.Brokers,
			"topic", cfg.Alerts.Topic)
	}

	engineCfg := anticheat.Config{
		Detections: anticheatstorage.NewMemoryDetectionRepository(),
		Profiles:   anticheatstorage.NewMemoryProfileRepository(),
		Penalties:  penalty.LogApplier{},
		Thresholds: thresholds,
		Routes:     anticheat.NewMemoryRouteProvider(),
		Alerts:     alertPublisher,
	}
	if cfg.AntiCheat.AppendEvents {
		engineCfg.Events = store
	}
	engine := anticheat.NewEngine(engineCfg)

	// 6. Initialize Analytics and Audit
	tracker := analytics.NewTracker()
	analyticsSvc := analytics.NewService(tracker)

	auditLogger := audit.NewLogger(audit.NewMemoryRepository())
	auditSvc := audit.NewService(auditLogger)

	anticheatSvc := anticheatapi.NewService(engine, tracker, auditLogger, cfg.Server.MaxBodySizeMB)

	// 7. Initialize Server
	var srv *server.Server
	if dbAdapter != nil {
		srv = server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter.DB(), cfg.Server.Mode)
	} else {
		srv = server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), nil, cfg.Server.Mode)
	}
	anticheatSvc.RegisterRoutes(srv.Engine)
	eventsSvc.RegisterRoutes(srv.Engine)
	projectionSvc.RegisterRoutes(srv.Engine)
	analyticsSvc.RegisterRoutes(srv.Engine)
	auditSvc.RegisterRoutes(srv.Engine)

	// 8. Run
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(ctx)
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("Signal received, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}
	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
