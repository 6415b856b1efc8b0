package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/chicrime/internal/adapters/http"
	natsadapter "github.com/samirrijal/chicrime/internal/adapters/nats"
	"github.com/samirrijal/chicrime/internal/adapters/store"
	"github.com/samirrijal/chicrime/internal/adapters/valkey"
	"github.com/samirrijal/chicrime/internal/core/ports"
	"github.com/samirrijal/chicrime/internal/core/usecases"
	"github.com/samirrijal/chicrime/internal/experiment"
	"github.com/samirrijal/chicrime/internal/pkg/config"
	"github.com/samirrijal/chicrime/internal/pkg/logging"
	"github.com/samirrijal/chicrime/internal/pkg/metrics"
	"github.com/samirrijal/chicrime/internal/pkg/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load("chicrime-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, telemetry.Config{
			ServiceName: cfg.Telemetry.ServiceName,
			Exporter:    cfg.Telemetry.Exporter,
			Endpoint:    cfg.Telemetry.Endpoint,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go reportPoolStats(ctx, db)

	deps := &http.Dependencies{
		DB:       db,
		Version:  version,
		Logger:   slog.Default(),
		SpecPath: cfg.Server.SpecPath,
	}

	// Cache. Interface fields stay nil when the backend is missing.
	var cache ports.CacheService
	if cfg.Valkey.Enabled {
		vc, err := valkey.New(cfg.Valkey.Addr, "chicrime")
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer vc.Close()
			cache = vc
			deps.Cache = vc
			subscribeInvalidation(ctx, cfg.NATS.URL, vc)
		}
	}

	// NATS
	var publisher ports.EventPublisher
	nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer nc.Close()
		publisher = nc
		deps.NATS = nc.Conn()
	}

	deps.Crimes = usecases.NewCrimeService(db.Crimes, cache)
	deps.Hotspots = usecases.NewHotspotService(db.Crimes, cache, publisher, usecases.HotspotOptions{
		Defaults:     cfg.Hotspot.Pipeline(),
		MaxIncidents: cfg.Hotspot.MaxIncidents,
		CacheTTL:     cfg.Hotspot.CacheTTL,
	})
	deps.Analysis = usecases.NewAnalysisService(db.Crimes, cache)
	deps.Experiments = usecases.NewExperimentService(db.Crimes, db.Experiments, publisher, cfg.Experiment.Workers, nil).
		WithWeights(experiment.Weights{Efficiency: cfg.Experiment.EfficiencyWeight, Coverage: cfg.Experiment.CoverageWeight})

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024,
		AppName:      "Chicago Crime Hotspots API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.AllowOrigins,
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept",
		ExposeHeaders: "Link, ETag, Deprecation, Sunset",
		MaxAge:        3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "driver", db.Driver())
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// subscribeInvalidation purges derived cache entries whenever the ingestor
// reports new crimes.
func subscribeInvalidation(ctx context.Context, natsURL string, purger ports.CachePurger) {
	sub, err := natsadapter.NewSubscriber(natsURL, "chicrime-api")
	if err != nil {
		slog.Warn("cache invalidation disabled", "error", err)
		return
	}
	inv := usecases.NewInvalidator(purger, slog.Default())
	if err := sub.SubscribeIngest(ctx, inv.OnIngest); err != nil {
		slog.Warn("subscribe ingest events failed", "error", err)
		sub.Close()
		return
	}
	go func() {
		<-ctx.Done()
		sub.Close()
	}()
}

func reportPoolStats(ctx context.Context, db *store.Store) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Stat())
		}
	}
}
