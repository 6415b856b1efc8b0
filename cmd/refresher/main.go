package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/samirrijal/chicrime/internal/adapters/nats"
	"github.com/samirrijal/chicrime/internal/adapters/store"
	"github.com/samirrijal/chicrime/internal/adapters/valkey"
	"github.com/samirrijal/chicrime/internal/core/ports"
	"github.com/samirrijal/chicrime/internal/core/usecases"
	"github.com/samirrijal/chicrime/internal/pkg/config"
	"github.com/samirrijal/chicrime/internal/pkg/logging"
)

func main() {
	cfg, err := config.Load("chicrime-refresher")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Reports go out on NATS for the WebSocket relay, so the broker is required here.
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	var cache ports.CacheService
	if cfg.Valkey.Enabled {
		vc, err := valkey.New(cfg.Valkey.Addr, "chicrime")
		if err != nil {
			slog.Warn("valkey unavailable, reports will not be cached", "error", err)
		} else {
			defer vc.Close()
			cache = vc
		}
	}

	svc := usecases.NewHotspotService(db.Crimes, cache, pub, usecases.HotspotOptions{
		Defaults:     cfg.Hotspot.Pipeline(),
		MaxIncidents: cfg.Hotspot.MaxIncidents,
		CacheTTL:     cfg.Hotspot.CacheTTL,
	})

	interval := cfg.Refresher.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("hotspot refresher started", "interval", interval.String())

	// Run once immediately
	refresh(ctx, svc)

	for {
		select {
		case <-ticker.C:
			refresh(ctx, svc)
		case <-ctx.Done():
			return
		case sig := <-quit:
			slog.Info("shutting down refresher", "signal", sig.String())
			return
		}
	}
}

// refresh recomputes the default hotspot report. The service refreshes the
// cache entry and publishes the report.
func refresh(ctx context.Context, svc *usecases.HotspotService) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	rep, err := svc.Detect(ctx, usecases.HotspotQuery{Analyze: true, NoCache: true})
	switch {
	case usecases.IsNoData(err):
		slog.Warn("no incidents to refresh", "error", err)
		return
	case err != nil:
		slog.Error("refresh hotspots failed", "error", err)
		return
	}
	slog.Info("hotspots refreshed",
		"run_id", rep.RunID,
		"incidents", rep.IncidentCount,
		"hotspots", len(rep.Hotspots),
		"took", time.Since(start).String(),
	)
}
