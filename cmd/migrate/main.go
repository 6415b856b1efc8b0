package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/samirrijal/chicrime/internal/adapters/store"
	"github.com/samirrijal/chicrime/internal/pkg/config"
	"github.com/samirrijal/chicrime/internal/pkg/logging"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down>")
	}

	cfg, err := config.Load("chicrime-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, "text")

	direction := os.Args[1]
	if direction != "up" && direction != "down" {
		log.Fatalf("unknown command: %s", direction)
	}
	if err := store.Migrate(cfg.Database, direction); err != nil {
		log.Fatalf("migrate %s: %v", direction, err)
	}
	slog.Info("migrations applied", "direction", direction, "driver", cfg.Database.Driver, "dir", cfg.Database.MigrationsPath())
}
