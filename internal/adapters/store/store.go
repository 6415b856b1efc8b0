// Package store opens the configured database backend and exposes it
// through the repository ports.
package store

import (
	"context"
	"fmt"

	"github.com/samirrijal/chicrime/internal/adapters/postgres"
	"github.com/samirrijal/chicrime/internal/adapters/sqlite"
	"github.com/samirrijal/chicrime/internal/core/ports"
	"github.com/samirrijal/chicrime/internal/pkg/config"
	"github.com/samirrijal/chicrime/internal/pkg/metrics"
)

// Store bundles the repositories of one database.
type Store struct {
	Crimes      ports.CrimeRepository
	Experiments ports.ExperimentRepository

	driver string
	ping   func(ctx context.Context) error
	stat   func() metrics.PoolStat
	close  func()
}

// Open connects to the database selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.DSN())
		if err != nil {
			return nil, err
		}
		return &Store{
			Crimes:      postgres.NewCrimeRepo(db),
			Experiments: postgres.NewExperimentRepo(db),
			driver:      cfg.Driver,
			ping:        db.Ping,
			stat:        db.Stat,
			close:       db.Close,
		}, nil
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Store{
			Crimes:      sqlite.NewCrimeRepo(db),
			Experiments: sqlite.NewExperimentRepo(db),
			driver:      cfg.Driver,
			ping:        db.Ping,
			stat:        db.Stat,
			close:       func() { _ = db.Close() },
		}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// Driver names the backend in use.
func (s *Store) Driver() string { return s.driver }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.ping(ctx) }

// Stat returns connection pool statistics.
func (s *Store) Stat() metrics.PoolStat { return s.stat() }

// Close releases the connection pool.
func (s *Store) Close() { s.close() }

// Migrate applies ("up") or rolls back one step ("down") of the driver's
// migrations under cfg.MigrationsDir.
func Migrate(cfg config.DatabaseConfig, direction string) error {
	dir := cfg.MigrationsPath()
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.Migrate(cfg.DSN(), dir, direction)
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		switch direction {
		case "up":
			return db.MigrateUp(dir)
		case "down":
			return db.MigrateDown(dir)
		}
		return fmt.Errorf("unknown migration direction %q", direction)
	}
	return fmt.Errorf("unsupported database driver %q", cfg.Driver)
}
