package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/chicrime/internal/adapters/store"
	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/pkg/config"
)

func sqliteConfig(t *testing.T) config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver:        config.DriverSQLite,
		SQLitePath:    filepath.Join(t.TempDir(), "crimes.db"),
		MigrationsDir: "../../../migrations",
	}
}

func TestOpenSQLite(t *testing.T) {
	cfg := sqliteConfig(t)
	require.NoError(t, store.Migrate(cfg, "up"))

	s, err := store.Open(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, config.DriverSQLite, s.Driver())
	require.NoError(t, s.Ping(context.Background()))

	n, err := s.Crimes.InsertBatch(context.Background(), []domain.Crime{{
		ID:          1,
		CaseNumber:  "JA100001",
		Date:        time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
		PrimaryType: "THEFT",
		Location:    domain.GeoPoint{Lat: 41.88, Lon: -87.63},
		Year:        2024,
		Month:       1,
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	total, err := s.Crimes.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.GreaterOrEqual(t, s.Stat().TotalConns(), int32(1))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := store.Open(context.Background(), config.DatabaseConfig{Driver: "mysql"})
	assert.Error(t, err)
	assert.Error(t, store.Migrate(config.DatabaseConfig{Driver: "mysql"}, "up"))
}

func TestMigrateUnknownDirection(t *testing.T) {
	assert.Error(t, store.Migrate(sqliteConfig(t), "sideways"))
}
