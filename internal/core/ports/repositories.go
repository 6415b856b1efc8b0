package ports

import (
	"context"
	"errors"
	"time"

	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/hotspot"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")

// CrimeRepository persists cleaned crime records.
type CrimeRepository interface {
	InsertBatch(ctx context.Context, crimes []domain.Crime) (int, error)
	// List returns crimes newest first.
	List(ctx context.Context, filter domain.CrimeFilter) ([]domain.Crime, error)
	// Incidents returns the location, category and time of matching crimes.
	Incidents(ctx context.Context, filter domain.CrimeFilter) (hotspot.PointSet, error)
	TypeCounts(ctx context.Context) ([]domain.TypeCount, error)
	// MonthlyCounts returns the most recent months in chronological order.
	MonthlyCounts(ctx context.Context, months int) ([]domain.MonthlyCount, error)
	DailyCounts(ctx context.Context, since time.Time, crimeType string) ([]domain.DailyCount, error)
	Count(ctx context.Context) (int, error)
}

// ExperimentRepository persists parameter sweep runs.
type ExperimentRepository interface {
	SaveRun(ctx context.Context, run *domain.ExperimentRun) error
	ListRuns(ctx context.Context, offset, limit int) ([]domain.ExperimentRun, int, error)
	GetRun(ctx context.Context, id string) (*domain.ExperimentRun, error)
}
