package usecases_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/core/ports"
	"github.com/samirrijal/chicrime/internal/hotspot"
)

// --- Mock CrimeRepository ---

type mockCrimeRepo struct {
	listFn      func(ctx context.Context, f domain.CrimeFilter) ([]domain.Crime, error)
	incidentsFn func(ctx context.Context, f domain.CrimeFilter) (hotspot.PointSet, error)
	typesFn     func(ctx context.Context) ([]domain.TypeCount, error)
	monthlyFn   func(ctx context.Context, months int) ([]domain.MonthlyCount, error)
	dailyFn     func(ctx context.Context, since time.Time, crimeType string) ([]domain.DailyCount, error)

	mu    sync.Mutex
	calls int
}

func (m *mockCrimeRepo) InsertBatch(ctx context.Context, crimes []domain.Crime) (int, error) {
	return len(crimes), nil
}

func (m *mockCrimeRepo) List(ctx context.Context, f domain.CrimeFilter) ([]domain.Crime, error) {
	m.hit()
	if m.listFn != nil {
		return m.listFn(ctx, f)
	}
	return nil, nil
}

func (m *mockCrimeRepo) Incidents(ctx context.Context, f domain.CrimeFilter) (hotspot.PointSet, error) {
	m.hit()
	if m.incidentsFn != nil {
		return m.incidentsFn(ctx, f)
	}
	return nil, nil
}

func (m *mockCrimeRepo) TypeCounts(ctx context.Context) ([]domain.TypeCount, error) {
	m.hit()
	if m.typesFn != nil {
		return m.typesFn(ctx)
	}
	return nil, nil
}

func (m *mockCrimeRepo) MonthlyCounts(ctx context.Context, months int) ([]domain.MonthlyCount, error) {
	m.hit()
	if m.monthlyFn != nil {
		return m.monthlyFn(ctx, months)
	}
	return nil, nil
}

func (m *mockCrimeRepo) DailyCounts(ctx context.Context, since time.Time, crimeType string) ([]domain.DailyCount, error) {
	m.hit()
	if m.dailyFn != nil {
		return m.dailyFn(ctx, since, crimeType)
	}
	return nil, nil
}

func (m *mockCrimeRepo) Count(ctx context.Context) (int, error) { return 0, nil }

func (m *mockCrimeRepo) hit() {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
}

func (m *mockCrimeRepo) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Mock ExperimentRepository ---

type mockExperimentRepo struct {
	mu   sync.Mutex
	runs []domain.ExperimentRun
}

func (m *mockExperimentRepo) SaveRun(ctx context.Context, run *domain.ExperimentRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *run)
	return nil
}

func (m *mockExperimentRepo) ListRuns(ctx context.Context, offset, limit int) ([]domain.ExperimentRun, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset >= len(m.runs) {
		return nil, len(m.runs), nil
	}
	end := offset + limit
	if end > len(m.runs) {
		end = len(m.runs)
	}
	return m.runs[offset:end], len(m.runs), nil
}

func (m *mockExperimentRepo) GetRun(ctx context.Context, id string) (*domain.ExperimentRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == id {
			r := m.runs[i]
			return &r, nil
		}
	}
	return nil, ports.ErrNotFound
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]int
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}, ttls: map[string]int{}}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttlSeconds
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu          sync.Mutex
	reports     []*domain.HotspotReport
	experiments []*domain.ExperimentRun
}

func (m *mockPublisher) PublishHotspots(ctx context.Context, r *domain.HotspotReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return nil
}

func (m *mockPublisher) PublishExperiment(ctx context.Context, r *domain.ExperimentRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.experiments = append(m.experiments, r)
	return nil
}

func (m *mockPublisher) PublishIngest(ctx context.Context, r *domain.IngestRun) error { return nil }

// downtownIncidents clusters n thefts around the Loop.
func downtownIncidents(n int, seed int64) hotspot.PointSet {
	rng := rand.New(rand.NewSource(seed))
	ps := make(hotspot.PointSet, n)
	for i := range ps {
		ps[i] = hotspot.Incident{
			Location: hotspot.Point{
				Lat: 41.88 + rng.NormFloat64()*0.005,
				Lon: -87.63 + rng.NormFloat64()*0.005,
			},
			Category:   "THEFT",
			OccurredAt: time.Date(2024, 3, 1, i%24, 0, 0, 0, time.UTC),
		}
	}
	return ps
}

func smallConfig() hotspot.Config {
	cfg := hotspot.DefaultConfig()
	cfg.GridResolution = 20
	return cfg
}
