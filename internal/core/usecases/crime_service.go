package usecases

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/core/ports"
)

// Crime listing limits.
const (
	DefaultCrimeLimit = 5000
	MaxCrimeLimit     = 50000
)

// CrimeService serves raw crimes and simple aggregates.
type CrimeService struct {
	crimes ports.CrimeRepository
	cache  ports.CacheService
	now    func() time.Time
}

// NewCrimeService creates a new CrimeService. cache may be nil.
func NewCrimeService(crimes ports.CrimeRepository, cache ports.CacheService) *CrimeService {
	return &CrimeService{crimes: crimes, cache: cache, now: time.Now}
}

// List returns crimes matching filter, newest first.
func (s *CrimeService) List(ctx context.Context, filter domain.CrimeFilter) ([]domain.Crime, error) {
	filter.Limit = clampLimit(filter.Limit, DefaultCrimeLimit, MaxCrimeLimit)

	key, err := cacheKey("crimes:list", filter)
	if err != nil {
		return nil, err
	}
	var crimes []domain.Crime
	if s.cached(ctx, key, &crimes) {
		return crimes, nil
	}

	crimes, err = s.crimes.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list crimes: %w", err)
	}
	s.store(ctx, key, crimes, 300)
	return crimes, nil
}

// Types returns counts per primary type, most frequent first.
func (s *CrimeService) Types(ctx context.Context) ([]domain.TypeCount, error) {
	const key = "crimes:types"
	var counts []domain.TypeCount
	if s.cached(ctx, key, &counts) {
		return counts, nil
	}

	counts, err := s.crimes.TypeCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("type counts: %w", err)
	}
	var total int
	for _, c := range counts {
		total += c.Count
	}
	for i := range counts {
		if total > 0 {
			counts[i].Percentage = math.Round(float64(counts[i].Count)/float64(total)*10000) / 100
		}
	}
	s.store(ctx, key, counts, 300)
	return counts, nil
}

// Monthly returns counts for the last twelve months.
func (s *CrimeService) Monthly(ctx context.Context) ([]domain.MonthlyCount, error) {
	const key = "crimes:monthly"
	var counts []domain.MonthlyCount
	if s.cached(ctx, key, &counts) {
		return counts, nil
	}
	counts, err := s.crimes.MonthlyCounts(ctx, 12)
	if err != nil {
		return nil, fmt.Errorf("monthly counts: %w", err)
	}
	s.store(ctx, key, counts, 300)
	return counts, nil
}

// GridHotspots counts recent crimes on a 0.001° grid and returns the busiest
// cells with more than minCount crimes.
func (s *CrimeService) GridHotspots(ctx context.Context, days, minCount, limit int) ([]domain.GridCell, error) {
	if days <= 0 {
		days = 30
	}
	if minCount < 0 {
		minCount = 5
	}
	limit = clampLimit(limit, 50, 500)

	since := s.now().AddDate(0, 0, -days)
	incidents, err := s.crimes.Incidents(ctx, domain.CrimeFilter{Start: &since, Limit: MaxCrimeLimit})
	if err != nil {
		return nil, fmt.Errorf("load incidents: %w", err)
	}

	type cellKey struct{ lat, lon int64 }
	counts := map[cellKey]int{}
	for _, inc := range incidents {
		k := cellKey{int64(math.Round(inc.Location.Lat * 1000)), int64(math.Round(inc.Location.Lon * 1000))}
		counts[k]++
	}

	cells := make([]domain.GridCell, 0, len(counts))
	for k, n := range counts {
		if n > minCount {
			cells = append(cells, domain.GridCell{Lat: float64(k.lat) / 1000, Lon: float64(k.lon) / 1000, Count: n})
		}
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Count != cells[j].Count {
			return cells[i].Count > cells[j].Count
		}
		if cells[i].Lat != cells[j].Lat {
			return cells[i].Lat < cells[j].Lat
		}
		return cells[i].Lon < cells[j].Lon
	})
	if len(cells) > limit {
		cells = cells[:limit]
	}
	return cells, nil
}

// Count returns the number of stored crimes.
func (s *CrimeService) Count(ctx context.Context) (int, error) {
	return s.crimes.Count(ctx)
}

func (s *CrimeService) cached(ctx context.Context, key string, dst any) bool {
	return readCache(ctx, s.cache, key, dst)
}

func (s *CrimeService) store(ctx context.Context, key string, v any, ttlSeconds int) {
	writeCache(ctx, s.cache, key, v, ttlSeconds)
}
