package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/core/ports"
	"github.com/samirrijal/chicrime/internal/timeseries"
)

// AnalysisService derives temporal trends, seasonality and forecasts.
type AnalysisService struct {
	crimes ports.CrimeRepository
	cache  ports.CacheService
	now    func() time.Time
}

// NewAnalysisService creates a new AnalysisService. cache may be nil.
func NewAnalysisService(crimes ports.CrimeRepository, cache ports.CacheService) *AnalysisService {
	return &AnalysisService{crimes: crimes, cache: cache, now: time.Now}
}

// Trends summarises daily counts per crime type over the last days.
func (s *AnalysisService) Trends(ctx context.Context, days int, crimeType string) ([]timeseries.Trend, error) {
	if days <= 0 {
		days = 90
	}
	key, err := cacheKey("analysis:trends", map[string]any{"days": days, "type": crimeType})
	if err != nil {
		return nil, err
	}
	var trends []timeseries.Trend
	if readCache(ctx, s.cache, key, &trends) {
		return trends, nil
	}

	since := s.now().AddDate(0, 0, -days)
	counts, err := s.crimes.DailyCounts(ctx, since, crimeType)
	if err != nil {
		return nil, fmt.Errorf("daily counts: %w", err)
	}
	points := make([]timeseries.DailyPoint, len(counts))
	for i, c := range counts {
		points[i] = timeseries.DailyPoint{Date: c.Date, CrimeType: c.PrimaryType, Count: c.Count}
	}
	trends = timeseries.Trends(points, timeseries.DefaultWindow)
	writeCache(ctx, s.cache, key, trends, 600)
	return trends, nil
}

// Seasonality returns the monthly series for the last months with seasonal totals.
func (s *AnalysisService) Seasonality(ctx context.Context, months int) (timeseries.Patterns, error) {
	series, err := s.monthly(ctx, months)
	if err != nil {
		return timeseries.Patterns{}, err
	}
	return timeseries.MonthlyPatterns(series), nil
}

// Forecast projects the next periods months from up to four years of history.
func (s *AnalysisService) Forecast(ctx context.Context, periods int) (*timeseries.Forecast, error) {
	series, err := s.monthly(ctx, 48)
	if err != nil {
		return nil, err
	}
	fc, err := timeseries.Project(series, periods)
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	return fc, nil
}

func (s *AnalysisService) monthly(ctx context.Context, months int) ([]timeseries.MonthlyPoint, error) {
	if months <= 0 {
		months = 24
	}
	counts, err := s.crimes.MonthlyCounts(ctx, months)
	if err != nil {
		return nil, fmt.Errorf("monthly counts: %w", err)
	}
	return toMonthlyPoints(counts), nil
}

func toMonthlyPoints(counts []domain.MonthlyCount) []timeseries.MonthlyPoint {
	out := make([]timeseries.MonthlyPoint, len(counts))
	for i, c := range counts {
		out[i] = timeseries.MonthlyPoint{Year: c.Year, Month: c.Month, Count: c.Count}
	}
	return out
}
