// Package timeseries derives trends, seasonal patterns and short forecasts
// from daily and monthly crime counts.
package timeseries

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/samirrijal/chicrime/internal/hotspot"
)

// DailyPoint is one day's count for a single crime type.
type DailyPoint struct {
	Date      time.Time `json:"date"`
	CrimeType string    `json:"crime_type"`
	Count     int       `json:"count"`
}

// Trend summarises one crime type over a window of days.
type Trend struct {
	CrimeType    string      `json:"crime_type"`
	Direction    string      `json:"trend_direction"`
	Slope        float64     `json:"trend_slope"`
	TotalCrimes  int         `json:"total_crimes"`
	AverageDaily float64     `json:"avg_daily"`
	Series       []DayRollup `json:"series"`
}

// DayRollup is a daily total plus its trailing rolling mean.
type DayRollup struct {
	Date        string  `json:"date"`
	Count       int     `json:"count"`
	RollingMean float64 `json:"rolling_avg"`
}

const (
	Increasing = "increasing"
	Decreasing = "decreasing"
	Stable     = "stable"

	// slopeTolerance is the per-day change below which a trend is stable.
	slopeTolerance = 0.1
)

// DefaultWindow is the rolling mean window in days.
const DefaultWindow = 7

// Trends groups points by crime type and summarises each group. Types are
// returned in descending order of total count.
func Trends(points []DailyPoint, window int) []Trend {
	if window < 1 {
		window = DefaultWindow
	}
	byType := map[string]map[string]int{}
	for _, p := range points {
		days, ok := byType[p.CrimeType]
		if !ok {
			days = map[string]int{}
			byType[p.CrimeType] = days
		}
		days[p.Date.Format(time.DateOnly)] += p.Count
	}

	trends := make([]Trend, 0, len(byType))
	for crimeType, days := range byType {
		trends = append(trends, trend(crimeType, days, window))
	}
	sort.Slice(trends, func(i, j int) bool {
		if trends[i].TotalCrimes != trends[j].TotalCrimes {
			return trends[i].TotalCrimes > trends[j].TotalCrimes
		}
		return trends[i].CrimeType < trends[j].CrimeType
	})
	return trends
}

func trend(crimeType string, days map[string]int, window int) Trend {
	dates := make([]string, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	t := Trend{CrimeType: crimeType, Direction: Stable, Series: make([]DayRollup, len(dates))}
	counts := make([]float64, len(dates))
	for i, d := range dates {
		counts[i] = float64(days[d])
		t.TotalCrimes += days[d]
	}
	rolling := RollingMean(counts, window)
	for i, d := range dates {
		t.Series[i] = DayRollup{Date: d, Count: days[d], RollingMean: rolling[i]}
	}
	if len(counts) > 0 {
		t.AverageDaily = float64(t.TotalCrimes) / float64(len(counts))
	}
	if len(counts) > 1 {
		t.Slope = Slope(counts)
		t.Direction = Direction(t.Slope)
	}
	return t
}

// Direction classifies a slope.
func Direction(slope float64) string {
	switch {
	case slope > slopeTolerance:
		return Increasing
	case slope < -slopeTolerance:
		return Decreasing
	default:
		return Stable
	}
}

// Slope fits a least-squares line to ys over their indices.
func Slope(ys []float64) float64 {
	if len(ys) < 2 {
		return 0
	}
	_, beta := stat.LinearRegression(index(len(ys)), ys, nil, false)
	return beta
}

// RollingMean returns the trailing mean over window values. Leading values
// average over the points available so far.
func RollingMean(xs []float64, window int) []float64 {
	out := make([]float64, len(xs))
	var sum float64
	for i, x := range xs {
		sum += x
		if i >= window {
			sum -= xs[i-window]
		}
		n := min(i+1, window)
		out[i] = sum / float64(n)
	}
	return out
}

func index(n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	return xs
}

// MonthlyPoint is the total for one calendar month.
type MonthlyPoint struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Count int `json:"count"`
}

// Patterns summarises seasonality across a monthly series.
type Patterns struct {
	Monthly   []MonthlyPoint `json:"monthly_data"`
	Seasonal  map[string]int `json:"seasonal_totals"`
	PeakMonth *MonthlyPoint  `json:"peak_month"`
}

// MonthlyPatterns sorts the series chronologically and aggregates it by season.
func MonthlyPatterns(series []MonthlyPoint) Patterns {
	sorted := sortedMonths(series)
	p := Patterns{Monthly: sorted, Seasonal: map[string]int{}}
	for i, m := range sorted {
		p.Seasonal[hotspot.SeasonOf(time.Month(m.Month))] += m.Count
		if p.PeakMonth == nil || m.Count > p.PeakMonth.Count {
			p.PeakMonth = &sorted[i]
		}
	}
	return p
}

func sortedMonths(series []MonthlyPoint) []MonthlyPoint {
	out := append([]MonthlyPoint(nil), series...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}
