package timeseries

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientHistory is returned when a series is too short to fit.
var ErrInsufficientHistory = errors.New("timeseries: at least two months of history are required")

// DefaultPeriods is the default forecast horizon in months.
const DefaultPeriods = 6

// MaxPeriods is the longest horizon Project will produce.
const MaxPeriods = 24

// ForecastPoint is one predicted month.
type ForecastPoint struct {
	Date           string  `json:"date"`
	Forecast       int     `json:"forecast"`
	TrendComponent float64 `json:"trend_component"`
	SeasonalFactor float64 `json:"seasonal_factor"`
}

// Forecast is a trend times seasonality projection.
type Forecast struct {
	Points     []ForecastPoint `json:"forecasts"`
	MAE        float64         `json:"mae"`
	TrendSlope float64         `json:"trend_slope"`
}

// Project fits a linear trend over the month index of series and scales each
// future month by its calendar month's seasonal factor.
func Project(series []MonthlyPoint, periods int) (*Forecast, error) {
	if len(series) < 2 {
		return nil, ErrInsufficientHistory
	}
	if periods < 1 {
		periods = DefaultPeriods
	}
	periods = min(periods, MaxPeriods)
	sorted := sortedMonths(series)

	ys := make([]float64, len(sorted))
	byMonth := map[int][]float64{}
	for i, m := range sorted {
		ys[i] = float64(m.Count)
		byMonth[m.Month] = append(byMonth[m.Month], ys[i])
	}
	xs := index(len(ys))
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)

	overall, err := stats.Mean(ys)
	if err != nil {
		return nil, fmt.Errorf("overall mean: %w", err)
	}
	factors := map[int]float64{}
	for month, counts := range byMonth {
		mean, err := stats.Mean(counts)
		if err != nil {
			return nil, fmt.Errorf("month %d mean: %w", month, err)
		}
		factors[month] = 1
		if overall > 0 {
			factors[month] = mean / overall
		}
	}

	residuals := make([]float64, len(ys))
	for i, y := range ys {
		residuals[i] = math.Abs(y - (alpha + beta*xs[i]))
	}
	mae, err := stats.Mean(residuals)
	if err != nil {
		return nil, fmt.Errorf("mae: %w", err)
	}

	last := sorted[len(sorted)-1]
	next := time.Date(last.Year, time.Month(last.Month), 1, 0, 0, 0, 0, time.UTC)
	out := &Forecast{MAE: mae, TrendSlope: beta, Points: make([]ForecastPoint, periods)}
	for i := 0; i < periods; i++ {
		next = next.AddDate(0, 1, 0)
		t := alpha + beta*float64(len(ys)+i)
		f, ok := factors[int(next.Month())]
		if !ok {
			f = 1
		}
		out.Points[i] = ForecastPoint{
			Date:           next.Format("2006-01"),
			Forecast:       int(math.Max(0, t*f)),
			TrendComponent: t,
			SeasonalFactor: f,
		}
	}
	return out, nil
}
