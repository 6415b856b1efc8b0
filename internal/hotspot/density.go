package hotspot

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
)

// DensityModel is a fitted Gaussian kernel density estimator. It is
// immutable after Fit and safe for concurrent Score calls.
type DensityModel struct {
	bandwidth float64
	samples   []Point
	logNorm   float64 // ln n + ln(2πh²)
}

// scoreChunk is the number of queries scored between cancellation checks.
const scoreChunk = 256

// maxLogDensity is the largest log density whose exponent is finite.
var maxLogDensity = math.Log(math.MaxFloat64)

// DensityScores holds one density value per grid point, positionally.
type DensityScores []float64

// Fit builds a density model over points with the given bandwidth in degrees.
func Fit(points []Point, bandwidth float64) (*DensityModel, error) {
	if len(points) == 0 {
		return nil, inputErrorf("fit", "cannot estimate density over zero points")
	}
	if math.IsNaN(bandwidth) || math.IsInf(bandwidth, 0) || bandwidth <= 0 {
		return nil, inputErrorf("fit", "bandwidth must be a positive finite number, got %v", bandwidth)
	}
	samples := make([]Point, len(points))
	for i, p := range points {
		if !p.finite() {
			return nil, inputErrorf("fit", "point %d has non-finite coordinates", i)
		}
		samples[i] = p
	}

	// The peak density of one kernel is exp(-logNorm); both it and the
	// kernel exponent 1/(2h²) must stay representable.
	h2 := bandwidth * bandwidth
	logNorm := math.Log(float64(len(samples))) + math.Log(2*math.Pi*h2)
	if h2 == 0 || math.IsInf(h2, 0) || math.IsInf(logNorm, 0) || -logNorm > maxLogDensity {
		return nil, inputErrorf("fit", "bandwidth %v is outside the representable range", bandwidth)
	}
	return &DensityModel{
		bandwidth: bandwidth,
		samples:   samples,
		logNorm:   logNorm,
	}, nil
}

// Bandwidth returns the kernel bandwidth in degrees.
func (m *DensityModel) Bandwidth() float64 { return m.bandwidth }

// Len returns the number of fitted samples.
func (m *DensityModel) Len() int { return len(m.samples) }

// LogDensity returns the log density at q.
func (m *DensityModel) LogDensity(q Point) float64 {
	return m.logDensity(q, make([]float64, len(m.samples)))
}

func (m *DensityModel) logDensity(q Point, buf []float64) float64 {
	inv := -1 / (2 * m.bandwidth * m.bandwidth)
	for i, s := range m.samples {
		dLat := q.Lat - s.Lat
		dLon := q.Lon - s.Lon
		buf[i] = (dLat*dLat + dLon*dLon) * inv
	}
	return floats.LogSumExp(buf) - m.logNorm
}

// Score evaluates the (non-log) density at every query point.
func (m *DensityModel) Score(query []Point) DensityScores {
	out, _ := m.ScoreContext(context.Background(), query)
	return out
}

// ScoreContext is Score that stops with ctx.Err() once ctx is done.
func (m *DensityModel) ScoreContext(ctx context.Context, query []Point) (DensityScores, error) {
	out := make(DensityScores, len(query))
	buf := make([]float64, len(m.samples))
	for i, q := range query {
		if i%scoreChunk == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		out[i] = math.Exp(m.logDensity(q, buf))
	}
	return out, nil
}

// ScoreGrid scores every point of g, preserving grid order.
func ScoreGrid(m *DensityModel, g EvaluationGrid) DensityScores {
	return m.Score(g.Points)
}
