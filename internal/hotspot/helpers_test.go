package hotspot

import (
	"math"
	"math/rand"
)

// clusteredPoints returns n normally distributed points around c.
func clusteredPoints(n int, c Point, sd float64, seed int64) []Point {
	rng := rand.New(rand.NewSource(seed))
	out := make([]Point, n)
	for i := range out {
		out[i] = Point{Lat: c.Lat + rng.NormFloat64()*sd, Lon: c.Lon + rng.NormFloat64()*sd}
	}
	return out
}

// bumpScores builds scores for g with a Gaussian bump of the given
// amplitude at c and small deterministic noise elsewhere.
func bumpScores(g EvaluationGrid, c Point, amplitude, sd float64, seed int64) DensityScores {
	rng := rand.New(rand.NewSource(seed))
	out := make(DensityScores, g.Len())
	for i, p := range g.Points {
		d2 := (p.Lat-c.Lat)*(p.Lat-c.Lat) + (p.Lon-c.Lon)*(p.Lon-c.Lon)
		out[i] = amplitude*math.Exp(-d2/(2*sd*sd)) + 0.01*rng.Float64()
	}
	return out
}

func uniformScores(n int, v float64) DensityScores {
	out := make(DensityScores, n)
	for i := range out {
		out[i] = v
	}
	return out
}
