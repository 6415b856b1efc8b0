package hotspot

import (
	"log/slog"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/samirrijal/chicrime/internal/pkg/geospatial"
)

// ExtractConfig controls thresholding and clustering of density scores.
type ExtractConfig struct {
	ThresholdPercentile float64 // 0-100
	ClusterEps          float64 // neighbourhood radius in degrees
	MinPoints           int
}

// Validate checks the extraction parameters.
func (c ExtractConfig) Validate() error {
	if math.IsNaN(c.ThresholdPercentile) || c.ThresholdPercentile < 0 || c.ThresholdPercentile > 100 {
		return inputErrorf("extract", "threshold percentile must be within [0, 100], got %v", c.ThresholdPercentile)
	}
	if math.IsNaN(c.ClusterEps) || math.IsInf(c.ClusterEps, 0) || c.ClusterEps <= 0 {
		return inputErrorf("extract", "cluster eps must be a positive finite number, got %v", c.ClusterEps)
	}
	if c.MinPoints < 1 {
		return inputErrorf("extract", "min points must be at least 1, got %d", c.MinPoints)
	}
	return nil
}

// Hotspot is one high-density region found by Extract.
type Hotspot struct {
	ID           int         `json:"id"`
	Boundary     orb.Polygon `json:"boundary"`
	Centroid     Point       `json:"centroid"`
	AreaSqKm     float64     `json:"area_sq_km"`
	DensityScore float64     `json:"density_score"`
	MemberCount  int         `json:"member_count"`
}

// Extraction is the outcome of a single Extract call.
type Extraction struct {
	Threshold        float64             `json:"threshold"`
	HighDensityCount int                 `json:"high_density_count"`
	Hotspots         []Hotspot           `json:"hotspots"`
	Warnings         []ExtractionWarning `json:"-"`
}

// Extract thresholds scores at the given percentile, clusters the surviving
// grid points with DBSCAN and turns each cluster into a convex polygon.
// Clusters whose hull is degenerate are skipped and reported in Warnings.
func Extract(grid EvaluationGrid, scores DensityScores, cfg ExtractConfig) (Extraction, error) {
	return extract(grid, scores, cfg, slog.Default())
}

func extract(grid EvaluationGrid, scores DensityScores, cfg ExtractConfig, log *slog.Logger) (Extraction, error) {
	if err := cfg.Validate(); err != nil {
		return Extraction{}, err
	}
	if grid.Len() == 0 {
		return Extraction{}, inputErrorf("extract", "evaluation grid is empty")
	}
	if len(scores) != grid.Len() {
		return Extraction{}, inputErrorf("extract", "%d scores for %d grid points", len(scores), grid.Len())
	}
	for i, s := range scores {
		if math.IsNaN(s) {
			return Extraction{}, inputErrorf("extract", "score %d is NaN", i)
		}
	}

	threshold := Percentile(scores, cfg.ThresholdPercentile)

	var (
		pts     []orb.Point
		members []float64
	)
	for i, s := range scores {
		if s >= threshold {
			pts = append(pts, grid.Points[i].Orb())
			members = append(members, s)
		}
	}
	out := Extraction{Threshold: threshold, HighDensityCount: len(pts)}
	if len(pts) == 0 {
		return out, nil
	}

	labels, k := dbscan(pts, cfg.ClusterEps, cfg.MinPoints)
	clusters := make([][]int, k)
	for i, l := range labels {
		if l != noise {
			clusters[l] = append(clusters[l], i)
		}
	}

	for label, idx := range clusters {
		if len(idx) < cfg.MinPoints {
			continue
		}
		cpts := make([]orb.Point, len(idx))
		var sum float64
		for j, i := range idx {
			cpts[j] = pts[i]
			sum += members[i]
		}

		ring, err := convexHull(cpts)
		if err != nil {
			w := ExtractionWarning{ClusterLabel: label, Members: len(idx), Reason: err}
			log.Warn("skipping hotspot cluster", "cluster", label, "members", len(idx), "error", err)
			out.Warnings = append(out.Warnings, w)
			continue
		}
		poly := orb.Polygon{ring}
		centroid, area := planar.CentroidArea(poly)

		out.Hotspots = append(out.Hotspots, Hotspot{
			ID:           len(out.Hotspots) + 1,
			Boundary:     poly,
			Centroid:     FromOrb(centroid),
			AreaSqKm:     geospatial.SquareDegreesToSqKm(math.Abs(area)),
			DensityScore: sum / float64(len(idx)),
			MemberCount:  len(idx),
		})
	}
	return out, nil
}

// Percentile returns the p-th percentile of values using linear
// interpolation between closest ranks. values is not modified.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo < 0 {
		lo = 0
	}
	if hi > len(sorted)-1 {
		hi = len(sorted) - 1
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
