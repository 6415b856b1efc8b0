package hotspot

import (
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/floats"
)

// BoundingBox is the spatial extent sampled by the evaluation grid.
type BoundingBox struct {
	LatMin float64 `json:"lat_min" mapstructure:"lat_min"`
	LatMax float64 `json:"lat_max" mapstructure:"lat_max"`
	LonMin float64 `json:"lon_min" mapstructure:"lon_min"`
	LonMax float64 `json:"lon_max" mapstructure:"lon_max"`
}

// MaxGridResolution caps the grid at one million evaluation points.
const MaxGridResolution = 1000

// ChicagoBounds covers the city limits used to clean incoming records.
var ChicagoBounds = BoundingBox{LatMin: 41.6, LatMax: 42.1, LonMin: -87.9, LonMax: -87.5}

// Validate checks that the box is finite and non-empty on both axes.
func (b BoundingBox) Validate() error {
	for _, v := range []float64{b.LatMin, b.LatMax, b.LonMin, b.LonMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return inputErrorf("sample", "bounding box has non-finite edge")
		}
	}
	if b.LatMin >= b.LatMax {
		return inputErrorf("sample", "lat_min %v must be below lat_max %v", b.LatMin, b.LatMax)
	}
	if b.LonMin >= b.LonMax {
		return inputErrorf("sample", "lon_min %v must be below lon_max %v", b.LonMin, b.LonMax)
	}
	return nil
}

// Contains reports whether p lies inside the box, edges included.
func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.LatMin && p.Lat <= b.LatMax && p.Lon >= b.LonMin && p.Lon <= b.LonMax
}

// Bound returns the box as an orb.Bound.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.LonMin, b.LatMin}, Max: orb.Point{b.LonMax, b.LatMax}}
}

// EvaluationGrid is a regular lattice of points over a bounding box.
// Points are row-major: latitude varies by row, longitude by column.
type EvaluationGrid struct {
	Bounds     BoundingBox
	Resolution int
	Points     []Point
}

// Sample lays a resolution x resolution grid over bounds, inclusive of
// both edges on each axis.
func Sample(bounds BoundingBox, resolution int) (EvaluationGrid, error) {
	if err := bounds.Validate(); err != nil {
		return EvaluationGrid{}, err
	}
	if resolution < 2 {
		return EvaluationGrid{}, inputErrorf("sample", "resolution must be at least 2, got %d", resolution)
	}
	if resolution > MaxGridResolution {
		return EvaluationGrid{}, inputErrorf("sample", "resolution must be at most %d, got %d", MaxGridResolution, resolution)
	}

	lats := linspace(bounds.LatMin, bounds.LatMax, resolution)
	lons := linspace(bounds.LonMin, bounds.LonMax, resolution)

	pts := make([]Point, 0, resolution*resolution)
	for _, lat := range lats {
		for _, lon := range lons {
			pts = append(pts, Point{Lat: lat, Lon: lon})
		}
	}
	return EvaluationGrid{Bounds: bounds, Resolution: resolution, Points: pts}, nil
}

// Len returns the number of grid points.
func (g EvaluationGrid) Len() int { return len(g.Points) }

// At returns the point at the given row and column.
func (g EvaluationGrid) At(row, col int) Point {
	return g.Points[row*g.Resolution+col]
}

// Spacing returns the distance between adjacent rows and columns.
func (g EvaluationGrid) Spacing() (latStep, lonStep float64) {
	n := float64(g.Resolution - 1)
	return (g.Bounds.LatMax - g.Bounds.LatMin) / n, (g.Bounds.LonMax - g.Bounds.LonMin) / n
}

// Lats returns the row latitudes in ascending order.
func (g EvaluationGrid) Lats() []float64 {
	return linspace(g.Bounds.LatMin, g.Bounds.LatMax, g.Resolution)
}

// Lons returns the column longitudes in ascending order.
func (g EvaluationGrid) Lons() []float64 {
	return linspace(g.Bounds.LonMin, g.Bounds.LonMax, g.Resolution)
}

// linspace returns n evenly spaced values from lo to hi inclusive.
func linspace(lo, hi float64, n int) []float64 {
	return floats.Span(make([]float64, n), lo, hi)
}
