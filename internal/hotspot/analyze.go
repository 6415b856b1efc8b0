package hotspot

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/samirrijal/chicrime/internal/pkg/geospatial"
)

// minAreaSqKm floors the denominator of the per-area crime rate.
const minAreaSqKm = 0.001

// topCategoryCount is how many categories each analysis ranks.
const topCategoryCount = 3

// CategoryCount is a crime category and how often it occurred.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// HotspotAnalysis describes the incidents attributed to one hotspot.
type HotspotAnalysis struct {
	HotspotID            int             `json:"hotspot_id"`
	CrimeCount           int             `json:"crime_count"`
	TopCategories        []CategoryCount `json:"top_crime_types"`
	PeakHour             *int            `json:"peak_hour"`
	WeekendPercentage    *float64        `json:"weekend_percentage"`
	SeasonalDistribution map[string]int  `json:"seasonal_distribution"`
	AreaSqKm             float64         `json:"area_sq_km"`
	CrimesPerSqKm        float64         `json:"crimes_per_sq_km"`
	RadiusKm             float64         `json:"radius_km"`
}

// Contains reports whether p lies inside the hotspot polygon or on its boundary.
func (h Hotspot) Contains(p Point) bool {
	if len(h.Boundary) == 0 {
		return false
	}
	op := p.Orb()
	if !h.Boundary.Bound().Contains(op) {
		return false
	}
	return planar.RingContains(h.Boundary[0], op)
}

// Analyze attributes incidents to hotspots and summarises each one. The
// result has one entry per hotspot, in input order.
func Analyze(hotspots []Hotspot, incidents PointSet) []HotspotAnalysis {
	out := make([]HotspotAnalysis, len(hotspots))
	for i, h := range hotspots {
		var members PointSet
		for _, inc := range incidents {
			if h.Contains(inc.Location) {
				members = append(members, inc)
			}
		}
		out[i] = analyzeOne(h, members)
	}
	return out
}

func analyzeOne(h Hotspot, members PointSet) HotspotAnalysis {
	a := HotspotAnalysis{
		HotspotID:            h.ID,
		CrimeCount:           len(members),
		TopCategories:        []CategoryCount{},
		SeasonalDistribution: map[string]int{},
		AreaSqKm:             h.AreaSqKm,
		CrimesPerSqKm:        float64(len(members)) / math.Max(h.AreaSqKm, minAreaSqKm),
		RadiusKm:             radiusKm(h),
	}

	categories := map[string]int{}
	var hours [24]int
	var timed, weekend int
	for _, inc := range members {
		if inc.Category != "" {
			categories[inc.Category]++
		}
		hr, ok := inc.Hour()
		if !ok {
			continue
		}
		timed++
		hours[hr]++
		if we, _ := inc.Weekend(); we {
			weekend++
		}
		season, _ := inc.Season()
		a.SeasonalDistribution[season]++
	}

	a.TopCategories = topCategories(categories, topCategoryCount)

	if timed > 0 {
		peak := 0
		for hr := 1; hr < len(hours); hr++ {
			if hours[hr] > hours[peak] {
				peak = hr
			}
		}
		pct := float64(weekend) / float64(timed) * 100
		a.PeakHour = &peak
		a.WeekendPercentage = &pct
	}
	return a
}

func topCategories(counts map[string]int, n int) []CategoryCount {
	out := make([]CategoryCount, 0, len(counts))
	for c, k := range counts {
		out = append(out, CategoryCount{Category: c, Count: k})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// radiusKm is the largest great-circle distance from the centroid to a
// hull vertex.
func radiusKm(h Hotspot) float64 {
	if len(h.Boundary) == 0 {
		return 0
	}
	var maxM float64
	for _, v := range h.Boundary[0] {
		d := geospatial.Haversine(h.Centroid.Lat, h.Centroid.Lon, v.Lat(), v.Lon())
		maxM = math.Max(maxM, d)
	}
	return maxM / 1000
}

// CoveredCount returns how many incidents fall inside at least one hotspot.
func CoveredCount(hotspots []Hotspot, incidents PointSet) int {
	bounds := make([]orb.Bound, len(hotspots))
	for i, h := range hotspots {
		bounds[i] = h.Boundary.Bound()
	}
	n := 0
	for _, inc := range incidents {
		op := inc.Location.Orb()
		for i, h := range hotspots {
			if len(h.Boundary) > 0 && bounds[i].Contains(op) && planar.RingContains(h.Boundary[0], op) {
				n++
				break
			}
		}
	}
	return n
}
