package report

import (
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/hotspot"
)

// HotspotFeatures builds one polygon feature per hotspot. Analyses are
// matched to hotspots by ID and may be nil.
func HotspotFeatures(hotspots []hotspot.Hotspot, analyses []hotspot.HotspotAnalysis) *geojson.FeatureCollection {
	byID := make(map[int]hotspot.HotspotAnalysis, len(analyses))
	for _, a := range analyses {
		byID[a.HotspotID] = a
	}

	fc := geojson.NewFeatureCollection()
	for _, h := range hotspots {
		f := geojson.NewFeature(h.Boundary)
		f.ID = h.ID
		f.Properties["hotspot_id"] = h.ID
		f.Properties["area_sq_km"] = h.AreaSqKm
		f.Properties["density_score"] = h.DensityScore
		f.Properties["centroid_lat"] = h.Centroid.Lat
		f.Properties["centroid_lon"] = h.Centroid.Lon
		f.Properties["grid_points"] = h.MemberCount

		if a, ok := byID[h.ID]; ok {
			f.Properties["crime_count"] = a.CrimeCount
			f.Properties["crimes_per_sq_km"] = a.CrimesPerSqKm
			f.Properties["radius_km"] = a.RadiusKm
			f.Properties["top_crime_types"] = a.TopCategories
			f.Properties["seasonal_distribution"] = a.SeasonalDistribution
			if a.PeakHour != nil {
				f.Properties["peak_hour"] = *a.PeakHour
			}
			if a.WeekendPercentage != nil {
				f.Properties["weekend_percentage"] = *a.WeekendPercentage
			}
		}
		fc.Append(f)
	}
	return fc
}

// CrimeFeatures builds one point feature per crime.
func CrimeFeatures(crimes []domain.Crime) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range crimes {
		f := geojson.NewFeature(hotspot.Point{Lat: c.Location.Lat, Lon: c.Location.Lon}.Orb())
		f.ID = c.ID
		f.Properties["case_number"] = c.CaseNumber
		f.Properties["date"] = c.Date.Format(time.RFC3339)
		f.Properties["primary_type"] = c.PrimaryType
		f.Properties["crime_category"] = c.Category
		f.Properties["description"] = c.Description
		f.Properties["arrest"] = c.Arrest
		f.Properties["domestic"] = c.Domestic
		fc.Append(f)
	}
	return fc
}
