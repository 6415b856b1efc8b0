package domain

import "github.com/samirrijal/chicrime/internal/hotspot"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BoundingBox converts b to the detector's bounding box.
func (b Bounds) BoundingBox() hotspot.BoundingBox {
	return hotspot.BoundingBox{LatMin: b.MinLat, LatMax: b.MaxLat, LonMin: b.MinLon, LonMax: b.MaxLon}
}

// Contains reports whether p lies inside b, edges included.
func (b Bounds) Contains(p GeoPoint) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}
