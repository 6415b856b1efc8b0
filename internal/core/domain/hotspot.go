package domain

import (
	"time"

	"github.com/samirrijal/chicrime/internal/hotspot"
)

// HotspotSummary pairs a detected hotspot with its incident analysis.
type HotspotSummary struct {
	hotspot.Hotspot
	Analysis *hotspot.HotspotAnalysis `json:"analysis,omitempty"`
}

// HotspotReport is the cached and published outcome of one detection run.
type HotspotReport struct {
	RunID            string           `json:"run_id"`
	GeneratedAt      time.Time        `json:"generated_at"`
	Config           hotspot.Config   `json:"config"`
	Filter           CrimeFilter      `json:"filter"`
	IncidentCount    int              `json:"incident_count"`
	Threshold        float64          `json:"threshold"`
	HighDensityCount int              `json:"high_density_count"`
	Hotspots         []HotspotSummary `json:"hotspots"`
	Warnings         []string         `json:"warnings,omitempty"`
}

// Analyses returns the non-nil analyses in hotspot order.
func (r *HotspotReport) Analyses() []hotspot.HotspotAnalysis {
	out := make([]hotspot.HotspotAnalysis, 0, len(r.Hotspots))
	for _, h := range r.Hotspots {
		if h.Analysis != nil {
			out = append(out, *h.Analysis)
		}
	}
	return out
}

// Shapes returns the bare hotspots.
func (r *HotspotReport) Shapes() []hotspot.Hotspot {
	out := make([]hotspot.Hotspot, len(r.Hotspots))
	for i, h := range r.Hotspots {
		out[i] = h.Hotspot
	}
	return out
}

// DensitySurface is a row-major density grid for heatmap clients.
type DensitySurface struct {
	Bounds     hotspot.BoundingBox `json:"bounds"`
	Resolution int                 `json:"resolution"`
	Lats       []float64           `json:"lats"`
	Lons       []float64           `json:"lons"`
	Scores     []float64           `json:"scores"`
	Max        float64             `json:"max"`
}
