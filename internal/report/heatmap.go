// Package report renders hotspot results as images, charts, GeoJSON and CSV.
package report

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/samirrijal/chicrime/internal/hotspot"
)

// densityGrid adapts a row-major evaluation grid to plotter.GridXYZ.
// Columns run along longitude and rows along latitude.
type densityGrid struct {
	lats, lons []float64
	scores     hotspot.DensityScores
}

func (g densityGrid) Dims() (c, r int)   { return len(g.lons), len(g.lats) }
func (g densityGrid) Z(c, r int) float64 { return g.scores[r*len(g.lons)+c] }
func (g densityGrid) X(c int) float64    { return g.lons[c] }
func (g densityGrid) Y(r int) float64    { return g.lats[r] }

// RenderHeatmap draws scores over grid with hotspot outlines on top and
// returns the PNG bytes.
func RenderHeatmap(grid hotspot.EvaluationGrid, scores hotspot.DensityScores, hotspots []hotspot.Hotspot, width, height vg.Length) ([]byte, error) {
	if len(scores) != grid.Len() || grid.Len() == 0 {
		return nil, fmt.Errorf("heatmap: %d scores for %d grid points", len(scores), grid.Len())
	}

	p := plot.New()
	p.Title.Text = "Crime density"
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"

	hm := plotter.NewHeatMap(densityGrid{lats: grid.Lats(), lons: grid.Lons(), scores: scores}, palette.Heat(64, 1))
	if hm.Min == hm.Max {
		hm.Max = hm.Min + 1
	}
	p.Add(hm)

	for _, h := range hotspots {
		if len(h.Boundary) == 0 {
			continue
		}
		ring := h.Boundary[0]
		xys := make(plotter.XYs, len(ring))
		for i, pt := range ring {
			xys[i] = plotter.XY{X: pt.X(), Y: pt.Y()}
		}
		poly, err := plotter.NewPolygon(xys)
		if err != nil {
			return nil, fmt.Errorf("hotspot %d outline: %w", h.ID, err)
		}
		poly.Color = nil
		poly.LineStyle.Color = color.RGBA{R: 30, G: 144, B: 255, A: 255}
		poly.LineStyle.Width = vg.Points(1.5)
		p.Add(poly)
	}

	if width <= 0 {
		width = 8 * vg.Inch
	}
	if height <= 0 {
		height = 8 * vg.Inch
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return nil, fmt.Errorf("heatmap writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("heatmap encode: %w", err)
	}
	return buf.Bytes(), nil
}
