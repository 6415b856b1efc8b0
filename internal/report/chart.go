package report

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/samirrijal/chicrime/internal/experiment"
)

// RenderExperimentChart renders an HTML page with efficiency bars and a
// coverage line for each swept value.
func RenderExperimentChart(sweep experiment.Sweep) ([]byte, error) {
	labels := make([]string, len(sweep.Results))
	eff := make([]opts.BarData, len(sweep.Results))
	cov := make([]opts.LineData, len(sweep.Results))
	counts := make([]opts.BarData, len(sweep.Results))
	for i, r := range sweep.Results {
		labels[i] = strconv.FormatFloat(r.Value, 'g', -1, 64)
		eff[i] = opts.BarData{Value: r.Efficiency}
		cov[i] = opts.LineData{Value: r.CoveragePercentage}
		counts[i] = opts.BarData{Value: r.HotspotCount}
	}
	subtitle := fmt.Sprintf("parameter=%s best=%g", sweep.Parameter, sweep.Best.Value)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Efficiency (crimes per km²)", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: string(sweep.Parameter)}),
	)
	bar.SetXAxis(labels).
		AddSeries("efficiency", eff,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Coverage (%)", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: string(sweep.Parameter)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 100}),
	)
	line.SetXAxis(labels).AddSeries("coverage", cov)

	hotspots := charts.NewBar()
	hotspots.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Hotspots found"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	hotspots.SetXAxis(labels).AddSeries("hotspots", counts)

	page := components.NewPage()
	page.PageTitle = "Hotspot parameter sweep"
	page.AddCharts(bar, line, hotspots)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}
