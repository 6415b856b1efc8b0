package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb/geojson"
	"gonum.org/v1/plot/vg"

	"github.com/samirrijal/chicrime/internal/core/usecases"
	"github.com/samirrijal/chicrime/internal/experiment"
	"github.com/samirrijal/chicrime/internal/hotspot"
	"github.com/samirrijal/chicrime/internal/report"
	"github.com/samirrijal/chicrime/internal/timeseries"
)

// ListCrimesHandler returns matching crimes as GeoJSON points.
func ListCrimesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter, err := parseCrimeFilter(c, usecases.DefaultCrimeLimit)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		crimes, err := deps.Crimes.List(c.UserContext(), filter)
		if err != nil {
			return errInternal(c, err)
		}
		fc := report.CrimeFeatures(crimes)
		fc.ExtraMembers = geojson.Properties{
			"metadata": fiber.Map{"count": len(crimes), "filters": filter},
		}
		return c.JSON(fc)
	}
}

// CrimeTypesHandler returns counts and shares per primary type.
func CrimeTypesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		counts, err := deps.Crimes.Types(c.UserContext())
		if err != nil {
			return errInternal(c, err)
		}
		return c.JSON(fiber.Map{"crime_types": counts, "total_types": len(counts)})
	}
}

// MonthlyStatsHandler returns the last twelve months of counts.
func MonthlyStatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		counts, err := deps.Crimes.Monthly(c.UserContext())
		if err != nil {
			return errInternal(c, err)
		}
		return c.JSON(fiber.Map{"monthly_trends": counts, "total_months": len(counts)})
	}
}

// GridHotspotsHandler returns the busiest rounded grid cells of recent days.
func GridHotspotsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		days, err := queryInt(c, "days", 30)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		minCount, err := queryInt(c, "min_count", 5)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		limit, err := queryInt(c, "limit", 50)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if days < 1 || days > 3650 {
			return errBadRequest(c, "days must be between 1 and 3650")
		}
		cells, err := deps.Crimes.GridHotspots(c.UserContext(), days, minCount, limit)
		if err != nil {
			return errInternal(c, err)
		}
		return c.JSON(fiber.Map{"hotspots": cells, "count": len(cells)})
	}
}

// HotspotsHandler runs density-based detection and returns a GeoJSON
// FeatureCollection of hotspot polygons. A query without usable incidents
// yields an empty collection.
func HotspotsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := parseHotspotQuery(c, deps.Hotspots.Defaults())
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		rep, err := deps.Hotspots.Detect(c.UserContext(), q)
		if usecases.IsNoData(err) {
			LoggerFromCtx(c.UserContext()).Info("no hotspots for query", "reason", err.Error())
			fc := geojson.NewFeatureCollection()
			fc.ExtraMembers = geojson.Properties{"metadata": fiber.Map{"incident_count": 0, "message": err.Error()}}
			return c.JSON(fc)
		}
		if err != nil {
			return errInternal(c, err)
		}

		fc := report.HotspotFeatures(rep.Shapes(), rep.Analyses())
		fc.ExtraMembers = geojson.Properties{
			"metadata": fiber.Map{
				"run_id":             rep.RunID,
				"generated_at":       rep.GeneratedAt,
				"incident_count":     rep.IncidentCount,
				"threshold":          rep.Threshold,
				"high_density_count": rep.HighDensityCount,
				"hotspot_count":      len(rep.Hotspots),
				"parameters":         rep.Config,
				"warnings":           rep.Warnings,
			},
		}
		return c.JSON(fc)
	}
}

// HotspotDensityHandler returns the evaluated density grid.
func HotspotDensityHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := parseHotspotQuery(c, deps.Hotspots.Defaults())
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		surface, err := deps.Hotspots.Density(c.UserContext(), q)
		if err != nil {
			return errFromService(c, err, "density")
		}
		return c.JSON(surface)
	}
}

// HotspotHeatmapHandler renders the density grid with hotspot outlines as PNG.
func HotspotHeatmapHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := parseHotspotQuery(c, deps.Hotspots.Defaults())
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		size, err := queryInt(c, "size", 800)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if size < 100 || size > 4000 {
			return errBadRequest(c, "size must be between 100 and 4000 pixels")
		}
		// vg lengths are points; 72 points per inch renders size pixels at 72 dpi.
		img, err := deps.Hotspots.Heatmap(c.UserContext(), q, vg.Length(size)*vg.Inch/72)
		if err != nil {
			return errFromService(c, err, "heatmap")
		}
		c.Set(fiber.HeaderContentType, "image/png")
		return c.Send(img)
	}
}

// TrendsHandler returns per-type daily trends.
func TrendsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		days, err := queryInt(c, "days", 90)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if days < 1 || days > 3650 {
			return errBadRequest(c, "days must be between 1 and 3650")
		}
		trends, err := deps.Analysis.Trends(c.UserContext(), days, c.Query("crime_type"))
		if err != nil {
			return errInternal(c, err)
		}
		return c.JSON(fiber.Map{"trends": trends, "period_days": days})
	}
}

// MonthlyPatternsHandler returns monthly totals with seasonal aggregates.
func MonthlyPatternsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		months, err := queryInt(c, "months", 24)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		p, err := deps.Analysis.Seasonality(c.UserContext(), months)
		if err != nil {
			return errInternal(c, err)
		}
		return c.JSON(p)
	}
}

// ForecastHandler projects monthly counts forward.
func ForecastHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		periods, err := queryInt(c, "periods", timeseries.DefaultPeriods)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if periods < 1 || periods > timeseries.MaxPeriods {
			return errBadRequest(c, fmt.Sprintf("periods must be between 1 and %d", timeseries.MaxPeriods))
		}
		fc, err := deps.Analysis.Forecast(c.UserContext(), periods)
		if err != nil {
			return errFromService(c, err, "forecast")
		}
		return c.JSON(fc)
	}
}

// ListExperimentsHandler returns stored sweeps, newest first.
func ListExperimentsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 20)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		runs, total, err := deps.Experiments.List(c.UserContext(), offset, limit)
		if err != nil {
			return errInternal(c, err)
		}
		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: runs, Pagination: pg})
	}
}

// GetExperimentHandler returns one sweep.
func GetExperimentHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		run, err := deps.Experiments.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err, "experiment")
		}
		return c.JSON(run)
	}
}

// ExperimentChartHandler renders one sweep as an HTML chart page.
func ExperimentChartHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		html, err := deps.Experiments.Chart(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err, "experiment")
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Send(html)
	}
}

// RunExperimentHandler sweeps one parameter synchronously and stores the run.
func RunExperimentHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req usecases.ExperimentRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if len(req.Values) == 0 || len(req.Values) > 20 {
			return errBadRequest(c, "values must hold between 1 and 20 entries")
		}
		if req.Parameter == "" {
			req.Parameter = experiment.Bandwidth
		}
		param, err := experiment.ParseParameter(string(req.Parameter))
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if req.Base.GridResolution == 0 {
			req.Base = hotspot.DefaultConfig()
		}
		if err := checkConfig(req.Base); err != nil {
			return errBadRequest(c, "base: "+err.Error())
		}
		for _, v := range req.Values {
			if err := checkConfig(param.Apply(req.Base, v)); err != nil {
				return errBadRequest(c, fmt.Sprintf("value %g: %v", v, err))
			}
		}
		run, err := deps.Experiments.Run(c.UserContext(), req)
		if err != nil {
			return errFromService(c, err, "experiment")
		}
		return c.Status(fiber.StatusCreated).JSON(run)
	}
}
