package http

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/core/usecases"
	"github.com/samirrijal/chicrime/internal/hotspot"
)

// Query parsers return an error for malformed values instead of silently
// falling back, so callers can answer 400.

func queryFloat(c *fiber.Ctx, key string, def float64) (float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return v, nil
}

func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}

func queryDate(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s must be YYYY-MM-DD or RFC 3339", key)
}

// parseBBox reads "minLon,minLat,maxLon,maxLat".
func parseBBox(raw string) (*domain.Bounds, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must be minLon,minLat,maxLon,maxLat")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox must be minLon,minLat,maxLon,maxLat")
		}
		v[i] = f
	}
	b := &domain.Bounds{MinLon: v[0], MinLat: v[1], MaxLon: v[2], MaxLat: v[3]}
	if err := b.BoundingBox().Validate(); err != nil {
		return nil, fmt.Errorf("bbox: %w", err)
	}
	return b, nil
}

// parseCrimeFilter reads crime_type, start_date, end_date, bbox and limit.
func parseCrimeFilter(c *fiber.Ctx, defLimit int) (domain.CrimeFilter, error) {
	var f domain.CrimeFilter
	var err error
	f.CrimeType = strings.ToUpper(strings.TrimSpace(c.Query("crime_type")))
	if f.Start, err = queryDate(c, "start_date"); err != nil {
		return f, err
	}
	if f.End, err = queryDate(c, "end_date"); err != nil {
		return f, err
	}
	if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
		return f, fmt.Errorf("end_date is before start_date")
	}
	if raw := c.Query("bbox"); raw != "" {
		if f.Bounds, err = parseBBox(raw); err != nil {
			return f, err
		}
	}
	if f.Limit, err = queryInt(c, "limit", defLimit); err != nil {
		return f, err
	}
	if f.Limit < 1 || f.Limit > usecases.MaxCrimeLimit {
		return f, fmt.Errorf("limit must be between 1 and %d", usecases.MaxCrimeLimit)
	}
	return f, nil
}

// parseHotspotQuery reads the pipeline parameters on top of defaults.
func parseHotspotQuery(c *fiber.Ctx, defaults hotspot.Config) (usecases.HotspotQuery, error) {
	q := usecases.HotspotQuery{Config: defaults}
	var err error
	if q.Filter, err = parseCrimeFilter(c, 10000); err != nil {
		return q, err
	}
	cfg := &q.Config
	if cfg.Bandwidth, err = queryFloat(c, "bandwidth", defaults.Bandwidth); err != nil {
		return q, err
	}
	if cfg.ThresholdPercentile, err = queryFloat(c, "threshold", defaults.ThresholdPercentile); err != nil {
		return q, err
	}
	if cfg.GridResolution, err = queryInt(c, "grid_size", defaults.GridResolution); err != nil {
		return q, err
	}
	if cfg.MinPoints, err = queryInt(c, "min_points", defaults.MinPoints); err != nil {
		return q, err
	}
	if cfg.ClusterEps, err = queryFloat(c, "cluster_eps", defaults.ClusterEps); err != nil {
		return q, err
	}
	if err := checkConfig(q.Config); err != nil {
		return q, err
	}
	q.Analyze = c.QueryBool("analyze", true)
	q.NoCache = c.QueryBool("refresh", false)
	return q, nil
}

// maxClusterEps is one degree, wider than any city the service covers.
const maxClusterEps = 1.0

// checkConfig bounds the pipeline parameters a client may request. The
// comparisons are written so that NaN fails them.
func checkConfig(cfg hotspot.Config) error {
	switch {
	case !(cfg.Bandwidth > 0 && cfg.Bandwidth <= 1):
		return fmt.Errorf("bandwidth must be in (0, 1]")
	case !(cfg.ThresholdPercentile >= 0 && cfg.ThresholdPercentile <= 100):
		return fmt.Errorf("threshold must be in [0, 100]")
	case cfg.GridResolution < 2 || cfg.GridResolution > 200:
		return fmt.Errorf("grid_size must be between 2 and 200")
	case cfg.MinPoints < 1:
		return fmt.Errorf("min_points must be at least 1")
	case !(cfg.ClusterEps >= 0 && cfg.ClusterEps <= maxClusterEps):
		return fmt.Errorf("cluster_eps must be in [0, %g]", maxClusterEps)
	}
	return nil
}
