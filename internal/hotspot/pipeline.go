package hotspot

import (
	"context"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/samirrijal/chicrime/internal/hotspot"

// Config holds every tunable of one detection run.
type Config struct {
	Bounds              BoundingBox `json:"bounds"`
	Bandwidth           float64     `json:"bandwidth"`
	ThresholdPercentile float64     `json:"threshold_percentile"`
	GridResolution      int         `json:"grid_resolution"`
	ClusterEps          float64     `json:"cluster_eps"` // 0 derives it from the grid spacing
	MinPoints           int         `json:"min_points"`
}

// autoEpsFactor scales the coarser grid spacing when ClusterEps is 0, so
// that diagonal neighbours fall inside the clustering radius.
const autoEpsFactor = 1.5

// DefaultConfig returns the parameters used when a caller supplies none.
func DefaultConfig() Config {
	return Config{
		Bounds:              ChicagoBounds,
		Bandwidth:           0.01,
		ThresholdPercentile: 90,
		GridResolution:      50,
		ClusterEps:          0,
		MinPoints:           5,
	}
}

// Extract returns the extraction part of the config for grid g.
func (c Config) Extract(g EvaluationGrid) ExtractConfig {
	eps := c.ClusterEps
	if eps == 0 && g.Resolution >= 2 {
		latStep, lonStep := g.Spacing()
		eps = autoEpsFactor * math.Max(latStep, lonStep)
	}
	return ExtractConfig{
		ThresholdPercentile: c.ThresholdPercentile,
		ClusterEps:          eps,
		MinPoints:           c.MinPoints,
	}
}

// Result carries every intermediate value of a run so callers can render
// heatmaps from the same grid the hotspots were extracted from.
type Result struct {
	Config     Config
	Grid       EvaluationGrid
	Scores     DensityScores
	Extraction Extraction
}

// Hotspots is shorthand for r.Extraction.Hotspots.
func (r *Result) Hotspots() []Hotspot { return r.Extraction.Hotspots }

// StageObserver is notified after each stage completes.
type StageObserver func(stage string, elapsed time.Duration)

// Options customise Detect. The zero value is usable.
type Options struct {
	Logger   *slog.Logger
	Observer StageObserver
}

// Detect runs fit, sample, score and extract over incidents.
func Detect(ctx context.Context, incidents PointSet, cfg Config, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "hotspot.Detect")
	defer span.End()
	span.SetAttributes(
		attribute.Int("hotspot.incidents", len(incidents)),
		attribute.Float64("hotspot.bandwidth", cfg.Bandwidth),
		attribute.Float64("hotspot.threshold_percentile", cfg.ThresholdPercentile),
		attribute.Int("hotspot.grid_resolution", cfg.GridResolution),
	)

	fail := func(err error) (*Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	run := func(stage string, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, s := otel.Tracer(tracerName).Start(ctx, "hotspot."+stage)
		start := time.Now()
		err := fn()
		if opts.Observer != nil {
			opts.Observer(stage, time.Since(start))
		}
		if err != nil {
			s.RecordError(err)
		}
		s.End()
		return err
	}

	res := &Result{Config: cfg}
	var model *DensityModel

	if err := run("fit", func() (err error) {
		model, err = Fit(incidents.Locations(), cfg.Bandwidth)
		return err
	}); err != nil {
		return fail(err)
	}
	if err := run("sample", func() (err error) {
		res.Grid, err = Sample(cfg.Bounds, cfg.GridResolution)
		return err
	}); err != nil {
		return fail(err)
	}
	if err := run("score", func() (err error) {
		res.Scores, err = model.ScoreContext(ctx, res.Grid.Points)
		return err
	}); err != nil {
		return fail(err)
	}
	if err := run("extract", func() (err error) {
		res.Extraction, err = extract(res.Grid, res.Scores, cfg.Extract(res.Grid), log)
		return err
	}); err != nil {
		return fail(err)
	}

	span.SetAttributes(attribute.Int("hotspot.found", len(res.Extraction.Hotspots)))
	log.Debug("hotspot detection finished",
		"incidents", len(incidents),
		"threshold", res.Extraction.Threshold,
		"high_density_points", res.Extraction.HighDensityCount,
		"hotspots", len(res.Extraction.Hotspots),
		"warnings", len(res.Extraction.Warnings),
	)
	return res, nil
}
