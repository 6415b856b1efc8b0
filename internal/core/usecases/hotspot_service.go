package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot/vg"

	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/core/ports"
	"github.com/samirrijal/chicrime/internal/hotspot"
	"github.com/samirrijal/chicrime/internal/pkg/metrics"
	"github.com/samirrijal/chicrime/internal/pkg/telemetry"
	"github.com/samirrijal/chicrime/internal/report"
)

// HotspotQuery selects incidents and configures one detection run.
type HotspotQuery struct {
	Config  hotspot.Config     `json:"config"`
	Filter  domain.CrimeFilter `json:"filter"`
	Analyze bool               `json:"analyze"`
	// NoCache forces a fresh run; the result still refreshes the cache.
	NoCache bool `json:"-"`
}

// HotspotOptions tunes a HotspotService.
type HotspotOptions struct {
	Defaults     hotspot.Config
	MaxIncidents int
	CacheTTL     time.Duration
	Logger       *slog.Logger
}

// HotspotService runs the detection pipeline over stored incidents.
type HotspotService struct {
	crimes    ports.CrimeRepository
	cache     ports.CacheService
	publisher ports.EventPublisher
	opts      HotspotOptions
	now       func() time.Time
}

// NewHotspotService creates a new HotspotService. cache and publisher may be nil.
func NewHotspotService(crimes ports.CrimeRepository, cache ports.CacheService, publisher ports.EventPublisher, opts HotspotOptions) *HotspotService {
	if opts.Defaults.GridResolution == 0 {
		opts.Defaults = hotspot.DefaultConfig()
	}
	if opts.MaxIncidents <= 0 {
		opts.MaxIncidents = 10000
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &HotspotService{crimes: crimes, cache: cache, publisher: publisher, opts: opts, now: time.Now}
}

// Defaults returns the configured default pipeline parameters.
func (s *HotspotService) Defaults() hotspot.Config { return s.opts.Defaults }

// normalize fills unset query fields from the defaults. A bbox filter also
// becomes the evaluation grid extent.
func (s *HotspotService) normalize(q HotspotQuery) HotspotQuery {
	if q.Config.GridResolution == 0 && q.Config.Bandwidth == 0 {
		q.Config = s.opts.Defaults
	}
	if q.Config.Bounds == (hotspot.BoundingBox{}) {
		q.Config.Bounds = s.opts.Defaults.Bounds
	}
	if q.Filter.Bounds != nil {
		q.Config.Bounds = q.Filter.Bounds.BoundingBox()
	}
	q.Filter.Limit = clampLimit(q.Filter.Limit, s.opts.MaxIncidents, MaxCrimeLimit)
	return q
}

func (s *HotspotService) run(ctx context.Context, q HotspotQuery) (*hotspot.Result, hotspot.PointSet, error) {
	incidents, err := s.crimes.Incidents(ctx, q.Filter)
	if err != nil {
		return nil, nil, fmt.Errorf("load incidents: %w", err)
	}
	res, err := hotspot.Detect(ctx, incidents, q.Config, hotspot.Options{
		Logger:   s.opts.Logger,
		Observer: metrics.ObserveStage,
	})
	switch {
	case hotspot.IsInputError(err):
		metrics.PipelineRuns.WithLabelValues("no_data").Inc()
		return nil, incidents, fmt.Errorf("detect hotspots: %w", err)
	case err != nil:
		metrics.PipelineRuns.WithLabelValues("error").Inc()
		return nil, incidents, fmt.Errorf("detect hotspots: %w", err)
	}
	metrics.PipelineRuns.WithLabelValues("ok").Inc()
	metrics.HotspotsFound.Observe(float64(len(res.Hotspots())))
	metrics.ExtractionWarnings.Add(float64(len(res.Extraction.Warnings)))
	return res, incidents, nil
}

// Detect runs the pipeline and returns a report. Reports are cached per
// query and published after every fresh run. Errors caused by unusable
// input wrap *hotspot.InputError.
func (s *HotspotService) Detect(ctx context.Context, q HotspotQuery) (*domain.HotspotReport, error) {
	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, telemetry.SpanHotspotDetect)
	defer span.End()

	q = s.normalize(q)
	key, err := cacheKey("hotspots:report", q)
	if err != nil {
		return nil, err
	}
	if !q.NoCache {
		var cached domain.HotspotReport
		if readCache(ctx, s.cache, key, &cached) {
			span.SetAttributes(attribute.Bool(telemetry.AttrCacheHit, true))
			return &cached, nil
		}
	}
	span.SetAttributes(attribute.Bool(telemetry.AttrCacheHit, false))

	res, incidents, err := s.run(ctx, q)
	if err != nil {
		if !hotspot.IsInputError(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	rep := &domain.HotspotReport{
		RunID:            uuid.NewString(),
		GeneratedAt:      s.now().UTC(),
		Config:           q.Config,
		Filter:           q.Filter,
		IncidentCount:    len(incidents),
		Threshold:        res.Extraction.Threshold,
		HighDensityCount: res.Extraction.HighDensityCount,
		Hotspots:         make([]domain.HotspotSummary, len(res.Hotspots())),
	}
	var analyses []hotspot.HotspotAnalysis
	if q.Analyze {
		analyses = hotspot.Analyze(res.Hotspots(), incidents)
	}
	for i, h := range res.Hotspots() {
		rep.Hotspots[i].Hotspot = h
		if analyses != nil {
			rep.Hotspots[i].Analysis = &analyses[i]
		}
	}
	for _, w := range res.Extraction.Warnings {
		rep.Warnings = append(rep.Warnings, w.Error())
	}
	span.SetAttributes(
		attribute.Int(telemetry.AttrIncidents, rep.IncidentCount),
		attribute.Int(telemetry.AttrHotspots, len(rep.Hotspots)),
	)

	writeCache(ctx, s.cache, key, rep, int(s.opts.CacheTTL.Seconds()))
	if s.publisher != nil {
		if err := s.publisher.PublishHotspots(ctx, rep); err != nil {
			s.opts.Logger.Warn("publish hotspots failed", "run_id", rep.RunID, "error", err)
		}
	}
	return rep, nil
}

// Density returns the evaluated density surface for q.
func (s *HotspotService) Density(ctx context.Context, q HotspotQuery) (*domain.DensitySurface, error) {
	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, telemetry.SpanHotspotDensity)
	defer span.End()

	q = s.normalize(q)
	key, err := cacheKey("hotspots:density", q)
	if err != nil {
		return nil, err
	}
	var cached domain.DensitySurface
	if !q.NoCache && readCache(ctx, s.cache, key, &cached) {
		return &cached, nil
	}

	res, _, err := s.run(ctx, q)
	if err != nil {
		return nil, err
	}
	surface := &domain.DensitySurface{
		Bounds:     res.Grid.Bounds,
		Resolution: res.Grid.Resolution,
		Lats:       res.Grid.Lats(),
		Lons:       res.Grid.Lons(),
		Scores:     res.Scores,
	}
	if len(res.Scores) > 0 {
		surface.Max = floats.Max(res.Scores)
	}
	writeCache(ctx, s.cache, key, surface, int(s.opts.CacheTTL.Seconds()))
	return surface, nil
}

// Heatmap renders the density surface with hotspot outlines as a PNG.
func (s *HotspotService) Heatmap(ctx context.Context, q HotspotQuery, size vg.Length) ([]byte, error) {
	q = s.normalize(q)
	res, _, err := s.run(ctx, q)
	if err != nil {
		return nil, err
	}
	img, err := report.RenderHeatmap(res.Grid, res.Scores, res.Hotspots(), size, size)
	if err != nil {
		return nil, fmt.Errorf("render heatmap: %w", err)
	}
	return img, nil
}

// IsNoData reports whether err means the query had no usable incidents.
func IsNoData(err error) bool {
	var ie *hotspot.InputError
	return errors.As(err, &ie)
}
