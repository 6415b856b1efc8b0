// Package experiment sweeps hotspot detection parameters and picks the
// configuration that best trades off efficiency against coverage.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/chicrime/internal/hotspot"
)

// ErrNoViableConfiguration is returned by SelectBest when every run of a
// sweep was skipped.
var ErrNoViableConfiguration = errors.New("experiment: no viable configuration")

// Parameter names the config field a sweep varies.
type Parameter string

const (
	Bandwidth           Parameter = "bandwidth"
	ThresholdPercentile Parameter = "threshold_percentile"
	ClusterEps          Parameter = "cluster_eps"
	MinPoints           Parameter = "min_points"
	GridResolution      Parameter = "grid_resolution"
)

// ParseParameter validates a parameter name.
func ParseParameter(s string) (Parameter, error) {
	switch p := Parameter(s); p {
	case Bandwidth, ThresholdPercentile, ClusterEps, MinPoints, GridResolution:
		return p, nil
	}
	return "", fmt.Errorf("unknown sweep parameter %q", s)
}

// Apply returns base with the parameter set to v.
func (p Parameter) Apply(base hotspot.Config, v float64) hotspot.Config {
	switch p {
	case Bandwidth:
		base.Bandwidth = v
	case ThresholdPercentile:
		base.ThresholdPercentile = v
	case ClusterEps:
		base.ClusterEps = v
	case MinPoints:
		base.MinPoints = int(math.Round(v))
	case GridResolution:
		base.GridResolution = int(math.Round(v))
	}
	return base
}

// Result summarises one pipeline run of a sweep.
type Result struct {
	Value              float64 `json:"value"`
	HotspotCount       int     `json:"num_hotspots"`
	TotalAreaSqKm      float64 `json:"total_area_sq_km"`
	CoveragePercentage float64 `json:"coverage_percentage"`
	AvgHotspotSizeSqKm float64 `json:"avg_hotspot_size_sq_km"`
	CrimesInHotspots   int     `json:"crimes_in_hotspots"`
	Efficiency         float64 `json:"efficiency"`
}

// Runner executes parameter sweeps. The zero value sweeps bandwidth over
// hotspot.DefaultConfig with one worker per CPU.
type Runner struct {
	Base      hotspot.Config
	Parameter Parameter
	// Subsample, when set, selects the incidents used for each value.
	Subsample func(value float64, in hotspot.PointSet) hotspot.PointSet
	Workers   int
	Logger    *slog.Logger
	// OnSkip is called for every value whose run failed.
	OnSkip func(value float64, err error)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Sweep runs the pipeline once per value. Values whose run fails are
// logged and omitted; the remaining results keep the order of values.
func (r *Runner) Sweep(ctx context.Context, incidents hotspot.PointSet, values []float64) []Result {
	base := r.Base
	if base.GridResolution == 0 {
		base = hotspot.DefaultConfig()
	}
	param := r.Parameter
	if param == "" {
		param = Bandwidth
	}
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	type outcome struct {
		res Result
		err error
	}
	outcomes := make([]outcome, len(values))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, v := range values {
		g.Go(func() error {
			pts := incidents
			if r.Subsample != nil {
				pts = r.Subsample(v, incidents)
			}
			res, err := Evaluate(gctx, pts, param.Apply(base, v))
			res.Value = v
			outcomes[i] = outcome{res: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	results := make([]Result, 0, len(values))
	for i, o := range outcomes {
		if o.err != nil {
			r.logger().Warn("skipping sweep value",
				"parameter", string(param), "value", values[i], "error", o.err)
			if r.OnSkip != nil {
				r.OnSkip(values[i], o.err)
			}
			continue
		}
		results = append(results, o.res)
	}
	return results
}

// Evaluate runs detection with cfg and scores the outcome against incidents.
func Evaluate(ctx context.Context, incidents hotspot.PointSet, cfg hotspot.Config) (Result, error) {
	det, err := hotspot.Detect(ctx, incidents, cfg, hotspot.Options{})
	if err != nil {
		return Result{}, err
	}
	return Score(det.Hotspots(), incidents), nil
}

// Score computes sweep metrics for hotspots over incidents.
func Score(hotspots []hotspot.Hotspot, incidents hotspot.PointSet) Result {
	var area float64
	for _, h := range hotspots {
		area += h.AreaSqKm
	}
	covered := hotspot.CoveredCount(hotspots, incidents)

	res := Result{
		HotspotCount:     len(hotspots),
		TotalAreaSqKm:    area,
		CrimesInHotspots: covered,
		Efficiency:       float64(covered) / math.Max(area, 0.001),
	}
	if len(hotspots) > 0 {
		res.AvgHotspotSizeSqKm = area / float64(len(hotspots))
	}
	if len(incidents) > 0 {
		res.CoveragePercentage = math.Min(100, float64(covered)/float64(len(incidents))*100)
	}
	return res
}

// Weights balance the two terms of the selection objective.
type Weights struct {
	Efficiency float64 `json:"efficiency"`
	Coverage   float64 `json:"coverage"`
}

// DefaultWeights favours efficiency slightly over coverage.
func DefaultWeights() Weights {
	return Weights{Efficiency: 0.6, Coverage: 0.4}
}

// Objective is the scalar a result is ranked by.
func (w Weights) Objective(r Result) float64 {
	return r.Efficiency*w.Efficiency + r.CoveragePercentage*w.Coverage
}

// SelectBest returns the result with the highest objective. Ties go to the
// earliest result.
func SelectBest(results []Result, w Weights) (Result, error) {
	if len(results) == 0 {
		return Result{}, ErrNoViableConfiguration
	}
	best := 0
	bestScore := w.Objective(results[0])
	for i := 1; i < len(results); i++ {
		if s := w.Objective(results[i]); s > bestScore {
			best, bestScore = i, s
		}
	}
	return results[best], nil
}
