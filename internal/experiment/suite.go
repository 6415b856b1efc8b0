package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/chicrime/internal/hotspot"
)

// Sweep is the outcome of one parameter sweep.
type Sweep struct {
	Parameter Parameter `json:"parameter"`
	Results   []Result  `json:"results"`
	Best      Result    `json:"best"`
}

// OptimalParams is the persisted selection of a suite run.
type OptimalParams struct {
	Bandwidth           float64 `json:"bandwidth"`
	ThresholdPercentile float64 `json:"threshold_percentile"`
	Date                string  `json:"date"`
}

// Suite describes the two standard sweeps: bandwidth at a fixed threshold,
// then threshold at a fixed bandwidth.
type Suite struct {
	Bounds         hotspot.BoundingBox `json:"bounds"`
	Bandwidths     []float64           `json:"bandwidths"`
	Thresholds     []float64           `json:"thresholds"`
	GridResolution int                 `json:"grid_resolution"`
	BaseThreshold  float64             `json:"base_threshold"`
	BaseBandwidth  float64             `json:"base_bandwidth"`
	MinPoints      int                 `json:"min_points"`
	Weights        Weights             `json:"weights"`
	Workers        int                 `json:"workers"`

	Logger *slog.Logger                                `json:"-"`
	Now    func() time.Time                            `json:"-"`
	OnSkip func(p Parameter, value float64, err error) `json:"-"`
}

// DefaultSuite returns the standard experiment plan over Chicago.
func DefaultSuite() Suite {
	return Suite{
		Bounds:         hotspot.ChicagoBounds,
		Bandwidths:     []float64{0.005, 0.01, 0.015, 0.02, 0.025},
		Thresholds:     []float64{80, 85, 90, 95},
		GridResolution: 30,
		BaseThreshold:  85,
		BaseBandwidth:  0.01,
		MinPoints:      5,
		Weights:        DefaultWeights(),
	}
}

// SuiteResult holds both sweeps and the combined selection.
type SuiteResult struct {
	Bandwidth Sweep         `json:"bandwidth_experiment"`
	Threshold Sweep         `json:"threshold_experiment"`
	Optimal   OptimalParams `json:"optimal"`
}

func (s Suite) config(bandwidth, threshold float64) hotspot.Config {
	cfg := hotspot.DefaultConfig()
	if s.Bounds != (hotspot.BoundingBox{}) {
		cfg.Bounds = s.Bounds
	}
	cfg.Bandwidth = bandwidth
	cfg.ThresholdPercentile = threshold
	if s.GridResolution > 0 {
		cfg.GridResolution = s.GridResolution
	}
	if s.MinPoints > 0 {
		cfg.MinPoints = s.MinPoints
	}
	return cfg
}

// RunSweep sweeps one parameter over values with base and selects the best result.
func (s Suite) RunSweep(ctx context.Context, incidents hotspot.PointSet, param Parameter, base hotspot.Config, values []float64) (Sweep, error) {
	r := Runner{Base: base, Parameter: param, Workers: s.Workers, Logger: s.Logger}
	if s.OnSkip != nil {
		r.OnSkip = func(v float64, err error) { s.OnSkip(param, v, err) }
	}
	results := r.Sweep(ctx, incidents, values)
	if err := ctx.Err(); err != nil {
		return Sweep{}, err
	}
	best, err := SelectBest(results, s.Weights)
	if err != nil {
		return Sweep{Parameter: param, Results: results}, fmt.Errorf("%s sweep: %w", param, err)
	}
	return Sweep{Parameter: param, Results: results, Best: best}, nil
}

// Run executes both sweeps and combines their winners.
func (s Suite) Run(ctx context.Context, incidents hotspot.PointSet) (*SuiteResult, error) {
	if s.Weights == (Weights{}) {
		s.Weights = DefaultWeights()
	}
	bw, err := s.RunSweep(ctx, incidents, Bandwidth, s.config(s.BaseBandwidth, s.BaseThreshold), s.Bandwidths)
	if err != nil {
		return nil, err
	}
	th, err := s.RunSweep(ctx, incidents, ThresholdPercentile, s.config(s.BaseBandwidth, s.BaseThreshold), s.Thresholds)
	if err != nil {
		return nil, err
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return &SuiteResult{
		Bandwidth: bw,
		Threshold: th,
		Optimal: OptimalParams{
			Bandwidth:           bw.Best.Value,
			ThresholdPercentile: th.Best.Value,
			Date:                now().UTC().Format(time.RFC3339),
		},
	}, nil
}
