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

	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/core/ports"
	"github.com/samirrijal/chicrime/internal/experiment"
	"github.com/samirrijal/chicrime/internal/hotspot"
	"github.com/samirrijal/chicrime/internal/pkg/metrics"
	"github.com/samirrijal/chicrime/internal/pkg/telemetry"
	"github.com/samirrijal/chicrime/internal/report"
)

// ExperimentRequest describes one parameter sweep.
type ExperimentRequest struct {
	Parameter experiment.Parameter `json:"parameter"`
	Values    []float64            `json:"values"`
	Base      hotspot.Config       `json:"base"`
	Filter    domain.CrimeFilter   `json:"filter"`
	Weights   experiment.Weights   `json:"weights"`
}

// ExperimentService runs, stores and renders parameter sweeps.
type ExperimentService struct {
	crimes    ports.CrimeRepository
	runs      ports.ExperimentRepository
	publisher ports.EventPublisher
	workers   int
	weights   experiment.Weights
	logger    *slog.Logger
	now       func() time.Time
}

// NewExperimentService creates a new ExperimentService. publisher may be nil.
func NewExperimentService(crimes ports.CrimeRepository, runs ports.ExperimentRepository, publisher ports.EventPublisher, workers int, logger *slog.Logger) *ExperimentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExperimentService{
		crimes:    crimes,
		runs:      runs,
		publisher: publisher,
		workers:   workers,
		weights:   experiment.DefaultWeights(),
		logger:    logger,
		now:       time.Now,
	}
}

// WithWeights sets the weights used when a request carries none.
func (s *ExperimentService) WithWeights(w experiment.Weights) *ExperimentService {
	if w != (experiment.Weights{}) {
		s.weights = w
	}
	return s
}

// Run sweeps the parameter and persists the run. A sweep with no viable
// value is not stored and returns experiment.ErrNoViableConfiguration.
func (s *ExperimentService) Run(ctx context.Context, req ExperimentRequest) (*domain.ExperimentRun, error) {
	run, err := s.Sweep(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.Save(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// Sweep loads incidents and sweeps the parameter without storing the run.
func (s *ExperimentService) Sweep(ctx context.Context, req ExperimentRequest) (*domain.ExperimentRun, error) {
	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, telemetry.SpanExperimentRun)
	defer span.End()

	if req.Parameter == "" {
		req.Parameter = experiment.Bandwidth
	}
	if len(req.Values) == 0 {
		return nil, fmt.Errorf("experiment %s: no values to sweep", req.Parameter)
	}
	if req.Base.GridResolution == 0 {
		req.Base = hotspot.DefaultConfig()
	}
	if req.Weights == (experiment.Weights{}) {
		req.Weights = s.weights
	}
	req.Filter.Limit = clampLimit(req.Filter.Limit, 10000, MaxCrimeLimit)

	incidents, err := s.crimes.Incidents(ctx, req.Filter)
	if err != nil {
		return nil, fmt.Errorf("load incidents: %w", err)
	}

	suite := experiment.Suite{
		Weights: req.Weights,
		Workers: s.workers,
		Logger:  s.logger,
		OnSkip: func(p experiment.Parameter, _ float64, _ error) {
			metrics.SweepValuesSkipped.WithLabelValues(string(p)).Inc()
		},
	}
	sweep, err := suite.RunSweep(ctx, incidents, req.Parameter, req.Base, req.Values)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String(telemetry.AttrSweepParam, string(req.Parameter)),
		attribute.Int(telemetry.AttrSweepResults, len(sweep.Results)),
	)

	run := &domain.ExperimentRun{
		ID:            uuid.NewString(),
		Parameter:     string(req.Parameter),
		Results:       sweep.Results,
		BestValue:     sweep.Best.Value,
		Weights:       req.Weights,
		IncidentCount: len(incidents),
		CreatedAt:     s.now().UTC(),
	}
	return run, nil
}

// Save stores run and announces it. Publishing failures are logged only.
func (s *ExperimentService) Save(ctx context.Context, run *domain.ExperimentRun) error {
	if err := s.Store(ctx, run); err != nil {
		return err
	}
	if err := s.Publish(ctx, run); err != nil {
		s.logger.Warn("publish experiment failed", "run_id", run.ID, "error", err)
	}
	return nil
}

// Store persists run.
func (s *ExperimentService) Store(ctx context.Context, run *domain.ExperimentRun) error {
	if err := s.runs.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save experiment run: %w", err)
	}
	return nil
}

// Publish announces a stored run. It is a no-op without a publisher.
func (s *ExperimentService) Publish(ctx context.Context, run *domain.ExperimentRun) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.PublishExperiment(ctx, run)
}

// List returns a page of runs, newest first, and the total count.
func (s *ExperimentService) List(ctx context.Context, offset, limit int) ([]domain.ExperimentRun, int, error) {
	return s.runs.ListRuns(ctx, offset, limit)
}

// Get returns one run or ports.ErrNotFound.
func (s *ExperimentService) Get(ctx context.Context, id string) (*domain.ExperimentRun, error) {
	return s.runs.GetRun(ctx, id)
}

// Chart renders the stored run as an HTML page.
func (s *ExperimentService) Chart(ctx context.Context, id string) ([]byte, error) {
	run, err := s.runs.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	return report.RenderExperimentChart(SweepOf(run))
}

// SweepOf rebuilds the sweep view of a stored run.
func SweepOf(run *domain.ExperimentRun) experiment.Sweep {
	sw := experiment.Sweep{Parameter: experiment.Parameter(run.Parameter), Results: run.Results}
	for _, r := range run.Results {
		if r.Value == run.BestValue {
			sw.Best = r
			break
		}
	}
	return sw
}

// IsNoViable reports whether err means no parameter value produced hotspots.
func IsNoViable(err error) bool {
	return errors.Is(err, experiment.ErrNoViableConfiguration)
}
