package usecases_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/core/ports"
	"github.com/samirrijal/chicrime/internal/core/usecases"
	"github.com/samirrijal/chicrime/internal/experiment"
	"github.com/samirrijal/chicrime/internal/hotspot"
)

func TestExperimentService_RunSavesAndPublishes(t *testing.T) {
	crimes := &mockCrimeRepo{
		incidentsFn: func(ctx context.Context, f domain.CrimeFilter) (hotspot.PointSet, error) {
			return downtownIncidents(300, 11), nil
		},
	}
	runs := &mockExperimentRepo{}
	pub := &mockPublisher{}
	svc := usecases.NewExperimentService(crimes, runs, pub, 2, nil)

	run, err := svc.Run(context.Background(), usecases.ExperimentRequest{
		Parameter: experiment.Bandwidth,
		Values:    []float64{0.005, 0.01, 0.015},
		Base:      smallConfig(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.ID == "" {
		t.Error("expected a run id")
	}
	if run.IncidentCount != 300 {
		t.Errorf("expected 300 incidents, got %d", run.IncidentCount)
	}
	if len(run.Results) == 0 {
		t.Fatal("expected sweep results")
	}
	if len(runs.runs) != 1 {
		t.Fatalf("expected 1 saved run, got %d", len(runs.runs))
	}
	if len(pub.experiments) != 1 {
		t.Errorf("expected 1 published run, got %d", len(pub.experiments))
	}

	got, err := svc.Get(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sw := usecases.SweepOf(got)
	if sw.Best.Value != run.BestValue {
		t.Errorf("expected best %v, got %v", run.BestValue, sw.Best.Value)
	}

	html, err := svc.Chart(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Contains(html, []byte("<html")) {
		t.Error("expected an HTML page")
	}
}

func TestExperimentService_NoViableConfigurationIsNotSaved(t *testing.T) {
	crimes := &mockCrimeRepo{}
	runs := &mockExperimentRepo{}
	svc := usecases.NewExperimentService(crimes, runs, nil, 1, nil)

	_, err := svc.Run(context.Background(), usecases.ExperimentRequest{
		Parameter: experiment.ThresholdPercentile,
		Values:    []float64{80, 90},
		Base:      smallConfig(),
	})
	if !usecases.IsNoViable(err) {
		t.Fatalf("expected ErrNoViableConfiguration, got %v", err)
	}
	if len(runs.runs) != 0 {
		t.Errorf("expected nothing saved, got %d runs", len(runs.runs))
	}
}

func TestExperimentService_RequiresValues(t *testing.T) {
	svc := usecases.NewExperimentService(&mockCrimeRepo{}, &mockExperimentRepo{}, nil, 1, nil)
	if _, err := svc.Run(context.Background(), usecases.ExperimentRequest{}); err == nil {
		t.Fatal("expected an error for an empty sweep")
	}
}

func TestExperimentService_GetMissing(t *testing.T) {
	svc := usecases.NewExperimentService(&mockCrimeRepo{}, &mockExperimentRepo{}, nil, 1, nil)
	_, err := svc.Get(context.Background(), "nope")
	if !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExperimentService_ConfiguredWeightsApplyWhenRequestHasNone(t *testing.T) {
	crimes := &mockCrimeRepo{
		incidentsFn: func(ctx context.Context, f domain.CrimeFilter) (hotspot.PointSet, error) {
			return downtownIncidents(200, 5), nil
		},
	}
	w := experiment.Weights{Efficiency: 0, Coverage: 1}
	svc := usecases.NewExperimentService(crimes, &mockExperimentRepo{}, nil, 1, nil).WithWeights(w)

	run, err := svc.Sweep(context.Background(), usecases.ExperimentRequest{
		Parameter: experiment.Bandwidth,
		Values:    []float64{0.005, 0.01},
		Base:      smallConfig(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Weights != w {
		t.Errorf("expected configured weights %+v, got %+v", w, run.Weights)
	}

	run, err = svc.Sweep(context.Background(), usecases.ExperimentRequest{
		Parameter: experiment.Bandwidth,
		Values:    []float64{0.005, 0.01},
		Base:      smallConfig(),
		Weights:   experiment.DefaultWeights(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Weights != experiment.DefaultWeights() {
		t.Errorf("request weights should win, got %+v", run.Weights)
	}
}
