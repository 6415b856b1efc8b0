package workflows

import (
	"context"
	"errors"
	"log/slog"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/core/usecases"
	"github.com/samirrijal/chicrime/internal/experiment"
)

// ErrTypeNoViable is the application error type reported when a sweep
// finds no value that produces hotspots. Temporal does not retry it.
const ErrTypeNoViable = "NoViableConfiguration"

// ExperimentActivities holds the activity implementations for the
// experiment workflow.
type ExperimentActivities struct {
	Experiments *usecases.ExperimentService
	Logger      *slog.Logger
}

func (a *ExperimentActivities) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// RunSweep loads incidents and sweeps the requested parameter. Incidents are
// loaded inside the activity so they never enter workflow history.
func (a *ExperimentActivities) RunSweep(ctx context.Context, req usecases.ExperimentRequest) (*domain.ExperimentRun, error) {
	activity.RecordHeartbeat(ctx, string(req.Parameter))
	run, err := a.Experiments.Sweep(ctx, req)
	if errors.Is(err, experiment.ErrNoViableConfiguration) {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeNoViable, err)
	}
	if err != nil {
		return nil, err
	}
	a.logger().Info("sweep finished", "run_id", run.ID, "parameter", run.Parameter, "best_value", run.BestValue)
	return run, nil
}

// SaveRun persists a finished run.
func (a *ExperimentActivities) SaveRun(ctx context.Context, run *domain.ExperimentRun) error {
	return a.Experiments.Store(ctx, run)
}

// PublishRun announces a stored run on the event bus.
func (a *ExperimentActivities) PublishRun(ctx context.Context, run *domain.ExperimentRun) error {
	return a.Experiments.Publish(ctx, run)
}
