package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/core/usecases"
)

// TaskQueue is the Temporal task queue served by the experimenter worker.
const TaskQueue = "chicrime-experiments"

// ExperimentWorkflow sweeps one parameter, stores the run and announces it.
// A failed announcement is logged; the run stays stored.
func ExperimentWorkflow(ctx workflow.Context, req usecases.ExperimentRequest) (*domain.ExperimentRun, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting experiment workflow", "parameter", string(req.Parameter), "values", len(req.Values))

	sweepCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeNoViable},
		},
	})
	var run *domain.ExperimentRun
	if err := workflow.ExecuteActivity(sweepCtx, "RunSweep", req).Get(ctx, &run); err != nil {
		return nil, err
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})
	if err := workflow.ExecuteActivity(ctx, "SaveRun", run).Get(ctx, nil); err != nil {
		return nil, err
	}
	if err := workflow.ExecuteActivity(ctx, "PublishRun", run).Get(ctx, nil); err != nil {
		logger.Warn("publish failed, run kept", "run_id", run.ID, "error", err)
	}

	logger.Info("Experiment stored", "run_id", run.ID, "best_value", run.BestValue)
	return run, nil
}
