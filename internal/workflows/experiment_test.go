package workflows_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/core/ports"
	"github.com/samirrijal/chicrime/internal/core/usecases"
	"github.com/samirrijal/chicrime/internal/experiment"
	"github.com/samirrijal/chicrime/internal/hotspot"
	"github.com/samirrijal/chicrime/internal/workflows"
)

type stubCrimes struct {
	ports.CrimeRepository
	incidents hotspot.PointSet
}

func (s *stubCrimes) Incidents(ctx context.Context, f domain.CrimeFilter) (hotspot.PointSet, error) {
	return s.incidents, nil
}

type memRuns struct {
	mu   sync.Mutex
	runs []domain.ExperimentRun
}

func (m *memRuns) SaveRun(ctx context.Context, run *domain.ExperimentRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memRuns) ListRuns(ctx context.Context, offset, limit int) ([]domain.ExperimentRun, int, error) {
	return m.runs, len(m.runs), nil
}

func (m *memRuns) GetRun(ctx context.Context, id string) (*domain.ExperimentRun, error) {
	return nil, ports.ErrNotFound
}

type flakyPublisher struct {
	err       error
	published int
}

func (p *flakyPublisher) PublishHotspots(ctx context.Context, r *domain.HotspotReport) error {
	return nil
}

func (p *flakyPublisher) PublishExperiment(ctx context.Context, r *domain.ExperimentRun) error {
	if p.err != nil {
		return p.err
	}
	p.published++
	return nil
}

func (p *flakyPublisher) PublishIngest(ctx context.Context, r *domain.IngestRun) error { return nil }

func loopIncidents(n int) hotspot.PointSet {
	rng := rand.New(rand.NewSource(3))
	ps := make(hotspot.PointSet, n)
	for i := range ps {
		ps[i] = hotspot.Incident{
			Location:   hotspot.Point{Lat: 41.88 + rng.NormFloat64()*0.005, Lon: -87.63 + rng.NormFloat64()*0.005},
			Category:   "THEFT",
			OccurredAt: time.Date(2024, 5, 1, i%24, 0, 0, 0, time.UTC),
		}
	}
	return ps
}

func sweepRequest() usecases.ExperimentRequest {
	base := hotspot.DefaultConfig()
	base.GridResolution = 20
	return usecases.ExperimentRequest{
		Parameter: experiment.Bandwidth,
		Values:    []float64{0.005, 0.01, 0.02},
		Base:      base,
	}
}

func newEnv(t *testing.T, incidents hotspot.PointSet, runs *memRuns, pub *flakyPublisher) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	svc := usecases.NewExperimentService(&stubCrimes{incidents: incidents}, runs, pub, 2, nil)
	env.RegisterWorkflow(workflows.ExperimentWorkflow)
	env.RegisterActivity(&workflows.ExperimentActivities{Experiments: svc})
	return env
}

func TestExperimentWorkflow_StoresAndPublishes(t *testing.T) {
	runs := &memRuns{}
	pub := &flakyPublisher{}
	env := newEnv(t, loopIncidents(300), runs, pub)

	env.ExecuteWorkflow(workflows.ExperimentWorkflow, sweepRequest())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var run *domain.ExperimentRun
	require.NoError(t, env.GetWorkflowResult(&run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "bandwidth", run.Parameter)
	assert.NotEmpty(t, run.Results)
	assert.Len(t, runs.runs, 1)
	assert.Equal(t, 1, pub.published)
}

func TestExperimentWorkflow_PublishFailureKeepsRun(t *testing.T) {
	runs := &memRuns{}
	pub := &flakyPublisher{err: errors.New("nats down")}
	env := newEnv(t, loopIncidents(300), runs, pub)

	env.ExecuteWorkflow(workflows.ExperimentWorkflow, sweepRequest())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	assert.Len(t, runs.runs, 1)
}

func TestExperimentWorkflow_NoViableIsNotRetried(t *testing.T) {
	runs := &memRuns{}
	env := newEnv(t, nil, runs, &flakyPublisher{})

	attempts := 0
	env.SetOnActivityStartedListener(func(info *activity.Info, ctx context.Context, args converter.EncodedValues) {
		if info.ActivityType.Name == "RunSweep" {
			attempts++
		}
	})
	env.ExecuteWorkflow(workflows.ExperimentWorkflow, sweepRequest())

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, workflows.ErrTypeNoViable, appErr.Type())
	assert.Equal(t, 1, attempts)
	assert.Empty(t, runs.runs)
}
