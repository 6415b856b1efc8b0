package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/chicrime/internal/adapters/nats"
	"github.com/samirrijal/chicrime/internal/adapters/store"
	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/core/ports"
	"github.com/samirrijal/chicrime/internal/core/usecases"
	"github.com/samirrijal/chicrime/internal/experiment"
	"github.com/samirrijal/chicrime/internal/hotspot"
	"github.com/samirrijal/chicrime/internal/pkg/config"
	"github.com/samirrijal/chicrime/internal/pkg/logging"
	"github.com/samirrijal/chicrime/internal/report"
	"github.com/samirrijal/chicrime/internal/workflows"
)

const usage = `usage: experimenter <worker|run|local> [flags]

  worker   serve the experiment workflow on the Temporal task queue
  run      start one sweep through Temporal and wait for the result
  local    run the standard suite in-process and write the results to disk
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	mode := os.Args[1]

	fs := flag.NewFlagSet(mode, flag.ExitOnError)
	param := fs.String("param", string(experiment.Bandwidth), "parameter to sweep (run mode)")
	values := fs.String("values", "0.005,0.01,0.015,0.02,0.025", "comma separated sweep values (run mode)")
	crimeType := fs.String("crime-type", "", "restrict incidents to one primary type")
	_ = fs.Parse(os.Args[2:])

	cfg, err := config.Load("chicrime-experimenter")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	weights := experiment.Weights{
		Efficiency: cfg.Experiment.EfficiencyWeight,
		Coverage:   cfg.Experiment.CoverageWeight,
	}
	filter := domain.CrimeFilter{CrimeType: strings.ToUpper(*crimeType), Limit: cfg.Experiment.MaxIncidents}

	ctx := context.Background()
	switch mode {
	case "worker":
		err = runWorker(ctx, cfg, weights)
	case "run":
		var req usecases.ExperimentRequest
		req, err = sweepRequest(*param, *values, cfg.Hotspot.Pipeline(), filter, weights)
		if err == nil {
			err = startWorkflow(ctx, cfg, req)
		}
	case "local":
		err = runLocal(ctx, cfg, filter, weights)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", mode, err)
	}
}

func dial(cfg *config.Config) (client.Client, error) {
	return client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
}

func taskQueue(cfg *config.Config) string {
	if cfg.Temporal.TaskQueue != "" {
		return cfg.Temporal.TaskQueue
	}
	return workflows.TaskQueue
}

func runWorker(ctx context.Context, cfg *config.Config, weights experiment.Weights) error {
	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, runs will not be announced", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	c, err := dial(cfg)
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()

	w := worker.New(c, taskQueue(cfg), worker.Options{})
	w.RegisterWorkflow(workflows.ExperimentWorkflow)
	w.RegisterActivity(&workflows.ExperimentActivities{
		Experiments: usecases.NewExperimentService(db.Crimes, db.Experiments, publisher, cfg.Experiment.Workers, nil).WithWeights(weights),
	})

	slog.Info("experiment worker started", "task_queue", taskQueue(cfg))
	return w.Run(worker.InterruptCh())
}

func sweepRequest(param, values string, base hotspot.Config, filter domain.CrimeFilter, w experiment.Weights) (usecases.ExperimentRequest, error) {
	p, err := experiment.ParseParameter(param)
	if err != nil {
		return usecases.ExperimentRequest{}, err
	}
	req := usecases.ExperimentRequest{Parameter: p, Base: base, Filter: filter, Weights: w}
	for _, s := range strings.Split(values, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return req, fmt.Errorf("value %q: %w", s, err)
		}
		req.Values = append(req.Values, v)
	}
	return req, nil
}

func startWorkflow(ctx context.Context, cfg *config.Config, req usecases.ExperimentRequest) error {
	c, err := dial(cfg)
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()

	we, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        fmt.Sprintf("experiment-%s-%s", req.Parameter, uuid.NewString()),
		TaskQueue: taskQueue(cfg),
	}, workflows.ExperimentWorkflow, req)
	if err != nil {
		return fmt.Errorf("start workflow: %w", err)
	}
	slog.Info("experiment started", "workflow_id", we.GetID(), "run_id", we.GetRunID())

	var run domain.ExperimentRun
	if err := we.Get(ctx, &run); err != nil {
		return fmt.Errorf("experiment workflow: %w", err)
	}
	slog.Info("experiment finished",
		"experiment_id", run.ID,
		"parameter", run.Parameter,
		"best_value", run.BestValue,
		"incidents", run.IncidentCount,
	)
	return nil
}

// runLocal executes the standard suite without Temporal and writes
// optimal_params.json, one chart per sweep and a summary of the hotspots
// found with the selected parameters.
func runLocal(ctx context.Context, cfg *config.Config, filter domain.CrimeFilter, w experiment.Weights) error {
	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	incidents, err := db.Crimes.Incidents(ctx, filter)
	if err != nil {
		return fmt.Errorf("load incidents: %w", err)
	}
	slog.Info("running experiment suite", "incidents", len(incidents))

	suite := experiment.DefaultSuite()
	suite.Bounds = cfg.Hotspot.Bounds
	suite.Weights = w
	suite.Workers = cfg.Experiment.Workers
	start := time.Now()
	res, err := suite.Run(ctx, incidents)
	if err != nil {
		return err
	}
	slog.Info("suite complete",
		"bandwidth", res.Optimal.Bandwidth,
		"threshold_percentile", res.Optimal.ThresholdPercentile,
		"took", time.Since(start).String(),
	)

	dir := cfg.Experiment.OutputDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "optimal_params.json"), res.Optimal); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "experiments.json"), res); err != nil {
		return err
	}
	for _, sw := range []experiment.Sweep{res.Bandwidth, res.Threshold} {
		page, err := report.RenderExperimentChart(sw)
		if err != nil {
			return fmt.Errorf("render %s chart: %w", sw.Parameter, err)
		}
		name := filepath.Join(dir, string(sw.Parameter)+"_experiment.html")
		if err := os.WriteFile(name, page, 0o644); err != nil {
			return err
		}
	}

	best := cfg.Hotspot.Pipeline()
	best.Bandwidth = res.Optimal.Bandwidth
	best.ThresholdPercentile = res.Optimal.ThresholdPercentile
	return writeSummary(ctx, filepath.Join(dir, "hotspot_summary.csv"), incidents, best)
}

func writeSummary(ctx context.Context, path string, incidents hotspot.PointSet, cfg hotspot.Config) error {
	det, err := hotspot.Detect(ctx, incidents, cfg, hotspot.Options{})
	if err != nil {
		return fmt.Errorf("detect with optimal parameters: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := report.WriteSummaryCSV(f, hotspot.Analyze(det.Hotspots(), incidents)); err != nil {
		return err
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
