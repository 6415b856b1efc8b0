package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/core/ports"
)

// ExperimentRepo implements ports.ExperimentRepository with pgx.
type ExperimentRepo struct {
	db *DB
}

// NewExperimentRepo creates a new ExperimentRepo.
func NewExperimentRepo(db *DB) *ExperimentRepo {
	return &ExperimentRepo{db: db}
}

// SaveRun inserts a run. Results and weights are stored as JSONB.
func (r *ExperimentRepo) SaveRun(ctx context.Context, run *domain.ExperimentRun) error {
	results, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	weights, err := json.Marshal(run.Weights)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO experiment_runs (id, parameter, results, best_value, weights, incident_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, run.ID, run.Parameter, results, run.BestValue, weights, run.IncidentCount, run.CreatedAt)
	return err
}

// ListRuns returns a page of runs, newest first, with the total count.
func (r *ExperimentRepo) ListRuns(ctx context.Context, offset, limit int) ([]domain.ExperimentRun, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM experiment_runs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id::text, parameter, results, best_value, weights, incident_count, created_at
		FROM experiment_runs
		ORDER BY created_at DESC
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []domain.ExperimentRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, *run)
	}
	return runs, total, rows.Err()
}

// GetRun returns one run or ports.ErrNotFound.
func (r *ExperimentRepo) GetRun(ctx context.Context, id string) (*domain.ExperimentRun, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT id::text, parameter, results, best_value, weights, incident_count, created_at
		FROM experiment_runs WHERE id::text = $1
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	return run, err
}

func scanRun(row pgx.Row) (*domain.ExperimentRun, error) {
	var run domain.ExperimentRun
	var results, weights []byte
	if err := row.Scan(&run.ID, &run.Parameter, &results, &run.BestValue, &weights, &run.IncidentCount, &run.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(results, &run.Results); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	if err := json.Unmarshal(weights, &run.Weights); err != nil {
		return nil, fmt.Errorf("decode weights: %w", err)
	}
	return &run, nil
}
