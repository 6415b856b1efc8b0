package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/core/ports"
)

// ExperimentRepo implements ports.ExperimentRepository on SQLite.
type ExperimentRepo struct {
	db *DB
}

// NewExperimentRepo creates a new ExperimentRepo.
func NewExperimentRepo(db *DB) *ExperimentRepo {
	return &ExperimentRepo{db: db}
}

// SaveRun inserts a run with results and weights as JSON text.
func (r *ExperimentRepo) SaveRun(ctx context.Context, run *domain.ExperimentRun) error {
	results, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	weights, err := json.Marshal(run.Weights)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO experiment_runs (id, parameter, results, best_value, weights, incident_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Parameter, string(results), run.BestValue, string(weights), run.IncidentCount, formatTime(run.CreatedAt))
	return err
}

// ListRuns returns a page of runs, newest first, with the total count.
func (r *ExperimentRepo) ListRuns(ctx context.Context, offset, limit int) ([]domain.ExperimentRun, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM experiment_runs`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, parameter, results, best_value, weights, incident_count, created_at
		FROM experiment_runs
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`, limit, offset)
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
	row := r.db.QueryRowContext(ctx, `
		SELECT id, parameter, results, best_value, weights, incident_count, created_at
		FROM experiment_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.ExperimentRun, error) {
	var run domain.ExperimentRun
	var results, weights, created string
	if err := row.Scan(&run.ID, &run.Parameter, &results, &run.BestValue, &weights, &run.IncidentCount, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(results), &run.Results); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	if err := json.Unmarshal([]byte(weights), &run.Weights); err != nil {
		return nil, fmt.Errorf("decode weights: %w", err)
	}
	t, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	run.CreatedAt = t
	return &run, nil
}
