package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/hotspot"
)

// CrimeRepo implements ports.CrimeRepository with pgx.
type CrimeRepo struct {
	db *DB
}

// NewCrimeRepo creates a new CrimeRepo.
func NewCrimeRepo(db *DB) *CrimeRepo {
	return &CrimeRepo{db: db}
}

const crimeColumns = `id, case_number, date, primary_type, description, crime_category,
	latitude, longitude, beat, district, ward, year, month, hour, day_of_week,
	is_weekend, season, arrest, domestic, created_at`

// InsertBatch inserts crimes using pgx.Batch. Rows whose id already exists
// are skipped; the number of new rows is returned.
func (r *CrimeRepo) InsertBatch(ctx context.Context, crimes []domain.Crime) (int, error) {
	if len(crimes) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, c := range crimes {
		batch.Queue(`
			INSERT INTO crimes (`+crimeColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, COALESCE($20, now()))
			ON CONFLICT (id) DO NOTHING
		`, c.ID, c.CaseNumber, c.Date, c.PrimaryType, c.Description, c.Category,
			c.Location.Lat, c.Location.Lon, c.Beat, c.District, c.Ward,
			c.Year, c.Month, c.Hour, c.DayOfWeek, c.IsWeekend, c.Season,
			c.Arrest, c.Domestic, nullTime(c.CreatedAt))
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range crimes {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("batch exec: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// List returns crimes matching filter, newest first.
func (r *CrimeRepo) List(ctx context.Context, filter domain.CrimeFilter) ([]domain.Crime, error) {
	where, args := filterClause(filter)
	args = append(args, filter.Limit)
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+crimeColumns+`
		FROM crimes`+where+`
		ORDER BY date DESC
		LIMIT $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var crimes []domain.Crime
	for rows.Next() {
		var c domain.Crime
		if err := rows.Scan(
			&c.ID, &c.CaseNumber, &c.Date, &c.PrimaryType, &c.Description, &c.Category,
			&c.Location.Lat, &c.Location.Lon, &c.Beat, &c.District, &c.Ward,
			&c.Year, &c.Month, &c.Hour, &c.DayOfWeek, &c.IsWeekend, &c.Season,
			&c.Arrest, &c.Domestic, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		crimes = append(crimes, c)
	}
	return crimes, rows.Err()
}

// Incidents returns the pipeline view of matching crimes, newest first.
func (r *CrimeRepo) Incidents(ctx context.Context, filter domain.CrimeFilter) (hotspot.PointSet, error) {
	where, args := filterClause(filter)
	args = append(args, filter.Limit)
	rows, err := r.db.Pool.Query(ctx, `
		SELECT latitude, longitude, crime_category, date
		FROM crimes`+where+`
		ORDER BY date DESC
		LIMIT $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ps hotspot.PointSet
	for rows.Next() {
		var inc hotspot.Incident
		if err := rows.Scan(&inc.Location.Lat, &inc.Location.Lon, &inc.Category, &inc.OccurredAt); err != nil {
			return nil, err
		}
		ps = append(ps, inc)
	}
	return ps, rows.Err()
}

// TypeCounts returns counts per primary type, most frequent first.
func (r *CrimeRepo) TypeCounts(ctx context.Context) ([]domain.TypeCount, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT primary_type, COUNT(*)
		FROM crimes
		GROUP BY primary_type
		ORDER BY COUNT(*) DESC, primary_type
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TypeCount
	for rows.Next() {
		var tc domain.TypeCount
		if err := rows.Scan(&tc.PrimaryType, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// MonthlyCounts returns the latest months that have data, oldest first.
func (r *CrimeRepo) MonthlyCounts(ctx context.Context, months int) ([]domain.MonthlyCount, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT year, month, COUNT(*)
		FROM crimes
		GROUP BY year, month
		ORDER BY year DESC, month DESC
		LIMIT $1
	`, months)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MonthlyCount
	for rows.Next() {
		var mc domain.MonthlyCount
		if err := rows.Scan(&mc.Year, &mc.Month, &mc.Count); err != nil {
			return nil, err
		}
		out = append(out, mc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}

// DailyCounts returns per-day, per-type counts since the given time.
func (r *CrimeRepo) DailyCounts(ctx context.Context, since time.Time, crimeType string) ([]domain.DailyCount, error) {
	query := `
		SELECT date_trunc('day', date) AS day, primary_type, COUNT(*)
		FROM crimes
		WHERE date >= $1`
	args := []any{since}
	if crimeType != "" {
		query += ` AND primary_type = $2`
		args = append(args, crimeType)
	}
	query += `
		GROUP BY day, primary_type
		ORDER BY day, primary_type`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DailyCount
	for rows.Next() {
		var dc domain.DailyCount
		if err := rows.Scan(&dc.Date, &dc.PrimaryType, &dc.Count); err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

// Count returns the number of stored crimes.
func (r *CrimeRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM crimes`).Scan(&n)
	return n, err
}

// filterClause builds a WHERE clause with positional arguments.
func filterClause(f domain.CrimeFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.CrimeType != "" {
		add("primary_type = $%d", f.CrimeType)
	}
	if f.Start != nil {
		add("date >= $%d", *f.Start)
	}
	if f.End != nil {
		add("date <= $%d", *f.End)
	}
	if b := f.Bounds; b != nil {
		add("latitude >= $%d", b.MinLat)
		add("latitude <= $%d", b.MaxLat)
		add("longitude >= $%d", b.MinLon)
		add("longitude <= $%d", b.MaxLon)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
