package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samirrijal/chicrime/internal/core/domain"
	"github.com/samirrijal/chicrime/internal/hotspot"
)

// CrimeRepo implements ports.CrimeRepository on SQLite.
type CrimeRepo struct {
	db  *DB
	now func() time.Time
}

// NewCrimeRepo creates a new CrimeRepo.
func NewCrimeRepo(db *DB) *CrimeRepo {
	return &CrimeRepo{db: db, now: time.Now}
}

const crimeColumns = `id, case_number, date, primary_type, description, crime_category,
	latitude, longitude, beat, district, ward, year, month, hour, day_of_week,
	is_weekend, season, arrest, domestic, created_at`

// InsertBatch inserts crimes in one transaction, skipping existing ids.
func (r *CrimeRepo) InsertBatch(ctx context.Context, crimes []domain.Crime) (int, error) {
	if len(crimes) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO crimes (`+crimeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, c := range crimes {
		created := c.CreatedAt
		if created.IsZero() {
			created = r.now()
		}
		res, err := stmt.ExecContext(ctx,
			c.ID, c.CaseNumber, formatTime(c.Date), c.PrimaryType, c.Description, c.Category,
			c.Location.Lat, c.Location.Lon, c.Beat, c.District, c.Ward,
			c.Year, c.Month, c.Hour, c.DayOfWeek, c.IsWeekend, c.Season,
			c.Arrest, c.Domestic, formatTime(created))
		if err != nil {
			return 0, fmt.Errorf("insert crime %d: %w", c.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// List returns crimes matching filter, newest first.
func (r *CrimeRepo) List(ctx context.Context, filter domain.CrimeFilter) ([]domain.Crime, error) {
	where, args := filterClause(filter)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+crimeColumns+`
		FROM crimes`+where+`
		ORDER BY date DESC
		LIMIT ?`, append(args, filter.Limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var crimes []domain.Crime
	for rows.Next() {
		var c domain.Crime
		var date, created string
		if err := rows.Scan(
			&c.ID, &c.CaseNumber, &date, &c.PrimaryType, &c.Description, &c.Category,
			&c.Location.Lat, &c.Location.Lon, &c.Beat, &c.District, &c.Ward,
			&c.Year, &c.Month, &c.Hour, &c.DayOfWeek, &c.IsWeekend, &c.Season,
			&c.Arrest, &c.Domestic, &created,
		); err != nil {
			return nil, err
		}
		if c.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		crimes = append(crimes, c)
	}
	return crimes, rows.Err()
}

// Incidents returns the pipeline view of matching crimes, newest first.
func (r *CrimeRepo) Incidents(ctx context.Context, filter domain.CrimeFilter) (hotspot.PointSet, error) {
	where, args := filterClause(filter)
	rows, err := r.db.QueryContext(ctx, `
		SELECT latitude, longitude, crime_category, date
		FROM crimes`+where+`
		ORDER BY date DESC
		LIMIT ?`, append(args, filter.Limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ps hotspot.PointSet
	for rows.Next() {
		var inc hotspot.Incident
		var date string
		if err := rows.Scan(&inc.Location.Lat, &inc.Location.Lon, &inc.Category, &date); err != nil {
			return nil, err
		}
		if inc.OccurredAt, err = parseTime(date); err != nil {
			return nil, err
		}
		ps = append(ps, inc)
	}
	return ps, rows.Err()
}

// TypeCounts returns counts per primary type, most frequent first.
func (r *CrimeRepo) TypeCounts(ctx context.Context) ([]domain.TypeCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT primary_type, COUNT(*) AS n
		FROM crimes
		GROUP BY primary_type
		ORDER BY n DESC, primary_type`)
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
	rows, err := r.db.QueryContext(ctx, `
		SELECT year, month, COUNT(*)
		FROM crimes
		GROUP BY year, month
		ORDER BY year DESC, month DESC
		LIMIT ?`, months)
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
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// DailyCounts returns per-day, per-type counts since the given time.
func (r *CrimeRepo) DailyCounts(ctx context.Context, since time.Time, crimeType string) ([]domain.DailyCount, error) {
	query := `
		SELECT substr(date, 1, 10) AS day, primary_type, COUNT(*)
		FROM crimes
		WHERE date >= ?`
	args := []any{formatTime(since)}
	if crimeType != "" {
		query += ` AND primary_type = ?`
		args = append(args, crimeType)
	}
	query += `
		GROUP BY day, primary_type
		ORDER BY day, primary_type`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DailyCount
	for rows.Next() {
		var dc domain.DailyCount
		var day string
		if err := rows.Scan(&day, &dc.PrimaryType, &dc.Count); err != nil {
			return nil, err
		}
		if dc.Date, err = time.Parse(time.DateOnly, day); err != nil {
			return nil, fmt.Errorf("parse day %q: %w", day, err)
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

// Count returns the number of stored crimes.
func (r *CrimeRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM crimes`).Scan(&n)
	return n, err
}

func filterClause(f domain.CrimeFilter) (string, []any) {
	var conds []string
	var args []any
	if f.CrimeType != "" {
		conds = append(conds, "primary_type = ?")
		args = append(args, f.CrimeType)
	}
	if f.Start != nil {
		conds = append(conds, "date >= ?")
		args = append(args, formatTime(*f.Start))
	}
	if f.End != nil {
		conds = append(conds, "date <= ?")
		args = append(args, formatTime(*f.End))
	}
	if b := f.Bounds; b != nil {
		conds = append(conds, "latitude BETWEEN ? AND ?", "longitude BETWEEN ? AND ?")
		args = append(args, b.MinLat, b.MaxLat, b.MinLon, b.MaxLon)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
