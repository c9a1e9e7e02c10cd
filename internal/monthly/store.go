package monthly

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Store persists monthly aggregates in Postgres. The day map is a JSONB
// column; summary counts are plain columns always written together with it.
type Store struct {
	db *sql.DB
}

// NewStore creates a store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureExists lazily creates the aggregate row for (student, year, month)
// with an empty map and zero summary. Safe under concurrent first-writers:
// the losing insert is a no-op.
func (s *Store) EnsureExists(ctx context.Context, studentID string, year, month int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("month out of range: %d", month)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monthly_attendance (id, student_id, year, month, days, present, absent, home_pass)
		VALUES ($1, $2, $3, $4, '{}'::jsonb, 0, 0, 0)
		ON CONFLICT (student_id, year, month) DO NOTHING
	`, uuid.NewString(), studentID, year, month)
	return err
}

// Get returns the aggregate, or nil when it does not exist yet.
func (s *Store) Get(ctx context.Context, studentID string, year, month int) (*Aggregate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT student_id, year, month, days, present, absent, home_pass
		FROM monthly_attendance
		WHERE student_id = $1 AND year = $2 AND month = $3
	`, studentID, year, month)
	agg, err := scanAggregate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// SetDay writes one day's code and persists a freshly recounted summary.
// Idempotent: repeating the same day/code leaves the row unchanged.
func (s *Store) SetDay(ctx context.Context, studentID string, year, month, day int, code Code) error {
	if day < 1 || day > 31 {
		return fmt.Errorf("day out of range: %d", day)
	}
	if err := s.EnsureExists(ctx, studentID, year, month); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw []byte
	if err := tx.QueryRowContext(ctx, `
		SELECT days FROM monthly_attendance
		WHERE student_id = $1 AND year = $2 AND month = $3
		FOR UPDATE
	`, studentID, year, month).Scan(&raw); err != nil {
		return err
	}

	agg := Aggregate{StudentID: studentID, Year: year, Month: month}
	if err := json.Unmarshal(raw, &agg.Days); err != nil {
		return err
	}
	if agg.Days == nil {
		agg.Days = map[int]Code{}
	}
	agg.Days[day] = code
	agg.Recount()

	if err := s.writeLocked(ctx, tx, agg); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceDays overwrites the whole day map, recounting the summary. Used by
// rebuilds from daily records.
func (s *Store) ReplaceDays(ctx context.Context, studentID string, year, month int, days map[int]Code) error {
	if err := s.EnsureExists(ctx, studentID, year, month); err != nil {
		return err
	}
	agg := Aggregate{StudentID: studentID, Year: year, Month: month, Days: days}
	if agg.Days == nil {
		agg.Days = map[int]Code{}
	}
	agg.Recount()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.writeLocked(ctx, tx, agg); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) writeLocked(ctx context.Context, tx *sql.Tx, agg Aggregate) error {
	raw, err := json.Marshal(agg.Days)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE monthly_attendance
		SET days = $4, present = $5, absent = $6, home_pass = $7
		WHERE student_id = $1 AND year = $2 AND month = $3
	`, agg.StudentID, agg.Year, agg.Month, raw, agg.Summary.Present, agg.Summary.Absent, agg.Summary.HomePass)
	return err
}

// SumForMonth sums the stored summaries across all students for one month.
// It trusts the summary invariant and never recounts day maps.
func (s *Store) SumForMonth(ctx context.Context, year, month int) (Summary, int, error) {
	var sum Summary
	var students int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(present), 0), COALESCE(SUM(absent), 0), COALESCE(SUM(home_pass), 0), COUNT(id)
		FROM monthly_attendance
		WHERE year = $1 AND month = $2
	`, year, month).Scan(&sum.Present, &sum.Absent, &sum.HomePass, &students)
	return sum, students, err
}

// ListForStudent returns a student's aggregates for months in
// [fromYear-fromMonth, toYear-toMonth], oldest first.
func (s *Store) ListForStudent(ctx context.Context, studentID string, fromYear, fromMonth, toYear, toMonth int) ([]Aggregate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT student_id, year, month, days, present, absent, home_pass
		FROM monthly_attendance
		WHERE student_id = $1
		  AND (year * 12 + month) BETWEEN $2 AND $3
		ORDER BY year, month
	`, studentID, fromYear*12+fromMonth, toYear*12+toMonth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Aggregate
	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *agg)
	}
	return out, rows.Err()
}

func scanAggregate(row interface{ Scan(...any) error }) (*Aggregate, error) {
	var agg Aggregate
	var raw []byte
	if err := row.Scan(&agg.StudentID, &agg.Year, &agg.Month, &raw,
		&agg.Summary.Present, &agg.Summary.Absent, &agg.Summary.HomePass); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &agg.Days); err != nil {
		return nil, err
	}
	if agg.Days == nil {
		agg.Days = map[int]Code{}
	}
	return &agg, nil
}
