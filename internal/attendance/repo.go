package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is one guard-marked attendance entry. Room and floor are
// snapshotted at write time so scoped reads never join the roster.
type Record struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	RollNumber string    `json:"roll_number"`
	Name       string    `json:"name"`
	RoomNumber string    `json:"room_number"`
	Floor      int       `json:"floor"`
	Status     Status    `json:"status"`
	Date       Date      `json:"date"`
	MarkedBy   string    `json:"marked_by"`
	MarkedAt   time.Time `json:"marked_at"`
	Notes      string    `json:"notes,omitempty"`
}

// Repository persists daily attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const recordColumns = `id, student_id, roll_number, name, room_number, floor, status, date, marked_by, marked_at, notes`

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var rec Record
	var day time.Time
	if err := row.Scan(&rec.ID, &rec.StudentID, &rec.RollNumber, &rec.Name, &rec.RoomNumber,
		&rec.Floor, &rec.Status, &day, &rec.MarkedBy, &rec.MarkedAt, &rec.Notes); err != nil {
		return Record{}, err
	}
	rec.Date = DateOf(day)
	return rec, nil
}

// Upsert writes the record for (student, date), overwriting any prior mark.
func (r *Repository) Upsert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.MarkedAt.IsZero() {
		rec.MarkedAt = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, student_id, roll_number, name, room_number, floor, status, date, marked_by, marked_at, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (student_id, date) DO UPDATE SET
			roll_number = EXCLUDED.roll_number,
			name        = EXCLUDED.name,
			room_number = EXCLUDED.room_number,
			floor       = EXCLUDED.floor,
			status      = EXCLUDED.status,
			marked_by   = EXCLUDED.marked_by,
			marked_at   = EXCLUDED.marked_at,
			notes       = EXCLUDED.notes
		RETURNING id
	`, rec.ID, rec.StudentID, rec.RollNumber, rec.Name, rec.RoomNumber, rec.Floor,
		rec.Status, rec.Date.String(), rec.MarkedBy, rec.MarkedAt, rec.Notes)
	if err := row.Scan(&rec.ID); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ListByFloorDate returns every record for a floor on a date.
func (r *Repository) ListByFloorDate(ctx context.Context, floor int, date Date) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE floor = $1 AND date = $2
		ORDER BY room_number, roll_number
	`, floor, date.String())
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// ListByDate returns every record on a date, optionally scoped to floors.
func (r *Repository) ListByDate(ctx context.Context, date Date, floors []int) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE date = $1`
	args := []any{date.String()}
	if len(floors) > 0 {
		query += ` AND floor = ANY($2)`
		args = append(args, intArray(floors))
	}
	query += ` ORDER BY floor, room_number, roll_number`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// ListByStudentMonth returns a student's records within one calendar month.
// Used to rebuild the monthly aggregate from ground truth.
func (r *Repository) ListByStudentMonth(ctx context.Context, studentID string, year int, month time.Month) ([]Record, error) {
	first := Date{Year: year, Month: month, Day: 1}
	next := DateOf(first.Time(time.UTC).AddDate(0, 1, 0))
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE student_id = $1 AND date >= $2 AND date < $3
		ORDER BY date
	`, studentID, first.String(), next.String())
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// HistoryFilter scopes History queries.
type HistoryFilter struct {
	Start      Date
	End        Date
	Floor      *int
	RoomNumber string
}

// History returns records in a date range with optional floor/room filters,
// newest first.
func (r *Repository) History(ctx context.Context, f HistoryFilter) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records`
	args := []any{}
	clauses := []string{}
	if !f.Start.IsZero() && !f.End.IsZero() {
		clauses = append(clauses, fmt.Sprintf("date >= $%d AND date <= $%d", len(args)+1, len(args)+2))
		args = append(args, f.Start.String(), f.End.String())
	}
	if f.Floor != nil {
		clauses = append(clauses, fmt.Sprintf("floor = $%d", len(args)+1))
		args = append(args, *f.Floor)
	}
	if f.RoomNumber != "" {
		clauses = append(clauses, fmt.Sprintf("room_number = $%d", len(args)+1))
		args = append(args, f.RoomNumber)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY date DESC, floor, room_number"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// DistinctRooms returns the rooms with at least one record on a date,
// optionally restricted to the given floors.
func (r *Repository) DistinctRooms(ctx context.Context, date Date, floors []int) ([]string, error) {
	query := `SELECT DISTINCT room_number FROM attendance_records WHERE date = $1`
	args := []any{date.String()}
	if len(floors) > 0 {
		query += ` AND floor = ANY($2)`
		args = append(args, intArray(floors))
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var room string
		if err := rows.Scan(&room); err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

// StatusCounts returns record counts per status for a date, optionally
// restricted to the given floors.
func (r *Repository) StatusCounts(ctx context.Context, date Date, floors []int) (map[Status]int, error) {
	query := `SELECT status, COUNT(id) FROM attendance_records WHERE date = $1`
	args := []any{date.String()}
	if len(floors) > 0 {
		query += ` AND floor = ANY($2)`
		args = append(args, intArray(floors))
	}
	query += ` GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[Status]int{}
	for rows.Next() {
		var st Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

// MarkedPerFloor returns how many records exist per floor on a date.
func (r *Repository) MarkedPerFloor(ctx context.Context, date Date) (map[int]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT floor, COUNT(id) FROM attendance_records WHERE date = $1 GROUP BY floor
	`, date.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[int]int{}
	for rows.Next() {
		var floor, n int
		if err := rows.Scan(&floor, &n); err != nil {
			return nil, err
		}
		counts[floor] = n
	}
	return counts, rows.Err()
}

func collectRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// intArray renders a Postgres int array literal for ANY($n) parameters.
func intArray(vals []int) string {
	s := "{"
	for i, v := range vals {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%d", v)
	}
	return s + "}"
}
