package leave

import (
	"context"
	"database/sql"
	"time"
)

// Pass types as stored by the outpass service.
const (
	TypeHome = "home"
	TypeLate = "late"
)

// Interval is one approved leave window. The outpass workflow owns these;
// this package only reads them.
type Interval struct {
	RollNumber   string     `json:"roll_number"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	ScheduledOut time.Time  `json:"scheduled_out"`
	ScheduledIn  time.Time  `json:"scheduled_in"`
	ActualOut    *time.Time `json:"actual_out,omitempty"`
	ActualIn     *time.Time `json:"actual_in,omitempty"`
}

// EffectiveOut prefers the observed departure time over the scheduled one.
func (iv Interval) EffectiveOut() time.Time {
	if iv.ActualOut != nil {
		return *iv.ActualOut
	}
	return iv.ScheduledOut
}

// EffectiveIn prefers the observed return time over the scheduled one.
func (iv Interval) EffectiveIn() time.Time {
	if iv.ActualIn != nil {
		return *iv.ActualIn
	}
	return iv.ScheduledIn
}

// ActiveDuring reports whether the effective half-open [out, in) window
// overlaps [dayStart, dayEnd). A student back exactly at dayStart is home.
func (iv Interval) ActiveDuring(dayStart, dayEnd time.Time) bool {
	return iv.EffectiveOut().Before(dayEnd) && iv.EffectiveIn().After(dayStart)
}

// Departed reports whether the student has been observed leaving and has
// not yet returned.
func (iv Interval) Departed() bool {
	return iv.Status == "out" || (iv.ActualOut != nil && iv.ActualIn == nil)
}

// DerivedStatus maps the interval onto an attendance status string.
func (iv Interval) DerivedStatus() string {
	used := iv.Departed()
	if iv.Type == TypeLate {
		if used {
			return "late_pass_used"
		}
		return "late_pass_approved"
	}
	if used {
		return "home_pass_used"
	}
	return "home_pass_approved"
}

// Repository reads approved leave intervals.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ActiveBetween returns intervals whose effective half-open [out, in) window
// overlaps [dayStart, dayEnd) and whose status still permits absence
// (approved or out). An interval returning exactly at dayStart does not count.
func (r *Repository) ActiveBetween(ctx context.Context, dayStart, dayEnd time.Time) ([]Interval, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT roll_number, type, status, scheduled_out, scheduled_in, actual_out, actual_in
		FROM outpasses
		WHERE status IN ('approved', 'out')
		  AND COALESCE(actual_out, scheduled_out) < $2
		  AND COALESCE(actual_in, scheduled_in) > $1
		ORDER BY roll_number
	`, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intervals []Interval
	for rows.Next() {
		var iv Interval
		if err := rows.Scan(&iv.RollNumber, &iv.Type, &iv.Status, &iv.ScheduledOut, &iv.ScheduledIn, &iv.ActualOut, &iv.ActualIn); err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}
	return intervals, rows.Err()
}
