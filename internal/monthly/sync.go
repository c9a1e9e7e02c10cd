package monthly

import (
	"context"
	"log"
	"time"

	"github.com/codebyshivareddiee/VJ-Hostels/internal/attendance"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/metrics"
)

// DaySetter is the slice of the store the synchronizer writes through.
type DaySetter interface {
	SetDay(ctx context.Context, studentID string, year, month, day int, code Code) error
}

// Synchronizer maps a daily write into the monthly aggregate. It is the
// only writer of monthly aggregates in normal operation and is safe to
// call repeatedly with the same arguments.
type Synchronizer struct {
	store DaySetter
}

// NewSynchronizer creates a synchronizer.
func NewSynchronizer(store DaySetter) *Synchronizer {
	return &Synchronizer{store: store}
}

// Sync records the day's code for (student, date) and recounts the summary.
func (s *Synchronizer) Sync(ctx context.Context, studentID string, date attendance.Date, status attendance.Status) error {
	code := Code(status.MonthlyCode())
	return s.store.SetDay(ctx, studentID, date.Year, int(date.Month), date.Day, code)
}

// RecordLister reads a student's daily records for one month.
type RecordLister interface {
	ListByStudentMonth(ctx context.Context, studentID string, year int, month time.Month) ([]attendance.Record, error)
}

// DaysReplacer overwrites a whole student-month day map.
type DaysReplacer interface {
	ReplaceDays(ctx context.Context, studentID string, year, month int, days map[int]Code) error
}

// Rebuilder recomputes a student-month aggregate from daily records. Used
// by the worker after a failed sync and by the admin rebuild endpoint.
type Rebuilder struct {
	records RecordLister
	store   DaysReplacer
}

// NewRebuilder creates a rebuilder.
func NewRebuilder(records RecordLister, store DaysReplacer) *Rebuilder {
	return &Rebuilder{records: records, store: store}
}

// Rebuild replaces the month's day map with one derived from the daily
// store, restoring the summary invariant.
func (r *Rebuilder) Rebuild(ctx context.Context, studentID string, year, month int) error {
	records, err := r.records.ListByStudentMonth(ctx, studentID, year, time.Month(month))
	if err != nil {
		return err
	}
	days := make(map[int]Code, len(records))
	for _, rec := range records {
		days[rec.Date.Day] = Code(rec.Status.MonthlyCode())
	}
	if err := r.store.ReplaceDays(ctx, studentID, year, month, days); err != nil {
		return err
	}
	metrics.Rebuilds.Inc()
	log.Printf("rebuilt monthly aggregate for student %s %d-%02d (%d days)", studentID, year, month, len(days))
	return nil
}
