package attendance

import (
	"context"
	"log"
	"time"

	"github.com/codebyshivareddiee/VJ-Hostels/internal/metrics"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/queue"
)

// RecordStore is the write side of the daily store.
type RecordStore interface {
	Upsert(ctx context.Context, rec Record) (Record, error)
}

// MonthlySync keeps the monthly aggregate in step with daily writes.
type MonthlySync interface {
	Sync(ctx context.Context, studentID string, date Date, status Status) error
}

// StudentMark is one per-student status assignment within a mark request.
type StudentMark struct {
	StudentID  string `json:"student_id" binding:"required"`
	RollNumber string `json:"roll_number" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Status     Status `json:"status" binding:"required"`
}

// MarkRoomInput is a guard's submission for one room.
type MarkRoomInput struct {
	RoomNumber string        `json:"room_number" binding:"required"`
	Floor      int           `json:"floor"`
	Date       string        `json:"date"`
	Students   []StudentMark `json:"students" binding:"required"`
}

// RoomMarks is one room's entries inside a floor-wide submission.
type RoomMarks struct {
	RoomNumber string        `json:"room_number" binding:"required"`
	Students   []StudentMark `json:"students" binding:"required"`
}

// MarkFloorInput is a guard's submission for every room on a floor.
type MarkFloorInput struct {
	Floor int         `json:"floor"`
	Date  string      `json:"date"`
	Rooms []RoomMarks `json:"rooms" binding:"required"`
}

// MarkError reports one student's failed upsert within a batch.
type MarkError struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// MarkResult summarises one room's batch outcome.
type MarkResult struct {
	Date    Date        `json:"date"`
	Success int         `json:"success"`
	Failed  int         `json:"failed"`
	Skipped int         `json:"skipped"`
	Errors  []MarkError `json:"errors,omitempty"`
}

// RoomResult is MarkResult plus the room it belongs to.
type RoomResult struct {
	RoomNumber string `json:"room_number"`
	Success    int    `json:"success"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
}

// FloorResult aggregates a floor-wide submission.
type FloorResult struct {
	Date         Date         `json:"date"`
	TotalSuccess int          `json:"total_success"`
	TotalFailed  int          `json:"total_failed"`
	TotalSkipped int          `json:"total_skipped"`
	RoomResults  []RoomResult `json:"room_results"`
	Errors       []MarkError  `json:"errors,omitempty"`
}

// Service coordinates attendance marking: window gating, the daily upsert,
// and the best-effort monthly sync.
type Service struct {
	records RecordStore
	monthly MonthlySync
	jobs    queue.Queue
	now     func() time.Time
}

// NewService creates a service. jobs may be nil; failed monthly syncs then
// rely on the next write for that student-month to self-correct.
func NewService(records RecordStore, monthly MonthlySync, jobs queue.Queue, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{records: records, monthly: monthly, jobs: jobs, now: now}
}

// Window reports the operational window at this instant.
func (s *Service) Window() Window {
	return ResolveOperationalWindow(s.now())
}

// MarkRoom marks attendance for one room. Entries whose status is
// home_pass_used are skipped: that status is derived from the leave
// directory and a guard's snapshot of it must not become ground truth.
func (s *Service) MarkRoom(ctx context.Context, guardID string, in MarkRoomInput) (MarkResult, error) {
	if err := validateMarks(in.RoomNumber, in.Students); err != nil {
		return MarkResult{}, err
	}
	win, err := s.gate(in.Date)
	if err != nil {
		return MarkResult{}, err
	}

	res := MarkResult{Date: win.AttendanceDate}
	s.markBatch(ctx, guardID, in.RoomNumber, in.Floor, win.AttendanceDate, in.Students, &res)
	return res, nil
}

// MarkFloor applies MarkRoom semantics to every room on a floor in one call.
func (s *Service) MarkFloor(ctx context.Context, guardID string, in MarkFloorInput) (FloorResult, error) {
	if len(in.Rooms) == 0 {
		return FloorResult{}, invalidf("rooms required")
	}
	for _, room := range in.Rooms {
		if err := validateMarks(room.RoomNumber, room.Students); err != nil {
			return FloorResult{}, err
		}
	}
	win, err := s.gate(in.Date)
	if err != nil {
		return FloorResult{}, err
	}

	out := FloorResult{Date: win.AttendanceDate}
	for _, room := range in.Rooms {
		var res MarkResult
		s.markBatch(ctx, guardID, room.RoomNumber, in.Floor, win.AttendanceDate, room.Students, &res)
		out.TotalSuccess += res.Success
		out.TotalFailed += res.Failed
		out.TotalSkipped += res.Skipped
		out.Errors = append(out.Errors, res.Errors...)
		out.RoomResults = append(out.RoomResults, RoomResult{
			RoomNumber: room.RoomNumber,
			Success:    res.Success,
			Failed:     res.Failed,
			Skipped:    res.Skipped,
		})
	}
	return out, nil
}

// gate enforces the operational window and rejects explicit dates that do
// not match the current operational date. Past dates are never coerced.
func (s *Service) gate(explicitDate string) (Window, error) {
	win := ResolveOperationalWindow(s.now())
	if !win.Allowed {
		metrics.WindowRejections.Inc()
		return Window{}, &WindowClosedError{Now: s.now(), NextStart: win.Start, NextEnd: win.End}
	}
	if explicitDate != "" {
		d, err := ParseDate(explicitDate)
		if err != nil {
			return Window{}, invalidf("%v", err)
		}
		if d != win.AttendanceDate {
			metrics.WindowRejections.Inc()
			return Window{}, &WindowClosedError{Now: s.now(), NextStart: win.Start, NextEnd: win.End}
		}
	}
	return win, nil
}

func (s *Service) markBatch(ctx context.Context, guardID, roomNumber string, floor int, date Date, marks []StudentMark, res *MarkResult) {
	for _, m := range marks {
		if m.Status == StatusHomePassUsed {
			res.Skipped++
			continue
		}
		rec := Record{
			StudentID:  m.StudentID,
			RollNumber: m.RollNumber,
			Name:       m.Name,
			RoomNumber: roomNumber,
			Floor:      floor,
			Status:     m.Status,
			Date:       date,
			MarkedBy:   guardID,
			MarkedAt:   s.now(),
		}
		written, err := s.records.Upsert(ctx, rec)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, MarkError{StudentID: m.StudentID, Reason: err.Error()})
			continue
		}
		res.Success++
		metrics.MarkedTotal.WithLabelValues(string(written.Status)).Inc()

		// Best effort: the daily record is the source of truth and the
		// aggregate can be rebuilt from it later.
		if err := s.monthly.Sync(ctx, m.StudentID, date, m.Status); err != nil {
			log.Printf("monthly sync failed for student %s on %s: %v", m.StudentID, date, err)
			metrics.SyncFailures.Inc()
			s.enqueueRebuild(ctx, m.StudentID, date)
		}
	}
}

func (s *Service) enqueueRebuild(ctx context.Context, studentID string, date Date) {
	if s.jobs == nil {
		return
	}
	job := &queue.RebuildJob{StudentID: studentID, Year: date.Year, Month: int(date.Month)}
	if err := s.jobs.Publish(ctx, queue.Message{Type: queue.TypeMonthlyRebuild, Rebuild: job}); err != nil {
		log.Printf("rebuild enqueue failed for student %s: %v", studentID, err)
	}
}

func validateMarks(roomNumber string, marks []StudentMark) error {
	if roomNumber == "" {
		return invalidf("room number required")
	}
	if len(marks) == 0 {
		return invalidf("students required")
	}
	for _, m := range marks {
		if m.StudentID == "" || m.RollNumber == "" {
			return invalidf("student id and roll number required")
		}
		if !m.Status.Valid() {
			return invalidf("unknown status %q for student %s", m.Status, m.StudentID)
		}
	}
	return nil
}
