package attendance

import (
	"context"
	"time"

	"github.com/codebyshivareddiee/VJ-Hostels/internal/leave"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/roster"
)

// RoomDirectory is the slice of the roster the merge engine reads.
type RoomDirectory interface {
	RoomsByFloor(ctx context.Context, floor int) ([]roster.Room, error)
}

// RecordReader is the read side of the daily store used for merging.
type RecordReader interface {
	ListByFloorDate(ctx context.Context, floor int, date Date) ([]Record, error)
}

// LeaveDirectory exposes approved leave intervals overlapping a time range.
type LeaveDirectory interface {
	ActiveBetween(ctx context.Context, dayStart, dayEnd time.Time) ([]leave.Interval, error)
}

// LeaveInfo is the display payload attached to leave-derived statuses.
type LeaveInfo struct {
	Status  string    `json:"status"`
	OutTime time.Time `json:"out_time"`
	InTime  time.Time `json:"in_time"`
}

// StudentView is one student's effective status for a date.
type StudentView struct {
	ID         string     `json:"id"`
	RollNumber string     `json:"roll_number"`
	Name       string     `json:"name"`
	Status     Status     `json:"status"`
	Leave      *LeaveInfo `json:"leave,omitempty"`
}

// RoomView is one room with per-student effective statuses. IsMarked
// distinguishes "guard hasn't visited" from "guard marked everyone".
type RoomView struct {
	RoomNumber string        `json:"room_number"`
	Floor      int           `json:"floor"`
	Capacity   int           `json:"capacity"`
	Occupancy  int           `json:"occupancy"`
	IsMarked   bool          `json:"is_marked"`
	Students   []StudentView `json:"students"`
}

// Merger combines daily records, roster data and leave intervals into one
// effective status per student. Precedence: guard-marked record, then
// active leave, then absent. Unmarked students are presumed absent, not
// unknown.
type Merger struct {
	rooms   RoomDirectory
	records RecordReader
	leaves  LeaveDirectory
	loc     *time.Location
}

// NewMerger creates a merge engine. loc fixes which 24h window a calendar
// date spans when matching leave intervals.
func NewMerger(rooms RoomDirectory, records RecordReader, leaves LeaveDirectory, loc *time.Location) *Merger {
	if loc == nil {
		loc = time.Local
	}
	return &Merger{rooms: rooms, records: records, leaves: leaves, loc: loc}
}

// ResolveRoomView returns every room on the floor with effective statuses
// for the given date. Read-only; safe to call concurrently with writes.
func (m *Merger) ResolveRoomView(ctx context.Context, floor int, date Date) ([]RoomView, error) {
	rooms, err := m.rooms.RoomsByFloor(ctx, floor)
	if err != nil {
		return nil, err
	}
	records, err := m.records.ListByFloorDate(ctx, floor, date)
	if err != nil {
		return nil, err
	}
	leaves, err := m.activeLeaves(ctx, date)
	if err != nil {
		return nil, err
	}

	byStudent := make(map[string]Record, len(records))
	markedRooms := make(map[string]bool)
	for _, rec := range records {
		byStudent[rec.StudentID] = rec
		markedRooms[rec.RoomNumber] = true
	}

	views := make([]RoomView, 0, len(rooms))
	for _, room := range rooms {
		view := RoomView{
			RoomNumber: room.RoomNumber,
			Floor:      room.Floor,
			Capacity:   room.Capacity,
			Occupancy:  len(room.Occupants),
			IsMarked:   markedRooms[room.RoomNumber],
		}
		for _, student := range room.Occupants {
			sv := StudentView{ID: student.ID, RollNumber: student.RollNumber, Name: student.Name}
			if rec, ok := byStudent[student.ID]; ok {
				sv.Status = rec.Status
			} else if iv, ok := leaves[student.RollNumber]; ok {
				sv.Status = Status(iv.DerivedStatus())
				sv.Leave = &LeaveInfo{Status: iv.DerivedStatus(), OutTime: iv.EffectiveOut(), InTime: iv.EffectiveIn()}
			} else {
				sv.Status = StatusAbsent
			}
			view.Students = append(view.Students, sv)
		}
		views = append(views, view)
	}
	return views, nil
}

// EffectiveStatuses returns the effective status per student id for the
// whole roster on a date. Students with neither a record nor a leave get
// the empty string so audit callers can report "unmarked" instead of the
// live view's fail-closed absent.
func (m *Merger) EffectiveStatuses(ctx context.Context, students []roster.Student, records []Record, date Date) (map[string]Status, map[string]leave.Interval, error) {
	leaves, err := m.activeLeaves(ctx, date)
	if err != nil {
		return nil, nil, err
	}
	byStudent := make(map[string]Record, len(records))
	for _, rec := range records {
		byStudent[rec.StudentID] = rec
	}
	statuses := make(map[string]Status, len(students))
	for _, s := range students {
		if rec, ok := byStudent[s.ID]; ok {
			statuses[s.ID] = rec.Status
		} else if iv, ok := leaves[s.RollNumber]; ok {
			statuses[s.ID] = Status(iv.DerivedStatus())
		}
	}
	return statuses, leaves, nil
}

// activeLeaves maps roll number to the leave interval covering the date.
func (m *Merger) activeLeaves(ctx context.Context, date Date) (map[string]leave.Interval, error) {
	dayStart := date.Time(m.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)
	intervals, err := m.leaves.ActiveBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	out := make(map[string]leave.Interval, len(intervals))
	for _, iv := range intervals {
		if !iv.ActiveDuring(dayStart, dayEnd) {
			continue
		}
		out[iv.RollNumber] = iv
	}
	return out, nil
}
