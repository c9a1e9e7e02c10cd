package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebyshivareddiee/VJ-Hostels/internal/leave"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/roster"
)

type fakeRoomDir struct {
	rooms []roster.Room
}

func (f *fakeRoomDir) RoomsByFloor(ctx context.Context, floor int) ([]roster.Room, error) {
	return f.rooms, nil
}

type fakeRecordReader struct {
	records []Record
}

func (f *fakeRecordReader) ListByFloorDate(ctx context.Context, floor int, date Date) ([]Record, error) {
	return f.records, nil
}

type fakeLeaveDir struct {
	intervals []leave.Interval
}

func (f *fakeLeaveDir) ActiveBetween(ctx context.Context, dayStart, dayEnd time.Time) ([]leave.Interval, error) {
	return f.intervals, nil
}

func student(id, roll, name string) roster.Student {
	return roster.Student{ID: id, RollNumber: roll, Name: name, Active: true}
}

func TestResolveRoomViewPrecedence(t *testing.T) {
	date := Date{2025, time.March, 10}
	rooms := &fakeRoomDir{rooms: []roster.Room{{
		RoomNumber: "101",
		Floor:      1,
		Capacity:   4,
		Occupants: []roster.Student{
			student("s1", "R1", "Asha"),
			student("s2", "R2", "Bala"),
			student("s3", "R3", "Charu"),
		},
	}}}
	// s1 has both a guard mark and an active leave; the mark must win even
	// when it contradicts the leave.
	records := &fakeRecordReader{records: []Record{{
		StudentID: "s1", RoomNumber: "101", Floor: 1, Status: StatusAbsent, Date: date,
	}}}
	out := at(2025, time.March, 9, 18, 0)
	leaves := &fakeLeaveDir{intervals: []leave.Interval{
		{RollNumber: "R1", Type: leave.TypeHome, Status: "out", ActualOut: &out, ScheduledOut: out, ScheduledIn: at(2025, time.March, 12, 18, 0)},
		{RollNumber: "R2", Type: leave.TypeHome, Status: "out", ActualOut: &out, ScheduledOut: out, ScheduledIn: at(2025, time.March, 12, 18, 0)},
	}}

	m := NewMerger(rooms, records, leaves, kolkata)
	views, err := m.ResolveRoomView(context.Background(), 1, date)
	require.NoError(t, err)
	require.Len(t, views, 1)

	view := views[0]
	assert.True(t, view.IsMarked)
	assert.Equal(t, 3, view.Occupancy)
	require.Len(t, view.Students, 3)

	assert.Equal(t, StatusAbsent, view.Students[0].Status)
	assert.Nil(t, view.Students[0].Leave)

	assert.Equal(t, StatusHomePassUsed, view.Students[1].Status)
	require.NotNil(t, view.Students[1].Leave)
	assert.Equal(t, "home_pass_used", view.Students[1].Leave.Status)

	// No record, no leave: presumed absent.
	assert.Equal(t, StatusAbsent, view.Students[2].Status)
}

func TestResolveRoomViewUnmarkedRoom(t *testing.T) {
	date := Date{2025, time.March, 10}
	rooms := &fakeRoomDir{rooms: []roster.Room{
		{RoomNumber: "101", Floor: 1, Occupants: []roster.Student{student("s1", "R1", "Asha")}},
		{RoomNumber: "102", Floor: 1, Occupants: []roster.Student{student("s2", "R2", "Bala")}},
	}}
	records := &fakeRecordReader{records: []Record{{
		StudentID: "s1", RoomNumber: "101", Floor: 1, Status: StatusPresent, Date: date,
	}}}

	m := NewMerger(rooms, records, &fakeLeaveDir{}, kolkata)
	views, err := m.ResolveRoomView(context.Background(), 1, date)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.True(t, views[0].IsMarked)
	assert.False(t, views[1].IsMarked)
	// Fail closed: the unvisited room's occupant reads absent, not unknown.
	assert.Equal(t, StatusAbsent, views[1].Students[0].Status)
}

func TestResolveRoomViewLeaveTypes(t *testing.T) {
	date := Date{2025, time.March, 10}
	rooms := &fakeRoomDir{rooms: []roster.Room{{
		RoomNumber: "101",
		Floor:      1,
		Occupants: []roster.Student{
			student("s1", "R1", "Asha"),
			student("s2", "R2", "Bala"),
		},
	}}}
	leaves := &fakeLeaveDir{intervals: []leave.Interval{
		{RollNumber: "R1", Type: leave.TypeHome, Status: "approved", ScheduledOut: at(2025, time.March, 10, 10, 0), ScheduledIn: at(2025, time.March, 12, 18, 0)},
		{RollNumber: "R2", Type: leave.TypeLate, Status: "approved", ScheduledOut: at(2025, time.March, 10, 19, 0), ScheduledIn: at(2025, time.March, 10, 23, 0)},
	}}

	m := NewMerger(rooms, &fakeRecordReader{}, leaves, kolkata)
	views, err := m.ResolveRoomView(context.Background(), 1, date)
	require.NoError(t, err)
	assert.Equal(t, StatusHomePassApproved, views[0].Students[0].Status)
	assert.Equal(t, StatusLatePassApproved, views[0].Students[1].Status)
}

func TestResolveRoomViewLeaveEndingAtMidnightIgnored(t *testing.T) {
	date := Date{2025, time.March, 10}
	rooms := &fakeRoomDir{rooms: []roster.Room{{
		RoomNumber: "101",
		Floor:      1,
		Occupants:  []roster.Student{student("s1", "R1", "Asha")},
	}}}
	// A pass whose return time is exactly the start of March 10 covers
	// March 9 only; the student owes a mark for March 10.
	leaves := &fakeLeaveDir{intervals: []leave.Interval{{
		RollNumber:   "R1",
		Type:         leave.TypeHome,
		Status:       "approved",
		ScheduledOut: at(2025, time.March, 8, 18, 0),
		ScheduledIn:  at(2025, time.March, 10, 0, 0),
	}}}

	m := NewMerger(rooms, &fakeRecordReader{}, leaves, kolkata)
	views, err := m.ResolveRoomView(context.Background(), 1, date)
	require.NoError(t, err)
	assert.Equal(t, StatusAbsent, views[0].Students[0].Status)
	assert.Nil(t, views[0].Students[0].Leave)
}

func TestEffectiveStatusesLeavesUnmarkedEmpty(t *testing.T) {
	date := Date{2025, time.March, 10}
	students := []roster.Student{
		student("s1", "R1", "Asha"),
		student("s2", "R2", "Bala"),
		student("s3", "R3", "Charu"),
	}
	records := []Record{{StudentID: "s1", Status: StatusPresent, Date: date}}
	out := at(2025, time.March, 9, 18, 0)
	leaves := &fakeLeaveDir{intervals: []leave.Interval{
		{RollNumber: "R2", Type: leave.TypeHome, Status: "out", ActualOut: &out, ScheduledOut: out, ScheduledIn: at(2025, time.March, 12, 18, 0)},
	}}

	m := NewMerger(&fakeRoomDir{}, &fakeRecordReader{}, leaves, kolkata)
	statuses, _, err := m.EffectiveStatuses(context.Background(), students, records, date)
	require.NoError(t, err)

	assert.Equal(t, StatusPresent, statuses["s1"])
	assert.Equal(t, StatusHomePassUsed, statuses["s2"])
	// Audit callers distinguish unmarked from absent.
	_, marked := statuses["s3"]
	assert.False(t, marked)
}
