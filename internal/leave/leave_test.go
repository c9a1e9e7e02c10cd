package leave

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDerivedStatus(t *testing.T) {
	out := time.Date(2025, time.March, 9, 18, 0, 0, 0, time.UTC)
	in := time.Date(2025, time.March, 12, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		iv   Interval
		want string
	}{
		{name: "home approved not departed", iv: Interval{Type: TypeHome, Status: "approved"}, want: "home_pass_approved"},
		{name: "home marked out", iv: Interval{Type: TypeHome, Status: "out"}, want: "home_pass_used"},
		{name: "home departed by actual_out", iv: Interval{Type: TypeHome, Status: "approved", ActualOut: &out}, want: "home_pass_used"},
		{name: "home returned", iv: Interval{Type: TypeHome, Status: "approved", ActualOut: &out, ActualIn: &in}, want: "home_pass_approved"},
		{name: "late approved", iv: Interval{Type: TypeLate, Status: "approved"}, want: "late_pass_approved"},
		{name: "late departed", iv: Interval{Type: TypeLate, Status: "out"}, want: "late_pass_used"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.iv.DerivedStatus())
		})
	}
}

func TestEffectiveTimesPreferActuals(t *testing.T) {
	sched := time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)
	actual := sched.Add(2 * time.Hour)

	iv := Interval{ScheduledOut: sched, ScheduledIn: sched.Add(48 * time.Hour)}
	assert.Equal(t, sched, iv.EffectiveOut())

	iv.ActualOut = &actual
	assert.Equal(t, actual, iv.EffectiveOut())
	assert.Equal(t, sched.Add(48*time.Hour), iv.EffectiveIn())
}

func TestActiveDuringBoundaries(t *testing.T) {
	dayStart := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	tests := []struct {
		name string
		out  time.Time
		in   time.Time
		want bool
	}{
		{name: "spans whole day", out: dayStart.Add(-24 * time.Hour), in: dayEnd.Add(24 * time.Hour), want: true},
		{name: "returns mid day", out: dayStart.Add(-24 * time.Hour), in: dayStart.Add(6 * time.Hour), want: true},
		{name: "leaves mid day", out: dayStart.Add(20 * time.Hour), in: dayEnd.Add(24 * time.Hour), want: true},
		{name: "back exactly at day start", out: dayStart.Add(-24 * time.Hour), in: dayStart, want: false},
		{name: "out exactly at day end", out: dayEnd, in: dayEnd.Add(24 * time.Hour), want: false},
		{name: "ends before day", out: dayStart.Add(-48 * time.Hour), in: dayStart.Add(-1 * time.Hour), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv := Interval{ScheduledOut: tt.out, ScheduledIn: tt.in}
			assert.Equal(t, tt.want, iv.ActiveDuring(dayStart, dayEnd))
		})
	}

	// An observed return overrides the schedule.
	backEarly := dayStart
	iv := Interval{ScheduledOut: dayStart.Add(-24 * time.Hour), ScheduledIn: dayStart.Add(6 * time.Hour), ActualIn: &backEarly}
	assert.False(t, iv.ActiveDuring(dayStart, dayEnd))
}
