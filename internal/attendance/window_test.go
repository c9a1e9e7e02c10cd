package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var kolkata = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.UTC
	}
	return loc
}()

func at(y int, m time.Month, d, hour, min int) time.Time {
	return time.Date(y, m, d, hour, min, 0, 0, kolkata)
}

func TestResolveOperationalWindow(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		allowed  bool
		wantDate Date
	}{
		{name: "evening after open", now: at(2025, time.March, 10, 22, 30), allowed: true, wantDate: Date{2025, time.March, 10}},
		{name: "exactly at open", now: at(2025, time.March, 10, 21, 0), allowed: true, wantDate: Date{2025, time.March, 10}},
		{name: "after midnight attributes to prior day", now: at(2025, time.March, 11, 1, 30), allowed: true, wantDate: Date{2025, time.March, 10}},
		{name: "just before close", now: at(2025, time.March, 11, 3, 59), allowed: true, wantDate: Date{2025, time.March, 10}},
		{name: "exactly at close", now: at(2025, time.March, 11, 4, 0), allowed: false, wantDate: Date{2025, time.March, 11}},
		{name: "midday closed", now: at(2025, time.March, 11, 14, 0), allowed: false, wantDate: Date{2025, time.March, 11}},
		{name: "just before open", now: at(2025, time.March, 10, 20, 59), allowed: false, wantDate: Date{2025, time.March, 10}},
		{name: "month boundary", now: at(2025, time.April, 1, 0, 30), allowed: true, wantDate: Date{2025, time.March, 31}},
		{name: "year boundary", now: at(2026, time.January, 1, 2, 0), allowed: true, wantDate: Date{2025, time.December, 31}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			win := ResolveOperationalWindow(tt.now)
			assert.Equal(t, tt.allowed, win.Allowed)
			assert.Equal(t, tt.wantDate, win.AttendanceDate)
		})
	}
}

func TestResolveOperationalWindowClosedAllDaytimeHours(t *testing.T) {
	for hour := 4; hour < 21; hour++ {
		win := ResolveOperationalWindow(at(2025, time.June, 5, hour, 0))
		assert.False(t, win.Allowed, "hour %d should be closed", hour)
	}
}

func TestResolveOperationalWindowNextBounds(t *testing.T) {
	// Closed at midday: bounds must point at tonight's window.
	win := ResolveOperationalWindow(at(2025, time.June, 5, 12, 0))
	assert.False(t, win.Allowed)
	assert.Equal(t, at(2025, time.June, 5, 21, 0), win.Start)
	assert.Equal(t, at(2025, time.June, 6, 4, 0), win.End)

	// Open in the evening: bounds are the current window.
	win = ResolveOperationalWindow(at(2025, time.June, 5, 23, 0))
	assert.True(t, win.Allowed)
	assert.Equal(t, at(2025, time.June, 5, 21, 0), win.Start)
	assert.Equal(t, at(2025, time.June, 6, 4, 0), win.End)
}
