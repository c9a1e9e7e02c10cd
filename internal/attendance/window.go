package attendance

import "time"

// Marking hours: the nightly window opens at 21:00 and closes at 04:00 the
// next morning. Everything in between is attributed to the day the window
// opened on.
const (
	windowOpenHour  = 21
	windowCloseHour = 4
)

// Window describes the operational marking window relative to some instant.
// When Allowed is false, Start and End carry the bounds of the next window
// so callers can tell users when marking reopens.
type Window struct {
	AttendanceDate Date      `json:"attendance_date"`
	Allowed        bool      `json:"allowed"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
}

// ResolveOperationalWindow computes, from wall-clock time alone, whether
// attendance marking is permitted right now and which calendar date a mark
// would be attributed to. It consults no persisted state; pass a fixed now
// in tests.
func ResolveOperationalWindow(now time.Time) Window {
	loc := now.Location()
	today := DateOf(now)

	switch hour := now.Hour(); {
	case hour >= windowOpenHour:
		// Window opened this evening, runs into tomorrow morning.
		return Window{
			AttendanceDate: today,
			Allowed:        true,
			Start:          today.Time(loc).Add(windowOpenHour * time.Hour),
			End:            today.AddDays(1).Time(loc).Add(windowCloseHour * time.Hour),
		}
	case hour < windowCloseHour:
		// Still inside the window that opened yesterday evening.
		yesterday := today.AddDays(-1)
		return Window{
			AttendanceDate: yesterday,
			Allowed:        true,
			Start:          yesterday.Time(loc).Add(windowOpenHour * time.Hour),
			End:            today.Time(loc).Add(windowCloseHour * time.Hour),
		}
	default:
		// Daytime: closed. Report tonight's window for display.
		return Window{
			AttendanceDate: today,
			Allowed:        false,
			Start:          today.Time(loc).Add(windowOpenHour * time.Hour),
			End:            today.AddDays(1).Time(loc).Add(windowCloseHour * time.Hour),
		}
	}
}
