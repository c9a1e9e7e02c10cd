package attendance

import "strings"

// Status is the per-day state a guard can record for a student.
type Status string

const (
	StatusPresent          Status = "present"
	StatusAbsent           Status = "absent"
	StatusHomePassApproved Status = "home_pass_approved"
	StatusHomePassUsed     Status = "home_pass_used"
	StatusLatePassApproved Status = "late_pass_approved"
	StatusLatePassUsed     Status = "late_pass_used"
)

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusHomePassApproved, StatusHomePassUsed,
		StatusLatePassApproved, StatusLatePassUsed:
		return true
	}
	return false
}

// MonthlyCode collapses a status to the one-character code stored in the
// monthly day map: P present, A absent, H any home/late pass.
func (s Status) MonthlyCode() string {
	switch {
	case s == StatusPresent:
		return "P"
	case s == StatusAbsent:
		return "A"
	case strings.Contains(string(s), "home_pass"), strings.Contains(string(s), "late_pass"):
		return "H"
	}
	return "A"
}
