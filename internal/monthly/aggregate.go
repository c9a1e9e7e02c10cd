package monthly

// Code is the one-character per-day marker stored in the month map.
type Code string

const (
	CodePresent  Code = "P"
	CodeAbsent   Code = "A"
	CodeHomePass Code = "H"
)

// Summary is the derived count view over a month's day map. It is never
// set directly; Recount is the only writer.
type Summary struct {
	Present  int `json:"present"`
	Absent   int `json:"absent"`
	HomePass int `json:"home_pass"`
}

// Aggregate is one student-month roll-up: a sparse day-of-month map plus
// its derived summary.
type Aggregate struct {
	StudentID string       `json:"student_id"`
	Year      int          `json:"year"`
	Month     int          `json:"month"`
	Days      map[int]Code `json:"days"`
	Summary   Summary      `json:"summary"`
}

// Recount rebuilds the summary by traversing the full day map. A full
// recount on every mutation keeps the summary from drifting even if a
// previous partial update left it out of sync.
func (a *Aggregate) Recount() {
	a.Summary = Summary{}
	for _, code := range a.Days {
		switch code {
		case CodePresent:
			a.Summary.Present++
		case CodeAbsent:
			a.Summary.Absent++
		case CodeHomePass:
			a.Summary.HomePass++
		}
	}
}
