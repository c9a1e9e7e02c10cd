package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/codebyshivareddiee/VJ-Hostels/internal/attendance"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/monthly"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/roster"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/store"
)

// RosterDirectory is the roster surface the reporting layer reads.
type RosterDirectory interface {
	ActiveStudents(ctx context.Context) ([]roster.Student, error)
	Floors(ctx context.Context) ([]roster.FloorInfo, error)
	Rooms(ctx context.Context, floors []int) ([]roster.Room, error)
	CountActiveStudents(ctx context.Context, floors []int) (int, error)
	CountRooms(ctx context.Context, floors []int) (int, error)
	StudentsPerFloor(ctx context.Context) (map[int]int, error)
}

// RecordsReader is the daily-store surface the reporting layer reads.
type RecordsReader interface {
	ListByDate(ctx context.Context, date attendance.Date, floors []int) ([]attendance.Record, error)
	StatusCounts(ctx context.Context, date attendance.Date, floors []int) (map[attendance.Status]int, error)
	DistinctRooms(ctx context.Context, date attendance.Date, floors []int) ([]string, error)
	MarkedPerFloor(ctx context.Context, date attendance.Date) (map[int]int, error)
}

// MonthlyReader is the aggregate-store surface the reporting layer reads.
type MonthlyReader interface {
	SumForMonth(ctx context.Context, year, month int) (monthly.Summary, int, error)
	ListForStudent(ctx context.Context, studentID string, fromYear, fromMonth, toYear, toMonth int) ([]monthly.Aggregate, error)
	Get(ctx context.Context, studentID string, year, month int) (*monthly.Aggregate, error)
}

// Service builds every read-side view from the same primitives as the
// room-view merge. All methods are read-only.
type Service struct {
	roster   RosterDirectory
	records  RecordsReader
	monthly  MonthlyReader
	merger   *attendance.Merger
	cache    *store.Redis
	cacheTTL time.Duration
}

// NewService creates the reporting service. cache may be nil.
func NewService(rosterDir RosterDirectory, records RecordsReader, monthlyStore MonthlyReader, merger *attendance.Merger, cache *store.Redis, cacheTTL time.Duration) *Service {
	return &Service{roster: rosterDir, records: records, monthly: monthlyStore, merger: merger, cache: cache, cacheTTL: cacheTTL}
}

// KPIData is the admin dashboard headline block.
type KPIData struct {
	Date              string `json:"date"`
	TotalStudents     int    `json:"total_students"`
	PresentCount      int    `json:"present_count"`
	AbsentCount       int    `json:"absent_count"`
	HomePassUsedCount int    `json:"home_pass_used_count"`
	RoomsCompleted    int    `json:"rooms_completed"`
	TotalRooms        int    `json:"total_rooms"`
}

// KPI returns the headline counts for a date, optionally scoped to a set of
// floors. Responses are cached briefly; the dashboard polls.
func (s *Service) KPI(ctx context.Context, date attendance.Date, floors []int) (KPIData, error) {
	key := kpiCacheKey(date, floors)
	var cached KPIData
	if s.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	total, err := s.roster.CountActiveStudents(ctx, floors)
	if err != nil {
		return KPIData{}, err
	}
	counts, err := s.records.StatusCounts(ctx, date, floors)
	if err != nil {
		return KPIData{}, err
	}
	completed, err := s.records.DistinctRooms(ctx, date, floors)
	if err != nil {
		return KPIData{}, err
	}
	totalRooms, err := s.roster.CountRooms(ctx, floors)
	if err != nil {
		return KPIData{}, err
	}

	out := KPIData{
		Date:              date.String(),
		TotalStudents:     total,
		PresentCount:      counts[attendance.StatusPresent],
		AbsentCount:       counts[attendance.StatusAbsent],
		HomePassUsedCount: counts[attendance.StatusHomePassUsed],
		RoomsCompleted:    len(completed),
		TotalRooms:        totalRooms,
	}
	s.cache.SetJSON(ctx, key, out, s.cacheTTL)
	return out, nil
}

func kpiCacheKey(date attendance.Date, floors []int) string {
	scope := "all"
	if len(floors) > 0 {
		sorted := make([]int, len(floors))
		copy(sorted, floors)
		sort.Ints(sorted)
		parts := make([]string, len(sorted))
		for i, f := range sorted {
			parts[i] = strconv.Itoa(f)
		}
		scope = strings.Join(parts, ",")
	}
	return "kpi:" + date.String() + ":" + scope
}

// FloorProgress is one floor's marking completion for the guard summary.
type FloorProgress struct {
	Floor      int `json:"floor"`
	Total      int `json:"total"`
	Marked     int `json:"marked"`
	Percentage int `json:"percentage"`
}

// DailySummaryData is the guard-facing daily summary.
type DailySummaryData struct {
	Date                 string                    `json:"date"`
	TotalStudents        int                       `json:"total_students"`
	TotalMarked          int                       `json:"total_marked"`
	CompletionPercentage int                       `json:"completion_percentage"`
	StatusCounts         map[attendance.Status]int `json:"status_counts"`
	FloorProgress        []FloorProgress           `json:"floor_progress"`
}

// DailySummary reports marking progress for the whole hostel on a date.
func (s *Service) DailySummary(ctx context.Context, date attendance.Date) (DailySummaryData, error) {
	total, err := s.roster.CountActiveStudents(ctx, nil)
	if err != nil {
		return DailySummaryData{}, err
	}
	counts, err := s.records.StatusCounts(ctx, date, nil)
	if err != nil {
		return DailySummaryData{}, err
	}
	perFloorTotals, err := s.roster.StudentsPerFloor(ctx)
	if err != nil {
		return DailySummaryData{}, err
	}
	perFloorMarked, err := s.records.MarkedPerFloor(ctx, date)
	if err != nil {
		return DailySummaryData{}, err
	}

	totalMarked := 0
	for _, n := range counts {
		totalMarked += n
	}

	out := DailySummaryData{
		Date:                 date.String(),
		TotalStudents:        total,
		TotalMarked:          totalMarked,
		CompletionPercentage: percent(totalMarked, total),
		StatusCounts:         counts,
	}
	for floor, floorTotal := range perFloorTotals {
		out.FloorProgress = append(out.FloorProgress, FloorProgress{
			Floor:      floor,
			Total:      floorTotal,
			Marked:     perFloorMarked[floor],
			Percentage: percent(perFloorMarked[floor], floorTotal),
		})
	}
	sortFloorProgress(out.FloorProgress)
	return out, nil
}

// FloorOverviewRow is one floor's completion for the admin dashboard.
type FloorOverviewRow struct {
	Floor                int `json:"floor"`
	TotalRooms           int `json:"total_rooms"`
	RoomsCompleted       int `json:"rooms_completed"`
	CompletionPercentage int `json:"completion_percentage"`
	TotalStudents        int `json:"total_students"`
	Present              int `json:"present"`
}

// FloorOverview returns per-floor completion and presence for a date.
func (s *Service) FloorOverview(ctx context.Context, date attendance.Date) ([]FloorOverviewRow, error) {
	floors, err := s.roster.Floors(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.records.ListByDate(ctx, date, nil)
	if err != nil {
		return nil, err
	}

	markedRooms := map[int]map[string]bool{}
	presentPerFloor := map[int]int{}
	for _, rec := range records {
		if markedRooms[rec.Floor] == nil {
			markedRooms[rec.Floor] = map[string]bool{}
		}
		markedRooms[rec.Floor][rec.RoomNumber] = true
		if rec.Status == attendance.StatusPresent {
			presentPerFloor[rec.Floor]++
		}
	}

	out := make([]FloorOverviewRow, 0, len(floors))
	for _, f := range floors {
		completed := len(markedRooms[f.Floor])
		out = append(out, FloorOverviewRow{
			Floor:                f.Floor,
			TotalRooms:           f.RoomCount,
			RoomsCompleted:       completed,
			CompletionPercentage: percent(completed, f.RoomCount),
			TotalStudents:        f.TotalOccupants,
			Present:              presentPerFloor[f.Floor],
		})
	}
	return out, nil
}

// RoomOverviewRow is one room's per-status counts for the admin dashboard.
type RoomOverviewRow struct {
	RoomNumber  string     `json:"room_number"`
	Floor       int        `json:"floor"`
	Total       int        `json:"total"`
	Present     int        `json:"present"`
	Absent      int        `json:"absent"`
	HomePass    int        `json:"home_pass"`
	Completed   bool       `json:"completed"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// RoomOverview returns per-room counts for a date, optionally scoped to floors.
func (s *Service) RoomOverview(ctx context.Context, date attendance.Date, floors []int) ([]RoomOverviewRow, error) {
	rooms, err := s.roster.Rooms(ctx, floors)
	if err != nil {
		return nil, err
	}
	records, err := s.records.ListByDate(ctx, date, floors)
	if err != nil {
		return nil, err
	}

	byRoom := map[string][]attendance.Record{}
	for _, rec := range records {
		byRoom[rec.RoomNumber] = append(byRoom[rec.RoomNumber], rec)
	}

	out := make([]RoomOverviewRow, 0, len(rooms))
	for _, room := range rooms {
		row := RoomOverviewRow{
			RoomNumber: room.RoomNumber,
			Floor:      room.Floor,
			Total:      len(room.Occupants),
		}
		for _, rec := range byRoom[room.RoomNumber] {
			row.Completed = true
			switch {
			case rec.Status == attendance.StatusPresent:
				row.Present++
			case rec.Status == attendance.StatusAbsent:
				row.Absent++
			case strings.Contains(string(rec.Status), "pass"):
				row.HomePass++
			}
			if row.LastUpdated == nil || rec.MarkedAt.After(*row.LastUpdated) {
				at := rec.MarkedAt
				row.LastUpdated = &at
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// TimeSeriesPoint is one day's counts for trend lines.
type TimeSeriesPoint struct {
	Date     string `json:"date"`
	Present  int    `json:"present"`
	Absent   int    `json:"absent"`
	HomePass int    `json:"home_pass"`
}

// TimeSeries returns counts for each of the `days` days ending at endDate.
// Days with no records report zeroes, never nulls.
func (s *Service) TimeSeries(ctx context.Context, endDate attendance.Date, days int) ([]TimeSeriesPoint, error) {
	if days <= 0 {
		days = 7
	}
	out := make([]TimeSeriesPoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := endDate.AddDays(-i)
		counts, err := s.records.StatusCounts(ctx, day, nil)
		if err != nil {
			return nil, err
		}
		point := TimeSeriesPoint{Date: day.String()}
		for st, n := range counts {
			switch {
			case st == attendance.StatusPresent:
				point.Present += n
			case st == attendance.StatusAbsent:
				point.Absent += n
			case strings.Contains(string(st), "pass"):
				point.HomePass += n
			}
		}
		out = append(out, point)
	}
	return out, nil
}

// Export-time status for students with neither a record nor an active
// leave. Exports are for audit, so unmarked is reported as itself rather
// than the live view's fail-closed absent.
const StatusUnmarked = "unmarked"

// ExportRow is one student's line in the daily export.
type ExportRow struct {
	Date        string `json:"date"`
	Floor       int    `json:"floor"`
	RoomNumber  string `json:"room_number"`
	StudentName string `json:"student_name"`
	RollNumber  string `json:"roll_number"`
	Status      string `json:"status"`
	MarkedAt    string `json:"marked_at,omitempty"`
	MarkedBy    string `json:"marked_by,omitempty"`
}

// Export joins the full roster against effective status for one date.
func (s *Service) Export(ctx context.Context, date attendance.Date) ([]ExportRow, error) {
	students, err := s.roster.ActiveStudents(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.records.ListByDate(ctx, date, nil)
	if err != nil {
		return nil, err
	}
	rooms, err := s.roster.Rooms(ctx, nil)
	if err != nil {
		return nil, err
	}
	statuses, _, err := s.merger.EffectiveStatuses(ctx, students, records, date)
	if err != nil {
		return nil, err
	}

	floorOf := make(map[string]int, len(rooms))
	for _, room := range rooms {
		floorOf[room.RoomNumber] = room.Floor
	}
	byStudent := make(map[string]attendance.Record, len(records))
	for _, rec := range records {
		byStudent[rec.StudentID] = rec
	}

	out := make([]ExportRow, 0, len(students))
	for _, st := range students {
		row := ExportRow{
			Date:        date.String(),
			StudentName: st.Name,
			RollNumber:  st.RollNumber,
			Status:      StatusUnmarked,
		}
		if st.RoomNumber != nil {
			row.RoomNumber = *st.RoomNumber
			row.Floor = floorOf[*st.RoomNumber]
		}
		if status, ok := statuses[st.ID]; ok {
			row.Status = string(status)
		}
		if rec, ok := byStudent[st.ID]; ok {
			row.RoomNumber = rec.RoomNumber
			row.Floor = rec.Floor
			row.MarkedAt = rec.MarkedAt.UTC().Format(time.RFC3339)
			row.MarkedBy = rec.MarkedBy
		}
		out = append(out, row)
	}
	return out, nil
}

// ExportCSV renders the export as CSV with a header row.
func (s *Service) ExportCSV(ctx context.Context, date attendance.Date) ([]byte, error) {
	rows, err := s.Export(ctx, date)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Date", "Floor", "Room", "Student Name", "Roll Number", "Status", "Marked At", "Marked By"})
	for _, row := range rows {
		_ = w.Write([]string{
			row.Date, strconv.Itoa(row.Floor), row.RoomNumber, row.StudentName,
			row.RollNumber, row.Status, row.MarkedAt, row.MarkedBy,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MonthlyStatsData is the admin month roll-up across all students.
type MonthlyStatsData struct {
	Year          int `json:"year"`
	Month         int `json:"month"`
	TotalPresent  int `json:"total_present"`
	TotalAbsent   int `json:"total_absent"`
	TotalHomePass int `json:"total_home_pass"`
	StudentCount  int `json:"student_count"`
}

// MonthlyStats sums stored aggregate summaries for a month. It never
// recounts day maps; the summary invariant is trusted.
func (s *Service) MonthlyStats(ctx context.Context, year, month int) (MonthlyStatsData, error) {
	if month < 1 || month > 12 {
		return MonthlyStatsData{}, fmt.Errorf("invalid month %d", month)
	}
	sum, students, err := s.monthly.SumForMonth(ctx, year, month)
	if err != nil {
		return MonthlyStatsData{}, err
	}
	return MonthlyStatsData{
		Year:          year,
		Month:         month,
		TotalPresent:  sum.Present,
		TotalAbsent:   sum.Absent,
		TotalHomePass: sum.HomePass,
		StudentCount:  students,
	}, nil
}

// DayStatus is one calendar day in a student's series. Status is the
// monthly code, or empty when the day was never marked.
type DayStatus struct {
	Date   string `json:"date"`
	Status string `json:"status"`
}

// StudentStatsData is the student-facing range view.
type StudentStatsData struct {
	From           string      `json:"from"`
	To             string      `json:"to"`
	Present        int         `json:"present"`
	Absent         int         `json:"absent"`
	HomePass       int         `json:"home_pass"`
	TotalMarked    int         `json:"total_marked"`
	AttendanceRate int         `json:"attendance_rate"`
	Series         []DayStatus `json:"series"`
}

// StudentStats sums monthly summaries across the months the range spans
// and replays each month's day map into a per-day series covering every
// day in [from, to].
func (s *Service) StudentStats(ctx context.Context, studentID string, from, to attendance.Date) (StudentStatsData, error) {
	if to.Before(from) {
		return StudentStatsData{}, fmt.Errorf("invalid range: %s after %s", from, to)
	}
	aggs, err := s.monthly.ListForStudent(ctx, studentID, from.Year, int(from.Month), to.Year, int(to.Month))
	if err != nil {
		return StudentStatsData{}, err
	}

	out := StudentStatsData{From: from.String(), To: to.String()}
	byDate := map[string]string{}
	for _, agg := range aggs {
		out.Present += agg.Summary.Present
		out.Absent += agg.Summary.Absent
		out.HomePass += agg.Summary.HomePass
		for day, code := range agg.Days {
			d := attendance.Date{Year: agg.Year, Month: time.Month(agg.Month), Day: day}
			byDate[d.String()] = string(code)
		}
	}
	out.TotalMarked = out.Present + out.Absent + out.HomePass
	if out.TotalMarked > 0 {
		out.AttendanceRate = percent(out.Present, out.TotalMarked)
	}

	for d := from; !to.Before(d); d = d.AddDays(1) {
		out.Series = append(out.Series, DayStatus{Date: d.String(), Status: byDate[d.String()]})
	}
	return out, nil
}

// RecentForStudent returns the student's most recent marked days, newest
// first, replayed from the monthly day maps.
func (s *Service) RecentForStudent(ctx context.Context, studentID string, limit int, today attendance.Date) ([]DayStatus, error) {
	if limit <= 0 {
		limit = 20
	}
	// Two months is always enough for a 31-day lookback.
	fromMonth := today.AddDays(-62)
	aggs, err := s.monthly.ListForStudent(ctx, studentID, fromMonth.Year, int(fromMonth.Month), today.Year, int(today.Month))
	if err != nil {
		return nil, err
	}
	byDate := map[string]string{}
	for _, agg := range aggs {
		for day, code := range agg.Days {
			d := attendance.Date{Year: agg.Year, Month: time.Month(agg.Month), Day: day}
			byDate[d.String()] = string(code)
		}
	}
	var out []DayStatus
	for d := today; len(out) < limit && !d.Before(fromMonth); d = d.AddDays(-1) {
		if code, ok := byDate[d.String()]; ok {
			out = append(out, DayStatus{Date: d.String(), Status: code})
		}
	}
	return out, nil
}

// Alert is an operational warning for the admin dashboard.
type Alert struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// Alerts flags low room completion for a date.
func (s *Service) Alerts(ctx context.Context, date attendance.Date) ([]Alert, error) {
	totalRooms, err := s.roster.CountRooms(ctx, nil)
	if err != nil {
		return nil, err
	}
	completed, err := s.records.DistinctRooms(ctx, date, nil)
	if err != nil {
		return nil, err
	}
	alerts := []Alert{}
	if totalRooms > 0 {
		rate := float64(len(completed)) / float64(totalRooms) * 100
		if rate < 90 {
			alerts = append(alerts, Alert{
				Title:     "Low Attendance Completion",
				Message:   fmt.Sprintf("Only %.1f%% of rooms have completed attendance", rate),
				Severity:  "high",
				Timestamp: time.Now().UTC(),
			})
		}
	}
	return alerts, nil
}

func percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(float64(part)/float64(whole)*100 + 0.5)
}

func sortFloorProgress(rows []FloorProgress) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Floor < rows[j].Floor })
}
