package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codebyshivareddiee/VJ-Hostels/internal/attendance"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/auth"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/monthly"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/report"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/roster"
)

// Marker is the marking surface the guard endpoints call.
type Marker interface {
	Window() attendance.Window
	MarkRoom(ctx context.Context, guardID string, in attendance.MarkRoomInput) (attendance.MarkResult, error)
	MarkFloor(ctx context.Context, guardID string, in attendance.MarkFloorInput) (attendance.FloorResult, error)
}

// RoomViewer resolves per-room effective statuses.
type RoomViewer interface {
	ResolveRoomView(ctx context.Context, floor int, date attendance.Date) ([]attendance.RoomView, error)
}

// FloorLister lists hostel floors.
type FloorLister interface {
	Floors(ctx context.Context) ([]roster.FloorInfo, error)
}

// HistoryLister queries past daily records.
type HistoryLister interface {
	History(ctx context.Context, f attendance.HistoryFilter) ([]attendance.Record, error)
}

// MonthlyGetter reads a single student-month aggregate.
type MonthlyGetter interface {
	Get(ctx context.Context, studentID string, year, month int) (*monthly.Aggregate, error)
}

// RebuildRunner recomputes a student-month aggregate from daily records.
type RebuildRunner interface {
	Rebuild(ctx context.Context, studentID string, year, month int) error
}

// Config carries the handler's auth and environment knobs.
type Config struct {
	JWTSigningKey string
	JWTIssuer     string
	AccessTTL     time.Duration
	Env           string
	Location      *time.Location
}

// Handler owns the HTTP routes.
type Handler struct {
	marker    Marker
	rooms     RoomViewer
	floors    FloorLister
	history   HistoryLister
	reports   *report.Service
	monthly   MonthlyGetter
	rebuilder RebuildRunner
	cfg       Config
	now       func() time.Time
}

// New creates a handler. now may be nil.
func New(marker Marker, rooms RoomViewer, floors FloorLister, history HistoryLister, reports *report.Service, monthlyStore MonthlyGetter, rebuilder RebuildRunner, cfg Config, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Handler{
		marker: marker, rooms: rooms, floors: floors, history: history,
		reports: reports, monthly: monthlyStore, rebuilder: rebuilder,
		cfg: cfg, now: now,
	}
}

// Register mounts all routes on r.
func (h *Handler) Register(r *gin.Engine) {
	guard := r.Group("/guard", auth.RequireRole(h.cfg.JWTSigningKey, h.cfg.JWTIssuer, auth.RoleGuard, auth.RoleAdmin))
	guard.GET("/floors", h.guardFloors)
	guard.GET("/floor/:floor/rooms", h.guardRooms)
	guard.POST("/mark-room", h.markRoom)
	guard.POST("/mark-floor", h.markFloor)
	guard.GET("/summary", h.guardSummary)
	guard.GET("/history", h.guardHistory)
	guard.GET("/window", h.guardWindow)

	admin := r.Group("/admin", auth.RequireRole(h.cfg.JWTSigningKey, h.cfg.JWTIssuer, auth.RoleAdmin))
	admin.GET("/attendance/kpi", h.adminKPI)
	admin.GET("/attendance/floors", h.adminFloors)
	admin.GET("/attendance/rooms", h.adminRooms)
	admin.GET("/attendance/timeseries", h.adminTimeSeries)
	admin.GET("/attendance/alerts", h.adminAlerts)
	admin.GET("/attendance/export", h.adminExport)
	admin.GET("/monthly/stats/:year/:month", h.adminMonthlyStats)
	admin.GET("/monthly/:studentId/:year/:month", h.adminMonthlyStudent)
	admin.POST("/monthly/:studentId/:year/:month/rebuild", h.adminMonthlyRebuild)

	student := r.Group("/student", auth.RequireRole(h.cfg.JWTSigningKey, h.cfg.JWTIssuer, auth.RoleStudent, auth.RoleAdmin))
	student.GET("/attendance/stats", h.studentStats)
	student.GET("/attendance/recent", h.studentRecent)

	if h.cfg.Env != "production" && h.cfg.Env != "prod" {
		r.POST("/dev/token", h.devToken)
	}
}

func (h *Handler) today() attendance.Date {
	return attendance.DateOf(h.now().In(h.cfg.Location))
}

// dateQuery reads an optional YYYY-MM-DD query param, defaulting to today.
func (h *Handler) dateQuery(c *gin.Context, key string) (attendance.Date, bool) {
	raw := c.Query(key)
	if raw == "" {
		return h.today(), true
	}
	d, err := attendance.ParseDate(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return attendance.Date{}, false
	}
	return d, true
}

func intQuery(c *gin.Context, key string) (*int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return nil, false
	}
	return &n, true
}

func intsQuery(c *gin.Context, key string) ([]int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

func intParam(c *gin.Context, key string) (int, bool) {
	n, err := strconv.Atoi(c.Param(key))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return 0, false
	}
	return n, true
}

// writeMarkError maps marking failures: invalid input is the caller's
// fault, a closed window is a state conflict with retry information.
func writeMarkError(c *gin.Context, err error) {
	var closed *attendance.WindowClosedError
	if errors.As(err, &closed) {
		c.JSON(http.StatusConflict, gin.H{
			"error":             closed.Error(),
			"next_window_start": closed.NextStart,
			"next_window_end":   closed.NextEnd,
		})
		return
	}
	if errors.Is(err, attendance.ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (h *Handler) guardFloors(c *gin.Context) {
	floors, err := h.floors.Floors(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"floors": floors})
}

func (h *Handler) guardRooms(c *gin.Context) {
	floor, ok := intParam(c, "floor")
	if !ok {
		return
	}
	date, ok := h.dateQuery(c, "date")
	if !ok {
		return
	}
	rooms, err := h.rooms.ResolveRoomView(c.Request.Context(), floor, date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "floor": floor, "rooms": rooms})
}

func (h *Handler) markRoom(c *gin.Context) {
	var in attendance.MarkRoomInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, _ := auth.ClaimsFrom(c)
	res, err := h.marker.MarkRoom(c.Request.Context(), claims.Subject, in)
	if err != nil {
		writeMarkError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) markFloor(c *gin.Context) {
	var in attendance.MarkFloorInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, _ := auth.ClaimsFrom(c)
	res, err := h.marker.MarkFloor(c.Request.Context(), claims.Subject, in)
	if err != nil {
		writeMarkError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) guardSummary(c *gin.Context) {
	date, ok := h.dateQuery(c, "date")
	if !ok {
		return
	}
	summary, err := h.reports.DailySummary(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) guardHistory(c *gin.Context) {
	end := h.today()
	start := end.AddDays(-6)
	if raw := c.Query("startDate"); raw != "" {
		d, err := attendance.ParseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		start = d
	}
	if raw := c.Query("endDate"); raw != "" {
		d, err := attendance.ParseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		end = d
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endDate before startDate"})
		return
	}
	floor, ok := intQuery(c, "floor")
	if !ok {
		return
	}
	records, err := h.history.History(c.Request.Context(), attendance.HistoryFilter{
		Start:      start,
		End:        end,
		Floor:      floor,
		RoomNumber: c.Query("roomNumber"),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"start": start, "end": end, "records": records})
}

func (h *Handler) guardWindow(c *gin.Context) {
	win := h.marker.Window()
	c.JSON(http.StatusOK, gin.H{
		"allowed":         win.Allowed,
		"attendance_date": win.AttendanceDate,
		"window_start":    win.Start,
		"window_end":      win.End,
	})
}

func (h *Handler) adminKPI(c *gin.Context) {
	date, ok := h.dateQuery(c, "date")
	if !ok {
		return
	}
	floors, ok := intsQuery(c, "floors")
	if !ok {
		return
	}
	kpi, err := h.reports.KPI(c.Request.Context(), date, floors)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, kpi)
}

func (h *Handler) adminFloors(c *gin.Context) {
	date, ok := h.dateQuery(c, "date")
	if !ok {
		return
	}
	rows, err := h.reports.FloorOverview(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "floors": rows})
}

func (h *Handler) adminRooms(c *gin.Context) {
	date, ok := h.dateQuery(c, "date")
	if !ok {
		return
	}
	floors, ok := intsQuery(c, "floors")
	if !ok {
		return
	}
	rows, err := h.reports.RoomOverview(c.Request.Context(), date, floors)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "rooms": rows})
}

func (h *Handler) adminTimeSeries(c *gin.Context) {
	date, ok := h.dateQuery(c, "date")
	if !ok {
		return
	}
	days := 7
	if v, ok := intQuery(c, "days"); !ok {
		return
	} else if v != nil {
		days = *v
	}
	points, err := h.reports.TimeSeries(c.Request.Context(), date, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": points})
}

func (h *Handler) adminAlerts(c *gin.Context) {
	date, ok := h.dateQuery(c, "date")
	if !ok {
		return
	}
	alerts, err := h.reports.Alerts(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (h *Handler) adminExport(c *gin.Context) {
	date, ok := h.dateQuery(c, "date")
	if !ok {
		return
	}
	if c.DefaultQuery("format", "csv") == "json" {
		rows, err := h.reports.Export(c.Request.Context(), date)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"date": date, "rows": rows})
		return
	}
	data, err := h.reports.ExportCSV(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="attendance-`+date.String()+`.csv"`)
	c.Data(http.StatusOK, "text/csv", data)
}

func (h *Handler) adminMonthlyStats(c *gin.Context) {
	year, ok := intParam(c, "year")
	if !ok {
		return
	}
	month, ok := intParam(c, "month")
	if !ok {
		return
	}
	stats, err := h.reports.MonthlyStats(c.Request.Context(), year, month)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) adminMonthlyStudent(c *gin.Context) {
	year, ok := intParam(c, "year")
	if !ok {
		return
	}
	month, ok := intParam(c, "month")
	if !ok {
		return
	}
	agg, err := h.monthly.Get(c.Request.Context(), c.Param("studentId"), year, month)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if agg == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no aggregate for that student and month"})
		return
	}
	c.JSON(http.StatusOK, agg)
}

func (h *Handler) adminMonthlyRebuild(c *gin.Context) {
	year, ok := intParam(c, "year")
	if !ok {
		return
	}
	month, ok := intParam(c, "month")
	if !ok {
		return
	}
	studentID := c.Param("studentId")
	if err := h.rebuilder.Rebuild(c.Request.Context(), studentID, year, month); err != nil {
		log.Printf("manual rebuild failed for student %s %d-%02d: %v", studentID, year, month, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rebuilt", "student_id": studentID, "year": year, "month": month})
}

func (h *Handler) studentStats(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	to := h.today()
	from := to.AddDays(-29)
	if raw := c.Query("from"); raw != "" {
		d, err := attendance.ParseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		from = d
	}
	if raw := c.Query("to"); raw != "" {
		d, err := attendance.ParseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		to = d
	}
	stats, err := h.reports.StudentStats(c.Request.Context(), claims.Subject, from, to)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) studentRecent(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	limit := 20
	if v, ok := intQuery(c, "limit"); !ok {
		return
	} else if v != nil {
		limit = *v
	}
	days, err := h.reports.RecentForStudent(c.Request.Context(), claims.Subject, limit, h.today())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days})
}

// devToken mints a token for local testing. Never registered in production.
func (h *Handler) devToken(c *gin.Context) {
	var req struct {
		Subject string `json:"subject" binding:"required"`
		Name    string `json:"name"`
		Role    string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tok, err := auth.Issue(req.Subject, req.Name, req.Role, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"access_token": tok.Value, "expires_at": tok.ExpiresAt.Unix()})
}
