package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebyshivareddiee/VJ-Hostels/internal/attendance"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/auth"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/monthly"
	"github.com/codebyshivareddiee/VJ-Hostels/internal/roster"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "hostel-test"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeMarker struct {
	win       attendance.Window
	err       error
	lastGuard string
	lastRoom  attendance.MarkRoomInput
}

func (f *fakeMarker) Window() attendance.Window { return f.win }

func (f *fakeMarker) MarkRoom(ctx context.Context, guardID string, in attendance.MarkRoomInput) (attendance.MarkResult, error) {
	f.lastGuard = guardID
	f.lastRoom = in
	if f.err != nil {
		return attendance.MarkResult{}, f.err
	}
	return attendance.MarkResult{Date: f.win.AttendanceDate, Success: len(in.Students)}, nil
}

func (f *fakeMarker) MarkFloor(ctx context.Context, guardID string, in attendance.MarkFloorInput) (attendance.FloorResult, error) {
	f.lastGuard = guardID
	if f.err != nil {
		return attendance.FloorResult{}, f.err
	}
	return attendance.FloorResult{Date: f.win.AttendanceDate}, nil
}

type fakeRoomViewer struct {
	views []attendance.RoomView
}

func (f *fakeRoomViewer) ResolveRoomView(ctx context.Context, floor int, date attendance.Date) ([]attendance.RoomView, error) {
	return f.views, nil
}

type fakeFloorLister struct {
	floors []roster.FloorInfo
}

func (f *fakeFloorLister) Floors(ctx context.Context) ([]roster.FloorInfo, error) {
	return f.floors, nil
}

type fakeHistoryLister struct {
	last attendance.HistoryFilter
}

func (f *fakeHistoryLister) History(ctx context.Context, filter attendance.HistoryFilter) ([]attendance.Record, error) {
	f.last = filter
	return nil, nil
}

type fakeMonthlyGetter struct {
	agg *monthly.Aggregate
}

func (f *fakeMonthlyGetter) Get(ctx context.Context, studentID string, year, month int) (*monthly.Aggregate, error) {
	return f.agg, nil
}

type fakeRebuilder struct {
	calls int
}

func (f *fakeRebuilder) Rebuild(ctx context.Context, studentID string, year, month int) error {
	f.calls++
	return nil
}

func openWindow() attendance.Window {
	return attendance.Window{
		AttendanceDate: attendance.Date{Year: 2025, Month: time.March, Day: 10},
		Allowed:        true,
	}
}

func newTestRouter(marker Marker, env string) (*gin.Engine, *fakeRebuilder) {
	rebuilder := &fakeRebuilder{}
	h := New(marker, &fakeRoomViewer{}, &fakeFloorLister{}, &fakeHistoryLister{}, nil, &fakeMonthlyGetter{}, rebuilder, Config{
		JWTSigningKey: testKey,
		JWTIssuer:     testIssuer,
		AccessTTL:     time.Minute,
		Env:           env,
		Location:      time.UTC,
	}, nil)
	r := gin.New()
	h.Register(r)
	return r, rebuilder
}

func bearer(t *testing.T, subject, role string) string {
	t.Helper()
	tok, err := auth.Issue(subject, "", role, testIssuer, testKey, time.Minute)
	require.NoError(t, err)
	return "Bearer " + tok.Value
}

func doRequest(r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGuardRoutesRequireToken(t *testing.T) {
	r, _ := newTestRouter(&fakeMarker{win: openWindow()}, "test")
	w := doRequest(r, http.MethodGet, "/guard/window", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGuardRoutesRejectStudentRole(t *testing.T) {
	r, _ := newTestRouter(&fakeMarker{win: openWindow()}, "test")
	w := doRequest(r, http.MethodGet, "/guard/window", bearer(t, "s1", auth.RoleStudent), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSecurityRoleAliasAccepted(t *testing.T) {
	r, _ := newTestRouter(&fakeMarker{win: openWindow()}, "test")
	w := doRequest(r, http.MethodGet, "/guard/window", bearer(t, "g1", "security"), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGuardWindowPayload(t *testing.T) {
	r, _ := newTestRouter(&fakeMarker{win: openWindow()}, "test")
	w := doRequest(r, http.MethodGet, "/guard/window", bearer(t, "g1", auth.RoleGuard), "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Allowed        bool   `json:"allowed"`
		AttendanceDate string `json:"attendance_date"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Allowed)
	assert.Equal(t, "2025-03-10", body.AttendanceDate)
}

func TestMarkRoomUsesTokenSubjectAsGuard(t *testing.T) {
	marker := &fakeMarker{win: openWindow()}
	r, _ := newTestRouter(marker, "test")

	payload := `{"room_number":"101","floor":1,"students":[{"student_id":"s1","roll_number":"R1","name":"Asha","status":"present"}]}`
	w := doRequest(r, http.MethodPost, "/guard/mark-room", bearer(t, "guard-7", auth.RoleGuard), payload)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "guard-7", marker.lastGuard)
	assert.Equal(t, "101", marker.lastRoom.RoomNumber)
}

func TestMarkRoomWindowClosedConflict(t *testing.T) {
	marker := &fakeMarker{
		win: attendance.Window{Allowed: false},
		err: &attendance.WindowClosedError{
			Now:       time.Date(2025, time.March, 10, 14, 0, 0, 0, time.UTC),
			NextStart: time.Date(2025, time.March, 10, 21, 0, 0, 0, time.UTC),
			NextEnd:   time.Date(2025, time.March, 11, 4, 0, 0, 0, time.UTC),
		},
	}
	r, _ := newTestRouter(marker, "test")

	payload := `{"room_number":"101","students":[{"student_id":"s1","roll_number":"R1","name":"Asha","status":"present"}]}`
	w := doRequest(r, http.MethodPost, "/guard/mark-room", bearer(t, "g1", auth.RoleGuard), payload)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "next_window_start")
}

func TestMarkRoomRejectsMalformedBody(t *testing.T) {
	r, _ := newTestRouter(&fakeMarker{win: openWindow()}, "test")
	w := doRequest(r, http.MethodPost, "/guard/mark-room", bearer(t, "g1", auth.RoleGuard), `{"floor":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRoutesRejectGuardRole(t *testing.T) {
	r, _ := newTestRouter(&fakeMarker{win: openWindow()}, "test")
	w := doRequest(r, http.MethodPost, "/admin/monthly/s1/2025/3/rebuild", bearer(t, "g1", auth.RoleGuard), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminMonthlyRebuild(t *testing.T) {
	r, rebuilder := newTestRouter(&fakeMarker{win: openWindow()}, "test")
	w := doRequest(r, http.MethodPost, "/admin/monthly/s1/2025/3/rebuild", bearer(t, "a1", auth.RoleAdmin), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, rebuilder.calls)
}

func TestAdminMonthlyStudentNotFound(t *testing.T) {
	r, _ := newTestRouter(&fakeMarker{win: openWindow()}, "test")
	w := doRequest(r, http.MethodGet, "/admin/monthly/s1/2025/3", bearer(t, "a1", auth.RoleAdmin), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDevTokenOnlyOutsideProduction(t *testing.T) {
	r, _ := newTestRouter(&fakeMarker{win: openWindow()}, "test")
	w := doRequest(r, http.MethodPost, "/dev/token", "", `{"subject":"g1","role":"guard"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "access_token")

	prod, _ := newTestRouter(&fakeMarker{win: openWindow()}, "production")
	w = doRequest(prod, http.MethodPost, "/dev/token", "", `{"subject":"g1","role":"guard"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
