package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"phcportal/internal/middleware"
	"phcportal/internal/policy"
	"phcportal/internal/service"
	"phcportal/pkg/response"

	"github.com/gin-gonic/gin"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := RegisterValidators(); err != nil {
		fmt.Fprintln(os.Stderr, "register validators:", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrInvalidCode, http.StatusBadRequest},
		{service.ErrBadCredentials, http.StatusUnauthorized},
		{service.ErrAccountInactive, http.StatusForbidden},
		{service.ErrStaffNotFound, http.StatusNotFound},
		{service.ErrAlreadyClockedIn, http.StatusConflict},
		{&service.Error{Kind: service.ErrUpstream, Message: "cPanel down"}, http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", service.ErrNotClockedIn), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusOf(tc.err); got != tc.want {
			t.Fatalf("statusOf(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var res response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return res
}

func TestRespondErrorExistingEmail(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/staff-emails", nil)

	respondError(c, &service.ExistingEmailError{Email: "ade.bola@kwaraphc.gov.ng"})

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	res := decode(t, w)
	details, _ := res.Details.(map[string]interface{})
	if details["existing_email"] != "ade.bola@kwaraphc.gov.ng" {
		t.Fatalf("details = %v, want existing_email", res.Details)
	}
}

func TestRespondErrorHidesInternalMessage(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/staff", nil)

	respondError(c, errors.New("pq: relation \"staff\" does not exist"))

	res := decode(t, w)
	if w.Code != http.StatusInternalServerError || res.Error != "Internal server error" {
		t.Fatalf("got %d %q, want 500 with a generic message", w.Code, res.Error)
	}
}

func TestDateQuery(t *testing.T) {
	newCtx := func(query string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/x?"+query, nil)
		return c
	}

	if got, err := dateQuery(newCtx(""), "from", false); got != nil || err != nil {
		t.Fatalf("empty = %v, %v, want nil, nil", got, err)
	}

	from, err := dateQuery(newCtx("from=2026-03-04"), "from", false)
	if err != nil || from.Day() != 4 {
		t.Fatalf("from = %v, %v, want day 4", from, err)
	}
	to, err := dateQuery(newCtx("to=2026-03-04"), "to", true)
	if err != nil || to.Day() != 5 {
		t.Fatalf("to = %v, %v, want start of day 5", to, err)
	}
	if _, err := dateQuery(newCtx("from=04/03/2026"), "from", false); err == nil {
		t.Fatalf("dateQuery accepted a non-ISO date")
	}
}

// stubAttendance records the requests that reach the service.
type stubAttendance struct {
	service.AttendanceService
	clockIn func(req service.ClockRequest) (*service.AttendanceRecordResponse, error)
	calls   int
}

func (s *stubAttendance) ClockIn(ctx context.Context, req service.ClockRequest) (*service.AttendanceRecordResponse, error) {
	s.calls++
	return s.clockIn(req)
}

func attendanceRouter(svc service.AttendanceService) *gin.Engine {
	auth := middleware.NewAuthenticator([]byte("test-secret"), nil, policy.Default(), false)
	router := gin.New()
	NewAttendanceHandler(svc, auth).RegisterRoutes(router.Group("/api"))
	return router
}

func TestClockInRoute(t *testing.T) {
	svc := &stubAttendance{clockIn: func(req service.ClockRequest) (*service.AttendanceRecordResponse, error) {
		if req.Code != "123456" {
			return nil, service.ErrInvalidCode
		}
		return &service.AttendanceRecordResponse{PSN: req.PSN, Status: "clocked_in", ClockInTime: time.Now().Format(time.RFC3339)}, nil
	}}
	router := attendanceRouter(svc)

	cases := []struct {
		name  string
		body  string
		want  int
		calls int
	}{
		{"ok", `{"psn":"KW/123","gender":"Female","code":"123456"}`, http.StatusCreated, 1},
		{"wrong code", `{"psn":"KW/123","gender":"Female","code":"000000"}`, http.StatusBadRequest, 1},
		{"bad psn", `{"psn":"!!","gender":"Female","code":"123456"}`, http.StatusBadRequest, 0},
		{"missing code", `{"psn":"KW/123","gender":"Female"}`, http.StatusBadRequest, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc.calls = 0
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/attendance/clock-in", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tc.want, w.Body.String())
			}
			if svc.calls != tc.calls {
				t.Fatalf("service calls = %d, want %d", svc.calls, tc.calls)
			}
		})
	}
}

func TestAdminAttendanceRoutesNeedAuth(t *testing.T) {
	router := attendanceRouter(&stubAttendance{})

	for _, path := range []string{"/api/attendance/codes/active", "/api/attendance/records", "/api/attendance/summary"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("GET %s = %d, want %d", path, w.Code, http.StatusUnauthorized)
		}
	}
}
