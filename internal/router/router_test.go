package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/pool-booking/internal/config"
	"github.com/iliyamo/pool-booking/internal/database"
	"github.com/iliyamo/pool-booking/internal/handler"
	"github.com/iliyamo/pool-booking/internal/model"
	"github.com/iliyamo/pool-booking/internal/repository"
	"github.com/iliyamo/pool-booking/internal/service"
	"github.com/iliyamo/pool-booking/internal/utils"
)

const secret = "router-test-secret"

type api struct {
	t *testing.T
	e *echo.Echo
}

func newAPI(t *testing.T) *api {
	t.Helper()
	return newAPIWithCache(t, nil)
}

func newAPIWithCache(t *testing.T, cache echo.MiddlewareFunc) *api {
	t.Helper()
	cfg := config.DBConfig{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "pool.db")}
	db, err := database.Connect(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	seed := []string{
		`INSERT INTO users (email, role) VALUES ('admin@example.com', 'ADMIN'), ('a@example.com', 'USER'), ('b@example.com', 'USER')`,
		`INSERT INTO pools (name, address, max_capacity, session_duration_minutes) VALUES ('Main Pool', 'Harbour Road 1', 1, 60)`,
		`INSERT INTO pool_schedules (pool_id, day_of_week, opening_time, closing_time) SELECT id, 1, '06:00:00', '22:00:00' FROM pools`,
	}
	for _, q := range seed {
		if _, err := db.Exec(q); err != nil {
			t.Fatalf("seed %q: %v", q, err)
		}
	}

	store := repository.NewStore(db)
	now := func() time.Time { return time.Date(2025, 6, 29, 12, 0, 0, 0, time.UTC) }
	svc := service.New(store, service.NewLogNotifier(zap.NewNop()), zap.NewNop(), service.WithClock(now))

	e := echo.New()
	RegisterRoutes(e, handler.NewHealthHandler(db))
	RegisterPublic(e, handler.NewPublicHandler(svc), cache)
	RegisterBookings(e, handler.NewBookingHandler(svc), secret)
	RegisterAdmin(e, handler.NewAdminHandler(svc, store), secret)
	return &api{t: t, e: e}
}

func (a *api) do(method, path, email, role, body string) (int, map[string]any) {
	a.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if email != "" {
		tok, err := utils.NewAccessToken(secret, email, role, time.Hour)
		if err != nil {
			a.t.Fatalf("token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			a.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

const slot = `{"pool":"Main Pool","session_start":"2025-06-30T18:00:00Z"}`

func TestHealth(t *testing.T) {
	a := newAPI(t)
	if code, _ := a.do(http.MethodGet, "/healthz", "", "", ""); code != http.StatusOK {
		t.Fatalf("healthz = %d", code)
	}
}

func TestBookingFlowOverHTTP(t *testing.T) {
	a := newAPI(t)
	admin := "admin@example.com"

	code, body := a.do(http.MethodPost, "/v1/admin/sessions", admin, model.RoleAdmin, `{"pool":"Main Pool","start_time":"2025-06-30T18:00:00Z"}`)
	if code != http.StatusCreated || body["remaining_capacity"] != float64(1) {
		t.Fatalf("create session = %d %v", code, body)
	}

	if code, body = a.do(http.MethodPost, "/v1/bookings", "a@example.com", model.RoleUser, slot); code != http.StatusCreated {
		t.Fatalf("A books = %d %v", code, body)
	}
	if body["status"] != "ACTIVE" || body["user_email"] != "a@example.com" {
		t.Fatalf("booking = %v", body)
	}

	code, body = a.do(http.MethodPost, "/v1/bookings", "b@example.com", model.RoleUser, slot)
	if code != http.StatusConflict || body["error"] != "capacity_exhausted" || body["entity"] != "session" {
		t.Fatalf("B books = %d %v", code, body)
	}

	code, body = a.do(http.MethodGet, "/v1/pools/Main%20Pool/sessions?from=2025-06-30T00:00:00Z", "", "", "")
	if code != http.StatusOK {
		t.Fatalf("sessions = %d %v", code, body)
	}
	sessions := body["sessions"].([]any)
	if len(sessions) != 1 || sessions[0].(map[string]any)["remaining_capacity"] != float64(0) {
		t.Fatalf("sessions = %v", sessions)
	}

	if code, body = a.do(http.MethodPost, "/v1/bookings/cancel", "a@example.com", model.RoleUser, slot); code != http.StatusOK || body["status"] != "CANCELLED" {
		t.Fatalf("A cancels = %d %v", code, body)
	}
	if code, body = a.do(http.MethodPost, "/v1/bookings", "b@example.com", model.RoleUser, slot); code != http.StatusCreated {
		t.Fatalf("B books again = %d %v", code, body)
	}

	code, body = a.do(http.MethodGet, "/v1/admin/sessions/bookings/count?pool=Main%20Pool&start=2025-06-30T18:00:00Z", admin, model.RoleAdmin, "")
	if code != http.StatusOK || body["count"] != float64(2) {
		t.Fatalf("count = %d %v", code, body)
	}

	code, body = a.do(http.MethodGet, "/v1/bookings", "b@example.com", model.RoleUser, "")
	if code != http.StatusOK || len(body["bookings"].([]any)) != 1 {
		t.Fatalf("list = %d %v", code, body)
	}
}

func TestAuthorizationOverHTTP(t *testing.T) {
	a := newAPI(t)

	if code, _ := a.do(http.MethodPost, "/v1/bookings", "", "", slot); code != http.StatusUnauthorized {
		t.Fatalf("anonymous booking = %d, want 401", code)
	}
	if code, _ := a.do(http.MethodPost, "/v1/admin/sweep", "a@example.com", model.RoleUser, ""); code != http.StatusForbidden {
		t.Fatalf("user sweep = %d, want 403", code)
	}
	code, body := a.do(http.MethodPost, "/v1/bookings", "a@example.com", model.RoleUser,
		`{"user_email":"b@example.com","pool":"Main Pool","session_start":"2025-06-30T18:00:00Z"}`)
	if code != http.StatusForbidden || body["error"] != "forbidden" {
		t.Fatalf("booking for another user = %d %v", code, body)
	}
	if code, _ := a.do(http.MethodPost, "/v1/bookings", "a@example.com", model.RoleUser, `{"pool":"Main Pool"}`); code != http.StatusBadRequest {
		t.Fatalf("missing start = %d, want 400", code)
	}
}

func TestCreateSessionOutsideHoursOverHTTP(t *testing.T) {
	a := newAPI(t)
	code, body := a.do(http.MethodPost, "/v1/admin/sessions", "admin@example.com", model.RoleAdmin, `{"pool":"Main Pool","start_time":"2025-07-01T18:00:00Z"}`)
	if code != http.StatusBadRequest || body["error"] != "invalid_argument" {
		t.Fatalf("create on closed day = %d %v", code, body)
	}
}

func TestPublicBrowse(t *testing.T) {
	a := newAPI(t)
	code, body := a.do(http.MethodGet, "/v1/pools", "", "", "")
	if code != http.StatusOK || len(body["pools"].([]any)) != 1 {
		t.Fatalf("pools = %d %v", code, body)
	}
	code, body = a.do(http.MethodGet, "/v1/pools/Main%20Pool/schedule", "", "", "")
	if code != http.StatusOK {
		t.Fatalf("schedule = %d %v", code, body)
	}
	day := body["schedule"].([]any)[0].(map[string]any)
	if day["opening_time"] != "06:00:00" || day["closing_time"] != "22:00:00" {
		t.Fatalf("schedule day = %v", day)
	}
	if code, body = a.do(http.MethodGet, "/v1/pools/Lido/schedule", "", "", ""); code != http.StatusNotFound || body["entity"] != "pool" {
		t.Fatalf("unknown pool = %d %v", code, body)
	}
}

func TestSweepOverHTTP(t *testing.T) {
	a := newAPI(t)
	code, body := a.do(http.MethodPost, "/v1/admin/sweep", "admin@example.com", model.RoleAdmin, "")
	if code != http.StatusOK {
		t.Fatalf("sweep = %d %v", code, body)
	}
	if body["completed_bookings"] != float64(0) || body["as_of"] != "2025-06-29T12:00:00Z" {
		t.Fatalf("sweep result = %v", body)
	}
}

func TestSessionListingBypassesResponseCache(t *testing.T) {
	var cached []string
	cache := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cached = append(cached, c.Path())
			return next(c)
		}
	}
	a := newAPIWithCache(t, cache)

	for _, path := range []string{
		"/v1/pools",
		"/v1/pools/Main%20Pool/schedule",
		"/v1/pools/Main%20Pool/sessions?from=2025-06-30T00:00:00Z",
	} {
		if code, body := a.do(http.MethodGet, path, "", "", ""); code != http.StatusOK {
			t.Fatalf("GET %s = %d %v", path, code, body)
		}
	}
	want := []string{"/v1/pools", "/v1/pools/:name/schedule"}
	if strings.Join(cached, ",") != strings.Join(want, ",") {
		t.Fatalf("cached routes = %v, want %v", cached, want)
	}
}
