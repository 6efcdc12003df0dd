package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/pool-booking/internal/config"
	"github.com/iliyamo/pool-booking/internal/model"
	"github.com/iliyamo/pool-booking/internal/utils"
)

const secret = "test-secret"

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	e := echo.New()
	whoami := func(c echo.Context) error {
		email, role, _ := Identity(c)
		return c.String(http.StatusOK, email+" "+role)
	}
	g := e.Group("/v1", JWTAuth(secret))
	g.GET("/me", whoami)
	g.GET("/admin", whoami, RequireRole(model.RoleAdmin))
	return e
}

func bearer(t *testing.T, email, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, email, role, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return "Bearer " + tok.Token
}

func TestJWTAuthAndRoles(t *testing.T) {
	e := newServer(t)
	cases := []struct {
		name   string
		path   string
		auth   string
		status int
		body   string
	}{
		{"no header", "/v1/me", "", http.StatusUnauthorized, "missing bearer token"},
		{"bad token", "/v1/me", "Bearer nope", http.StatusUnauthorized, "invalid token"},
		{"user", "/v1/me", bearer(t, "a@example.com", model.RoleUser), http.StatusOK, "a@example.com USER"},
		{"user on admin route", "/v1/admin", bearer(t, "a@example.com", model.RoleUser), http.StatusForbidden, "forbidden"},
		{"admin", "/v1/admin", bearer(t, "root@example.com", model.RoleAdmin), http.StatusOK, "root@example.com ADMIN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tc.body) {
				t.Fatalf("body = %q, want %q", rec.Body.String(), tc.body)
			}
		})
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := echo.New()
	e.Use(RequestLogger(zap.New(core)))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/missing", func(c echo.Context) error { return echo.ErrNotFound })

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(headerRequestID, "req-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if got := rec.Header().Get(headerRequestID); got != "req-1" {
		t.Fatalf("request id = %q, want req-1", got)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if rec.Header().Get(headerRequestID) == "" {
		t.Fatal("no request id generated")
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("log entries = %d, want 2", len(entries))
	}
	if entries[0].Level != zap.InfoLevel || entries[1].Level != zap.WarnLevel {
		t.Fatalf("levels = %v, %v", entries[0].Level, entries[1].Level)
	}
	if got := entries[1].ContextMap()["status"]; got != int64(http.StatusNotFound) {
		t.Fatalf("logged status = %v", got)
	}
}

func TestDisabledLimiterAndCachePassThrough(t *testing.T) {
	if l := NewRateLimiter(config.RateLimitConfig{Enabled: true}, nil, zap.NewNop()); l != nil {
		t.Fatal("limiter without redis should be nil")
	}
	if rc := NewResponseCache(config.CacheConfig{Enabled: false}, nil, zap.NewNop()); rc != nil {
		t.Fatal("disabled cache should be nil")
	}

	var l *RateLimiter
	var rc *ResponseCache
	e := echo.New()
	e.GET("/pools", func(c echo.Context) error { return c.String(http.StatusOK, "pools") }, l.Middleware(), rc.Middleware())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pools", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "pools" {
		t.Fatalf("response = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Cache") != "" || rec.Header().Get("X-RateLimit-Limit") != "" {
		t.Fatal("disabled middleware touched headers")
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	cases := []struct {
		strategy string
		want     string
	}{
		{"ip", "rl:ip:10.0.0.1"},
		{"user", "rl:user:guest"},
		{"route", "rl:route:GET /v1/pools"},
		{"", "rl:ip:10.0.0.1:user:guest:route:GET /v1/pools"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/v1/pools", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetPath("/v1/pools")
		if got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: tc.strategy}, c); got != tc.want {
			t.Errorf("strategy %q: key = %q, want %q", tc.strategy, got, tc.want)
		}
	}
}

func TestCacheKeyDistinguishesPools(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "cache"}
	key := func(path string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, path, nil), httptest.NewRecorder())
		c.SetPath("/v1/pools/:name/sessions")
		return cacheKey(cfg, c)
	}
	a, b := key("/v1/pools/A/sessions?from=1"), key("/v1/pools/B/sessions?from=1")
	if a == b {
		t.Fatal("different pools share a cache key")
	}
	if !strings.HasPrefix(a, "cache:") {
		t.Fatalf("key %q lacks prefix", a)
	}
	if a != key("/v1/pools/A/sessions?from=1") {
		t.Fatal("cache key not stable")
	}
}

func TestPayloadDecodeRejectsTruncated(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	status, gotHdr, body, ok := decodePayload(bs)
	if !ok || status != http.StatusOK || gotHdr.Get("Content-Type") != "application/json" || string(body) != `{"ok":true}` {
		t.Fatalf("decode = %d %v %q %v", status, gotHdr, body, ok)
	}
	if _, _, _, ok := decodePayload(bs[:10]); ok {
		t.Fatal("truncated payload decoded")
	}
}
