package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pool-booking/internal/repository"
	"github.com/iliyamo/pool-booking/internal/service"
)

func TestRespondError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", &service.Error{Err: service.ErrNotFound, Entity: "session", Key: "Main Pool@2025-06-30T18:00:00Z"}, http.StatusNotFound, "not_found"},
		{"capacity", &service.Error{Err: service.ErrCapacityExhausted, Entity: "session"}, http.StatusConflict, "capacity_exhausted"},
		{"expired", &service.Error{Err: service.ErrSubscriptionExpired}, http.StatusConflict, "subscription_expired"},
		{"forbidden", &service.Error{Err: service.ErrForbidden}, http.StatusForbidden, "forbidden"},
		{"bad argument", &service.Error{Err: service.ErrInvalidArgument}, http.StatusBadRequest, "invalid_argument"},
		{"transient", &service.Error{Err: service.ErrTransient, Cause: errors.New("deadlock")}, http.StatusServiceUnavailable, "transient"},
		{"wrapped", fmt.Errorf("outer: %w", &service.Error{Err: service.ErrAlreadyExists}), http.StatusConflict, "already_exists"},
		{"untyped", repository.ErrNotFound, http.StatusInternalServerError, "internal"},
	}
	e := echo.New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			if err := respondError(c, tc.err); err != nil {
				t.Fatalf("respondError: %v", err)
			}
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["error"] != tc.code {
				t.Fatalf("code = %q, want %q", body["error"], tc.code)
			}
		})
	}
}
