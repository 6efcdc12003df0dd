package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/pool-booking/internal/repository"
)

func TestTranslate(t *testing.T) {
	deadlock := &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}
	cases := []struct {
		name string
		in   error
		kind error
		code string
	}{
		{"not found", repository.ErrNotFound, ErrNotFound, "not_found"},
		{"duplicate", repository.ErrDuplicate, ErrAlreadyExists, "already_exists"},
		{"capacity", fmt.Errorf("decrement: %w", repository.ErrCapacityExhausted), ErrCapacityExhausted, "capacity_exhausted"},
		{"deadlock", deadlock, ErrTransient, "transient"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := translate(tc.in, "session", "Main Pool@2025-06-30T18:00:00Z")
			var typed *Error
			if !errors.As(err, &typed) {
				t.Fatalf("translate(%v) = %v, not *Error", tc.in, err)
			}
			if !errors.Is(err, tc.kind) || typed.Code() != tc.code {
				t.Fatalf("translate(%v) = %v (%s), want %v", tc.in, err, typed.Code(), tc.kind)
			}
			if typed.Retryable() != (tc.kind == ErrTransient) {
				t.Fatalf("Retryable = %v", typed.Retryable())
			}
		})
	}
}

func TestTranslateKeepsTypedAndWrapsUnknown(t *testing.T) {
	typed := fail(ErrForbidden, "booking", "a")
	if got := translate(typed, "session", "b"); got != typed {
		t.Fatalf("typed error rewrapped: %v", got)
	}

	raw := errors.New("disk on fire")
	got := translate(raw, "session", "b")
	if !errors.Is(got, raw) {
		t.Fatalf("unknown error lost: %v", got)
	}
	var e *Error
	if errors.As(got, &e) {
		t.Fatalf("unknown error typed as %v", e)
	}
	if translate(nil, "x", "y") != nil {
		t.Fatal("translate(nil) != nil")
	}
}

func TestErrorMessage(t *testing.T) {
	err := fail(ErrNotFound, "pool", "Lido")
	if got, want := err.Error(), "pool Lido: not found"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestErrorCodes(t *testing.T) {
	cases := map[error]string{
		ErrNotFound:               "not_found",
		ErrAlreadyExists:          "already_exists",
		ErrCapacityExhausted:      "capacity_exhausted",
		ErrInvalidStateTransition: "invalid_state_transition",
		ErrSubscriptionExpired:    "subscription_expired",
		ErrBookingAlreadyActive:   "booking_already_active",
		ErrForbidden:              "forbidden",
		ErrInvalidArgument:        "invalid_argument",
		ErrTransient:              "transient",
		errors.New("other"):       "internal",
	}
	for kind, want := range cases {
		e := &Error{Err: kind}
		if got := e.Code(); got != want {
			t.Fatalf("Code(%v) = %q, want %q", kind, got, want)
		}
	}
}
