package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/pool-booking/internal/database"
	"github.com/iliyamo/pool-booking/internal/repository"
)

// Failure kinds returned by the booking core.  Every failure is an *Error
// wrapping one of these, so callers match with errors.Is.
var (
	ErrNotFound               = errors.New("not found")
	ErrAlreadyExists          = errors.New("already exists")
	ErrCapacityExhausted      = errors.New("capacity exhausted")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrSubscriptionExpired    = errors.New("subscription expired")
	ErrBookingAlreadyActive   = errors.New("booking already active")
	ErrForbidden              = errors.New("forbidden")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrTransient              = errors.New("transient store failure")
)

var reasonCodes = map[error]string{
	ErrNotFound:               "not_found",
	ErrAlreadyExists:          "already_exists",
	ErrCapacityExhausted:      "capacity_exhausted",
	ErrInvalidStateTransition: "invalid_state_transition",
	ErrSubscriptionExpired:    "subscription_expired",
	ErrBookingAlreadyActive:   "booking_already_active",
	ErrForbidden:              "forbidden",
	ErrInvalidArgument:        "invalid_argument",
	ErrTransient:              "transient",
}

// Error is a typed failure carrying the entity kind and identifying key
// the boundary layer needs to render a precise message.
type Error struct {
	Err    error  // one of the sentinels above
	Entity string // e.g. "session", "booking"
	Key    string // human-readable identity of the entity
	Cause  error  // underlying store error, if any
}

func (e *Error) Error() string {
	msg := e.Err.Error()
	if e.Entity != "" {
		msg = fmt.Sprintf("%s %s: %s", e.Entity, e.Key, msg)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// Code returns the stable reason code of the failure.
func (e *Error) Code() string {
	if c, ok := reasonCodes[e.Err]; ok {
		return c
	}
	return "internal"
}

// Retryable reports whether the caller may retry the operation unchanged.
func (e *Error) Retryable() bool { return e.Err == ErrTransient }

func fail(kind error, entity, key string) error {
	return &Error{Err: kind, Entity: entity, Key: key}
}

// translate turns repository and driver errors into typed failures.
// Errors that are already typed pass through untouched.
func translate(err error, entity, key string) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fail(ErrNotFound, entity, key)
	case errors.Is(err, repository.ErrDuplicate):
		return fail(ErrAlreadyExists, entity, key)
	case errors.Is(err, repository.ErrCapacityExhausted):
		return fail(ErrCapacityExhausted, entity, key)
	case database.IsTransient(err):
		return &Error{Err: ErrTransient, Entity: entity, Key: key, Cause: err}
	}
	return fmt.Errorf("%s %s: %w", entity, key, err)
}
