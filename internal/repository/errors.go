// Package repository holds the SQL data access layer.  Queries are written
// in the dialect subset shared by MySQL and SQLite so the same repositories
// serve both stores.
//
// Sentinel errors below let the service layer tell failure kinds apart
// without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique or primary key.
var ErrDuplicate = errors.New("duplicate")

// ErrCapacityExhausted is returned when the conditional capacity decrement
// matched no row because the session had no seats left.
var ErrCapacityExhausted = errors.New("capacity exhausted")

// ErrAllowanceExhausted is returned when a subscription has no bookings
// left to consume.
var ErrAllowanceExhausted = errors.New("subscription allowance exhausted")
