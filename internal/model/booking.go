package model

import "time"

type BookingStatus string

const (
	BookingActive    BookingStatus = "ACTIVE"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingCompleted BookingStatus = "COMPLETED"
)

// Valid reports whether s is one of the known statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingActive, BookingCancelled, BookingCompleted:
		return true
	}
	return false
}

// BookingKey is the composite identity of a booking.  The store enforces
// uniqueness on it, which is what prevents duplicate bookings under races.
type BookingKey struct {
	UserID    uint64
	SessionID uint64
}

// BookingRef identifies a booking the way callers know it.
type BookingRef struct {
	UserEmail    string
	PoolName     string
	SessionStart time.Time
}

// Booking is a user's claim on one seat of one session.
type Booking struct {
	Key            BookingKey
	UserEmail      string
	PoolName       string
	SessionStart   time.Time
	SessionEnd     time.Time
	BookedAt       time.Time
	Status         BookingStatus
	SubscriptionID *uint64 // set when the booking consumed a subscription allowance
}

// BookingFilter narrows booking queries.  Zero-valued fields impose no
// constraint; every set field is combined with AND.
type BookingFilter struct {
	UserEmail    string
	Status       BookingStatus
	PoolName     string
	SessionStart *time.Time
}

type BookingAction string

const (
	ActionCreated   BookingAction = "CREATED"
	ActionCancelled BookingAction = "CANCELLED"
	ActionDeleted   BookingAction = "DELETED"
	ActionCompleted BookingAction = "COMPLETED"
)

// BookingHistory is one append-only audit row.
type BookingHistory struct {
	ID         uint64
	EventID    string
	UserID     uint64
	SessionID  uint64
	Action     BookingAction
	Actor      string
	OccurredAt time.Time
}
