// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/pool-booking/internal/model"
)

// BookingConfirmedEvent is published once a booking has committed.  It
// carries everything the confirmation needs so consumers never query the
// primary database.
type BookingConfirmedEvent struct {
	EventID      string `json:"event_id"`
	UserEmail    string `json:"user_email"`
	PoolName     string `json:"pool_name"`
	PoolAddress  string `json:"pool_address"`
	SessionStart string `json:"session_start"`
	SessionEnd   string `json:"session_end"`
	ConfirmedAt  string `json:"confirmed_at"`
}

// NewBookingConfirmedEvent builds the event for email's booking of the
// session described by info.  Times are rendered as RFC 3339 in UTC.
func NewBookingConfirmedEvent(email string, info model.SessionInfo, at time.Time) BookingConfirmedEvent {
	return BookingConfirmedEvent{
		EventID:      uuid.NewString(),
		UserEmail:    email,
		PoolName:     info.PoolName,
		PoolAddress:  info.PoolAddress,
		SessionStart: info.StartTime.UTC().Format(time.RFC3339),
		SessionEnd:   info.EndTime.UTC().Format(time.RFC3339),
		ConfirmedAt:  at.UTC().Format(time.RFC3339),
	}
}

// LogLine renders the event as one human-friendly line, newline included.
func (e BookingConfirmedEvent) LogLine() string {
	return fmt.Sprintf("[%s] Booking confirmed | event_id=%s | user=%s | pool=%q | address=%q | start=%s | end=%s\n",
		e.ConfirmedAt, e.EventID, e.UserEmail, e.PoolName, e.PoolAddress, e.SessionStart, e.SessionEnd)
}
