package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pool-booking/internal/middleware"
	"github.com/iliyamo/pool-booking/internal/model"
)

// actorFrom turns the identity JWTAuth stored into a core actor.
func actorFrom(c echo.Context) (model.Actor, error) {
	email, role, ok := middleware.Identity(c)
	if !ok {
		return model.Actor{}, errors.New("no authenticated user")
	}
	return model.Actor{Email: email, Admin: role == model.RoleAdmin}, nil
}

// bookingRefBody is how clients name a booking.  UserEmail defaults to
// the caller.
type bookingRefBody struct {
	UserEmail    string    `json:"user_email"`
	Pool         string    `json:"pool"`
	SessionStart time.Time `json:"session_start"`
}

func (b bookingRefBody) ref(actor model.Actor) (model.BookingRef, error) {
	if strings.TrimSpace(b.Pool) == "" {
		return model.BookingRef{}, errors.New("pool is required")
	}
	if b.SessionStart.IsZero() {
		return model.BookingRef{}, errors.New("session_start is required")
	}
	email := b.UserEmail
	if strings.TrimSpace(email) == "" {
		email = actor.Email
	}
	return model.BookingRef{UserEmail: email, PoolName: b.Pool, SessionStart: b.SessionStart.UTC()}, nil
}

// sessionQuery reads ?pool=&start= for session-scoped admin endpoints.
func sessionQuery(c echo.Context) (string, time.Time, error) {
	pool := strings.TrimSpace(c.QueryParam("pool"))
	if pool == "" {
		return "", time.Time{}, errors.New("pool is required")
	}
	start, err := time.Parse(time.RFC3339, c.QueryParam("start"))
	if err != nil {
		return "", time.Time{}, errors.New("start must be RFC 3339")
	}
	return pool, start.UTC(), nil
}

// optionalTime parses an RFC 3339 query parameter, falling back to def.
func optionalTime(c echo.Context, name string, def time.Time) (time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.New(name + " must be RFC 3339")
	}
	return t.UTC(), nil
}

// BookingView is the JSON shape of a booking.
type BookingView struct {
	UserEmail    string    `json:"user_email"`
	Pool         string    `json:"pool"`
	SessionStart time.Time `json:"session_start"`
	SessionEnd   time.Time `json:"session_end"`
	BookedAt     time.Time `json:"booked_at"`
	Status       string    `json:"status"`
	Subscription bool      `json:"paid_by_subscription"`
}

func bookingView(b model.Booking) BookingView {
	return BookingView{
		UserEmail:    b.UserEmail,
		Pool:         b.PoolName,
		SessionStart: b.SessionStart,
		SessionEnd:   b.SessionEnd,
		BookedAt:     b.BookedAt,
		Status:       string(b.Status),
		Subscription: b.SubscriptionID != nil,
	}
}

// SessionView is the JSON shape of a session.
type SessionView struct {
	Pool              string    `json:"pool"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	RemainingCapacity int       `json:"remaining_capacity"`
	MaxCapacity       int       `json:"max_capacity"`
}

func sessionView(s model.Session) SessionView {
	return SessionView{
		Pool:              s.PoolName,
		StartTime:         s.StartTime,
		EndTime:           s.EndTime,
		RemainingCapacity: s.RemainingCapacity,
		MaxCapacity:       s.MaxCapacity,
	}
}

// SubscriptionView is the JSON shape of a user's subscription.
type SubscriptionView struct {
	Type              string    `json:"type"`
	Status            string    `json:"status"`
	AssignedAt        time.Time `json:"assigned_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	RemainingBookings int       `json:"remaining_bookings"`
}

func subscriptionView(us *model.UserSubscription) *SubscriptionView {
	if us == nil {
		return nil
	}
	return &SubscriptionView{
		Type:              us.Type.Name,
		Status:            string(us.Status),
		AssignedAt:        us.AssignedAt,
		ExpiresAt:         us.ExpiresAt(),
		RemainingBookings: us.RemainingBookings,
	}
}
