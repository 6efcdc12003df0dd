package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pool-booking/internal/model"
	"github.com/iliyamo/pool-booking/internal/repository"
	"github.com/iliyamo/pool-booking/internal/service"
)

// AdminHandler serves the ADMIN-only endpoints under /v1/admin.
type AdminHandler struct {
	svc     *service.Services
	users   *repository.UserRepo
	history *repository.HistoryRepo
}

func NewAdminHandler(svc *service.Services, store *repository.Store) *AdminHandler {
	return &AdminHandler{svc: svc, users: store.Users, history: store.History}
}

// CreateUser handles POST /v1/admin/users.  Credentials are managed by the
// identity provider; this only registers the email and role.
func (h *AdminHandler) CreateUser(c echo.Context) error {
	var body struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	email := repository.NormalizeEmail(body.Email)
	if !strings.Contains(email, "@") {
		return badRequest(c, "email is invalid")
	}
	role := strings.ToUpper(strings.TrimSpace(body.Role))
	if role == "" {
		role = model.RoleUser
	}
	if role != model.RoleUser && role != model.RoleAdmin {
		return badRequest(c, "role must be USER or ADMIN")
	}
	id, err := h.users.Create(c.Request().Context(), email, role)
	if errors.Is(err, repository.ErrDuplicate) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "already_exists", "entity": "user", "key": email})
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id, "email": email, "role": role})
}

// DeleteBooking handles DELETE /v1/admin/bookings.
func (h *AdminHandler) DeleteBooking(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body bookingRefBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.UserEmail == "" {
		return badRequest(c, "user_email is required")
	}
	ref, err := body.ref(actor)
	if err != nil {
		return badRequest(c, err.Error())
	}
	b, err := h.svc.Engine.DeleteBooking(c.Request().Context(), actor, ref)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, bookingView(b))
}

// BookingHistory handles GET /v1/admin/bookings/history?user_email=&pool=&start=.
func (h *AdminHandler) BookingHistory(c echo.Context) error {
	pool, start, err := sessionQuery(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	email := c.QueryParam("user_email")
	ctx := c.Request().Context()

	user, err := h.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "entity": "user", "key": email})
	}
	if err != nil {
		return respondError(c, err)
	}
	session, err := h.svc.Registry.Lookup(ctx, pool, start)
	if err != nil {
		return respondError(c, err)
	}
	rows, err := h.history.ListByBooking(ctx, model.BookingKey{UserID: user.ID, SessionID: session.ID})
	if err != nil {
		return respondError(c, err)
	}

	type entry struct {
		EventID    string    `json:"event_id"`
		Action     string    `json:"action"`
		Actor      string    `json:"actor"`
		OccurredAt time.Time `json:"occurred_at"`
	}
	out := make([]entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, entry{EventID: r.EventID, Action: string(r.Action), Actor: r.Actor, OccurredAt: r.OccurredAt})
	}
	return c.JSON(http.StatusOK, echo.Map{"history": out})
}

// CreateSession handles POST /v1/admin/sessions.
func (h *AdminHandler) CreateSession(c echo.Context) error {
	var body struct {
		Pool      string    `json:"pool"`
		StartTime time.Time `json:"start_time"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(body.Pool) == "" || body.StartTime.IsZero() {
		return badRequest(c, "pool and start_time are required")
	}
	s, err := h.svc.Registry.CreateSession(c.Request().Context(), body.Pool, body.StartTime)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, sessionView(s))
}

// CountSessionBookings handles GET /v1/admin/sessions/bookings/count?pool=&start=.
func (h *AdminHandler) CountSessionBookings(c echo.Context) error {
	pool, start, err := sessionQuery(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	n, err := h.svc.Engine.CountBookingsBySession(c.Request().Context(), pool, start)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": n})
}

// DeleteSessionBookings handles DELETE /v1/admin/sessions/bookings?pool=&start=.
func (h *AdminHandler) DeleteSessionBookings(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	pool, start, err := sessionQuery(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	n, err := h.svc.Engine.DeleteBookingsBySession(c.Request().Context(), actor, pool, start)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": n})
}

// GrantSubscription handles POST /v1/admin/subscriptions.
func (h *AdminHandler) GrantSubscription(c echo.Context) error {
	var body struct {
		UserEmail string `json:"user_email"`
		Type      string `json:"type"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.UserEmail == "" || body.Type == "" {
		return badRequest(c, "user_email and type are required")
	}
	us, err := h.svc.Ledger.Grant(c.Request().Context(), body.UserEmail, body.Type)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, subscriptionView(us))
}

// Sweep handles POST /v1/admin/sweep and runs the sweeper immediately.
func (h *AdminHandler) Sweep(c echo.Context) error {
	res, err := h.svc.Sweeper.RunNow(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
