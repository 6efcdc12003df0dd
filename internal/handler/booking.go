package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pool-booking/internal/model"
	"github.com/iliyamo/pool-booking/internal/service"
)

// BookingHandler serves the authenticated booking endpoints.  JWTAuth and
// RequireRole have already run; every operation acts as the caller.
type BookingHandler struct {
	engine *service.BookingEngine
	ledger *service.SubscriptionLedger
}

func NewBookingHandler(svc *service.Services) *BookingHandler {
	return &BookingHandler{engine: svc.Engine, ledger: svc.Ledger}
}

// Me handles GET /v1/me and returns the caller with their active
// subscription, if any.
func (h *BookingHandler) Me(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	us, err := h.ledger.FindActiveSubscription(c.Request().Context(), actor.Email)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"email":        actor.Email,
		"admin":        actor.Admin,
		"subscription": subscriptionView(us),
	})
}

// Create handles POST /v1/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body bookingRefBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	ref, err := body.ref(actor)
	if err != nil {
		return badRequest(c, err.Error())
	}
	b, err := h.engine.CreateBooking(c.Request().Context(), actor, ref)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, bookingView(b))
}

// Cancel handles POST /v1/bookings/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body bookingRefBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	ref, err := body.ref(actor)
	if err != nil {
		return badRequest(c, err.Error())
	}
	b, err := h.engine.CancelBooking(c.Request().Context(), actor, ref)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, bookingView(b))
}

// Update handles PUT /v1/bookings, moving the booking named by "current"
// to the session named by "next".
func (h *BookingHandler) Update(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Current bookingRefBody `json:"current"`
		Next    bookingRefBody `json:"next"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	current, err := body.Current.ref(actor)
	if err != nil {
		return badRequest(c, "current: "+err.Error())
	}
	if body.Next.UserEmail == "" {
		body.Next.UserEmail = current.UserEmail
	}
	next, err := body.Next.ref(actor)
	if err != nil {
		return badRequest(c, "next: "+err.Error())
	}
	b, err := h.engine.UpdateBooking(c.Request().Context(), actor, current, next)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, bookingView(b))
}

// List handles GET /v1/bookings?status=&pool=&start=&user_email=.  Only
// admins may name another user.
func (h *BookingHandler) List(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	filter := model.BookingFilter{
		UserEmail: strings.TrimSpace(c.QueryParam("user_email")),
		Status:    model.BookingStatus(strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))),
		PoolName:  strings.TrimSpace(c.QueryParam("pool")),
	}
	if c.QueryParam("start") != "" {
		start, err := optionalTime(c, "start", time.Time{})
		if err != nil {
			return badRequest(c, err.Error())
		}
		filter.SessionStart = &start
	}
	out, err := h.engine.FindBookings(c.Request().Context(), actor, filter)
	if err != nil {
		return respondError(c, err)
	}
	views := make([]BookingView, 0, len(out))
	for _, b := range out {
		views = append(views, bookingView(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": views})
}
