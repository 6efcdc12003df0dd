// Package handler exposes the HTTP handlers.  Public handlers in this file
// serve the unauthenticated browse API for pools, their weekly schedule
// and session availability.
package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pool-booking/internal/model"
	"github.com/iliyamo/pool-booking/internal/service"
)

// PublicHandler serves read-only browse endpoints.
type PublicHandler struct {
	schedules *service.PoolSchedules
	registry  *service.SessionRegistry
	now       func() time.Time
}

func NewPublicHandler(svc *service.Services) *PublicHandler {
	return &PublicHandler{schedules: svc.Schedules, registry: svc.Registry, now: time.Now}
}

// PoolView is a pool as exposed publicly.
type PoolView struct {
	Name                   string `json:"name"`
	Address                string `json:"address"`
	MaxCapacity            int    `json:"max_capacity"`
	SessionDurationMinutes int    `json:"session_duration_minutes"`
}

func poolView(p model.Pool) PoolView {
	return PoolView{
		Name:                   p.Name,
		Address:                p.Address,
		MaxCapacity:            p.MaxCapacity,
		SessionDurationMinutes: int(p.SessionDuration / time.Minute),
	}
}

// ListPools handles GET /v1/pools.
func (h *PublicHandler) ListPools(c echo.Context) error {
	pools, err := h.schedules.ListPools(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	out := make([]PoolView, 0, len(pools))
	for _, p := range pools {
		out = append(out, poolView(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"pools": out})
}

// Schedule handles GET /v1/pools/:name/schedule.
func (h *PublicHandler) Schedule(c echo.Context) error {
	pool, week, err := h.schedules.Schedule(c.Request().Context(), c.Param("name"))
	if err != nil {
		return respondError(c, err)
	}
	type day struct {
		DayOfWeek int    `json:"day_of_week"`
		Opening   string `json:"opening_time"`
		Closing   string `json:"closing_time"`
	}
	days := make([]day, 0, len(week))
	for _, s := range week {
		days = append(days, day{DayOfWeek: s.DayOfWeek, Opening: model.FormatClock(s.Opening), Closing: model.FormatClock(s.Closing)})
	}
	return c.JSON(http.StatusOK, echo.Map{"pool": poolView(pool), "schedule": days})
}

// Sessions handles GET /v1/pools/:name/sessions?from=&to=.  The range
// defaults to the next seven days.
func (h *PublicHandler) Sessions(c echo.Context) error {
	from, err := optionalTime(c, "from", h.now().UTC().Truncate(time.Hour))
	if err != nil {
		return badRequest(c, err.Error())
	}
	to, err := optionalTime(c, "to", from.AddDate(0, 0, 7))
	if err != nil {
		return badRequest(c, err.Error())
	}
	sessions, err := h.registry.ListSessions(c.Request().Context(), c.Param("name"), from, to)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]SessionView, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionView(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": out})
}
