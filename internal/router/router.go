package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pool-booking/internal/handler"
	"github.com/iliyamo/pool-booking/internal/middleware"
	"github.com/iliyamo/pool-booking/internal/model"
)

// RegisterRoutes registers routes that do not require authentication and
// are never cached: the health check.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterPublic registers the unauthenticated browse endpoints.  mws run
// in front of every public route.  cache, when not nil, wraps only the pool
// catalog; session listings carry live remaining capacity and are always
// served fresh.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc, mws ...echo.MiddlewareFunc) {
	g := e.Group("/v1/pools", mws...)
	var catalog []echo.MiddlewareFunc
	if cache != nil {
		catalog = append(catalog, cache)
	}
	g.GET("", p.ListPools, catalog...)
	g.GET("/:name/schedule", p.Schedule, catalog...)
	g.GET("/:name/sessions", p.Sessions)
}

// RegisterBookings registers the endpoints any authenticated user may
// call.  The core checks ownership per booking.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, jwtSecret string, mws ...echo.MiddlewareFunc) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	g.Use(mws...)
	g.GET("/me", b.Me)
	g.GET("/bookings", b.List)
	g.POST("/bookings", b.Create)
	g.PUT("/bookings", b.Update)
	g.POST("/bookings/cancel", b.Cancel)
}

// RegisterAdmin registers the ADMIN-only endpoints under /v1/admin.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.POST("/users", a.CreateUser)
	g.DELETE("/bookings", a.DeleteBooking)
	g.GET("/bookings/history", a.BookingHistory)
	g.POST("/sessions", a.CreateSession)
	g.GET("/sessions/bookings/count", a.CountSessionBookings)
	g.DELETE("/sessions/bookings", a.DeleteSessionBookings)
	g.POST("/subscriptions", a.GrantSubscription)
	g.POST("/sweep", a.Sweep)
}
