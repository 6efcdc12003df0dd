package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pool-booking/internal/service"
)

var statusByKind = map[error]int{
	service.ErrNotFound:               http.StatusNotFound,
	service.ErrInvalidArgument:        http.StatusBadRequest,
	service.ErrForbidden:              http.StatusForbidden,
	service.ErrAlreadyExists:          http.StatusConflict,
	service.ErrCapacityExhausted:      http.StatusConflict,
	service.ErrInvalidStateTransition: http.StatusConflict,
	service.ErrSubscriptionExpired:    http.StatusConflict,
	service.ErrBookingAlreadyActive:   http.StatusConflict,
	service.ErrTransient:              http.StatusServiceUnavailable,
}

// respondError renders a core failure as {"error": code, "entity", "key"}.
// Untyped errors become a bare 500 so store details never leak.
func respondError(c echo.Context, err error) error {
	var typed *service.Error
	if !errors.As(err, &typed) {
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
	status, ok := statusByKind[typed.Err]
	if !ok {
		status = http.StatusInternalServerError
	}
	if typed.Retryable() {
		c.Response().Header().Set("Retry-After", "1")
	}
	return c.JSON(status, echo.Map{
		"error":  typed.Code(),
		"entity": typed.Entity,
		"key":    typed.Key,
	})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
