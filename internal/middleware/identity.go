package middleware

// identity.go holds the context keys JWTAuth fills and the helpers other
// middleware and handlers use to read them.

import (
	"github.com/labstack/echo/v4"
)

const (
	ctxEmail = "email"
	ctxRole  = "role"
)

// Identity returns the authenticated caller stored by JWTAuth.  ok is
// false on public routes.
func Identity(c echo.Context) (email, role string, ok bool) {
	email, _ = c.Get(ctxEmail).(string)
	role, _ = c.Get(ctxRole).(string)
	return email, role, email != ""
}

// userKey identifies the caller for rate limiting; anonymous callers share
// the "guest" key.
func userKey(c echo.Context) string {
	if email, _, ok := Identity(c); ok {
		return email
	}
	return "guest"
}
