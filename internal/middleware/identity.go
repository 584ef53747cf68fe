package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/conference-reservation/internal/model"
)

// DelegateFrom returns the requester stored by JWTAuth.
func DelegateFrom(c echo.Context) (model.Delegate, bool) {
	d, ok := c.Get(ctxDelegate).(model.Delegate)
	return d, ok && d.ID != ""
}

// RoleFrom returns the requester's role, or "" when unauthenticated.
func RoleFrom(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}

// userID returns the authenticated subject, or "anon".
func userID(c echo.Context) string {
	if s, ok := c.Get(ctxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
