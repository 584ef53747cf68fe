package middleware // reusable HTTP middleware for the reservation API

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/conference-reservation/internal/utils"
)

// Context keys set by JWTAuth.
const (
	ctxDelegate = "delegate"
	ctxRole     = "role"
	ctxUserID   = "user_id"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// issued by the identity provider and stores the requester in the request
// context.  Handlers read it back with DelegateFrom and RoleFrom.
//
// A DELEGATE token must name the entity the delegate belongs to; without
// it no quota can be charged, so the token is refused up front.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			switch claims.Role {
			case utils.RoleDelegate:
				if claims.Entity == "" {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
				}
			case utils.RoleOrganizer:
			default:
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			c.Set(ctxDelegate, claims.Delegate())
			c.Set(ctxRole, claims.Role)
			c.Set(ctxUserID, claims.Subject)
			return next(c)
		}
	}
}
