package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/conference-reservation/internal/handler"
	"github.com/iliyamo/conference-reservation/internal/middleware"
	"github.com/iliyamo/conference-reservation/internal/utils"
)

// RegisterOrganizer registers the ORGANIZER-only overview endpoints.
func RegisterOrganizer(e *echo.Echo, o *handler.OrganizerHandler, jwtSecret string) {
	g := e.Group(
		"/v1/organizer",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleOrganizer),
	)
	g.GET("/entities", o.Entities)
}
