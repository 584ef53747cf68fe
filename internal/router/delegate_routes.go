package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/conference-reservation/internal/handler"
	"github.com/iliyamo/conference-reservation/internal/middleware"
	"github.com/iliyamo/conference-reservation/internal/utils"
)

// RegisterDelegate registers the seating and session endpoints under /v1.
// Every route requires a valid JWT with the DELEGATE role; routes that
// write to the ledger also pass through the rate limiter.
func RegisterDelegate(e *echo.Echo, s *handler.SeatingHandler, h *handler.SessionHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleDelegate),
	)

	g.GET("/seating", s.Chart)
	g.POST("/seating/reserve", s.Reserve, limit)
	g.POST("/seating/table/:tableId/toggle", s.ToggleTable, limit)

	g.GET("/sessions/stats", h.Stats)
	g.POST("/sessions/submit", h.Submit, limit)
	g.GET("/sessions/selection", h.Selection)
	g.PUT("/sessions/selection", h.SaveDraft, limit)
}
