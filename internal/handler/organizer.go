package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/conference-reservation/internal/service"
)

// OrganizerHandler serves the organiser-only overview.
type OrganizerHandler struct {
	Projector *service.Projector
}

func NewOrganizerHandler(projector *service.Projector) *OrganizerHandler {
	if projector == nil {
		panic("nil projector passed to NewOrganizerHandler")
	}
	return &OrganizerHandler{Projector: projector}
}

// Entities handles GET /v1/organizer/entities: held seats against quota
// for every entity.
func (h *OrganizerHandler) Entities(c echo.Context) error {
	entities, err := h.Projector.EntitySummaries(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"entities": entities})
}
