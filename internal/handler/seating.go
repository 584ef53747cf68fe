package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/conference-reservation/internal/model"
	"github.com/iliyamo/conference-reservation/internal/service"
)

// SeatingHandler serves the gala seating chart and seat reservations.
// It assumes JWTAuth and the DELEGATE role check ran before it.
type SeatingHandler struct {
	Coordinator *service.Coordinator
	Projector   *service.Projector
}

// NewSeatingHandler panics if a dependency is nil.
func NewSeatingHandler(coordinator *service.Coordinator, projector *service.Projector) *SeatingHandler {
	if coordinator == nil || projector == nil {
		panic("nil dependency passed to NewSeatingHandler")
	}
	return &SeatingHandler{Coordinator: coordinator, Projector: projector}
}

// Chart handles GET /v1/seating.  It returns every table with the status
// of each seat, plus the requester's entity quota.
func (h *SeatingHandler) Chart(c echo.Context) error {
	d, ok := getDelegate(c)
	if !ok {
		return nil
	}
	ctx := c.Request().Context()
	chart, err := h.Projector.SeatingChart(ctx)
	if err != nil {
		return writeError(c, err)
	}
	quota, err := h.Projector.EntitySummary(ctx, d.EntityID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"tables": chart.Tables,
		"entityQuota": echo.Map{
			"max":       quota.Quota,
			"used":      quota.Used,
			"remaining": quota.Remaining,
		},
	})
}

// Reserve handles POST /v1/seating/reserve.  The body is
// {"units":[{"tableId":5,"seatNumber":1}, ...]}.  All seats are reserved
// or none are.
func (h *SeatingHandler) Reserve(c echo.Context) error {
	d, ok := getDelegate(c)
	if !ok {
		return nil
	}
	var body struct {
		Units []model.SeatID `json:"units"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body", "reason": "invalid_request"})
	}
	res, err := h.Coordinator.Reserve(c.Request().Context(), d, body.Units)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// ToggleTable handles POST /v1/seating/table/:tableId/toggle.  The server
// decides whether the call claims the table's free seats or releases the
// requester's full table.
func (h *SeatingHandler) ToggleTable(c echo.Context) error {
	d, ok := getDelegate(c)
	if !ok {
		return nil
	}
	id, err := strconv.ParseUint(c.Param("tableId"), 10, 32)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid table id", "reason": "invalid_request"})
	}
	res, err := h.Coordinator.ToggleTable(c.Request().Context(), d, uint32(id))
	if err != nil {
		return writeError(c, err)
	}
	status := http.StatusCreated
	if len(res.Released) > 0 {
		status = http.StatusOK
	}
	return c.JSON(status, res)
}
