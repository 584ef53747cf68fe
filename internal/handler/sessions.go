package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/conference-reservation/internal/model"
	"github.com/iliyamo/conference-reservation/internal/service"
)

// SessionHandler serves pool fill counts and the one-shot session
// submission.
type SessionHandler struct {
	Submissions *service.SubmissionLock
	Projector   *service.Projector
}

// NewSessionHandler panics if a dependency is nil.
func NewSessionHandler(submissions *service.SubmissionLock, projector *service.Projector) *SessionHandler {
	if submissions == nil || projector == nil {
		panic("nil dependency passed to NewSessionHandler")
	}
	return &SessionHandler{Submissions: submissions, Projector: projector}
}

// Stats handles GET /v1/sessions/stats.
func (h *SessionHandler) Stats(c echo.Context) error {
	pools, err := h.Projector.PoolStats(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"pools": pools})
}

// Submit handles POST /v1/sessions/submit with body
// {"track1": poolId, "track2": poolId, "panel": poolId}.
func (h *SessionHandler) Submit(c echo.Context) error {
	d, ok := getDelegate(c)
	if !ok {
		return nil
	}
	var sel model.Selections
	if err := c.Bind(&sel); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body", "reason": "invalid_request"})
	}
	res, err := h.Submissions.Submit(c.Request().Context(), d, sel)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"locked":      res.Locked,
		"selections":  res.Selections,
		"submittedAt": res.SubmittedAt,
	})
}

// Selection handles GET /v1/sessions/selection.
func (h *SessionHandler) Selection(c echo.Context) error {
	d, ok := getDelegate(c)
	if !ok {
		return nil
	}
	sel, err := h.Submissions.Selection(c.Request().Context(), d.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sel)
}

// SaveDraft handles PUT /v1/sessions/selection.  Drafts may leave
// categories empty and hold no capacity.
func (h *SessionHandler) SaveDraft(c echo.Context) error {
	d, ok := getDelegate(c)
	if !ok {
		return nil
	}
	var sel model.Selections
	if err := c.Bind(&sel); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body", "reason": "invalid_request"})
	}
	res, err := h.Submissions.SaveDraft(c.Request().Context(), d, sel)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
