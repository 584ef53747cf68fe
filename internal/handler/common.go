package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/conference-reservation/internal/middleware"
	"github.com/iliyamo/conference-reservation/internal/model"
	"github.com/iliyamo/conference-reservation/internal/service"
)

// getDelegate returns the authenticated delegate or writes a 401.
func getDelegate(c echo.Context) (model.Delegate, bool) {
	d, ok := middleware.DelegateFrom(c)
	if !ok {
		_ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return d, ok
}

// writeError maps engine errors onto HTTP responses.  Every body carries a
// machine-readable "reason" next to the human "error".
func writeError(c echo.Context, err error) error {
	var (
		inv      *service.InvalidRequestError
		conflict *service.ResourceConflictError
		quota    *service.QuotaExceededError
		already  *service.AlreadySubmittedError
		storage  *service.StorageUnavailableError
	)
	switch {
	case errors.As(err, &inv):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": inv.Reason, "reason": "invalid_request"})
	case errors.As(err, &conflict):
		body := echo.Map{"error": "resources unavailable", "reason": "conflict"}
		if len(conflict.Units) > 0 {
			body["conflictingUnits"] = conflict.Units
		}
		if len(conflict.Pools) > 0 {
			body["conflictingPools"] = conflict.Pools
		}
		return c.JSON(http.StatusConflict, body)
	case errors.As(err, &quota):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":     "entity seat quota exceeded",
			"reason":    "quota_exceeded",
			"requested": quota.Requested,
			"remaining": quota.Remaining,
		})
	case errors.As(err, &already):
		body := echo.Map{"error": "selection already submitted", "reason": "already_submitted"}
		if already.SubmittedAt != nil {
			body["submittedAt"] = already.SubmittedAt
		}
		return c.JSON(http.StatusForbidden, body)
	case errors.As(err, &storage):
		c.Logger().Errorf("storage unavailable: %v", storage)
		retry := "5"
		if storage.Transient {
			retry = "1"
		}
		c.Response().Header().Set("Retry-After", retry)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"error":     "storage unavailable",
			"reason":    "storage_unavailable",
			"retryable": storage.Transient,
		})
	}
	c.Logger().Errorf("unhandled error: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
