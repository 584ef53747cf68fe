package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/conference-reservation/internal/model"
	"github.com/iliyamo/conference-reservation/internal/repository"
)

// engineError marks the typed outcomes callers are expected to branch on.
type engineError interface {
	error
	engineError()
}

// InvalidRequestError reports a malformed or empty request.  Retrying the
// same request will fail the same way.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string { return "invalid request: " + e.Reason }
func (*InvalidRequestError) engineError()    {}

func invalid(format string, args ...interface{}) error {
	return &InvalidRequestError{Reason: fmt.Sprintf(format, args...)}
}

// ResourceConflictError names the seats or pools that were not available
// at commit time.  The caller should refresh its view and retry with a
// recomputed request.
type ResourceConflictError struct {
	Units []model.SeatID
	Pools []string
}

func (e *ResourceConflictError) Error() string {
	var parts []string
	for _, u := range e.Units {
		parts = append(parts, "seat "+u.String())
	}
	for _, p := range e.Pools {
		parts = append(parts, "pool "+p)
	}
	return "resources unavailable: " + strings.Join(parts, ", ")
}
func (*ResourceConflictError) engineError() {}

// QuotaExceededError reports that the requester's entity has fewer seats
// left than the request needs.
type QuotaExceededError struct {
	EntityID  string
	Requested int
	Remaining int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for entity %s: requested %d, remaining %d", e.EntityID, e.Requested, e.Remaining)
}
func (*QuotaExceededError) engineError() {}

// AlreadySubmittedError reports that the delegate's session selection is
// locked.  It is never retryable.
type AlreadySubmittedError struct {
	DelegateID  string
	SubmittedAt *time.Time
}

func (e *AlreadySubmittedError) Error() string {
	return "session selection already submitted for delegate " + e.DelegateID
}
func (*AlreadySubmittedError) engineError() {}

// StorageUnavailableError wraps a failure of the durable ledger.  Nothing
// was applied.  Transient is set for lock timeouts, deadlocks and dropped
// connections, which are worth retrying with backoff.
type StorageUnavailableError struct {
	Op        string
	Err       error
	Transient bool
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable during %s: %v", e.Op, e.Err)
}
func (e *StorageUnavailableError) Unwrap() error   { return e.Err }
func (e *StorageUnavailableError) Temporary() bool { return e.Transient }
func (*StorageUnavailableError) engineError()      {}

// storageError passes typed engine errors through and wraps everything
// else as StorageUnavailableError.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ee engineError
	if errors.As(err, &ee) {
		return err
	}
	return &StorageUnavailableError{Op: op, Err: err, Transient: repository.IsTransient(err)}
}
