package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/conference-reservation/internal/model"
)

// Selection returns the delegate's selection record, or nil when the
// delegate has never saved one.
func (t *LedgerTx) Selection(ctx context.Context, delegateID string) (*model.DelegateSelection, error) {
	const q = `SELECT delegate_id, entity_id, track1, track2, panel, is_locked, submitted_at, updated_at
	           FROM delegate_selections WHERE delegate_id = ?`
	var s model.DelegateSelection
	var locked int
	var submitted sql.NullInt64
	var updated int64
	err := t.queryRow(ctx, q, delegateID).Scan(
		&s.DelegateID, &s.EntityID, &s.Selections.Track1, &s.Selections.Track2, &s.Selections.Panel,
		&locked, &submitted, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Locked = locked != 0
	s.SubmittedAt = nullMillis(submitted)
	s.UpdatedAt = fromMillis(updated)
	return &s, nil
}

// EnsureSelection creates an empty, unlocked record for the delegate if
// none exists yet.
func (t *LedgerTx) EnsureSelection(ctx context.Context, delegateID, entityID string, at time.Time) error {
	q := t.dialect.InsertIgnore("delegate_selections",
		"delegate_id", "entity_id", "track1", "track2", "panel", "is_locked", "updated_at")
	_, err := t.tx.ExecContext(ctx, q, delegateID, entityID, "", "", "", 0, toMillis(at))
	return err
}

// SaveDraft overwrites the delegate's choices if and only if the record is
// not locked.
func (t *LedgerTx) SaveDraft(ctx context.Context, delegateID string, sel model.Selections, at time.Time) (bool, error) {
	return t.applied(ctx,
		`UPDATE delegate_selections SET track1 = ?, track2 = ?, panel = ?, updated_at = ?
		 WHERE delegate_id = ? AND is_locked = 0`,
		sel.Track1, sel.Track2, sel.Panel, toMillis(at), delegateID)
}

// LockSelection writes the final choices and freezes the record if and
// only if it is still unlocked.  Exactly one of any number of concurrent
// callers for the same delegate sees true.
func (t *LedgerTx) LockSelection(ctx context.Context, delegateID string, sel model.Selections, at time.Time) (bool, error) {
	ms := toMillis(at)
	return t.applied(ctx,
		`UPDATE delegate_selections
		 SET track1 = ?, track2 = ?, panel = ?, is_locked = 1, submitted_at = ?, updated_at = ?
		 WHERE delegate_id = ? AND is_locked = 0`,
		sel.Track1, sel.Track2, sel.Panel, ms, ms, delegateID)
}
