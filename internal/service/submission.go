package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/conference-reservation/internal/model"
	"github.com/iliyamo/conference-reservation/internal/queue"
	"github.com/iliyamo/conference-reservation/internal/repository"
)

// SubmissionLock is the one-shot gate on session selections.  The pool
// increments and the lock flag are written in one transaction, so a
// delegate is either locked and counted in every chosen pool or neither.
type SubmissionLock struct {
	ledger *repository.Ledger
	cache  *ProjectorCache
	events EventPublisher
	log    *zap.Logger
	now    func() time.Time
}

func NewSubmissionLock(ledger *repository.Ledger, cache *ProjectorCache, events EventPublisher, log *zap.Logger) *SubmissionLock {
	if log == nil {
		log = zap.NewNop()
	}
	return &SubmissionLock{ledger: ledger, cache: cache, events: events, log: log, now: time.Now}
}

// Submit takes one slot in each chosen pool and freezes the selection.
func (l *SubmissionLock) Submit(ctx context.Context, d model.Delegate, sel model.Selections) (*model.DelegateSelection, error) {
	if d.ID == "" {
		return nil, invalid("delegate id is required")
	}
	sel = sel.Normalize()

	now := l.now().UTC()
	var out *model.DelegateSelection
	err := l.ledger.Update(ctx, func(tx *repository.LedgerTx) error {
		tctx := tx.Context()
		cur, err := tx.Selection(tctx, d.ID)
		if err != nil {
			return err
		}
		// a locked selection rejects every later submit, complete or not
		if cur != nil && cur.Locked {
			return &AlreadySubmittedError{DelegateID: d.ID, SubmittedAt: cur.SubmittedAt}
		}
		if err := sel.Complete(); err != nil {
			return invalid("%v", err)
		}
		if err := checkPools(tx, sel, true); err != nil {
			return err
		}

		if err := tx.EnsureSelection(tctx, d.ID, d.EntityID, now); err != nil {
			return err
		}
		locked, err := tx.LockSelection(tctx, d.ID, sel, now)
		if err != nil {
			return err
		}
		if !locked {
			return &AlreadySubmittedError{DelegateID: d.ID}
		}

		poolIDs := make([]string, 0, len(model.Categories))
		for _, c := range model.Categories {
			poolIDs = append(poolIDs, sel.Get(c))
		}
		sort.Strings(poolIDs)
		var full []string
		recs := make([]model.OccupancyRecord, 0, len(poolIDs))
		for _, id := range poolIDs {
			ok, err := tx.IncrementPool(tctx, id)
			if err != nil {
				return err
			}
			if !ok {
				full = append(full, id)
				continue
			}
			recs = append(recs, model.OccupancyRecord{
				ID:         uuid.NewString(),
				Kind:       model.UnitPool,
				PoolID:     id,
				OccupantID: d.ID,
				EntityID:   d.EntityID,
				CreatedAt:  now,
			})
		}
		if len(full) > 0 {
			return &ResourceConflictError{Pools: full}
		}
		if err := tx.InsertPoolOccupancy(tctx, recs); err != nil {
			return err
		}

		submitted := now
		out = &model.DelegateSelection{
			DelegateID:  d.ID,
			EntityID:    d.EntityID,
			Selections:  sel,
			Locked:      true,
			SubmittedAt: &submitted,
			UpdatedAt:   now,
		}
		return nil
	})
	if err != nil {
		return nil, storageError("submit", err)
	}

	l.cache.InvalidatePools(ctx)
	l.log.Info("session selection locked",
		zap.String("delegate_id", d.ID),
		zap.String("track1", sel.Track1),
		zap.String("track2", sel.Track2),
		zap.String("panel", sel.Panel))
	publishAsync(l.events, l.log, queue.Event{
		Type:       queue.EventSessionsSubmitted,
		DelegateID: d.ID,
		EntityID:   d.EntityID,
		Selections: &sel,
		OccurredAt: now,
	})
	return out, nil
}

// SaveDraft stores a partial or complete selection without taking any
// pool capacity.  Drafts are rejected once the selection is locked.
func (l *SubmissionLock) SaveDraft(ctx context.Context, d model.Delegate, sel model.Selections) (*model.DelegateSelection, error) {
	if d.ID == "" {
		return nil, invalid("delegate id is required")
	}
	sel = sel.Normalize()

	now := l.now().UTC()
	var out *model.DelegateSelection
	err := l.ledger.Update(ctx, func(tx *repository.LedgerTx) error {
		tctx := tx.Context()
		if err := checkPools(tx, sel, false); err != nil {
			return err
		}
		if err := tx.EnsureSelection(tctx, d.ID, d.EntityID, now); err != nil {
			return err
		}
		ok, err := tx.SaveDraft(tctx, d.ID, sel, now)
		if err != nil {
			return err
		}
		if !ok {
			cur, err := tx.Selection(tctx, d.ID)
			if err != nil {
				return err
			}
			e := &AlreadySubmittedError{DelegateID: d.ID}
			if cur != nil {
				e.SubmittedAt = cur.SubmittedAt
			}
			return e
		}
		out, err = tx.Selection(tctx, d.ID)
		return err
	})
	if err != nil {
		return nil, storageError("save draft", err)
	}
	return out, nil
}

// Selection returns the delegate's current selection, or an empty
// unlocked one if none was saved yet.
func (l *SubmissionLock) Selection(ctx context.Context, delegateID string) (*model.DelegateSelection, error) {
	var out *model.DelegateSelection
	err := l.ledger.View(ctx, func(tx *repository.LedgerTx) error {
		var err error
		out, err = tx.Selection(tx.Context(), delegateID)
		return err
	})
	if err != nil {
		return nil, storageError("selection", err)
	}
	if out == nil {
		out = &model.DelegateSelection{DelegateID: delegateID}
	}
	return out, nil
}

// checkPools verifies that each chosen pool exists and belongs to the
// category it was chosen for.  Empty choices pass unless complete is set.
func checkPools(tx *repository.LedgerTx, sel model.Selections, complete bool) error {
	for _, c := range model.Categories {
		id := sel.Get(c)
		if id == "" {
			if complete {
				return invalid("no pool chosen for %s", c)
			}
			continue
		}
		p, err := tx.Pool(tx.Context(), id)
		if errors.Is(err, repository.ErrPoolNotFound) {
			return invalid("pool %s does not exist", id)
		}
		if err != nil {
			return err
		}
		if p.Category != c {
			return invalid("pool %s is not a %s option", id, c)
		}
	}
	return nil
}
