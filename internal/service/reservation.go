package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/conference-reservation/internal/model"
	"github.com/iliyamo/conference-reservation/internal/queue"
	"github.com/iliyamo/conference-reservation/internal/repository"
)

// MaxUnitsPerRequest bounds the seats a single reserve call may name.
const MaxUnitsPerRequest = 50

// maxUnitID is the largest table or seat number the ledger columns hold.
const maxUnitID = math.MaxInt32

// ReserveResult is the outcome of a committed seat transaction.  Reserved
// holds the occupancy records the requester now has for the requested
// units, including ones held before the call.  Released lists seats freed
// by a table toggle.
type ReserveResult struct {
	Reserved []model.OccupancyRecord `json:"reserved"`
	Released []model.SeatID          `json:"released,omitempty"`
}

// Coordinator applies seat reservations as single all-or-nothing ledger
// transactions.  It is safe for concurrent use; all coordination happens
// in the database through conditional writes.
type Coordinator struct {
	ledger *repository.Ledger
	quota  *QuotaCalculator
	cache  *ProjectorCache
	events EventPublisher
	log    *zap.Logger
	now    func() time.Time
}

func NewCoordinator(ledger *repository.Ledger, quota *QuotaCalculator, cache *ProjectorCache, events EventPublisher, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{ledger: ledger, quota: quota, cache: cache, events: events, log: log, now: time.Now}
}

func validDelegate(d model.Delegate) error {
	if d.ID == "" {
		return invalid("delegate id is required")
	}
	if d.EntityID == "" {
		return invalid("delegate %s has no entity", d.ID)
	}
	return nil
}

// Reserve claims the given seats for the delegate.  Either every seat ends
// up held by the delegate or nothing changes.
func (c *Coordinator) Reserve(ctx context.Context, d model.Delegate, units []model.SeatID) (*ReserveResult, error) {
	if err := validDelegate(d); err != nil {
		return nil, err
	}
	units = model.DedupeSeatIDs(units)
	if len(units) == 0 {
		return nil, invalid("no seats requested")
	}
	if len(units) > MaxUnitsPerRequest {
		return nil, invalid("at most %d seats per request", MaxUnitsPerRequest)
	}
	tableSet := map[uint32]struct{}{}
	var tableIDs []uint32
	for _, u := range units {
		if u.TableID == 0 || u.SeatNumber == 0 || u.TableID > maxUnitID || u.SeatNumber > maxUnitID {
			return nil, invalid("seat %s does not exist", u)
		}
		if _, ok := tableSet[u.TableID]; !ok {
			tableSet[u.TableID] = struct{}{}
			tableIDs = append(tableIDs, u.TableID)
		}
	}

	var res ReserveResult
	var claimed []model.SeatID
	err := c.ledger.Update(ctx, func(tx *repository.LedgerTx) error {
		tctx := tx.Context()
		seats, err := tx.Seats(tctx, tableIDs...)
		if err != nil {
			return err
		}
		byID := make(map[model.SeatID]model.Seat, len(seats))
		for _, s := range seats {
			byID[s.ID()] = s
		}

		var free []model.SeatID
		var taken []model.SeatID
		for _, u := range units {
			s, ok := byID[u]
			switch {
			case !ok:
				return invalid("seat %s does not exist", u)
			case s.HeldBy(d.ID):
				res.Reserved = append(res.Reserved, recordOf(s))
			case !s.Free():
				taken = append(taken, u)
			default:
				free = append(free, u)
			}
		}
		if len(taken) > 0 {
			return &ResourceConflictError{Units: taken}
		}
		recs, err := c.claim(tx, d, free)
		if err != nil {
			return err
		}
		res.Reserved = append(res.Reserved, recs...)
		claimed = free
		return nil
	})
	if err != nil {
		return nil, storageError("reserve", err)
	}

	if len(claimed) > 0 {
		c.afterCommit(ctx, d, queue.EventSeatsReserved, claimed)
	}
	sortRecords(res.Reserved)
	return &res, nil
}

// ToggleTable claims every free seat of a table for the delegate, or, when
// the delegate already holds the whole table, releases it.  The target
// seats are derived from the ledger inside the transaction.
func (c *Coordinator) ToggleTable(ctx context.Context, d model.Delegate, tableID uint32) (*ReserveResult, error) {
	if err := validDelegate(d); err != nil {
		return nil, err
	}
	if tableID == 0 {
		return nil, invalid("table id is required")
	}
	if tableID > maxUnitID {
		return nil, invalid("table %d does not exist", tableID)
	}

	var res ReserveResult
	var changed []model.SeatID
	evType := queue.EventSeatsReserved
	err := c.ledger.Update(ctx, func(tx *repository.LedgerTx) error {
		tctx := tx.Context()
		if _, err := tx.Table(tctx, tableID); err != nil {
			if errors.Is(err, repository.ErrTableNotFound) {
				return invalid("table %d does not exist", tableID)
			}
			return err
		}
		seats, err := tx.TableSeats(tctx, tableID)
		if err != nil {
			return err
		}

		var mine, free, others []model.Seat
		for _, s := range seats {
			switch {
			case s.HeldBy(d.ID):
				mine = append(mine, s)
			case s.Free():
				free = append(free, s)
			default:
				others = append(others, s)
			}
		}

		switch {
		case len(seats) > 0 && len(mine) == len(seats):
			released, err := c.release(tx, d, mine)
			if err != nil {
				return err
			}
			res.Released = released
			changed = released
			evType = queue.EventSeatsReleased
			return nil
		case len(free) == 0:
			conflict := &ResourceConflictError{}
			for _, s := range others {
				conflict.Units = append(conflict.Units, s.ID())
			}
			return conflict
		}

		for _, s := range mine {
			res.Reserved = append(res.Reserved, recordOf(s))
		}
		ids := make([]model.SeatID, len(free))
		for i, s := range free {
			ids[i] = s.ID()
		}
		recs, err := c.claim(tx, d, ids)
		if err != nil {
			return err
		}
		res.Reserved = append(res.Reserved, recs...)
		changed = ids
		return nil
	})
	if err != nil {
		return nil, storageError("toggle table", err)
	}

	c.afterCommit(ctx, d, evType, changed)
	sortRecords(res.Reserved)
	return &res, nil
}

// claim charges the entity's quota for the seats and then claims each one.
// ids must be sorted so concurrent transactions lock rows in one order.
func (c *Coordinator) claim(tx *repository.LedgerTx, d model.Delegate, ids []model.SeatID) ([]model.OccupancyRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx := tx.Context()
	allowance, err := c.quota.Allowance(ctx, tx, d.EntityID)
	if err != nil {
		return nil, err
	}
	if len(ids) > allowance.Remaining {
		return nil, &QuotaExceededError{EntityID: d.EntityID, Requested: len(ids), Remaining: allowance.Remaining}
	}
	// the guard is re-evaluated by the database against the latest counter
	ok, err := tx.AddEntitySeats(ctx, d.EntityID, len(ids), allowance.Quota)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &QuotaExceededError{EntityID: d.EntityID, Requested: len(ids), Remaining: 0}
	}

	now := c.now().UTC()
	recs := make([]model.OccupancyRecord, 0, len(ids))
	var lost []model.SeatID
	for _, id := range ids {
		recID := uuid.NewString()
		ok, err := tx.ClaimSeat(ctx, id, d, recID, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			lost = append(lost, id)
			continue
		}
		seat := id
		recs = append(recs, model.OccupancyRecord{
			ID:         recID,
			Kind:       model.UnitSeat,
			Seat:       &seat,
			OccupantID: d.ID,
			EntityID:   d.EntityID,
			CreatedAt:  now,
		})
	}
	if len(lost) > 0 {
		return nil, &ResourceConflictError{Units: lost}
	}
	return recs, nil
}

// release frees seats held by the delegate and gives the seats back to the
// entities that were charged for them.
func (c *Coordinator) release(tx *repository.LedgerTx, d model.Delegate, seats []model.Seat) ([]model.SeatID, error) {
	ctx := tx.Context()
	perEntity := map[string]int{}
	var entities []string
	for _, s := range seats {
		e := d.EntityID
		if s.OccupantEntityID != nil {
			e = *s.OccupantEntityID
		}
		if _, ok := perEntity[e]; !ok {
			entities = append(entities, e)
		}
		perEntity[e]++
	}
	for _, e := range entities {
		ok, err := tx.ReleaseEntitySeats(ctx, e, perEntity[e])
		if err != nil {
			return nil, err
		}
		if !ok {
			c.log.Warn("entity seat counter below released seats",
				zap.String("entity_id", e), zap.Int("seats", perEntity[e]))
		}
	}

	ids := make([]model.SeatID, 0, len(seats))
	for _, s := range seats {
		ok, err := tx.ReleaseSeat(ctx, s.ID(), d.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &ResourceConflictError{Units: []model.SeatID{s.ID()}}
		}
		ids = append(ids, s.ID())
	}
	return ids, nil
}

func (c *Coordinator) afterCommit(ctx context.Context, d model.Delegate, evType queue.EventType, seats []model.SeatID) {
	if len(seats) == 0 {
		return
	}
	tables := map[uint32]struct{}{}
	var ids []uint32
	for _, s := range seats {
		if _, ok := tables[s.TableID]; !ok {
			tables[s.TableID] = struct{}{}
			ids = append(ids, s.TableID)
		}
	}
	c.cache.InvalidateTables(ctx, ids...)
	c.cache.InvalidateEntities(ctx, d.EntityID)

	c.log.Info("seats committed",
		zap.String("type", string(evType)),
		zap.String("delegate_id", d.ID),
		zap.String("entity_id", d.EntityID),
		zap.Int("seats", len(seats)))
	publishAsync(c.events, c.log, queue.Event{
		Type:       evType,
		DelegateID: d.ID,
		EntityID:   d.EntityID,
		Seats:      seats,
		OccurredAt: c.now().UTC(),
	})
}

func recordOf(s model.Seat) model.OccupancyRecord {
	id := s.ID()
	rec := model.OccupancyRecord{
		ID:   s.RecordID,
		Kind: model.UnitSeat,
		Seat: &id,
	}
	if s.OccupantID != nil {
		rec.OccupantID = *s.OccupantID
	}
	if s.OccupantEntityID != nil {
		rec.EntityID = *s.OccupantEntityID
	}
	if s.HeldAt != nil {
		rec.CreatedAt = *s.HeldAt
	}
	return rec
}

func sortRecords(recs []model.OccupancyRecord) {
	ids := make([]model.SeatID, 0, len(recs))
	byID := make(map[model.SeatID]model.OccupancyRecord, len(recs))
	for _, r := range recs {
		if r.Seat == nil {
			continue
		}
		ids = append(ids, *r.Seat)
		byID[*r.Seat] = r
	}
	if len(ids) != len(recs) {
		return
	}
	model.SortSeatIDs(ids)
	for i, id := range ids {
		recs[i] = byID[id]
	}
}
