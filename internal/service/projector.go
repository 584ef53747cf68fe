package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/iliyamo/conference-reservation/internal/model"
	"github.com/iliyamo/conference-reservation/internal/repository"
)

// SeatStatus is the display state of one seat.
type SeatStatus string

const (
	SeatFree SeatStatus = "free"
	SeatHeld SeatStatus = "held"
)

// SeatView is one seat on the seating chart.
type SeatView struct {
	Number     uint32     `json:"number"`
	Status     SeatStatus `json:"status"`
	OccupantID string     `json:"occupantId,omitempty"`
	Occupant   string     `json:"occupant,omitempty"`
	EntityID   string     `json:"entityId,omitempty"`
}

// TableView is one table on the seating chart.
type TableView struct {
	ID    uint32     `json:"id"`
	Label string     `json:"label"`
	Free  int        `json:"free"`
	Seats []SeatView `json:"seats"`
}

// SeatingChart is the seat-grid view of every table.
type SeatingChart struct {
	Tables []TableView `json:"tables"`
}

// EntitySummary is an entity's held seats against its quota.
type EntitySummary struct {
	EntityID   string `json:"entityId"`
	Name       string `json:"name"`
	Population int    `json:"population"`
	Quota      int    `json:"max"`
	Used       int    `json:"used"`
	Remaining  int    `json:"remaining"`
}

// PoolStat is the fill count of one session pool.
type PoolStat struct {
	ID        string         `json:"id"`
	Category  model.Category `json:"category"`
	Label     string         `json:"label"`
	Occupancy int            `json:"occupancy"`
	Capacity  int            `json:"capacity"`
	Remaining int            `json:"remaining"`
	Full      bool           `json:"full"`
}

// Projector builds read-only views from the ledger.  Views may be served
// from the ProjectorCache; the ledger is consulted for anything the cache
// does not hold at its current version.  Nothing here writes the ledger.
type Projector struct {
	ledger *repository.Ledger
	quota  *QuotaCalculator
	cache  *ProjectorCache
	log    *zap.Logger

	mu     sync.Mutex
	tables []model.Table
}

func NewProjector(ledger *repository.Ledger, quota *QuotaCalculator, cache *ProjectorCache, log *zap.Logger) *Projector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Projector{ledger: ledger, quota: quota, cache: cache, log: log}
}

// layoutTables returns the fixed table list, reading it once.
func (p *Projector) layoutTables(ctx context.Context) ([]model.Table, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tables) > 0 {
		return p.tables, nil
	}
	var tables []model.Table
	err := p.ledger.View(ctx, func(tx *repository.LedgerTx) error {
		var err error
		tables, err = tx.Tables(tx.Context())
		return err
	})
	if err != nil {
		return nil, err
	}
	p.tables = tables
	return tables, nil
}

// SeatingChart returns the status of every seat.
func (p *Projector) SeatingChart(ctx context.Context) (*SeatingChart, error) {
	tables, err := p.layoutTables(ctx)
	if err != nil {
		return nil, storageError("seating chart", err)
	}
	views := make([]TableView, len(tables))
	missing := make([]int, 0, len(tables))

	var vers []int64
	if p.cache != nil {
		scopes := make([]string, len(tables))
		for i, t := range tables {
			scopes[i] = tableScope(t.ID)
		}
		vers, err = p.cache.versions(ctx, scopes)
		var raws [][]byte
		if err == nil {
			raws, err = p.cache.loadMany(ctx, scopes, vers)
		}
		if err != nil {
			p.log.Warn("projector cache unavailable", zap.Error(err))
			vers, raws = nil, nil
		}
		for i := range tables {
			if i < len(raws) && raws[i] != nil && json.Unmarshal(raws[i], &views[i]) == nil {
				continue
			}
			missing = append(missing, i)
		}
	} else {
		for i := range tables {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return &SeatingChart{Tables: views}, nil
	}

	ids := make([]uint32, len(missing))
	for k, i := range missing {
		ids[k] = tables[i].ID
	}
	var seats []model.Seat
	err = p.ledger.View(ctx, func(tx *repository.LedgerTx) error {
		var err error
		seats, err = tx.Seats(tx.Context(), ids...)
		return err
	})
	if err != nil {
		return nil, storageError("seating chart", err)
	}
	byTable := make(map[uint32][]model.Seat, len(ids))
	for _, s := range seats {
		byTable[s.TableID] = append(byTable[s.TableID], s)
	}
	for _, i := range missing {
		views[i] = tableView(tables[i], byTable[tables[i].ID])
		if vers != nil {
			p.cache.store(ctx, tableScope(tables[i].ID), vers[i], views[i])
		}
	}
	return &SeatingChart{Tables: views}, nil
}

func tableView(t model.Table, seats []model.Seat) TableView {
	v := TableView{ID: t.ID, Label: t.Label, Seats: make([]SeatView, 0, len(seats))}
	for _, s := range seats {
		sv := SeatView{Number: s.SeatNumber, Status: SeatFree}
		if !s.Free() {
			sv.Status = SeatHeld
			sv.OccupantID = *s.OccupantID
			sv.Occupant = s.OccupantLabel
			if s.OccupantEntityID != nil {
				sv.EntityID = *s.OccupantEntityID
			}
		} else {
			v.Free++
		}
		v.Seats = append(v.Seats, sv)
	}
	return v
}

// EntitySummary returns an entity's occupancy against its quota.  Unknown
// entities report a zero quota.
func (p *Projector) EntitySummary(ctx context.Context, entityID string) (*EntitySummary, error) {
	scope := entityScope(entityID)
	var ver int64
	cached := false
	if p.cache != nil {
		vers, err := p.cache.versions(ctx, []string{scope})
		if err == nil {
			ver, cached = vers[0], true
			var sum EntitySummary
			if ok, err := p.cache.load(ctx, scope, ver, &sum); err == nil && ok {
				return &sum, nil
			}
		} else {
			p.log.Warn("projector cache unavailable", zap.Error(err))
		}
	}

	var e model.Entity
	err := p.ledger.View(ctx, func(tx *repository.LedgerTx) error {
		var err error
		e, err = tx.Entity(tx.Context(), entityID)
		if errors.Is(err, repository.ErrEntityNotFound) {
			e, err = model.Entity{ID: entityID, Name: entityID}, nil
		}
		return err
	})
	if err != nil {
		return nil, storageError("entity summary", err)
	}
	sum := p.summaryOf(e)
	if cached {
		p.cache.store(ctx, scope, ver, sum)
	}
	return &sum, nil
}

// EntitySummaries returns the occupancy of every entity, read straight
// from the ledger.
func (p *Projector) EntitySummaries(ctx context.Context) ([]EntitySummary, error) {
	var entities []model.Entity
	err := p.ledger.View(ctx, func(tx *repository.LedgerTx) error {
		var err error
		entities, err = tx.Entities(tx.Context())
		return err
	})
	if err != nil {
		return nil, storageError("entity summaries", err)
	}
	out := make([]EntitySummary, 0, len(entities))
	for _, e := range entities {
		out = append(out, p.summaryOf(e))
	}
	return out, nil
}

func (p *Projector) summaryOf(e model.Entity) EntitySummary {
	a := p.quota.allowanceOf(e)
	return EntitySummary{
		EntityID:   e.ID,
		Name:       e.Name,
		Population: e.Population,
		Quota:      a.Quota,
		Used:       a.Used,
		Remaining:  a.Remaining,
	}
}

// PoolStats returns the fill count of every session pool.
func (p *Projector) PoolStats(ctx context.Context) ([]PoolStat, error) {
	var ver int64
	cached := false
	if p.cache != nil {
		vers, err := p.cache.versions(ctx, []string{poolsScope})
		if err == nil {
			ver, cached = vers[0], true
			var stats []PoolStat
			if ok, err := p.cache.load(ctx, poolsScope, ver, &stats); err == nil && ok {
				return stats, nil
			}
		} else {
			p.log.Warn("projector cache unavailable", zap.Error(err))
		}
	}

	var pools []model.Pool
	err := p.ledger.View(ctx, func(tx *repository.LedgerTx) error {
		var err error
		pools, err = tx.Pools(tx.Context())
		return err
	})
	if err != nil {
		return nil, storageError("pool stats", err)
	}
	stats := make([]PoolStat, 0, len(pools))
	for _, pl := range pools {
		stats = append(stats, PoolStat{
			ID:        pl.ID,
			Category:  pl.Category,
			Label:     pl.Label,
			Occupancy: pl.Occupancy,
			Capacity:  pl.Capacity,
			Remaining: pl.Remaining(),
			Full:      pl.Full(),
		})
	}
	if cached {
		p.cache.store(ctx, poolsScope, ver, stats)
	}
	return stats, nil
}
