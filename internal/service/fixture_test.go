package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/conference-reservation/internal/model"
	"github.com/iliyamo/conference-reservation/internal/queue"
	"github.com/iliyamo/conference-reservation/internal/repository"
	"github.com/iliyamo/conference-reservation/internal/repository/ledgertest"
)

var testPools = []model.Pool{
	{ID: "track1-sustainability", Category: model.CategoryTrack1, Capacity: 80},
	{ID: "track1-innovation", Category: model.CategoryTrack1, Capacity: 80},
	{ID: "track2-policy", Category: model.CategoryTrack2, Capacity: 80},
	{ID: "panel-leadership", Category: model.CategoryPanel, Capacity: 120},
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Events() []queue.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.Event(nil), p.events...)
}

type fixture struct {
	ledger      *repository.Ledger
	quota       *QuotaCalculator
	events      *recordingPublisher
	coordinator *Coordinator
	submissions *SubmissionLock
	projector   *Projector
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithCache(t, nil)
}

func newFixtureWithCache(t *testing.T, cache *ProjectorCache) *fixture {
	t.Helper()
	l := ledgertest.New(t)
	ledgertest.Seed(t, l, ledgertest.Layout(10, 10, testPools...),
		model.Entity{ID: "LCX", Name: "LCX Ltd", Population: 3},
		model.Entity{ID: "BIG", Name: "Big Org", Population: 50},
		model.Entity{ID: "ZERO", Name: "Nobody Registered", Population: 0},
	)
	quota := NewQuotaCalculator(QuotaPolicy{SeatsPerDelegate: 1})
	events := &recordingPublisher{}
	log := zap.NewNop()
	return &fixture{
		ledger:      l,
		quota:       quota,
		events:      events,
		coordinator: NewCoordinator(l, quota, cache, events, log),
		submissions: NewSubmissionLock(l, cache, events, log),
		projector:   NewProjector(l, quota, cache, log),
	}
}

func delegate(id, entity string) model.Delegate {
	return model.Delegate{ID: id, EntityID: entity, DisplayName: "Delegate " + id}
}

func seat(table, number uint32) model.SeatID {
	return model.SeatID{TableID: table, SeatNumber: number}
}

func (f *fixture) entity(t *testing.T, id string) model.Entity {
	t.Helper()
	var e model.Entity
	require.NoError(t, f.ledger.View(context.Background(), func(tx *repository.LedgerTx) error {
		var err error
		e, err = tx.Entity(tx.Context(), id)
		return err
	}))
	return e
}

func (f *fixture) seats(t *testing.T, table uint32) []model.Seat {
	t.Helper()
	var seats []model.Seat
	require.NoError(t, f.ledger.View(context.Background(), func(tx *repository.LedgerTx) error {
		var err error
		seats, err = tx.TableSeats(tx.Context(), table)
		return err
	}))
	return seats
}

func (f *fixture) pool(t *testing.T, id string) model.Pool {
	t.Helper()
	var p model.Pool
	require.NoError(t, f.ledger.View(context.Background(), func(tx *repository.LedgerTx) error {
		var err error
		p, err = tx.Pool(tx.Context(), id)
		return err
	}))
	return p
}

func (f *fixture) setPoolOccupancy(t *testing.T, id string, n int) {
	t.Helper()
	_, err := f.ledger.DB().Exec(`UPDATE session_pools SET occupancy = ? WHERE id = ?`, n, id)
	require.NoError(t, err)
}

func delegateIDs(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%02d", prefix, i)
	}
	return out
}
