package service

import (
	"context"
	"math"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/conference-reservation/internal/model"
	"github.com/iliyamo/conference-reservation/internal/queue"
	"github.com/iliyamo/conference-reservation/internal/repository"
)

func TestReserve_EntityQuotaScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := delegate("A", "LCX"), delegate("B", "LCX"), delegate("C", "LCX")

	res, err := f.coordinator.Reserve(ctx, a, []model.SeatID{seat(5, 1), seat(5, 2)})
	require.NoError(t, err)
	require.Len(t, res.Reserved, 2)
	assert.Equal(t, seat(5, 1), *res.Reserved[0].Seat)
	assert.Equal(t, "A", res.Reserved[0].OccupantID)
	assert.NotEmpty(t, res.Reserved[0].ID)
	assert.Equal(t, 2, f.entity(t, "LCX").SeatsHeld)

	_, err = f.coordinator.Reserve(ctx, b, []model.SeatID{seat(5, 1)})
	var conflict *ResourceConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []model.SeatID{seat(5, 1)}, conflict.Units)

	_, err = f.coordinator.Reserve(ctx, c, []model.SeatID{seat(8, 1), seat(8, 2)})
	var quota *QuotaExceededError
	require.ErrorAs(t, err, &quota)
	assert.Equal(t, 2, quota.Requested)
	assert.Equal(t, 1, quota.Remaining)

	for _, s := range f.seats(t, 8) {
		assert.True(t, s.Free(), "seat %s must be untouched", s.ID())
	}
	assert.Equal(t, 2, f.entity(t, "LCX").SeatsHeld)
}

func TestReserve_HeldSeatsAreNotChargedTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := delegate("A", "LCX")

	first, err := f.coordinator.Reserve(ctx, a, []model.SeatID{seat(1, 1)})
	require.NoError(t, err)

	res, err := f.coordinator.Reserve(ctx, a, []model.SeatID{seat(1, 2), seat(1, 1), seat(1, 1)})
	require.NoError(t, err)
	require.Len(t, res.Reserved, 2)
	assert.Equal(t, first.Reserved[0].ID, res.Reserved[0].ID, "existing record is returned as is")
	assert.Equal(t, 2, f.entity(t, "LCX").SeatsHeld)

	res, err = f.coordinator.Reserve(ctx, a, []model.SeatID{seat(1, 1)})
	require.NoError(t, err)
	assert.Len(t, res.Reserved, 1)
	assert.Equal(t, 2, f.entity(t, "LCX").SeatsHeld)
}

func TestReserve_FailsClosedWithoutPopulation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, d := range []model.Delegate{delegate("Z", "ZERO"), delegate("U", "UNKNOWN")} {
		_, err := f.coordinator.Reserve(ctx, d, []model.SeatID{seat(2, 2)})
		var quota *QuotaExceededError
		require.ErrorAs(t, err, &quota, d.EntityID)
		assert.Equal(t, 0, quota.Remaining)
	}
	assert.True(t, f.seats(t, 2)[1].Free())
}

func TestReserve_InvalidRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := delegate("A", "BIG")

	cases := map[string]struct {
		d     model.Delegate
		units []model.SeatID
	}{
		"empty":        {a, nil},
		"zero table":   {a, []model.SeatID{seat(0, 1)}},
		"zero seat":    {a, []model.SeatID{seat(1, 0)}},
		"no table":     {a, []model.SeatID{seat(99, 1)}},
		"no seat":      {a, []model.SeatID{seat(1, 11)}},
		"no entity":    {model.Delegate{ID: "A"}, []model.SeatID{seat(1, 1)}},
		"no delegate":  {model.Delegate{EntityID: "BIG"}, []model.SeatID{seat(1, 1)}},
		"huge table":   {a, []model.SeatID{seat(math.MaxInt32+1, 1)}},
		"huge seat":    {a, []model.SeatID{seat(1, math.MaxUint32)}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.coordinator.Reserve(ctx, tc.d, tc.units)
			var inv *InvalidRequestError
			assert.ErrorAs(t, err, &inv)
		})
	}
	assert.Equal(t, 0, f.entity(t, "BIG").SeatsHeld)
}

func TestReserve_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.Reserve(ctx, delegate("A", "LCX"), []model.SeatID{seat(2, 3)})
	require.NoError(t, err)

	_, err = f.coordinator.Reserve(ctx, delegate("B", "BIG"), []model.SeatID{seat(2, 1), seat(2, 2), seat(2, 3)})
	var conflict *ResourceConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []model.SeatID{seat(2, 3)}, conflict.Units)

	seats := f.seats(t, 2)
	assert.True(t, seats[0].Free())
	assert.True(t, seats[1].Free())
	assert.True(t, seats[2].HeldBy("A"))
	assert.Equal(t, 0, f.entity(t, "BIG").SeatsHeld)
}

// The ledgertest database has a single connection, so these concurrent
// calls serialize on it.  They check the outcome of interleaved requests;
// a conditional write losing mid-transaction is covered with sqlmock in
// rollback_test.go.
func TestReserve_ConcurrentSameSeatHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := delegateIDs("d", 20)

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.coordinator.Reserve(ctx, delegate(id, "BIG"), []model.SeatID{seat(3, 3)})
		}(i, id)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		var conflict *ResourceConflictError
		assert.ErrorAs(t, err, &conflict)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, f.entity(t, "BIG").SeatsHeld)
}

func TestReserve_ConcurrentQuotaRaceNeverExceedsQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := delegateIDs("lcx", 6)

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.coordinator.Reserve(ctx, delegate(id, "LCX"), []model.SeatID{seat(6, uint32(i+1))})
		}(i, id)
	}
	wg.Wait()

	wins, rejected := 0, 0
	for _, err := range errs {
		var quota *QuotaExceededError
		switch {
		case err == nil:
			wins++
		case errors.As(err, &quota):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 3, wins)
	assert.Equal(t, 3, rejected)
	assert.Equal(t, 3, f.entity(t, "LCX").SeatsHeld)

	held := 0
	for _, s := range f.seats(t, 6) {
		if !s.Free() {
			held++
		}
	}
	assert.Equal(t, 3, held)
}

func TestToggleTable_ClaimsFreeSeatsThenReleases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := delegate("A", "BIG")

	res, err := f.coordinator.ToggleTable(ctx, a, 7)
	require.NoError(t, err)
	assert.Len(t, res.Reserved, 10)
	assert.Empty(t, res.Released)
	assert.Equal(t, 10, f.entity(t, "BIG").SeatsHeld)

	res, err = f.coordinator.ToggleTable(ctx, a, 7)
	require.NoError(t, err)
	assert.Empty(t, res.Reserved)
	assert.Len(t, res.Released, 10)
	assert.Equal(t, 0, f.entity(t, "BIG").SeatsHeld)
	for _, s := range f.seats(t, 7) {
		assert.True(t, s.Free())
	}
}

func TestToggleTable_OnlyTakesFreeSeats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := delegate("A", "BIG"), delegate("B", "LCX")

	_, err := f.coordinator.Reserve(ctx, b, []model.SeatID{seat(4, 1)})
	require.NoError(t, err)
	_, err = f.coordinator.Reserve(ctx, a, []model.SeatID{seat(4, 2)})
	require.NoError(t, err)

	res, err := f.coordinator.ToggleTable(ctx, a, 4)
	require.NoError(t, err)
	require.Len(t, res.Reserved, 9)
	assert.Equal(t, seat(4, 2), *res.Reserved[0].Seat)
	assert.Equal(t, 9, f.entity(t, "BIG").SeatsHeld)
	assert.True(t, f.seats(t, 4)[0].HeldBy("B"))

	// nothing free and not all ours: conflict naming B's seat
	_, err = f.coordinator.ToggleTable(ctx, a, 4)
	var conflict *ResourceConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []model.SeatID{seat(4, 1)}, conflict.Units)
	assert.Equal(t, 9, f.entity(t, "BIG").SeatsHeld)
}

func TestToggleTable_RespectsQuotaAndLayout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.ToggleTable(ctx, delegate("A", "LCX"), 1)
	var quota *QuotaExceededError
	require.ErrorAs(t, err, &quota)
	assert.Equal(t, 10, quota.Requested)
	for _, s := range f.seats(t, 1) {
		assert.True(t, s.Free())
	}

	_, err = f.coordinator.ToggleTable(ctx, delegate("A", "BIG"), 42)
	var inv *InvalidRequestError
	assert.ErrorAs(t, err, &inv)
}

func TestReserve_PublishesEventAfterCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.Reserve(ctx, delegate("A", "LCX"), []model.SeatID{seat(9, 9)})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(f.events.Events()) == 1 }, time.Second, 10*time.Millisecond)
	ev := f.events.Events()[0]
	assert.Equal(t, queue.EventSeatsReserved, ev.Type)
	assert.Equal(t, "A", ev.DelegateID)
	assert.Equal(t, []model.SeatID{seat(9, 9)}, ev.Seats)
	assert.NotEmpty(t, ev.ID)

	// failed requests publish nothing
	_, err = f.coordinator.Reserve(ctx, delegate("B", "LCX"), []model.SeatID{seat(9, 9)})
	require.Error(t, err)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, f.events.Events(), 1)
}

func TestReserve_StorageFailureIsTyped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin().WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"})

	l := repository.NewLedger(db, repository.MySQL)
	c := NewCoordinator(l, NewQuotaCalculator(QuotaPolicy{}), nil, nil, zap.NewNop())

	_, err = c.Reserve(context.Background(), delegate("A", "LCX"), []model.SeatID{seat(1, 1)})
	var storage *StorageUnavailableError
	require.ErrorAs(t, err, &storage)
	assert.True(t, storage.Transient)
	assert.Equal(t, "reserve", storage.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}
