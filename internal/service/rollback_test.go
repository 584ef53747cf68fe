package service

import (
	"context"
	"database/sql/driver"
	"math"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/conference-reservation/internal/model"
	"github.com/iliyamo/conference-reservation/internal/repository"
)

func mockLedger(t *testing.T) (*repository.Ledger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repository.NewLedger(db, repository.MySQL), mock
}

var seatRowColumns = []string{"table_id", "seat_number", "occupant_id", "occupant_entity_id", "occupant_label", "record_id", "held_at"}

func TestReserve_SeatLostMidTransactionRollsBack(t *testing.T) {
	l, mock := mockLedger(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM seats WHERE table_id IN`).
		WillReturnRows(sqlmock.NewRows(seatRowColumns).
			AddRow(1, 1, nil, nil, "", "", nil).
			AddRow(1, 2, nil, nil, "", "", nil))
	mock.ExpectQuery(`SELECT id, name, population, seats_held FROM entities WHERE id`).
		WithArgs("LCX").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "population", "seats_held"}).AddRow("LCX", "LCX Ltd", 3, 0))
	mock.ExpectExec(`UPDATE entities SET seats_held = seats_held \+`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE seats`).WillReturnResult(sqlmock.NewResult(0, 1))
	// another transaction took seat 1-2 after it was read as free
	mock.ExpectExec(`UPDATE seats`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	events := &recordingPublisher{}
	c := NewCoordinator(l, NewQuotaCalculator(QuotaPolicy{SeatsPerDelegate: 1}), nil, events, zap.NewNop())
	_, err := c.Reserve(context.Background(), delegate("A", "LCX"), []model.SeatID{seat(1, 1), seat(1, 2)})

	var conflict *ResourceConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []model.SeatID{seat(1, 2)}, conflict.Units)
	assert.Empty(t, events.Events())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmit_PoolFilledMidTransactionRollsBack(t *testing.T) {
	l, mock := mockLedger(t)
	poolColumns := []string{"id", "category", "label", "capacity", "occupancy"}

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM delegate_selections WHERE delegate_id`).
		WithArgs("A").
		WillReturnRows(sqlmock.NewRows([]string{"delegate_id", "entity_id", "track1", "track2", "panel", "is_locked", "submitted_at", "updated_at"}))
	for _, p := range [][]driver.Value{
		{"track1-sustainability", "track1", "Sustainability", 80, 79},
		{"track2-policy", "track2", "Policy", 80, 0},
		{"panel-leadership", "panel", "Leadership", 120, 0},
	} {
		mock.ExpectQuery(`FROM session_pools WHERE id`).
			WithArgs(p[0]).
			WillReturnRows(sqlmock.NewRows(poolColumns).AddRow(p...))
	}
	mock.ExpectExec(`INSERT IGNORE INTO delegate_selections`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE delegate_selections`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE session_pools`).WithArgs("panel-leadership").WillReturnResult(sqlmock.NewResult(0, 1))
	// the last slot went to a transaction that committed first
	mock.ExpectExec(`UPDATE session_pools`).WithArgs("track1-sustainability").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE session_pools`).WithArgs("track2-policy").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	s := NewSubmissionLock(l, nil, nil, zap.NewNop())
	_, err := s.Submit(context.Background(), delegate("A", "LCX"), model.Selections{
		Track1: "track1-sustainability",
		Track2: "track2-policy",
		Panel:  "panel-leadership",
	})

	var conflict *ResourceConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"track1-sustainability"}, conflict.Pools)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoordinator_OutOfRangeIDsNeverReachTheLedger(t *testing.T) {
	l, mock := mockLedger(t)
	c := NewCoordinator(l, NewQuotaCalculator(QuotaPolicy{SeatsPerDelegate: 1}), nil, nil, zap.NewNop())
	ctx := context.Background()
	a := delegate("A", "LCX")

	var inv *InvalidRequestError
	_, err := c.Reserve(ctx, a, []model.SeatID{seat(1, 1), seat(math.MaxInt32+1, 1)})
	assert.ErrorAs(t, err, &inv)
	_, err = c.Reserve(ctx, a, []model.SeatID{seat(2, math.MaxUint32)})
	assert.ErrorAs(t, err, &inv)
	_, err = c.ToggleTable(ctx, a, math.MaxInt32+1)
	assert.ErrorAs(t, err, &inv)

	assert.NoError(t, mock.ExpectationsWereMet())
}
