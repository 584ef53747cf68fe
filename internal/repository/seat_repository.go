package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/conference-reservation/internal/model"
)

const seatColumns = `table_id, seat_number, occupant_id, occupant_entity_id, occupant_label, record_id, held_at`

func scanSeats(rows *sql.Rows) ([]model.Seat, error) {
	defer rows.Close()
	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		var occupant, entity sql.NullString
		var heldAt sql.NullInt64
		if err := rows.Scan(&s.TableID, &s.SeatNumber, &occupant, &entity, &s.OccupantLabel, &s.RecordID, &heldAt); err != nil {
			return nil, err
		}
		s.OccupantID = nullString(occupant)
		s.OccupantEntityID = nullString(entity)
		s.HeldAt = nullMillis(heldAt)
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// Tables lists every gala table ordered by id.
func (t *LedgerTx) Tables(ctx context.Context) ([]model.Table, error) {
	rows, err := t.query(ctx, `SELECT id, label, seat_count FROM gala_tables ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Table
	for rows.Next() {
		var tb model.Table
		if err := rows.Scan(&tb.ID, &tb.Label, &tb.SeatCount); err != nil {
			return nil, err
		}
		out = append(out, tb)
	}
	return out, rows.Err()
}

// Table returns a single gala table or ErrTableNotFound.
func (t *LedgerTx) Table(ctx context.Context, id uint32) (model.Table, error) {
	var tb model.Table
	err := t.queryRow(ctx, `SELECT id, label, seat_count FROM gala_tables WHERE id = ?`, id).
		Scan(&tb.ID, &tb.Label, &tb.SeatCount)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Table{}, ErrTableNotFound
	}
	return tb, err
}

// TableSeats returns the seats of one table ordered by seat number.
func (t *LedgerTx) TableSeats(ctx context.Context, tableID uint32) ([]model.Seat, error) {
	rows, err := t.query(ctx,
		`SELECT `+seatColumns+` FROM seats WHERE table_id = ? ORDER BY seat_number`, tableID)
	if err != nil {
		return nil, err
	}
	return scanSeats(rows)
}

// Seats returns the seats of the given tables, or of every table when no
// ids are passed, ordered by table then seat number.
func (t *LedgerTx) Seats(ctx context.Context, tableIDs ...uint32) ([]model.Seat, error) {
	q := `SELECT ` + seatColumns + ` FROM seats`
	args := make([]interface{}, 0, len(tableIDs))
	if len(tableIDs) > 0 {
		q += ` WHERE table_id IN (` + placeholders(len(tableIDs)) + `)`
		for _, id := range tableIDs {
			args = append(args, id)
		}
	}
	q += ` ORDER BY table_id, seat_number`
	rows, err := t.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanSeats(rows)
}

// SeatsHeldBy returns every seat currently held by the delegate.
func (t *LedgerTx) SeatsHeldBy(ctx context.Context, delegateID string) ([]model.Seat, error) {
	rows, err := t.query(ctx,
		`SELECT `+seatColumns+` FROM seats WHERE occupant_id = ? ORDER BY table_id, seat_number`, delegateID)
	if err != nil {
		return nil, err
	}
	return scanSeats(rows)
}

// ClaimSeat sets the occupant of a seat if and only if the seat is free.
// It reports false when the seat is held by anyone, including the
// requester, or does not exist.
func (t *LedgerTx) ClaimSeat(ctx context.Context, id model.SeatID, d model.Delegate, recordID string, at time.Time) (bool, error) {
	const q = `UPDATE seats
	           SET occupant_id = ?, occupant_entity_id = ?, occupant_label = ?, record_id = ?, held_at = ?
	           WHERE table_id = ? AND seat_number = ? AND occupant_id IS NULL`
	return t.applied(ctx, q, d.ID, d.EntityID, strings.TrimSpace(d.Label()), recordID, toMillis(at), id.TableID, id.SeatNumber)
}

// ReleaseSeat frees a seat if and only if it is held by delegateID.
func (t *LedgerTx) ReleaseSeat(ctx context.Context, id model.SeatID, delegateID string) (bool, error) {
	const q = `UPDATE seats
	           SET occupant_id = NULL, occupant_entity_id = NULL, occupant_label = '', record_id = '', held_at = NULL
	           WHERE table_id = ? AND seat_number = ? AND occupant_id = ?`
	return t.applied(ctx, q, id.TableID, id.SeatNumber, delegateID)
}
