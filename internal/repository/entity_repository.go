package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/conference-reservation/internal/model"
)

// Entity returns one entity or ErrEntityNotFound.
func (t *LedgerTx) Entity(ctx context.Context, id string) (model.Entity, error) {
	var e model.Entity
	err := t.queryRow(ctx,
		`SELECT id, name, population, seats_held FROM entities WHERE id = ?`, id).
		Scan(&e.ID, &e.Name, &e.Population, &e.SeatsHeld)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Entity{}, ErrEntityNotFound
	}
	return e, err
}

// Entities lists every entity ordered by id.
func (t *LedgerTx) Entities(ctx context.Context) ([]model.Entity, error) {
	rows, err := t.query(ctx, `SELECT id, name, population, seats_held FROM entities ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Entity
	for rows.Next() {
		var e model.Entity
		if err := rows.Scan(&e.ID, &e.Name, &e.Population, &e.SeatsHeld); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AddEntitySeats raises the entity's held-seat counter by n if and only if
// the result stays within quota.  The guard is evaluated by the database
// against the latest committed counter, so two transactions racing for
// the last seats of one entity cannot both pass.
func (t *LedgerTx) AddEntitySeats(ctx context.Context, entityID string, n, quota int) (bool, error) {
	return t.applied(ctx,
		`UPDATE entities SET seats_held = seats_held + ? WHERE id = ? AND seats_held + ? <= ?`,
		n, entityID, n, quota)
}

// ReleaseEntitySeats lowers the held-seat counter by n; it never lets the
// counter go negative.
func (t *LedgerTx) ReleaseEntitySeats(ctx context.Context, entityID string, n int) (bool, error) {
	return t.applied(ctx,
		`UPDATE entities SET seats_held = seats_held - ? WHERE id = ? AND seats_held >= ?`,
		n, entityID, n)
}

// UpsertEntity creates the entity if needed and sets its name and
// population.  The held-seat counter is never touched here.
func (t *LedgerTx) UpsertEntity(ctx context.Context, e model.Entity) error {
	id := strings.TrimSpace(e.ID)
	if id == "" {
		return errors.New("entity id is required")
	}
	if e.Population < 0 {
		return errors.New("population must not be negative")
	}
	name := strings.TrimSpace(e.Name)
	if name == "" {
		name = id
	}
	if _, err := t.tx.ExecContext(ctx, t.dialect.InsertIgnore("entities", "id", "name", "population", "seats_held"),
		id, name, e.Population, 0); err != nil {
		return err
	}
	_, err := t.exec(ctx, `UPDATE entities SET name = ?, population = ? WHERE id = ?`, name, e.Population, id)
	return err
}
