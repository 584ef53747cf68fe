package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/conference-reservation/internal/model"
)

// Pools lists every session pool ordered by category then id.
func (t *LedgerTx) Pools(ctx context.Context) ([]model.Pool, error) {
	rows, err := t.query(ctx,
		`SELECT id, category, label, capacity, occupancy FROM session_pools ORDER BY category, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Pool
	for rows.Next() {
		var p model.Pool
		var cat string
		if err := rows.Scan(&p.ID, &cat, &p.Label, &p.Capacity, &p.Occupancy); err != nil {
			return nil, err
		}
		p.Category = model.Category(cat)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Pool returns one session pool or ErrPoolNotFound.
func (t *LedgerTx) Pool(ctx context.Context, id string) (model.Pool, error) {
	var p model.Pool
	var cat string
	err := t.queryRow(ctx,
		`SELECT id, category, label, capacity, occupancy FROM session_pools WHERE id = ?`, id).
		Scan(&p.ID, &cat, &p.Label, &p.Capacity, &p.Occupancy)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Pool{}, ErrPoolNotFound
	}
	if err != nil {
		return model.Pool{}, err
	}
	p.Category = model.Category(cat)
	return p, nil
}

// IncrementPool admits one more delegate if and only if the pool is below
// capacity.
func (t *LedgerTx) IncrementPool(ctx context.Context, id string) (bool, error) {
	return t.applied(ctx,
		`UPDATE session_pools SET occupancy = occupancy + 1 WHERE id = ? AND occupancy < capacity`, id)
}

// InsertPoolOccupancy records which delegate holds a slot in which pool.
// Passing an empty slice has no effect.
func (t *LedgerTx) InsertPoolOccupancy(ctx context.Context, recs []model.OccupancyRecord) error {
	if len(recs) == 0 {
		return nil
	}
	query := `INSERT INTO pool_occupancy (pool_id, delegate_id, entity_id, record_id, created_at) VALUES `
	args := make([]interface{}, 0, len(recs)*5)
	for i, r := range recs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, r.PoolID, r.OccupantID, r.EntityID, r.ID, toMillis(r.CreatedAt))
	}
	_, err := t.exec(ctx, query, args...)
	return err
}

// PoolOccupancy returns the pool slots held by a delegate.
func (t *LedgerTx) PoolOccupancy(ctx context.Context, delegateID string) ([]model.OccupancyRecord, error) {
	rows, err := t.query(ctx,
		`SELECT pool_id, delegate_id, entity_id, record_id, created_at
		 FROM pool_occupancy WHERE delegate_id = ? ORDER BY pool_id`, delegateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.OccupancyRecord
	for rows.Next() {
		rec := model.OccupancyRecord{Kind: model.UnitPool}
		var created int64
		if err := rows.Scan(&rec.PoolID, &rec.OccupantID, &rec.EntityID, &rec.ID, &created); err != nil {
			return nil, err
		}
		rec.CreatedAt = fromMillis(created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountPoolOccupancy counts occupancy rows per pool.  It is the audit
// counterpart of session_pools.occupancy.
func (t *LedgerTx) CountPoolOccupancy(ctx context.Context) (map[string]int, error) {
	rows, err := t.query(ctx, `SELECT pool_id, COUNT(*) FROM pool_occupancy GROUP BY pool_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}
