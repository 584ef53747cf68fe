package repository

import (
	"context"
	"fmt"

	"github.com/iliyamo/conference-reservation/internal/model"
)

// SeedLayout creates the fixed tables, seats and session pools.  Rows that
// already exist are left untouched, so calling it on every start is safe
// and never resets occupancy.
func (t *LedgerTx) SeedLayout(ctx context.Context, layout model.Layout) error {
	insTable := t.dialect.InsertIgnore("gala_tables", "id", "label", "seat_count")
	insSeat := t.dialect.InsertIgnore("seats", "table_id", "seat_number", "occupant_label", "record_id")
	insPool := t.dialect.InsertIgnore("session_pools", "id", "category", "label", "capacity", "occupancy")

	for _, tb := range layout.Tables {
		if tb.ID == 0 || tb.SeatCount == 0 {
			return fmt.Errorf("invalid table %d with %d seats", tb.ID, tb.SeatCount)
		}
		label := tb.Label
		if label == "" {
			label = fmt.Sprintf("Table %d", tb.ID)
		}
		if _, err := t.tx.ExecContext(ctx, insTable, tb.ID, label, tb.SeatCount); err != nil {
			return fmt.Errorf("seed table %d: %w", tb.ID, err)
		}
		for n := uint32(1); n <= tb.SeatCount; n++ {
			if _, err := t.tx.ExecContext(ctx, insSeat, tb.ID, n, "", ""); err != nil {
				return fmt.Errorf("seed seat %d-%d: %w", tb.ID, n, err)
			}
		}
	}
	for _, p := range layout.Pools {
		if p.ID == "" || p.Capacity < 0 {
			return fmt.Errorf("invalid pool %q", p.ID)
		}
		if _, err := model.ParseCategory(string(p.Category)); err != nil {
			return err
		}
		label := p.Label
		if label == "" {
			label = p.ID
		}
		if _, err := t.tx.ExecContext(ctx, insPool, p.ID, string(p.Category), label, p.Capacity, 0); err != nil {
			return fmt.Errorf("seed pool %s: %w", p.ID, err)
		}
	}
	return nil
}
