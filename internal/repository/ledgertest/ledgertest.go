// Package ledgertest opens throwaway SQLite-backed ledgers for tests.
package ledgertest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/iliyamo/conference-reservation/internal/database"
	"github.com/iliyamo/conference-reservation/internal/model"
	"github.com/iliyamo/conference-reservation/internal/repository"
)

// New returns a migrated, empty ledger stored in the test's temp dir.
func New(t testing.TB) *repository.Ledger {
	t.Helper()
	db, err := database.Open(database.Config{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "ledger.db"),
	})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate ledger: %v", err)
	}
	return repository.NewLedger(db, repository.SQLite)
}

// Layout builds tables of seatsPerTable seats and the given pools.
func Layout(tables int, seatsPerTable uint32, pools ...model.Pool) model.Layout {
	l := model.Layout{Pools: pools}
	for i := 1; i <= tables; i++ {
		l.Tables = append(l.Tables, model.Table{ID: uint32(i), Label: fmt.Sprintf("Table %d", i), SeatCount: seatsPerTable})
	}
	return l
}

// Seed writes the layout and entities into the ledger.
func Seed(t testing.TB, l *repository.Ledger, layout model.Layout, entities ...model.Entity) {
	t.Helper()
	err := l.Update(context.Background(), func(tx *repository.LedgerTx) error {
		if err := tx.SeedLayout(tx.Context(), layout); err != nil {
			return err
		}
		for _, e := range entities {
			if err := tx.UpsertEntity(tx.Context(), e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
}
