package repository

import (
	"context"
	"database/sql"
	"time"
)

// Ledger is the single source of truth for occupancy.  It hands out
// LedgerTx values scoped to one database transaction; nothing outside a
// transaction may write to the ledger tables.
type Ledger struct {
	db      *sql.DB
	dialect Dialect
}

// NewLedger returns a Ledger bound to the given database and dialect.
func NewLedger(db *sql.DB, dialect Dialect) *Ledger {
	return &Ledger{db: db, dialect: dialect}
}

// DB exposes the underlying sql.DB for health checks and migrations.
func (l *Ledger) DB() *sql.DB { return l.db }

// Dialect returns the SQL dialect of the ledger backend.
func (l *Ledger) Dialect() Dialect { return l.dialect }

// Update runs fn inside a single transaction and commits only when fn
// returns nil.  Any error from fn, or from the commit itself, leaves the
// ledger unchanged.
//
// The transaction is detached from ctx cancellation: once started it runs
// to commit or rollback even if the caller stops waiting.  Deadlines are
// still enforced by the database's own lock timeouts.
func (l *Ledger) Update(ctx context.Context, fn func(*LedgerTx) error) error {
	txCtx := context.WithoutCancel(ctx)
	tx, err := l.db.BeginTx(txCtx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&LedgerTx{tx: tx, dialect: l.dialect, ctx: txCtx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// View runs read-only work against a consistent snapshot.  The
// transaction is always rolled back.
func (l *Ledger) View(ctx context.Context, fn func(*LedgerTx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	return fn(&LedgerTx{tx: tx, dialect: l.dialect, ctx: ctx})
}

// LedgerTx exposes the ledger's reads and conditional writes inside one
// transaction.  Conditional writes return applied=false when their
// precondition did not hold; the caller decides whether that aborts the
// transaction.
type LedgerTx struct {
	tx      *sql.Tx
	dialect Dialect
	ctx     context.Context
}

// Context returns the context the transaction runs under.  Work inside an
// Update callback should use it instead of the request context so the
// transaction is not cut short by caller cancellation.
func (t *LedgerTx) Context() context.Context { return t.ctx }

func (t *LedgerTx) exec(ctx context.Context, q string, args ...interface{}) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.Rebind(q), args...)
}

func (t *LedgerTx) query(ctx context.Context, q string, args ...interface{}) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.Rebind(q), args...)
}

func (t *LedgerTx) queryRow(ctx context.Context, q string, args ...interface{}) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.Rebind(q), args...)
}

// applied runs a conditional write and reports whether it touched a row.
func (t *LedgerTx) applied(ctx context.Context, q string, args ...interface{}) (bool, error) {
	res, err := t.exec(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func toMillis(v time.Time) int64 { return v.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

func nullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
