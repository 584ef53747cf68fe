// Package repository implements the capacity ledger: the durable rows and
// counters recording who holds which seat and how full each session pool
// is.  Every mutation is a conditional write that reports whether it was
// applied, and every multi-row change runs inside Ledger.Update so it
// commits or rolls back as a whole.
package repository

import (
	"database/sql/driver"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// ErrEntityNotFound is returned when an entity lookup yields no rows.
var ErrEntityNotFound = errors.New("entity not found")

// ErrPoolNotFound is returned when a session pool lookup yields no rows.
var ErrPoolNotFound = errors.New("session pool not found")

// ErrTableNotFound is returned when a gala table does not exist.
var ErrTableNotFound = errors.New("table not found")

// IsTransient reports whether a storage error is worth retrying with
// backoff: lock contention, deadlocks, serialization failures and dropped
// connections.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1205, 1213: // lock wait timeout, deadlock
			return true
		}
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "55P03": // serialization failure, deadlock, lock not available
			return true
		}
		return false
	}
	var liteErr *msqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return true
		}
	}
	return false
}
