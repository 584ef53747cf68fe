package repository

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the few SQL differences between the supported ledger
// backends.  Queries are written once with '?' placeholders and rebound
// for drivers that use positional parameters.
type Dialect struct {
	Name         string
	positional   bool
	insertIgnore string
	ignoreSuffix string
}

var (
	MySQL    = Dialect{Name: "mysql", insertIgnore: "INSERT IGNORE INTO"}
	Postgres = Dialect{Name: "postgres", positional: true, insertIgnore: "INSERT INTO", ignoreSuffix: " ON CONFLICT DO NOTHING"}
	SQLite   = Dialect{Name: "sqlite", insertIgnore: "INSERT OR IGNORE INTO"}
)

// DialectFor returns the dialect for a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "mysql":
		return MySQL, nil
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
}

// Rebind rewrites '?' placeholders into $1, $2, ... for positional drivers.
func (d Dialect) Rebind(q string) string {
	if !d.positional {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// InsertIgnore builds a single-row insert that silently skips rows whose
// primary key already exists.
func (d Dialect) InsertIgnore(table string, cols ...string) string {
	ph := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	q := fmt.Sprintf("%s %s (%s) VALUES (%s)%s", d.insertIgnore, table, strings.Join(cols, ", "), ph, d.ignoreSuffix)
	return d.Rebind(q)
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
