package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Config describes how to reach the ledger database.
type Config struct {
	Driver     string // mysql | postgres | sqlite
	User       string
	Pass       string
	Host       string
	Port       string
	Name       string
	SQLitePath string
}

// DSN builds the driver-specific data source name.
func (c Config) DSN() (driverName, dsn string, err error) {
	switch strings.ToLower(c.Driver) {
	case "mysql":
		auth := c.User
		if c.Pass != "" {
			auth = fmt.Sprintf("%s:%s", c.User, c.Pass)
		}
		// clientFoundRows=true -> RowsAffected counts matched rows, so a
		// conditional UPDATE that rewrites identical values still reports success
		return "mysql", fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&loc=UTC&clientFoundRows=true",
			auth, c.Host, c.Port, c.Name), nil
	case "postgres", "postgresql":
		return "postgres", fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			c.Host, c.Port, c.User, c.Pass, c.Name), nil
	case "sqlite", "sqlite3":
		path := strings.TrimSpace(c.SQLitePath)
		if path == "" {
			return "", "", fmt.Errorf("sqlite path is required")
		}
		if path != ":memory:" {
			path = filepath.Clean(path)
		}
		return "sqlite", path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", nil
	}
	return "", "", fmt.Errorf("unsupported database driver %q", c.Driver)
}

// Open connects to the configured database and verifies the connection.
func Open(cfg Config) (*sql.DB, error) {
	driverName, dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	if driverName == "sqlite" {
		// single writer; every transaction queues on the one connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
