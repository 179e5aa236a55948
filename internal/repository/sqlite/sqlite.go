// Package sqlite implements the repository interfaces on an embedded
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/cliptray/cliptrayd/internal/repository/sqlite/migrations"
)

// DB wraps the connection pool shared by the concrete repositories.
type DB struct {
	conn *sql.DB
}

// New opens the database at path (":memory:" for tests), applies the
// pragmas the daemon relies on, and runs pending migrations.
//
// File-backed databases get a regular connection pool: DSN pragmas apply
// to every connection, and WAL lets reads proceed alongside the sync
// engine's writes. ":memory:" is pinned to a single connection because
// each new connection would otherwise see its own empty database.
func New(ctx context.Context, path string) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	if path == ":memory:" {
		conn.SetMaxOpenConns(1)
		if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
		}
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if err := migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return &DB{conn: conn}, nil
}

func migrate(ctx context.Context, conn *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, conn, ".")
}

// NewFromConn wraps an existing connection without running migrations.
// Used by tests that drive the pool through sqlmock.
func NewFromConn(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}
