package db

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ogettransport/oget-bot/internal/common/logger"
)

//go:embed schema.sql
var schemaSQL string

// DB wraps the SQLite connection used for local persistence.
type DB struct {
	conn   *sql.DB
	logger logger.Logger
}

// Connect opens the database file, creating parent directories and the
// schema when missing. WAL mode keeps readers unblocked during writes.
func Connect(path string, log logger.Logger) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// The modernc driver only honors `_pragma=name(value)` DSN
	// parameters; mattn-style `_journal=...` keys are ignored.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite supports one writer at a time; a single pooled connection
	// avoids busy errors when dialog handlers write concurrently.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	log.Info("Database connection established", "path", path)

	return &DB{conn: conn, logger: log}, nil
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) Close() error {
	return db.conn.Close()
}
