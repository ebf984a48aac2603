package db

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/ogettransport/oget-bot/internal/common/logger"
)

func TestConnectAppliesPragmas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.db")
	database, err := Connect(path, logger.New(logger.ParseLogLevel("error")))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer database.Close()

	var mode string
	if err := database.Conn().QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var fk int
	if err := database.Conn().QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}

	var timeout int
	if err := database.Conn().QueryRow(`PRAGMA busy_timeout`).Scan(&timeout); err != nil {
		t.Fatalf("PRAGMA busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", timeout)
	}
}

func TestConnectCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.db")
	database, err := Connect(path, logger.New(logger.ParseLogLevel("error")))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer database.Close()

	for _, table := range []string{"users", "feedback", "museum_bookings"} {
		var name string
		err := database.Conn().
			QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).
			Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}
