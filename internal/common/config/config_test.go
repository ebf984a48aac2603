package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("SPREADSHEET_ID", "sheet-id")
	t.Setenv("CITY_API_URL", "https://api.example.com/")
	t.Setenv("CITY_API_LOGIN", "login")
	t.Setenv("CITY_API_PASSWORD", "password")
	t.Setenv("GTFS_BASE_URL", "https://od.example.com/api/od/gtfs/v1")
	t.Setenv("GTFS_API_KEY", "key")
	t.Setenv("MUSEUM_ADMIN_ID", "100")
	t.Setenv("ADMIN_IDS", "100, 200,300")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.GTFS.PollInterval != 15*time.Second {
		t.Errorf("expected 15s poll interval, got %v", cfg.GTFS.PollInterval)
	}
	if cfg.GTFS.RefreshInterval != 24*time.Hour {
		t.Errorf("expected 24h refresh interval, got %v", cfg.GTFS.RefreshInterval)
	}
	if cfg.Sheets.CacheTTL != 5*time.Minute {
		t.Errorf("expected 5m cache TTL, got %v", cfg.Sheets.CacheTTL)
	}
	if cfg.GTFS.InsecureTLS {
		t.Error("insecure TLS must default to off")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadAdminIDList(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := []int64{100, 200, 300}
	if len(cfg.Admin.AdminIDs) != len(want) {
		t.Fatalf("expected %d admin ids, got %d", len(want), len(cfg.Admin.AdminIDs))
	}
	for i, id := range want {
		if cfg.Admin.AdminIDs[i] != id {
			t.Errorf("admin id %d: expected %d, got %d", i, id, cfg.Admin.AdminIDs[i])
		}
	}
}

func TestLoadRejectsBadAdminIDs(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ADMIN_IDS", "100,abc")

	if _, err := Load(); err == nil {
		t.Error("expected error for non-numeric admin id")
	}
}

func TestValidateRejectsMissingToken(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty token")
	}
}
