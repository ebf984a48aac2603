package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Telegram    TelegramConfig
	Sheets      SheetsConfig
	CityAPI     CityAPIConfig
	GTFS        GTFSConfig
	Admin       AdminConfig
	Database    DatabaseConfig
	Webhook     WebhookConfig
	Assets      AssetsConfig
	Logging     LoggingConfig
}

type TelegramConfig struct {
	Token string `validate:"required"`
}

type SheetsConfig struct {
	SpreadsheetID   string `validate:"required"`
	CredentialsFile string `validate:"required"`
	// Workers bounds the pool that runs blocking spreadsheet calls.
	Workers  int           `validate:"min=1"`
	CacheTTL time.Duration `validate:"min=1s"`
	Timeout  time.Duration `validate:"min=1s"`
}

// CityAPIConfig holds credentials for the third-party transit info service.
type CityAPIConfig struct {
	BaseURL  string `validate:"required,url"`
	Login    string `validate:"required"`
	Password string `validate:"required"`
	City     string `validate:"required"`
	Timeout  time.Duration
}

type GTFSConfig struct {
	BaseURL         string `validate:"required,url"`
	APIKey          string `validate:"required"`
	RefreshInterval time.Duration `validate:"min=1m"`
	PollInterval    time.Duration `validate:"min=1s"`
	// InsecureTLS relaxes certificate verification for the realtime
	// endpoint, whose upstream chain is unreliable.
	InsecureTLS bool
}

type AdminConfig struct {
	MuseumAdminID int64   `validate:"required"`
	AdminIDs      []int64 `validate:"min=1"`
}

type DatabaseConfig struct {
	Path string `validate:"required"`
}

type WebhookConfig struct {
	ListenAddr string
	Enabled    bool
}

type AssetsConfig struct {
	MediaDir string
}

type LoggingConfig struct {
	Level    string
	FilePath string
}

func Load() (*Config, error) {
	adminIDs, err := getInt64ListEnv("ADMIN_IDS")
	if err != nil {
		return nil, fmt.Errorf("parsing ADMIN_IDS: %w", err)
	}
	museumAdminID, err := getInt64Env("MUSEUM_ADMIN_ID", 0)
	if err != nil {
		return nil, fmt.Errorf("parsing MUSEUM_ADMIN_ID: %w", err)
	}

	cfg := &Config{
		Telegram: TelegramConfig{
			Token: getEnv("TELEGRAM_BOT_TOKEN", ""),
		},
		Sheets: SheetsConfig{
			SpreadsheetID:   getEnv("SPREADSHEET_ID", ""),
			CredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
			Workers:         getIntEnv("SHEETS_WORKERS", 4),
			CacheTTL:        getDurationEnv("SHEETS_CACHE_TTL", 5*time.Minute),
			Timeout:         getDurationEnv("SHEETS_TIMEOUT", 15*time.Second),
		},
		CityAPI: CityAPIConfig{
			BaseURL:  getEnv("CITY_API_URL", ""),
			Login:    getEnv("CITY_API_LOGIN", ""),
			Password: getEnv("CITY_API_PASSWORD", ""),
			City:     getEnv("CITY_SLUG", "odessa"),
			Timeout:  getDurationEnv("CITY_API_TIMEOUT", 10*time.Second),
		},
		GTFS: GTFSConfig{
			BaseURL:         getEnv("GTFS_BASE_URL", ""),
			APIKey:          getEnv("GTFS_API_KEY", ""),
			RefreshInterval: getDurationEnv("GTFS_REFRESH_INTERVAL", 24*time.Hour),
			PollInterval:    getDurationEnv("GTFS_RT_POLL_INTERVAL", 15*time.Second),
			InsecureTLS:     getBoolEnv("GTFS_RT_INSECURE_TLS", false),
		},
		Admin: AdminConfig{
			MuseumAdminID: museumAdminID,
			AdminIDs:      adminIDs,
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./data/ogetbot.db"),
		},
		Webhook: WebhookConfig{
			ListenAddr: getEnv("WEBHOOK_LISTEN_ADDR", ":8080"),
			Enabled:    getBoolEnv("WEBHOOK_ENABLED", true),
		},
		Assets: AssetsConfig{
			MediaDir: getEnv("MEDIA_DIR", "./media"),
		},
		Logging: LoggingConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			FilePath: getEnv("LOG_FILE", "ogetbot.log"),
		},
	}

	return cfg, nil
}

// Validate checks required settings once at startup.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	return strconv.ParseInt(value, 10, 64)
}

// getInt64ListEnv parses a comma-separated list of ids.
func getInt64ListEnv(key string) ([]int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
