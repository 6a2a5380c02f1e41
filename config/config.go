package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

type Config struct {
	Location *time.Location

	// Timetable CSV. Empty means the embedded timetable.
	TimetablePath string

	// Fixed reference instant for debugging. Zero means real time.
	DebugNow time.Time

	Storage     string
	SQLiteDir   string
	PostgresURL string

	// Calendar IDs or iCalendar URLs. Empty means the line's
	// default calendars.
	CalendarIDs   []string
	StatusRefresh time.Duration
	CacheFile     string
	DisableStatus bool
	Addr          string
	MetricsAddr   string
	TickInterval  time.Duration
	LogJSON       bool
	Debug         bool
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	tzName := getenvDefault("SHUTTLE_TIMEZONE", "Asia/Tokyo")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTTLE_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	cfg.TimetablePath = os.Getenv("SHUTTLE_TIMETABLE")

	if v := os.Getenv("SHUTTLE_DEBUG_NOW"); v != "" {
		now, err := ParseInstant(v, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid SHUTTLE_DEBUG_NOW: %w", err)
		}
		cfg.DebugNow = now
	}

	cfg.Storage = strings.ToLower(getenvDefault("SHUTTLE_STORAGE", StorageMemory))
	switch cfg.Storage {
	case StorageMemory, StorageSQLite, StoragePostgres:
	default:
		return nil, fmt.Errorf("invalid SHUTTLE_STORAGE: %q", cfg.Storage)
	}
	cfg.SQLiteDir = getenvDefault("SHUTTLE_SQLITE_DIR", ".")
	cfg.PostgresURL = firstNonEmpty(os.Getenv("SHUTTLE_POSTGRES_URL"), os.Getenv("DATABASE_URL"))
	if cfg.Storage == StoragePostgres && cfg.PostgresURL == "" {
		return nil, fmt.Errorf("SHUTTLE_POSTGRES_URL must be set when SHUTTLE_STORAGE=postgres")
	}

	for _, id := range strings.Split(os.Getenv("SHUTTLE_CALENDAR_IDS"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			cfg.CalendarIDs = append(cfg.CalendarIDs, id)
		}
	}

	cfg.StatusRefresh, err = durationEnv("SHUTTLE_STATUS_REFRESH", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.TickInterval, err = durationEnv("SHUTTLE_TICK", time.Second)
	if err != nil {
		return nil, err
	}

	cfg.CacheFile = os.Getenv("SHUTTLE_CACHE_FILE")
	cfg.DisableStatus = parseBool(os.Getenv("SHUTTLE_DISABLE_STATUS"))

	cfg.Addr = getenvDefault("SHUTTLE_ADDR", ":8080")

	// Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("SHUTTLE_METRICS_ADDR")

	cfg.LogJSON = strings.EqualFold(os.Getenv("SHUTTLE_LOG_FORMAT"), "JSON")
	cfg.Debug = parseBool(os.Getenv("SHUTTLE_DEBUG"))

	return cfg, nil
}

var instantLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Parses an instant given as RFC 3339, or as a local date and
// optional time of day in loc.
func ParseInstant(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return d, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
