package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment variable names read without the DASHBOARD_ prefix because the
// Supabase tooling exports them under these names.
const (
	EnvSupabaseURL            = "SUPABASE_URL"
	EnvSupabaseServiceRoleKey = "SUPABASE_SERVICE_ROLE_KEY"
	EnvDatabaseURL            = "DASHBOARD_DATABASE_URL"
)

// Supported submission store drivers.
const (
	StoreDriverREST     = "rest"
	StoreDriverPostgres = "postgres"
)

// Config holds runtime configuration values for the dashboard service.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	LogLevel           string
	CORSAllowOrigins   string
	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseTimeout    time.Duration
	StoreDriver        string
	DatabaseURL        string
	SubmissionsTable   string
	PageSize           int
	TiebreakColumn     string
	CacheTTL           time.Duration
	RedisURL           string
	NATSURL            string
	NATSSubject        string
	DisplayTimezone    string
	ExportRateLimit    int
	ExportRateWindow   time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Location resolves DisplayTimezone, falling back to UTC.
func (c Config) Location() *time.Location {
	if c.DisplayTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ValidateStore reports the settings the selected store driver still needs.
func (c Config) ValidateStore() error {
	var missing []string
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			missing = append(missing, EnvDatabaseURL)
		}
	default:
		if c.SupabaseURL == "" {
			missing = append(missing, EnvSupabaseURL)
		}
		if c.SupabaseServiceKey == "" {
			missing = append(missing, EnvSupabaseServiceRoleKey)
		}
	}

	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("DASHBOARD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = v.BindEnv("supabase.url", EnvSupabaseURL)
	_ = v.BindEnv("supabase.service_role_key", EnvSupabaseServiceRoleKey)

	v.SetDefault("app.name", "GEMA Feedback Dashboard")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("supabase.timeout", "15s")
	v.SetDefault("store.driver", StoreDriverREST)
	v.SetDefault("submissions.table", "student_submissions")
	v.SetDefault("submissions.page_size", 1000)
	v.SetDefault("submissions.tiebreak_column", "id")
	v.SetDefault("cache.ttl", "60s")
	v.SetDefault("nats.subject", "dashboard.cache.invalidate")
	v.SetDefault("display.timezone", "UTC")
	v.SetDefault("export.rate_limit", 10)
	v.SetDefault("export.rate_window", "1m")

	cacheTTL, err := parseDuration(v, "cache.ttl", "60s")
	if err != nil {
		return Config{}, err
	}
	timeout, err := parseDuration(v, "supabase.timeout", "15s")
	if err != nil {
		return Config{}, err
	}
	rateWindow, err := parseDuration(v, "export.rate_window", "1m")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		LogLevel:           strings.ToLower(v.GetString("log.level")),
		CORSAllowOrigins:   v.GetString("cors.allow_origins"),
		SupabaseURL:        strings.TrimSpace(v.GetString("supabase.url")),
		SupabaseServiceKey: strings.TrimSpace(v.GetString("supabase.service_role_key")),
		SupabaseTimeout:    timeout,
		StoreDriver:        strings.ToLower(v.GetString("store.driver")),
		DatabaseURL:        v.GetString("database.url"),
		SubmissionsTable:   v.GetString("submissions.table"),
		PageSize:           v.GetInt("submissions.page_size"),
		TiebreakColumn:     strings.TrimSpace(v.GetString("submissions.tiebreak_column")),
		CacheTTL:           cacheTTL,
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		NATSSubject:        v.GetString("nats.subject"),
		DisplayTimezone:    v.GetString("display.timezone"),
		ExportRateLimit:    v.GetInt("export.rate_limit"),
		ExportRateWindow:   rateWindow,
	}

	switch cfg.StoreDriver {
	case StoreDriverREST, StoreDriverPostgres:
	default:
		return Config{}, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}

	if cfg.SubmissionsTable == "" {
		cfg.SubmissionsTable = "student_submissions"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}

	if _, err := time.LoadLocation(cfg.DisplayTimezone); err != nil {
		return Config{}, fmt.Errorf("invalid display timezone: %w", err)
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key, fallback string) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		raw = fallback
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
