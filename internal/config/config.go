package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Data sources
const (
	SourceCSV      = "csv"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
)

// Config holds all configuration for the dashboard service and tools
type Config struct {
	// HTTP
	Port           string
	AllowedOrigins []string
	StaticDir      string

	// Dataset
	DataSource       string
	DataDir          string
	CollisionsCSV    string
	BoroughsGeoJSON  string
	DistrictsGeoJSON string
	WeatherCSV       string

	// Stores
	SQLitePath  string
	DatabaseURL string

	// Derivation
	ReferenceDate time.Time

	// InteractivePeriod restricts the interactive dashboard to one period
	// ("before" or "after"); empty shows both.
	InteractivePeriod string

	// Presentation
	ThemeFile string
}

// LoadEnv loads .env, then .env.local which overrides it. Missing files are
// ignored.
func LoadEnv(dir string) {
	_ = godotenv.Load(filepath.Join(dir, ".env"))
	_ = godotenv.Overload(filepath.Join(dir, ".env.local")) // Overload forces override of existing values
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		// HTTP
		Port:           getEnv("PORT", "8081"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		StaticDir:      getEnv("STATIC_DIR", ""),

		// Dataset
		DataSource: strings.ToLower(getEnv("DATA_SOURCE", SourceCSV)),
		DataDir:    getEnv("DATA_DIR", "./data"),

		// Stores
		SQLitePath:  getEnv("SQLITE_DATABASE", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		InteractivePeriod: getEnv("INTERACTIVE_PERIOD", ""),
		ThemeFile:         getEnv("THEME_FILE", ""),
	}

	// Derived paths
	cfg.CollisionsCSV = getEnv("COLLISIONS_CSV", filepath.Join(cfg.DataDir, "collisions.csv"))
	cfg.BoroughsGeoJSON = getEnv("BOROUGHS_GEOJSON", filepath.Join(cfg.DataDir, "boroughs.geojson"))
	cfg.DistrictsGeoJSON = getEnv("DISTRICTS_GEOJSON", filepath.Join(cfg.DataDir, "districts.geojson"))
	cfg.WeatherCSV = getEnv("WEATHER_CSV", filepath.Join(cfg.DataDir, "weather.csv"))
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = filepath.Join(cfg.DataDir, "collisions.db")
	}

	ref, err := getEnvDate("REFERENCE_DATE", time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, err
	}
	cfg.ReferenceDate = ref

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DataSource {
	case SourceCSV, SourceSQLite:
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATA_SOURCE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown DATA_SOURCE %q (want csv, sqlite or postgres)", c.DataSource)
	}
	switch c.InteractivePeriod {
	case "", "before", "after":
	default:
		return fmt.Errorf("unknown INTERACTIVE_PERIOD %q (want before or after)", c.InteractivePeriod)
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid PORT %q: %w", c.Port, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvDate(key string, defaultValue time.Time) (time.Time, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return t, nil
}
