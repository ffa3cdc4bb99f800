package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATA_SOURCE", "DATA_DIR", "COLLISIONS_CSV", "REFERENCE_DATE", "SQLITE_DATABASE", "ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8081" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.DataSource != SourceCSV {
		t.Errorf("DataSource = %q", cfg.DataSource)
	}
	if cfg.CollisionsCSV != filepath.Join("data", "collisions.csv") {
		t.Errorf("CollisionsCSV = %q", cfg.CollisionsCSV)
	}
	if !cfg.ReferenceDate.Equal(time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ReferenceDate = %v", cfg.ReferenceDate)
	}
	if len(cfg.AllowedOrigins) != 1 {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATA_DIR", "/srv/nyc")
	t.Setenv("SQLITE_DATABASE", "")
	t.Setenv("DATA_SOURCE", "SQLite")
	t.Setenv("REFERENCE_DATE", "2019-03-01")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataSource != SourceSQLite {
		t.Errorf("DataSource = %q", cfg.DataSource)
	}
	if cfg.SQLitePath != "/srv/nyc/collisions.db" {
		t.Errorf("SQLitePath = %q", cfg.SQLitePath)
	}
	if cfg.ReferenceDate.Month() != time.March || cfg.ReferenceDate.Year() != 2019 {
		t.Errorf("ReferenceDate = %v", cfg.ReferenceDate)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"bad source", "DATA_SOURCE", "parquet"},
		{"postgres without url", "DATA_SOURCE", "postgres"},
		{"bad date", "REFERENCE_DATE", "yesterday"},
		{"bad port", "PORT", "http"},
		{"bad period", "INTERACTIVE_PERIOD", "during"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected an error for %s=%s", tc.key, tc.value)
			}
		})
	}
}

func TestLoadEnvLocalOverrides(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("NYC_TEST_KEY=base\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env.local"), []byte("NYC_TEST_KEY=local\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NYC_TEST_KEY", "")
	os.Unsetenv("NYC_TEST_KEY")

	LoadEnv(dir)
	if got := os.Getenv("NYC_TEST_KEY"); got != "local" {
		t.Errorf("NYC_TEST_KEY = %q, want local", got)
	}
}

func TestDefaultTheme(t *testing.T) {
	theme, err := DefaultTheme()
	if err != nil {
		t.Fatal(err)
	}
	if theme.Primary != "#bebada" || theme.Scheme != "purples" {
		t.Errorf("unexpected theme: %+v", theme)
	}
	if len(theme.Boroughs) != 5 || theme.Boroughs[0].Name != "Staten Island" {
		t.Errorf("boroughs = %v", theme.Boroughs)
	}
	if theme.PeriodColor("before") != "#fdc086" || theme.PeriodLabel("nope") != "nope" {
		t.Error("period lookups broken")
	}
	fordham := theme.DistrictLabels()["205"]
	if fordham.Label != "Fordham" || fordham.Latitude == nil {
		t.Errorf("205 label = %+v", fordham)
	}
}

func TestLoadThemeOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "theme.yaml")
	if err := os.WriteFile(path, []byte("primary: \"#000000\"\nperiods:\n  after:\n    label: Later\n    color: \"#111111\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	theme, err := LoadTheme(path)
	if err != nil {
		t.Fatal(err)
	}
	if theme.Primary != "#000000" {
		t.Errorf("primary not overridden: %q", theme.Primary)
	}
	if len(theme.Boroughs) != 5 {
		t.Errorf("boroughs lost by overlay: %v", theme.Boroughs)
	}
	if theme.PeriodLabel("after") != "Later" {
		t.Errorf("after label = %q", theme.PeriodLabel("after"))
	}

	if _, err := LoadTheme(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing theme file")
	}
}
