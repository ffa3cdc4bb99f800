package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/marcfranquesa/nyc-collisions/internal/collisions"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Connect(filepath.Join(t.TempDir(), "collisions.db"))
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	return db
}

func fptr(v float64) *float64 { return &v }

func testImport() Import {
	square := orb.Polygon{{{-74.0, 40.7}, {-73.9, 40.7}, {-73.9, 40.8}, {-74.0, 40.8}, {-74.0, 40.7}}}
	return Import{
		Source: "test",
		Collisions: []collisions.Record{
			{
				RawTime: "2018-06-04 08:15:00", Time: time.Date(2018, time.June, 4, 8, 15, 0, 0, time.UTC),
				Borough: "MANHATTAN", Vehicle: "Taxi", Weather: "Clear", Factor: "Unsafe Speed",
				VehicleCategory: "Taxi", FactorCategory: "Driving Infraction",
				Injured: 1, Valid: 1, Latitude: fptr(40.75), Longitude: fptr(-73.95), WindKnots: fptr(4),
			},
			// unparseable timestamp, kept raw
			{RawTime: "garbage", Vehicle: "Ambulance"},
		},
		Weather: []collisions.WeatherSample{
			{Time: time.Date(2018, time.June, 4, 8, 0, 0, 0, time.UTC), WindKnots: fptr(4), VisibilityKm: fptr(16.09)},
		},
		Boroughs: []collisions.Area{
			{Name: "Manhattan", Code: "105", AreaKm2: 94.5, Geometry: square, Centroid: orb.Point{-73.95, 40.75}},
		},
	}
}

func TestImportRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	runID, err := db.WriteImport(ctx, testImport())
	if err != nil {
		t.Fatalf("WriteImport failed: %v", err)
	}

	run, err := db.LatestRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if run.RunID != runID || run.Collisions != 2 || run.WeatherSamples != 1 || run.Areas != 1 {
		t.Errorf("run = %+v", run)
	}

	imp, err := db.ReadImport(ctx, runID)
	if err != nil {
		t.Fatalf("ReadImport failed: %v", err)
	}
	if len(imp.Collisions) != 2 {
		t.Fatalf("collisions = %d, want 2", len(imp.Collisions))
	}

	got := imp.Collisions[0]
	if !got.Time.Equal(time.Date(2018, time.June, 4, 8, 15, 0, 0, time.UTC)) || got.Borough != "MANHATTAN" || got.Injured != 1 {
		t.Errorf("collision = %+v", got)
	}
	if got.VehicleCategory != "Taxi" || got.FactorCategory != "Driving Infraction" {
		t.Errorf("categories = %q, %q", got.VehicleCategory, got.FactorCategory)
	}
	if got.Latitude == nil || *got.Latitude != 40.75 || got.PrecipInches != nil {
		t.Errorf("nullable columns not preserved: lat=%v p01i=%v", got.Latitude, got.PrecipInches)
	}
	if bad := imp.Collisions[1]; !bad.Time.IsZero() || bad.RawTime != "garbage" {
		t.Errorf("unparseable record = %+v", bad)
	}

	if len(imp.Weather) != 1 || imp.Weather[0].VisibilityKm == nil || *imp.Weather[0].VisibilityKm != 16.09 {
		t.Errorf("weather = %+v", imp.Weather)
	}

	if len(imp.Boroughs) != 1 || len(imp.Districts) != 0 {
		t.Fatalf("areas = %d boroughs, %d districts", len(imp.Boroughs), len(imp.Districts))
	}
	b := imp.Boroughs[0]
	if b.Name != "Manhattan" || b.AreaKm2 != 94.5 || b.Centroid.Lat() != 40.75 {
		t.Errorf("borough = %+v", b)
	}
	if _, ok := b.Geometry.(orb.Polygon); !ok {
		t.Errorf("geometry = %T, want orb.Polygon", b.Geometry)
	}
}

func TestLatestRunEmpty(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.LatestRun(context.Background()); !errors.Is(err, ErrNoImport) {
		t.Errorf("err = %v, want ErrNoImport", err)
	}
}

func TestPruneRuns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var last string
	for i := 0; i < 3; i++ {
		id, err := db.WriteImport(ctx, testImport())
		if err != nil {
			t.Fatal(err)
		}
		last = id
	}

	if err := db.PruneRuns(ctx, 1); err != nil {
		t.Fatalf("PruneRuns failed: %v", err)
	}

	var runs, rows int
	if err := db.Conn().QueryRowContext(ctx, "SELECT COUNT(*) FROM import_runs").Scan(&runs); err != nil {
		t.Fatal(err)
	}
	if err := db.Conn().QueryRowContext(ctx, "SELECT COUNT(*) FROM collisions").Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if runs != 1 || rows != 2 {
		t.Errorf("after prune: %d runs, %d collisions; want 1 and 2", runs, rows)
	}

	run, err := db.LatestRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// runs finished within the same second tie; any survivor is a complete run
	if run.Collisions != 2 {
		t.Errorf("surviving run = %+v (last written %s)", run, last)
	}
}

func TestConnectPragmas(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tests := []struct {
		pragma string
		want   string
	}{
		{"foreign_keys", "1"},
		{"journal_mode", "wal"},
		{"busy_timeout", "5000"},
	}
	for _, tt := range tests {
		t.Run(tt.pragma, func(t *testing.T) {
			var got string
			if err := db.Conn().QueryRowContext(ctx, "PRAGMA "+tt.pragma).Scan(&got); err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("%s = %q, want %q", tt.pragma, got, tt.want)
			}
		})
	}
}

func TestEnsureSchemaMigratesOldStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	ctx := context.Background()

	old, err := Connect(path)
	if err != nil {
		t.Fatal(err)
	}
	// collisions table as written before the category columns existed
	if _, err := old.Conn().ExecContext(ctx, `
		CREATE TABLE import_runs (
			run_id TEXT PRIMARY KEY, source TEXT NOT NULL, started_at_utc TEXT NOT NULL,
			finished_at_utc TEXT, collisions INTEGER NOT NULL DEFAULT 0,
			weather_samples INTEGER NOT NULL DEFAULT 0, areas INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE collisions (
			run_id TEXT NOT NULL REFERENCES import_runs(run_id) ON DELETE CASCADE,
			seq INTEGER NOT NULL, crash_time TEXT NOT NULL, crash_time_utc TEXT,
			borough TEXT NOT NULL DEFAULT '', vehicle TEXT NOT NULL DEFAULT '',
			weather TEXT NOT NULL DEFAULT '', factor TEXT NOT NULL DEFAULT '',
			injured INTEGER NOT NULL DEFAULT 0, killed INTEGER NOT NULL DEFAULT 0,
			valid INTEGER NOT NULL DEFAULT 0, latitude REAL, longitude REAL,
			sknt REAL, p01i REAL, vsby REAL,
			PRIMARY KEY (run_id, seq)
		);
	`); err != nil {
		t.Fatal(err)
	}
	old.Close()

	db, err := Connect(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	// a second pass finds nothing to add
	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema rerun failed: %v", err)
	}

	runID, err := db.WriteImport(ctx, testImport())
	if err != nil {
		t.Fatalf("WriteImport on migrated store failed: %v", err)
	}
	imp, err := db.ReadImport(ctx, runID)
	if err != nil {
		t.Fatal(err)
	}
	if got := imp.Collisions[0].FactorCategory; got != "Driving Infraction" {
		t.Errorf("factor category = %q after migration", got)
	}
}
