package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/marcfranquesa/nyc-collisions/internal/collisions"
)

// ErrNoImport is returned when the database holds no completed import run.
var ErrNoImport = errors.New("no completed import run")

// ImportRun describes one import.
type ImportRun struct {
	RunID          string    `json:"runId"`
	Source         string    `json:"source"`
	StartedAt      time.Time `json:"startedAt"`
	FinishedAt     time.Time `json:"finishedAt"`
	Collisions     int       `json:"collisions"`
	WeatherSamples int       `json:"weatherSamples"`
	Areas          int       `json:"areas"`
}

// Queries shared by the SQLite and Postgres readers. Placeholders are
// written as ? and rebound for Postgres.
const (
	LatestRunQuery = `
		SELECT run_id, source, started_at_utc, finished_at_utc, collisions, weather_samples, areas
		FROM import_runs
		WHERE finished_at_utc IS NOT NULL
		ORDER BY finished_at_utc DESC, started_at_utc DESC
		LIMIT 1
	`
	CollisionsQuery = `
		SELECT crash_time, crash_time_utc, borough, vehicle, weather, factor,
			vehicle_category, factor_category,
			injured, killed, valid, latitude, longitude, sknt, p01i, vsby
		FROM collisions
		WHERE run_id = ?
		ORDER BY seq
	`
	WeatherQuery = `
		SELECT observed_utc, sknt, p01i, vsby
		FROM weather_samples
		WHERE run_id = ?
		ORDER BY seq
	`
	AreasQuery = `
		SELECT name, code, area_km2, centroid_lat, centroid_lon, geometry
		FROM areas
		WHERE run_id = ? AND layer = ?
		ORDER BY name
	`
)

// Scanner is satisfied by *sql.Row, *sql.Rows and pgx.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanImportRun decodes one row of LatestRunQuery.
func ScanImportRun(row Scanner) (*ImportRun, error) {
	var run ImportRun
	var started, finished string
	if err := row.Scan(&run.RunID, &run.Source, &started, &finished, &run.Collisions, &run.WeatherSamples, &run.Areas); err != nil {
		return nil, err
	}
	run.StartedAt, _ = time.Parse(time.RFC3339, started)
	run.FinishedAt, _ = time.Parse(time.RFC3339, finished)
	return &run, nil
}

// ScanCollision decodes one row of CollisionsQuery.
func ScanCollision(row Scanner) (collisions.Record, error) {
	var r collisions.Record
	var crashTime sql.NullString
	if err := row.Scan(
		&r.RawTime, &crashTime, &r.Borough, &r.Vehicle, &r.Weather, &r.Factor,
		&r.VehicleCategory, &r.FactorCategory,
		&r.Injured, &r.Killed, &r.Valid, &r.Latitude, &r.Longitude,
		&r.WindKnots, &r.PrecipInches, &r.VisibilityKm,
	); err != nil {
		return r, err
	}
	if crashTime.Valid {
		if t, err := time.Parse(time.RFC3339, crashTime.String); err == nil {
			r.Time = t
		}
	}
	return r, nil
}

// ScanWeather decodes one row of WeatherQuery.
func ScanWeather(row Scanner) (collisions.WeatherSample, error) {
	var s collisions.WeatherSample
	var observed sql.NullString
	if err := row.Scan(&observed, &s.WindKnots, &s.PrecipInches, &s.VisibilityKm); err != nil {
		return s, err
	}
	if observed.Valid {
		if t, err := time.Parse(time.RFC3339, observed.String); err == nil {
			s.Time = t
		}
	}
	return s, nil
}

// ScanArea decodes one row of AreasQuery.
func ScanArea(row Scanner) (collisions.Area, error) {
	var a collisions.Area
	var lat, lon float64
	var geometry string
	if err := row.Scan(&a.Name, &a.Code, &a.AreaKm2, &lat, &lon, &geometry); err != nil {
		return a, err
	}
	g, err := geojson.UnmarshalGeometry([]byte(geometry))
	if err != nil {
		return a, fmt.Errorf("failed to decode geometry of %s: %w", a.Name, err)
	}
	a.Geometry = g.Geometry()
	a.Centroid = orb.Point{lon, lat}
	return a, nil
}

// LatestRun returns the most recent completed import run.
func (db *DB) LatestRun(ctx context.Context) (*ImportRun, error) {
	run, err := ScanImportRun(db.conn.QueryRowContext(ctx, LatestRunQuery))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoImport
		}
		return nil, fmt.Errorf("failed to query import runs: %w", err)
	}
	return run, nil
}

// ReadImport loads every table of one run.
func (db *DB) ReadImport(ctx context.Context, runID string) (*Import, error) {
	imp := &Import{}

	cs, err := queryAll(ctx, db.conn, CollisionsQuery, ScanCollision, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read collisions: %w", err)
	}
	imp.Collisions = cs

	ws, err := queryAll(ctx, db.conn, WeatherQuery, ScanWeather, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read weather: %w", err)
	}
	imp.Weather = ws

	if imp.Boroughs, err = queryAll(ctx, db.conn, AreasQuery, ScanArea, runID, LayerBorough); err != nil {
		return nil, fmt.Errorf("failed to read boroughs: %w", err)
	}
	if imp.Districts, err = queryAll(ctx, db.conn, AreasQuery, ScanArea, runID, LayerDistrict); err != nil {
		return nil, fmt.Errorf("failed to read districts: %w", err)
	}
	return imp, nil
}

func queryAll[T any](ctx context.Context, conn *sql.DB, query string, scan func(Scanner) (T, error), args ...any) ([]T, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
