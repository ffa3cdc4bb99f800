package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/marcfranquesa/nyc-collisions/internal/collisions"
)

// Area layers
const (
	LayerBorough  = "borough"
	LayerDistrict = "district"
)

// Import is everything written by one import run.
type Import struct {
	Source     string
	Collisions []collisions.Record
	Weather    []collisions.WeatherSample
	Boroughs   []collisions.Area
	Districts  []collisions.Area
}

// WriteImport stores a complete import in one transaction and returns its
// run ID. Readers never see a partial run.
func (db *DB) WriteImport(ctx context.Context, imp Import) (string, error) {
	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	runID := uuid.New().String()
	startedAt := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO import_runs (run_id, source, started_at_utc) VALUES (?, ?, ?)",
		runID, imp.Source, startedAt,
	); err != nil {
		return "", fmt.Errorf("failed to create import run: %w", err)
	}

	if err := insertCollisions(ctx, tx, runID, imp.Collisions); err != nil {
		return "", err
	}
	if err := insertWeather(ctx, tx, runID, imp.Weather); err != nil {
		return "", err
	}
	if err := insertAreas(ctx, tx, runID, LayerBorough, imp.Boroughs); err != nil {
		return "", err
	}
	if err := insertAreas(ctx, tx, runID, LayerDistrict, imp.Districts); err != nil {
		return "", err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE import_runs
		SET finished_at_utc = ?, collisions = ?, weather_samples = ?, areas = ?
		WHERE run_id = ?`,
		time.Now().UTC().Format(time.RFC3339),
		len(imp.Collisions), len(imp.Weather), len(imp.Boroughs)+len(imp.Districts),
		runID,
	); err != nil {
		return "", fmt.Errorf("failed to finish import run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit import: %w", err)
	}
	return runID, nil
}

func insertCollisions(ctx context.Context, tx *sql.Tx, runID string, records []collisions.Record) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO collisions (
			run_id, seq, crash_time, crash_time_utc, borough, vehicle, weather, factor,
			vehicle_category, factor_category,
			injured, killed, valid, latitude, longitude, sknt, p01i, vsby
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare collisions statement: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		var crashTime *string
		if !r.Time.IsZero() {
			s := r.Time.Format(time.RFC3339)
			crashTime = &s
		}
		if _, err := stmt.ExecContext(ctx,
			runID, i, r.RawTime, crashTime, r.Borough, r.Vehicle, r.Weather, r.Factor,
			r.VehicleCategory, r.FactorCategory,
			r.Injured, r.Killed, r.Valid, r.Latitude, r.Longitude,
			r.WindKnots, r.PrecipInches, r.VisibilityKm,
		); err != nil {
			return fmt.Errorf("failed to insert collision %d: %w", i, err)
		}
	}
	return nil
}

func insertWeather(ctx context.Context, tx *sql.Tx, runID string, samples []collisions.WeatherSample) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO weather_samples (run_id, seq, observed_utc, sknt, p01i, vsby)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare weather statement: %w", err)
	}
	defer stmt.Close()

	for i, s := range samples {
		var observed *string
		if !s.Time.IsZero() {
			v := s.Time.UTC().Format(time.RFC3339)
			observed = &v
		}
		if _, err := stmt.ExecContext(ctx, runID, i, observed, s.WindKnots, s.PrecipInches, s.VisibilityKm); err != nil {
			return fmt.Errorf("failed to insert weather sample %d: %w", i, err)
		}
	}
	return nil
}

func insertAreas(ctx context.Context, tx *sql.Tx, runID, layer string, areas []collisions.Area) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO areas (run_id, layer, name, code, area_km2, centroid_lat, centroid_lon, geometry)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare areas statement: %w", err)
	}
	defer stmt.Close()

	for _, a := range areas {
		geometry, err := json.Marshal(geojson.NewGeometry(a.Geometry))
		if err != nil {
			return fmt.Errorf("failed to encode %s %s: %w", layer, a.Name, err)
		}
		if _, err := stmt.ExecContext(ctx,
			runID, layer, a.Name, a.Code, a.AreaKm2, a.Centroid.Lat(), a.Centroid.Lon(), string(geometry),
		); err != nil {
			return fmt.Errorf("failed to insert %s %s: %w", layer, a.Name, err)
		}
	}
	return nil
}
