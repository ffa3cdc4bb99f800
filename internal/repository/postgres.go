package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marcfranquesa/nyc-collisions/internal/db"
)

// PostgresSource reads the latest import run from a Postgres database holding
// the same tables as the SQLite import.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource connects to databaseURL.
func NewPostgresSource(ctx context.Context, databaseURL string) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresSource{pool: pool}, nil
}

func (s *PostgresSource) Name() string { return "postgres" }

func (s *PostgresSource) Close() error {
	s.pool.Close()
	return nil
}

// EnsureSchema creates the import tables if they don't exist and adds
// columns missing from older databases.
func (s *PostgresSource) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, db.GetSchemaSQL()); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	for _, col := range db.AddedColumns {
		stmt := fmt.Sprintf("ALTER TABLE collisions ADD COLUMN IF NOT EXISTS %s TEXT NOT NULL DEFAULT ''", col)
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to add column %s: %w", col, err)
		}
	}
	return nil
}

// LatestRun describes the import run Fetch reads.
func (s *PostgresSource) LatestRun(ctx context.Context) (*db.ImportRun, error) {
	run, err := db.ScanImportRun(s.pool.QueryRow(ctx, rebind(db.LatestRunQuery)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, db.ErrNoImport)
		}
		return nil, fmt.Errorf("failed to query import runs: %w", err)
	}
	return run, nil
}

// Fetch reads every table of the latest run.
func (s *PostgresSource) Fetch(ctx context.Context) (*db.Import, error) {
	run, err := s.LatestRun(ctx)
	if err != nil {
		return nil, err
	}

	imp := &db.Import{Source: run.Source}
	if imp.Collisions, err = queryAll(ctx, s.pool, db.CollisionsQuery, db.ScanCollision, run.RunID); err != nil {
		return nil, fmt.Errorf("failed to read collisions: %w", err)
	}
	if imp.Weather, err = queryAll(ctx, s.pool, db.WeatherQuery, db.ScanWeather, run.RunID); err != nil {
		return nil, fmt.Errorf("failed to read weather: %w", err)
	}
	if imp.Boroughs, err = queryAll(ctx, s.pool, db.AreasQuery, db.ScanArea, run.RunID, db.LayerBorough); err != nil {
		return nil, fmt.Errorf("failed to read boroughs: %w", err)
	}
	if imp.Districts, err = queryAll(ctx, s.pool, db.AreasQuery, db.ScanArea, run.RunID, db.LayerDistrict); err != nil {
		return nil, fmt.Errorf("failed to read districts: %w", err)
	}
	return imp, nil
}

func queryAll[T any](ctx context.Context, pool *pgxpool.Pool, query string, scan func(db.Scanner) (T, error), args ...any) ([]T, error) {
	rows, err := pool.Query(ctx, rebind(query), args...)
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

// rebind turns ? placeholders into Postgres $n placeholders.
func rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
