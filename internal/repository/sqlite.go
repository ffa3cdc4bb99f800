package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/marcfranquesa/nyc-collisions/internal/db"
)

// SQLiteSource reads the latest import run written by import-collisions.
type SQLiteSource struct {
	path string
	db   *db.DB
}

// NewSQLiteSource opens the database at path.
func NewSQLiteSource(path string) (*SQLiteSource, error) {
	conn, err := db.Connect(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteSource{path: path, db: conn}, nil
}

func (s *SQLiteSource) Name() string { return "sqlite:" + s.path }

func (s *SQLiteSource) Close() error { return s.db.Close() }

// LatestRun describes the import run Fetch reads.
func (s *SQLiteSource) LatestRun(ctx context.Context) (*db.ImportRun, error) {
	run, err := s.db.LatestRun(ctx)
	if errors.Is(err, db.ErrNoImport) {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return run, err
}

// Fetch reads every table of the latest run.
func (s *SQLiteSource) Fetch(ctx context.Context) (*db.Import, error) {
	run, err := s.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	imp, err := s.db.ReadImport(ctx, run.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", run.RunID, err)
	}
	imp.Source = run.Source
	return imp, nil
}
