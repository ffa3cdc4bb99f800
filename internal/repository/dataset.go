package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marcfranquesa/nyc-collisions/internal/chart"
	"github.com/marcfranquesa/nyc-collisions/internal/collisions"
	"github.com/marcfranquesa/nyc-collisions/internal/config"
	"github.com/marcfranquesa/nyc-collisions/internal/db"
	"github.com/marcfranquesa/nyc-collisions/internal/derive"
)

// ErrNotFound is returned when a source holds no dataset.
var ErrNotFound = errors.New("dataset not found")

// Source fetches the raw tables of one dataset.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (*db.Import, error)
	Close() error
}

// Dataset is the loaded, derived dataset. It is never modified after Load.
type Dataset struct {
	LoadID   string       `json:"loadId"`
	Source   string       `json:"source"`
	LoadedAt time.Time    `json:"loadedAt"`
	Stats    derive.Stats `json:"stats"`

	Records   []derive.Record            `json:"-"`
	Boroughs  []collisions.Area          `json:"-"`
	Districts []collisions.Area          `json:"-"`
	Weather   []collisions.WeatherSample `json:"-"`
}

// Load fetches src and derives every record.
func Load(ctx context.Context, src Source, referenceDate time.Time) (*Dataset, error) {
	imp, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load from %s: %w", src.Name(), err)
	}
	if len(imp.Collisions) == 0 {
		return nil, fmt.Errorf("%s: %w: no collisions", src.Name(), ErrNotFound)
	}

	d := &derive.Deriver{ReferenceDate: referenceDate, Districts: imp.Districts}
	records, stats := d.DeriveAll(imp.Collisions)
	if stats.Dropped > 0 {
		log.Printf("Warning: dropped %d of %d collisions with unparseable timestamps", stats.Dropped, stats.Total)
	}

	return &Dataset{
		LoadID:    uuid.New().String(),
		Source:    src.Name(),
		LoadedAt:  time.Now().UTC(),
		Stats:     stats,
		Records:   records,
		Boroughs:  imp.Boroughs,
		Districts: imp.Districts,
		Weather:   imp.Weather,
	}, nil
}

// Input is the dataset as chart input.
func (d *Dataset) Input(theme *config.Theme) chart.Input {
	return chart.Input{
		Records:   d.Records,
		Boroughs:  d.Boroughs,
		Districts: d.Districts,
		Weather:   d.Weather,
		Theme:     theme,
	}
}

// Store holds the current dataset and swaps it atomically on reload.
type Store struct {
	src           Source
	referenceDate time.Time

	mu      sync.RWMutex
	current *Dataset
}

// NewStore creates a store and performs the first load.
func NewStore(ctx context.Context, src Source, referenceDate time.Time) (*Store, error) {
	s := &Store{src: src, referenceDate: referenceDate}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStaticStore wraps an already loaded dataset.
func NewStaticStore(d *Dataset) *Store {
	return &Store{current: d}
}

// Current returns the loaded dataset.
func (s *Store) Current(ctx context.Context) (*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNotFound
	}
	return s.current, nil
}

// Reload fetches the source again. The previous dataset stays current when
// the reload fails.
func (s *Store) Reload(ctx context.Context) error {
	if s.src == nil {
		return errors.New("store has no source to reload from")
	}
	d, err := Load(ctx, s.src, s.referenceDate)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = d
	s.mu.Unlock()

	log.Printf("Loaded dataset %s from %s: %d collisions (%d dropped), %d boroughs, %d districts, %d weather samples",
		d.LoadID, d.Source, d.Stats.Kept, d.Stats.Dropped, len(d.Boroughs), len(d.Districts), len(d.Weather))
	return nil
}

// Close releases the source.
func (s *Store) Close() error {
	if s.src == nil {
		return nil
	}
	return s.src.Close()
}

// Open builds the source selected by cfg.
func Open(ctx context.Context, cfg *config.Config) (Source, error) {
	switch cfg.DataSource {
	case config.SourceCSV:
		return NewCSVSource(cfg.CollisionsCSV, cfg.BoroughsGeoJSON, cfg.DistrictsGeoJSON, cfg.WeatherCSV), nil
	case config.SourceSQLite:
		return NewSQLiteSource(cfg.SQLitePath)
	case config.SourcePostgres:
		return NewPostgresSource(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.DataSource)
	}
}
