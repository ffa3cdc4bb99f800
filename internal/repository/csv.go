package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/marcfranquesa/nyc-collisions/internal/collisions"
	"github.com/marcfranquesa/nyc-collisions/internal/db"
)

// CSVSource reads the processed files straight from disk. The district and
// weather files are optional; charts that need them report it.
type CSVSource struct {
	CollisionsPath string
	BoroughsPath   string
	DistrictsPath  string
	WeatherPath    string
}

// NewCSVSource creates a file source.
func NewCSVSource(collisionsPath, boroughsPath, districtsPath, weatherPath string) *CSVSource {
	return &CSVSource{
		CollisionsPath: collisionsPath,
		BoroughsPath:   boroughsPath,
		DistrictsPath:  districtsPath,
		WeatherPath:    weatherPath,
	}
}

func (s *CSVSource) Name() string { return "csv:" + s.CollisionsPath }

func (s *CSVSource) Close() error { return nil }

// Fetch reads every file.
func (s *CSVSource) Fetch(ctx context.Context) (*db.Import, error) {
	records, err := collisions.LoadCollisions(s.CollisionsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.CollisionsPath)
		}
		return nil, err
	}

	boroughs, err := collisions.LoadAreas(s.BoroughsPath, collisions.PropBorough)
	if err != nil {
		return nil, err
	}

	imp := &db.Import{Source: s.Name(), Collisions: records, Boroughs: boroughs}

	if imp.Districts, err = optional(s.DistrictsPath, func(p string) ([]collisions.Area, error) {
		return collisions.LoadAreas(p, collisions.PropDistrict)
	}); err != nil {
		return nil, err
	}
	if imp.Weather, err = optional(s.WeatherPath, collisions.LoadWeather); err != nil {
		return nil, err
	}
	return imp, nil
}

// optional loads path, treating a missing file as empty.
func optional[T any](path string, load func(string) ([]T, error)) ([]T, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: %s not found, continuing without it", path)
		return nil, nil
	}
	return load(path)
}
