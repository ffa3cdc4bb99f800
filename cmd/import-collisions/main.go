package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/marcfranquesa/nyc-collisions/internal/config"
	"github.com/marcfranquesa/nyc-collisions/internal/db"
	"github.com/marcfranquesa/nyc-collisions/internal/repository"
)

func main() {
	config.LoadEnv(".")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Command line flags, defaulting to the environment configuration
	dbPath := flag.String("db", cfg.SQLitePath, "Path to SQLite database")
	collisionsPath := flag.String("collisions", cfg.CollisionsCSV, "Collisions CSV")
	boroughsPath := flag.String("boroughs", cfg.BoroughsGeoJSON, "Borough boundaries GeoJSON")
	districtsPath := flag.String("districts", cfg.DistrictsGeoJSON, "Community district boundaries GeoJSON (optional)")
	weatherPath := flag.String("weather", cfg.WeatherCSV, "Hourly weather CSV (optional)")
	keep := flag.Int("keep", 3, "Number of import runs to keep, 0 keeps all")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	src := repository.NewCSVSource(*collisionsPath, *boroughsPath, *districtsPath, *weatherPath)
	imp, err := src.Fetch(ctx)
	if err != nil {
		log.Fatalf("Failed to read CSV files: %v", err)
	}
	log.Printf("Read %d collisions, %d weather samples, %d boroughs, %d districts",
		len(imp.Collisions), len(imp.Weather), len(imp.Boroughs), len(imp.Districts))

	database, err := db.Connect(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	// Creates tables, or migrates a store written by an older importer
	if err := database.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	start := time.Now()
	runID, err := database.WriteImport(ctx, *imp)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	log.Printf("Import run %s written in %v", runID, time.Since(start).Round(time.Millisecond))

	if *keep > 0 {
		if err := database.PruneRuns(ctx, *keep); err != nil {
			log.Printf("Warning: failed to prune old runs: %v", err)
		}
	}
}
