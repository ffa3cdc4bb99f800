package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/marcfranquesa/nyc-collisions/internal/aggregate"
	"github.com/marcfranquesa/nyc-collisions/internal/config"
	"github.com/marcfranquesa/nyc-collisions/internal/preview"
	"github.com/marcfranquesa/nyc-collisions/internal/repository"
)

func main() {
	config.LoadEnv(".")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	selection := flag.String("select", "", "Selection as a query string, e.g. vehicle=Taxi&borough=Brooklyn")
	width := flag.Int("width", 80, "Output width in columns")
	flag.Parse()

	q, err := url.ParseQuery(*selection)
	if err != nil {
		log.Fatalf("Invalid -select %q: %v", *selection, err)
	}
	for key := range q {
		if _, err := aggregate.ParseDimension(key); err != nil {
			log.Fatalf("Invalid -select: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	src, err := repository.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s source: %v", cfg.DataSource, err)
	}
	defer src.Close()

	d, err := repository.Load(ctx, src, cfg.ReferenceDate)
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}

	out, err := preview.Render(d.Records, aggregate.ParseSelection(q), *width)
	if err != nil {
		log.Fatalf("Failed to render preview: %v", err)
	}
	fmt.Println(out)
}
