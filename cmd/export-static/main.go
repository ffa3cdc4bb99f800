package main

import (
	"context"
	"flag"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/marcfranquesa/nyc-collisions/internal/config"
	"github.com/marcfranquesa/nyc-collisions/internal/dashboard"
	"github.com/marcfranquesa/nyc-collisions/internal/repository"
)

func main() {
	config.LoadEnv(".")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	layoutID := flag.String("layout", dashboard.StaticID, "Dashboard to export (interactive or static)")
	out := flag.String("out", "nyc-collisions.html", "Output HTML file")
	selection := flag.String("select", "", "Selection as a query string, e.g. vehicle=Taxi&month=June,July")
	flag.Parse()

	q, err := url.ParseQuery(*selection)
	if err != nil {
		log.Fatalf("Invalid -select %q: %v", *selection, err)
	}

	l, err := dashboard.Find(dashboard.Layouts(cfg.InteractivePeriod), *layoutID)
	if err != nil {
		log.Fatalf("%v", err)
	}

	theme, err := config.DefaultTheme()
	if err != nil {
		log.Fatalf("Failed to parse default theme: %v", err)
	}
	if cfg.ThemeFile != "" {
		if theme, err = config.LoadTheme(cfg.ThemeFile); err != nil {
			log.Fatalf("Failed to load theme: %v", err)
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

	rendered, err := l.Render(d.Input(theme).WithSelection(l.Selection(q)))
	if err != nil {
		log.Fatalf("Failed to render %s: %v", l.ID, err)
	}

	if dir := filepath.Dir(*out); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
	}
	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", *out, err)
	}
	if err := dashboard.WriteStatic(f, rendered, time.Now()); err != nil {
		f.Close()
		log.Fatalf("%v", err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("Failed to write %s: %v", *out, err)
	}

	log.Printf("Exported %s (%d charts, %d collisions) to %s", l.ID, len(rendered.Panels()), d.Stats.Kept, *out)
}
