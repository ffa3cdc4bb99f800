package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/marcfranquesa/nyc-collisions/internal/config"
	"github.com/marcfranquesa/nyc-collisions/internal/dashboard"
	"github.com/marcfranquesa/nyc-collisions/internal/handlers"
	"github.com/marcfranquesa/nyc-collisions/internal/metrics"
	"github.com/marcfranquesa/nyc-collisions/internal/repository"
)

func main() {
	// Load base .env first, then .env.local which overrides it for local development
	config.LoadEnv(".")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	theme, err := config.DefaultTheme()
	if err != nil {
		log.Fatalf("Failed to parse default theme: %v", err)
	}
	if cfg.ThemeFile != "" {
		if theme, err = config.LoadTheme(cfg.ThemeFile); err != nil {
			log.Fatalf("Failed to load theme: %v", err)
		}
		log.Printf("Using theme %s", cfg.ThemeFile)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	src, err := repository.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s source: %v", cfg.DataSource, err)
	}
	store, err := repository.NewStore(ctx, src, cfg.ReferenceDate)
	cancel()
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}
	defer store.Close()

	// SIGHUP reloads the dataset; the previous one keeps serving on failure
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			if err := store.Reload(ctx); err != nil {
				log.Printf("Warning: reload failed, keeping current dataset: %v", err)
			}
			cancel()
		}
	}()

	latency := metrics.NewLatencyRecorder()
	dashboardHandler := handlers.NewDashboardHandler(store, theme, dashboard.Layouts(cfg.InteractivePeriod), latency)
	healthHandler := handlers.NewHealthHandler(store, latency)
	aggregateHandler := handlers.NewAggregateHandler(store)

	// Setup router
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", healthHandler.GetHealth)

	r.Get("/api/dashboards", dashboardHandler.ListDashboards)
	r.Get("/api/dashboards/{id}", dashboardHandler.GetDashboard)
	r.Get("/api/dashboards/{id}/charts/{chartId}", dashboardHandler.GetChart)
	r.Get("/api/dashboards/{id}/export", dashboardHandler.ExportDashboard)
	r.Get("/api/aggregate", aggregateHandler.GetAggregate)

	r.Get("/", dashboardHandler.ServePage)
	r.Get("/dashboards/{id}", dashboardHandler.ServePage)

	// Static file serving (if configured)
	if cfg.StaticDir != "" {
		fs := http.FileServer(http.Dir(cfg.StaticDir))
		r.Handle("/static/*", http.StripPrefix("/static/", fs))
	}

	log.Printf("Dashboard server starting on :%s", cfg.Port)
	log.Println("Pages:")
	log.Println("  GET /")
	log.Println("  GET /dashboards/{id}")
	log.Println("Dashboard endpoints:")
	log.Println("  GET /api/dashboards")
	log.Println("  GET /api/dashboards/{id}")
	log.Println("  GET /api/dashboards/{id}/charts/{chartId}")
	log.Println("  GET /api/dashboards/{id}/export")
	log.Println("  GET /api/aggregate?dims=...&measures=...")
	log.Println("Health:")
	log.Println("  GET /health (dataset status and render latency)")

	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
