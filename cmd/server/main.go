package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"github.com/dpup/prefab"
	"github.com/dpup/prefab/logging"
	"github.com/redis/go-redis/v9"

	"github.com/dpup/ridemap/internal/cache"
	"github.com/dpup/ridemap/internal/config"
	"github.com/dpup/ridemap/internal/host/memhost"
	"github.com/dpup/ridemap/internal/metrics"
	"github.com/dpup/ridemap/internal/services"
)

func main() {
	// Load configuration using Prefab's config system
	appConfig := loadConfig()

	// The preview server renders into an in-memory surface
	surface := memhost.New(appConfig.Preview.Viewport())

	// Background work logs through prefab, which needs a logger on the context
	ctx, cancel := context.WithCancel(logging.EnsureLogger(context.Background()))
	defer cancel()

	store := newDraftStore(ctx, appConfig)
	mapService := services.NewMapService(appConfig, surface, store)
	defer mapService.Close(ctx)

	log.Printf("Ride map preview server starting")
	log.Printf("Draft store: %s, ring mode: %s", appConfig.Cache.Backend, appConfig.Draft.Mode())

	options := []prefab.ServerOption{
		prefab.WithContext(ctx),
		prefab.WithHTTPHandlerFunc("/", homepageHandler),
		prefab.WithHTTPHandler("/metrics", metrics.Handler()),
		prefab.WithJSONHandler("/api/v1/host", func(*http.Request) (any, error) {
			return surface.Snapshot(), nil
		}),
	}
	for _, route := range mapService.JSONRoutes() {
		options = append(options, prefab.WithJSONHandler(route.Path, route.Handler))
	}
	for _, route := range mapService.Routes() {
		options = append(options, prefab.WithHTTPHandlerFunc(route.Path, route.Handler))
	}

	// Server configuration (port, etc.) will be loaded from prefab.yaml/env vars
	server := prefab.New(options...)

	// Start the server (blocks until shutdown)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// loadConfig loads configuration using Prefab's config system
// Configuration is loaded from prefab.yaml and environment variables with PF__ prefix
func loadConfig() *config.Config {
	appConfig := config.DefaultConfig()

	// Unmarshal specific sections from Prefab's config using exact key paths.
	// Keys missing from prefab.yaml keep their defaults.
	sections := map[string]any{
		"camera":  &appConfig.Camera,
		"route":   &appConfig.Route,
		"draft":   &appConfig.Draft,
		"markers": &appConfig.Markers,
		"monitor": &appConfig.Monitor,
		"cache":   &appConfig.Cache,
		"preview": &appConfig.Preview,
	}
	for key, section := range sections {
		if err := prefab.Config.Unmarshal(key, section); err != nil {
			log.Fatalf("Failed to unmarshal %s section: %v", key, err)
		}
	}

	if err := appConfig.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return appConfig
}

func newDraftStore(ctx context.Context, appConfig *config.Config) cache.DraftStore {
	if appConfig.Cache.Backend == config.BackendRedis {
		client := redis.NewClient(&redis.Options{
			Addr: appConfig.Cache.RedisAddr,
			DB:   appConfig.Cache.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to redis at %s: %v", appConfig.Cache.RedisAddr, err)
		}
		return cache.NewRedisDraftStore(client, appConfig.Cache.DraftTTL)
	}

	memory := cache.NewCache()
	memory.StartPeriodicCleanup(ctx, appConfig.Cache.CleanupInterval)
	return cache.NewMemoryDraftStore(memory, appConfig.Cache.DraftTTL)
}

// homepageHandler serves a simple HTML homepage at the server root
func homepageHandler(w http.ResponseWriter, r *http.Request) {
	// Only handle the root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	html := `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>ridemap</title>
    <style>
        body {
            font-family: 'Courier New', Consolas, monospace;
            background: #000;
            color: #0f0;
            padding: 20px;
            line-height: 1.4;
        }
        a { color: #0ff; text-decoration: none; }
        a:hover { text-decoration: underline; }
        pre { margin: 0; }
        .header { color: #ff0; }
    </style>
</head>
<body>
<pre>
<span class="header">ridemap</span>

Map geometry and navigation camera engine for the ride-hailing apps,
rendering into an in-memory preview surface.

<span class="header">Boundary drafting:</span>
  <a href="/api/v1/draft">GET  /api/v1/draft</a>                  - Draft points, selection and frame
  POST /api/v1/draft/click             - Tap at {"lat","lng"}
  POST /api/v1/draft/remove            - Remove point {"index"}
  POST /api/v1/draft/deselect          - Drop the selection
  POST /api/v1/draft/clear             - Remove every point
  POST /api/v1/draft/discard           - Forget the saved draft
  POST /api/v1/draft/resume            - Restore draft {"id"}
  <a href="/api/v1/draft/outcomes">GET  /api/v1/draft/outcomes</a>         - Click outcomes since last poll
  <a href="/api/v1/draft.kml">GET  /api/v1/draft.kml</a>              - Draft as KML

<span class="header">Markers:</span>
  <a href="/api/v1/markers">GET  /api/v1/markers</a>                - Last marker state
  POST /api/v1/markers                 - Reconcile marker state
  <a href="/api/v1/markers.kml">GET  /api/v1/markers.kml</a>            - Rendered markers as KML

<span class="header">Navigation:</span>
  POST /api/v1/location                - Device location {"lat","lng"}
  POST /api/v1/route                   - Active route
  <a href="/api/v1/navigation">GET  /api/v1/navigation</a>             - Camera and route progress
  POST /api/v1/navigation              - {"enabled": true|false}

<span class="header">Zone boundaries:</span>
  <a href="/api/v1/boundaries">GET  /api/v1/boundaries</a>             - Layer monitor stats
  POST /api/v1/boundaries              - {"enabled": true|false}

<span class="header">Diagnostics:</span>
  <a href="/api/v1/host">GET  /api/v1/host</a>                   - Surface snapshot
  <a href="/metrics">GET  /metrics</a>                        - Prometheus metrics
</pre>
</body>
</html>`

	if _, err := fmt.Fprint(w, html); err != nil {
		slog.Error("Failed to write homepage HTML", "error", err)
	}
}
