package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dpup/ridemap/internal/host"
	"github.com/dpup/ridemap/internal/host/memhost"
	"github.com/dpup/ridemap/internal/lib/camera"
	"github.com/dpup/ridemap/internal/lib/geo"
	"github.com/dpup/ridemap/internal/lib/hittest"
	"github.com/dpup/ridemap/internal/lib/hull"
	"github.com/dpup/ridemap/internal/lib/layers"
	"github.com/dpup/ridemap/internal/lib/routing"
)

// Config represents the complete engine configuration
type Config struct {
	Camera  camera.Settings    `yaml:"camera"`
	Route   routing.Thresholds `yaml:"route"`
	Draft   DraftConfig        `yaml:"draft"`
	Markers MarkersConfig      `yaml:"markers"`
	Monitor MonitorConfig      `yaml:"monitor"`
	Cache   CacheConfig        `yaml:"cache"`
	Preview PreviewConfig      `yaml:"preview"`
}

// DraftConfig holds boundary drafting settings
type DraftConfig struct {
	ThresholdPixels float64 `yaml:"threshold_pixels"`
	RingMode        string  `yaml:"ring_mode"`
}

// MarkersConfig holds marker reconciliation settings
type MarkersConfig struct {
	EpsilonDegrees float64 `yaml:"epsilon_degrees"`
}

// MonitorConfig holds boundary layer supervision settings
type MonitorConfig struct {
	Interval      time.Duration `yaml:"interval"`
	ErrorInterval time.Duration `yaml:"error_interval"`
	LayerID       string        `yaml:"layer_id"`
	LayerSource   string        `yaml:"layer_source"`
	LayerType     string        `yaml:"layer_type"`
}

// CacheConfig selects and tunes the draft store
type CacheConfig struct {
	Backend         string        `yaml:"backend"`
	DraftTTL        time.Duration `yaml:"draft_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	RedisAddr       string        `yaml:"redis_addr"`
	RedisDB         int           `yaml:"redis_db"`
}

// PreviewConfig describes the in-memory map surface the preview server renders to
type PreviewConfig struct {
	CenterLat       float64 `yaml:"center_lat"`
	CenterLng       float64 `yaml:"center_lng"`
	Width           float64 `yaml:"width"`
	Height          float64 `yaml:"height"`
	PixelsPerDegree float64 `yaml:"pixels_per_degree"`
}

// Cache backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	boundary := layers.DefaultBoundarySpec()
	monitor := layers.DefaultSettings()
	viewport := memhost.DefaultViewport()

	return &Config{
		Camera: camera.DefaultSettings(),
		Route:  routing.DefaultThresholds(),
		Draft: DraftConfig{
			ThresholdPixels: hittest.DefaultThreshold,
			RingMode:        string(hull.ModeHull),
		},
		Markers: MarkersConfig{
			EpsilonDegrees: geo.Epsilon,
		},
		Monitor: MonitorConfig{
			Interval:      monitor.Interval,
			ErrorInterval: monitor.ErrorInterval,
			LayerID:       boundary.ID,
			LayerSource:   boundary.Source,
			LayerType:     boundary.Type,
		},
		Cache: CacheConfig{
			Backend:         BackendMemory,
			DraftTTL:        24 * time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Preview: PreviewConfig{
			CenterLat:       viewport.Center.Latitude,
			CenterLng:       viewport.Center.Longitude,
			Width:           viewport.Width,
			Height:          viewport.Height,
			PixelsPerDegree: viewport.PixelsPerDeg,
		},
	}
}

// Validate reports every problem in the configuration at once
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, v float64) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, v))
		}
	}
	positiveDuration := func(name string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}

	positiveDuration("camera.interval", c.Camera.Interval)
	positiveDuration("camera.max_staleness", c.Camera.MaxStaleness)
	positive("camera.chase_distance_meters", c.Camera.ChaseDistance)
	if c.Camera.MinDistance < 0 {
		errs = append(errs, fmt.Errorf("camera.min_distance_meters must not be negative, got %v", c.Camera.MinDistance))
	}
	if c.Camera.SmoothingFactor <= 0 || c.Camera.SmoothingFactor > 1 {
		errs = append(errs, fmt.Errorf("camera.smoothing_factor must be in (0,1], got %v", c.Camera.SmoothingFactor))
	}
	if c.Camera.SnapThreshold <= 0 || c.Camera.SnapThreshold > 180 {
		errs = append(errs, fmt.Errorf("camera.snap_threshold_degrees must be in (0,180], got %v", c.Camera.SnapThreshold))
	}

	positive("route.on_route_meters", c.Route.OnRoute)
	if c.Route.Nearby < c.Route.OnRoute {
		errs = append(errs, fmt.Errorf("route.nearby_meters must be at least route.on_route_meters, got %v", c.Route.Nearby))
	}

	positive("draft.threshold_pixels", c.Draft.ThresholdPixels)
	if _, err := hull.ParseMode(c.Draft.RingMode); err != nil {
		errs = append(errs, fmt.Errorf("draft.ring_mode: %w", err))
	}

	positive("markers.epsilon_degrees", c.Markers.EpsilonDegrees)

	positiveDuration("monitor.interval", c.Monitor.Interval)
	positiveDuration("monitor.error_interval", c.Monitor.ErrorInterval)
	if c.Monitor.LayerID == "" {
		errs = append(errs, errors.New("monitor.layer_id is required"))
	}

	switch c.Cache.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("cache.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend must be %q or %q, got %q", BackendMemory, BackendRedis, c.Cache.Backend))
	}
	positiveDuration("cache.draft_ttl", c.Cache.DraftTTL)

	positive("preview.width", c.Preview.Width)
	positive("preview.height", c.Preview.Height)
	positive("preview.pixels_per_degree", c.Preview.PixelsPerDegree)
	if !geo.IsValid(geo.Point{Latitude: c.Preview.CenterLat, Longitude: c.Preview.CenterLng}) {
		errs = append(errs, fmt.Errorf("preview center: %w", geo.ErrInvalidCoordinates))
	}

	return errors.Join(errs...)
}

// Mode returns the parsed ring mode, falling back to hull ordering
func (c DraftConfig) Mode() hull.Mode {
	mode, err := hull.ParseMode(c.RingMode)
	if err != nil {
		return hull.ModeHull
	}
	return mode
}

// Settings converts the monitor intervals
func (c MonitorConfig) Settings() layers.Settings {
	return layers.Settings{Interval: c.Interval, ErrorInterval: c.ErrorInterval}
}

// Spec returns the supervised layer. Styling properties come from the default boundary layer.
func (c MonitorConfig) Spec() host.LayerSpec {
	spec := layers.DefaultBoundarySpec()
	spec.ID = c.LayerID
	if c.LayerSource != "" {
		spec.Source = c.LayerSource
	}
	if c.LayerType != "" {
		spec.Type = c.LayerType
	}
	return spec
}

// Viewport converts the preview surface settings
func (c PreviewConfig) Viewport() memhost.Viewport {
	return memhost.Viewport{
		Center:       geo.Point{Latitude: c.CenterLat, Longitude: c.CenterLng},
		Width:        c.Width,
		Height:       c.Height,
		PixelsPerDeg: c.PixelsPerDegree,
	}
}
