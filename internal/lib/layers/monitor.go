// Package layers keeps a declarative style layer on the map while it is
// supposed to be visible, re-adding it whenever the host evicts it.
package layers

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"

	"github.com/dpup/ridemap/internal/host"
	"github.com/dpup/ridemap/internal/lib/schedule"
	"github.com/dpup/ridemap/internal/metrics"
)

// Settings control how often the layer is checked
type Settings struct {
	Interval      time.Duration `yaml:"interval"`
	ErrorInterval time.Duration `yaml:"error_interval"`
}

// DefaultSettings checks every 1.5s, backing off to 3s after an error
func DefaultSettings() Settings {
	return Settings{
		Interval:      1500 * time.Millisecond,
		ErrorInterval: 3 * time.Second,
	}
}

// DefaultBoundarySpec is the saved-zone boundary layer
func DefaultBoundarySpec() host.LayerSpec {
	return host.LayerSpec{
		ID:     "zone-boundaries",
		Source: "zone-boundaries",
		Type:   "fill",
		Properties: map[string]any{
			"fill-color":   "#3F51B5",
			"fill-opacity": 0.25,
		},
	}
}

// Stats summarizes monitor activity
type Stats struct {
	Visible bool   `json:"visible"`
	Checks  int    `json:"checks"`
	Adds    int    `json:"adds"`
	ReAdds  int    `json:"readds"`
	Errors  int    `json:"errors"`
	LastErr string `json:"last_error,omitempty"`
}

// Monitor supervises one layer
type Monitor struct {
	layers   host.Layers
	spec     host.LayerSpec
	settings Settings
	loop     *schedule.Loop

	mutex   sync.Mutex
	visible bool
	added   bool
	stats   Stats
}

// NewMonitor creates a monitor for spec. The layer is not shown until SetVisible(true).
func NewMonitor(layers host.Layers, spec host.LayerSpec, settings Settings) *Monitor {
	m := &Monitor{
		layers:   layers,
		spec:     spec,
		settings: settings,
	}
	m.loop = schedule.NewLoop("layer-monitor:"+spec.ID, m.tick)
	return m
}

// SetVisible starts or stops supervision. Hiding stops the loop and then
// removes the layer from the host.
func (m *Monitor) SetVisible(ctx context.Context, visible bool) {
	m.mutex.Lock()
	if m.visible == visible {
		m.mutex.Unlock()
		return
	}
	m.visible = visible
	m.stats.Visible = visible
	m.mutex.Unlock()

	if visible {
		logging.Infow(ctx, "Layer monitor started", "layer", m.spec.ID)
		m.loop.Start(ctx)
		return
	}

	m.loop.Stop()
	m.mutex.Lock()
	m.added = false
	m.mutex.Unlock()

	if err := m.layers.RemoveLayer(m.spec.ID); err != nil {
		logging.Warnw(ctx, "Layer monitor: remove failed", "layer", m.spec.ID, "error", err)
	}
	logging.Infow(ctx, "Layer monitor stopped", "layer", m.spec.ID)
}

// Visible reports whether the layer is supposed to be shown
func (m *Monitor) Visible() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.visible
}

// Stats returns a copy of the activity counters
func (m *Monitor) Stats() Stats {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.stats
}

// Check runs one iteration: if the layer is missing it is added again.
func (m *Monitor) Check(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.visible {
		return nil
	}
	m.stats.Checks++

	exists, err := m.layers.LayerExists(m.spec.ID)
	if err != nil {
		return m.failLocked(fmt.Errorf("layer exists %s: %w", m.spec.ID, err))
	}
	if exists {
		m.added = true
		return nil
	}

	if err := m.layers.AddLayer(m.spec); err != nil {
		return m.failLocked(fmt.Errorf("add layer %s: %w", m.spec.ID, err))
	}

	if m.added {
		m.stats.ReAdds++
		metrics.LayerReadds.WithLabelValues(m.spec.ID).Inc()
		logging.Infow(ctx, "Layer monitor: re-added evicted layer", "layer", m.spec.ID)
	}
	m.stats.Adds++
	m.added = true
	return nil
}

func (m *Monitor) failLocked(err error) error {
	m.stats.Errors++
	m.stats.LastErr = err.Error()
	metrics.MonitorErrors.WithLabelValues(m.spec.ID).Inc()
	return err
}

func (m *Monitor) tick(ctx context.Context) (next time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			err, _ := errors.ParseStack(debug.Stack())
			skipFrames := 3
			numFrames := 5
			logging.Errorw(ctx, "Layer monitor: recovered from panic",
				"layer", m.spec.ID, "error", r, "error.stack_trace", err.MinimalStack(skipFrames, numFrames))
			next = m.settings.ErrorInterval
		}
	}()

	if err := m.Check(ctx); err != nil {
		logging.Warnw(ctx, "Layer monitor: check failed", "layer", m.spec.ID, "error", err,
			"retry_in", m.settings.ErrorInterval)
		return m.settings.ErrorInterval
	}
	return m.settings.Interval
}
