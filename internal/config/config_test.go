package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/ridemap/internal/lib/hull"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 6*time.Second, cfg.Camera.Interval)
	assert.Equal(t, 25.0, cfg.Camera.MinDistance)
	assert.Equal(t, 8000*time.Millisecond, cfg.Camera.MaxStaleness)
	assert.Equal(t, 0.15, cfg.Camera.SmoothingFactor)
	assert.Equal(t, 60.0, cfg.Camera.SnapThreshold)
	assert.Equal(t, 150.0, cfg.Camera.ChaseDistance)
	assert.Equal(t, 18.0, cfg.Camera.Zoom)
	assert.Equal(t, 60.0, cfg.Camera.Pitch)
	assert.Equal(t, 50.0, cfg.Draft.ThresholdPixels)
	assert.Equal(t, hull.ModeHull, cfg.Draft.Mode())
	assert.Equal(t, 0.0001, cfg.Markers.EpsilonDegrees)
	assert.Equal(t, 1500*time.Millisecond, cfg.Monitor.Interval)
	assert.Equal(t, 3*time.Second, cfg.Monitor.ErrorInterval)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Camera.SmoothingFactor = 1.5
	cfg.Draft.RingMode = "spline"
	cfg.Monitor.LayerID = ""
	cfg.Cache.Backend = BackendRedis
	cfg.Preview.CenterLat = 120

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"camera.smoothing_factor",
		"draft.ring_mode",
		"monitor.layer_id",
		"cache.redis_addr",
		"preview center",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Monitor.LayerID = "service-areas"
	cfg.Monitor.LayerType = "line"

	spec := cfg.Monitor.Spec()
	assert.Equal(t, "service-areas", spec.ID)
	assert.Equal(t, "line", spec.Type)
	assert.NotEmpty(t, spec.Properties)

	assert.Equal(t, cfg.Monitor.Interval, cfg.Monitor.Settings().Interval)

	vp := cfg.Preview.Viewport()
	assert.Equal(t, cfg.Preview.CenterLat, vp.Center.Latitude)
	assert.Equal(t, cfg.Preview.PixelsPerDegree, vp.PixelsPerDeg)

	cfg.Draft.RingMode = "insertion"
	assert.Equal(t, hull.ModeInsertion, cfg.Draft.Mode())
}
