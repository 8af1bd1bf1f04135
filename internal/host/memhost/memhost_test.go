package memhost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/ridemap/internal/host"
	"github.com/dpup/ridemap/internal/lib/geo"
)

func TestProjectUnproject(t *testing.T) {
	h := New(DefaultViewport())
	center := DefaultViewport().Center

	sp, err := h.Project(center)
	require.NoError(t, err)
	assert.InDelta(t, 540, sp.X, 1e-6)
	assert.InDelta(t, 960, sp.Y, 1e-6)

	back := h.Unproject(host.ScreenPoint{X: 100, Y: 200})
	sp, err = h.Project(back)
	require.NoError(t, err)
	assert.InDelta(t, 100, sp.X, 1e-6)
	assert.InDelta(t, 200, sp.Y, 1e-6)

	_, err = h.Project(geo.Point{Latitude: 0, Longitude: 0})
	assert.Error(t, err, "far away points are off screen")
}

func TestFailNext(t *testing.T) {
	h := New(DefaultViewport())
	h.FailNext(OpLayerExists, ErrNotReady)

	_, err := h.LayerExists("zones")
	assert.ErrorIs(t, err, ErrNotReady)

	exists, err := h.LayerExists("zones")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLayersAndEviction(t *testing.T) {
	h := New(DefaultViewport())
	require.NoError(t, h.AddLayer(host.LayerSpec{ID: "zones", Type: "fill"}))
	assert.Error(t, h.AddLayer(host.LayerSpec{ID: "zones"}), "duplicate add is rejected")

	h.Evict("zones")
	exists, err := h.LayerExists("zones")
	require.NoError(t, err)
	assert.False(t, exists)

	calls := h.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, OpAddLayer, calls[0].Op)
}

func TestSnapshot(t *testing.T) {
	h := New(DefaultViewport())
	_, err := h.CreateAnnotation(host.Annotation{Layer: "l", Key: "k", Points: []geo.Point{{Latitude: 1, Longitude: 2}}})
	require.NoError(t, err)
	require.NoError(t, h.SetCamera(host.CameraPose{Zoom: 18}))
	require.NoError(t, h.SetCamera(host.CameraPose{Zoom: 17}))

	snap := h.Snapshot()
	assert.Len(t, snap.Annotations, 1)
	require.NotNil(t, snap.Camera)
	assert.Equal(t, 17.0, snap.Camera.Zoom)
	assert.Equal(t, 3, snap.Calls)
}

func TestHistoryIsBounded(t *testing.T) {
	h := New(DefaultViewport())
	total := 5 * HistoryLimit
	for i := 0; i < total; i++ {
		require.NoError(t, h.SetCamera(host.CameraPose{Zoom: float64(i)}))
	}

	poses := h.Poses()
	assert.GreaterOrEqual(t, len(poses), HistoryLimit)
	assert.Less(t, len(poses), 2*HistoryLimit)
	assert.Equal(t, float64(total-1), poses[len(poses)-1].Zoom, "newest pose is kept")

	assert.Less(t, len(h.Calls()), 2*HistoryLimit)

	snap := h.Snapshot()
	assert.Equal(t, total, snap.Calls, "the total keeps counting")
	assert.Equal(t, float64(total-1), snap.Camera.Zoom)
}
