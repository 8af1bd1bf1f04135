package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/ridemap/internal/cache"
	"github.com/dpup/ridemap/internal/config"
	"github.com/dpup/ridemap/internal/host/memhost"
	"github.com/dpup/ridemap/internal/lib/draft"
	"github.com/dpup/ridemap/internal/lib/geo"
	"github.com/dpup/ridemap/internal/lib/markers"
	"github.com/dpup/ridemap/internal/lib/routing"
)

func pt(lat, lng float64) geo.Point { return geo.Point{Latitude: lat, Longitude: lng} }

// Corners of a small square around the default viewport center, 100px apart
var (
	cornerA = pt(14.5995, 120.9842)
	cornerB = pt(14.5995, 120.9852)
	cornerC = pt(14.6005, 120.9852)
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Camera.Interval = 5 * time.Millisecond
	cfg.Monitor.Interval = 5 * time.Millisecond
	cfg.Monitor.ErrorInterval = 10 * time.Millisecond
	return cfg
}

func newTestService(t *testing.T, store cache.DraftStore) (*MapService, *memhost.Host) {
	t.Helper()
	h := memhost.New(memhost.DefaultViewport())
	s := NewMapService(testConfig(), h, store)
	t.Cleanup(func() { s.Close(testContext()) })
	return s, h
}

func newStore() cache.DraftStore {
	return cache.NewMemoryDraftStore(cache.NewCache(), time.Hour)
}

func TestMapService_DraftFlow(t *testing.T) {
	ctx := testContext()
	store := newStore()
	s, h := newTestService(t, store)

	for _, p := range []geo.Point{cornerA, cornerB, cornerC} {
		outcome, err := s.Click(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, draft.OutcomeAdded, outcome.Kind)
	}
	assert.Len(t, h.AnnotationsInLayer(draft.LayerPoints), 3)
	assert.Len(t, h.AnnotationsInLayer(draft.LayerLine), 1)
	assert.Len(t, h.AnnotationsInLayer(draft.LayerPolygon), 1)

	// Pick the first corner, then place it lower
	outcome, err := s.Click(ctx, pt(14.59952, 120.98422))
	require.NoError(t, err)
	assert.Equal(t, draft.OutcomeSelected, outcome.Kind)
	assert.Equal(t, "point_selected", s.Draft().State)

	moved := pt(14.5990, 120.9842)
	outcome, err = s.Click(ctx, moved)
	require.NoError(t, err)
	assert.Equal(t, draft.OutcomeMoved, outcome.Kind)
	assert.Equal(t, 0, outcome.Index)

	var kinds []draft.OutcomeKind
	for _, o := range s.Outcomes() {
		kinds = append(kinds, o.Kind)
	}
	assert.Equal(t, []draft.OutcomeKind{
		draft.OutcomeAdded, draft.OutcomeAdded, draft.OutcomeAdded, draft.OutcomeSelected, draft.OutcomeMoved,
	}, kinds)
	assert.Empty(t, s.Outcomes(), "outcomes are drained")

	// Every change is handed to the store
	view := s.Draft()
	saved, err := store.LoadDraft(ctx, view.Snapshot.ID)
	require.NoError(t, err)
	assert.Equal(t, []geo.Point{moved, cornerB, cornerC}, saved.Points)

	_, err = s.Click(ctx, pt(95, 0))
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)
}

func TestMapService_RemoveAndDeselect(t *testing.T) {
	ctx := testContext()
	s, h := newTestService(t, nil)

	for _, p := range []geo.Point{cornerA, cornerB, cornerC} {
		_, err := s.Click(ctx, p)
		require.NoError(t, err)
	}

	_, err := s.Click(ctx, cornerB)
	require.NoError(t, err)
	s.Deselect(ctx)
	assert.Equal(t, "idle", s.Draft().State)

	require.NoError(t, s.RemovePoint(ctx, 2))
	assert.Len(t, h.AnnotationsInLayer(draft.LayerPoints), 2)
	assert.Empty(t, h.AnnotationsInLayer(draft.LayerPolygon))

	assert.ErrorIs(t, s.RemovePoint(ctx, 7), draft.ErrIndexOutOfRange)

	s.ClearDraft(ctx)
	assert.Empty(t, h.AnnotationsInLayer(draft.LayerPoints))
	assert.Empty(t, h.AnnotationsInLayer(draft.LayerLine))
}

func TestMapService_ResumeAndDiscard(t *testing.T) {
	ctx := testContext()
	store := newStore()

	first, _ := newTestService(t, store)
	for _, p := range []geo.Point{cornerA, cornerB, cornerC} {
		_, err := first.Click(ctx, p)
		require.NoError(t, err)
	}
	id := first.Draft().Snapshot.ID

	second, h := newTestService(t, store)
	require.NoError(t, second.ResumeDraft(ctx, id))
	assert.Equal(t, id, second.Draft().Snapshot.ID)
	assert.Equal(t, []geo.Point{cornerA, cornerB, cornerC}, second.Draft().Snapshot.Points)
	assert.Len(t, h.AnnotationsInLayer(draft.LayerPoints), 3)

	second.DiscardDraft(ctx)
	assert.Empty(t, h.AnnotationsInLayer(draft.LayerPoints))
	assert.NotEqual(t, id, second.Draft().Snapshot.ID)
	_, err := store.LoadDraft(ctx, id)
	assert.ErrorIs(t, err, cache.ErrDraftNotFound)

	assert.ErrorIs(t, second.ResumeDraft(ctx, "missing"), cache.ErrDraftNotFound)

	noStore, _ := newTestService(t, nil)
	assert.ErrorIs(t, noStore.ResumeDraft(ctx, id), cache.ErrDraftNotFound)
}

func TestMapService_DraftKML(t *testing.T) {
	ctx := testContext()
	s, _ := newTestService(t, nil)
	for _, p := range []geo.Point{cornerA, cornerB, cornerC} {
		_, err := s.Click(ctx, p)
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	require.NoError(t, s.WriteDraftKML(&buf))
	assert.Contains(t, buf.String(), "<Polygon>")
}

func TestMapService_Markers(t *testing.T) {
	ctx := testContext()
	s, h := newTestService(t, nil)

	state := markers.State{
		CurrentDriver: &markers.Entry{ID: "D1", Location: pt(14.1, 121.0)},
		NearbyDrivers: []markers.Entry{
			{ID: "D1", Location: pt(14.1, 121.0)},
			{ID: "D2", Location: pt(14.10005, 121.00005)},
		},
	}
	res, err := s.UpdateMarkers(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)

	var keys []string
	for _, a := range h.AnnotationsInLayer(markers.CategoryDriver.Layer()) {
		keys = append(keys, a.Key)
	}
	assert.Equal(t, []string{"current", "nearby:D2"}, keys)
	assert.Equal(t, state, s.MarkerState())

	// The assigned driver becomes the camera's tracked vehicle
	track, ok := s.tracker.Inputs().Track()
	require.True(t, ok)
	assert.Equal(t, pt(14.1, 121.0), track)

	_, err = s.UpdateMarkers(ctx, markers.State{Home: &markers.Entry{Location: pt(100, 0)}})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)

	var buf bytes.Buffer
	require.NoError(t, s.WriteMarkersKML(&buf))
	assert.Contains(t, buf.String(), "nearby:D2")
}

func TestMapService_Navigation(t *testing.T) {
	ctx := testContext()
	s, h := newTestService(t, nil)

	_, err := s.RouteProgress()
	assert.ErrorIs(t, err, ErrNoRoute)

	require.NoError(t, s.UpdateLocation(pt(14.0, 121.0)))
	require.NoError(t, s.SetRoute(geo.Polyline{Points: []geo.Point{pt(14.0, 121.0), pt(14.01, 121.0)}}))

	s.SetNavigating(ctx, true)
	require.Eventually(t, func() bool { return len(h.Poses()) > 0 }, time.Second, time.Millisecond)

	view := s.Navigation()
	assert.True(t, view.Navigating)
	require.NotNil(t, view.Pose)
	assert.Equal(t, 18.0, view.Pose.Zoom)
	require.NotNil(t, view.Progress)
	assert.Equal(t, routing.OnRoute, view.Progress.Classification)

	s.SetNavigating(ctx, false)
	assert.False(t, s.Navigation().Navigating)

	assert.ErrorIs(t, s.UpdateLocation(pt(0, 200)), geo.ErrInvalidCoordinates)
}

func TestMapService_Boundaries(t *testing.T) {
	ctx := testContext()
	s, h := newTestService(t, nil)
	id := testConfig().Monitor.LayerID

	s.ShowBoundaries(ctx, true)
	require.Eventually(t, func() bool { ok, _ := h.LayerExists(id); return ok }, time.Second, time.Millisecond)

	h.Evict(id)
	require.Eventually(t, func() bool { return s.Boundaries().ReAdds == 1 }, time.Second, time.Millisecond)

	s.ShowBoundaries(ctx, false)
	ok, _ := h.LayerExists(id)
	assert.False(t, ok)
}

func TestMapService_Close(t *testing.T) {
	ctx := testContext()
	s, h := newTestService(t, nil)

	_, err := s.Click(ctx, cornerA)
	require.NoError(t, err)
	_, err = s.UpdateMarkers(ctx, markers.State{Home: &markers.Entry{Location: pt(14.6, 121.0)}})
	require.NoError(t, err)
	s.ShowBoundaries(ctx, true)

	s.Close(ctx)
	snap := h.Snapshot()
	assert.Empty(t, snap.Annotations)
	assert.Empty(t, snap.Layers)
}

// testContext carries a development logger, as the prefab server does for requests
func testContext() context.Context {
	return logging.EnsureLogger(context.Background())
}
