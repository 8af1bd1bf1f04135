package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dpup/prefab"
	"github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/ridemap/internal/lib/draft"
	"github.com/dpup/ridemap/internal/lib/layers"
	"github.com/dpup/ridemap/internal/lib/markers"
)

type testAPI struct {
	t        *testing.T
	service  *MapService
	handlers map[string]prefab.JSONHandler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	s, _ := newTestService(t, newStore())
	api := &testAPI{t: t, service: s, handlers: make(map[string]prefab.JSONHandler)}
	for _, route := range s.JSONRoutes() {
		api.handlers[route.Path] = route.Handler
	}
	return api
}

func (a *testAPI) call(method, path, body string) (any, error) {
	a.t.Helper()
	handler, ok := a.handlers[path]
	require.True(a.t, ok, "no route for %s", path)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(logging.EnsureLogger(req.Context()))
	return handler(req)
}

func (a *testAPI) post(path, body string) (any, error) {
	return a.call(http.MethodPost, path, body)
}

func (a *testAPI) get(path string) (any, error) {
	return a.call(http.MethodGet, path, "")
}

func TestHTTP_DraftEndpoints(t *testing.T) {
	api := newTestAPI(t)

	resp, err := api.post("/api/v1/draft/click", `{"lat":14.5995,"lng":120.9842}`)
	require.NoError(t, err)
	assert.Equal(t, draft.OutcomeAdded, resp.(draft.Outcome).Kind)

	_, err = api.post("/api/v1/draft/click", `{"lat":14.5995,"lng":120.9852}`)
	require.NoError(t, err)
	_, err = api.post("/api/v1/draft/click", `{"lat":14.6005,"lng":120.9852}`)
	require.NoError(t, err)

	resp, err = api.get("/api/v1/draft")
	require.NoError(t, err)
	view := resp.(DraftView)
	assert.Len(t, view.Snapshot.Points, 3)
	assert.NotNil(t, view.Frame.Polygon)

	_, err = api.post("/api/v1/draft/remove", `{"index":9}`)
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatusCode(err))
	assert.ErrorIs(t, err, draft.ErrIndexOutOfRange)

	resp, err = api.post("/api/v1/draft/remove", `{"index":0}`)
	require.NoError(t, err)
	assert.Len(t, resp.(DraftView).Snapshot.Points, 2)

	resp, err = api.get("/api/v1/draft/outcomes")
	require.NoError(t, err)
	assert.Len(t, resp.([]draft.Outcome), 3)

	resp, err = api.get("/api/v1/draft/outcomes")
	require.NoError(t, err)
	assert.Empty(t, resp.([]draft.Outcome))

	_, err = api.post("/api/v1/draft/resume", `{"id":"nope"}`)
	assert.Equal(t, http.StatusNotFound, errors.HTTPStatusCode(err))

	resp, err = api.post("/api/v1/draft/clear", `{}`)
	require.NoError(t, err)
	assert.Empty(t, resp.(DraftView).Snapshot.Points)
}

func TestHTTP_BadRequests(t *testing.T) {
	api := newTestAPI(t)

	_, err := api.post("/api/v1/draft/click", `{"lat":`)
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatusCode(err))

	_, err = api.post("/api/v1/draft/click", `{"lat":100,"lng":0}`)
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatusCode(err))

	_, err = api.get("/api/v1/draft/click")
	assert.Equal(t, http.StatusMethodNotAllowed, errors.HTTPStatusCode(err))

	_, err = api.call(http.MethodDelete, "/api/v1/markers", "")
	assert.Equal(t, http.StatusMethodNotAllowed, errors.HTTPStatusCode(err))

	_, err = api.post("/api/v1/markers", `{"trip_status":"LOST"}`)
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatusCode(err))

	_, err = api.post("/api/v1/route", `{"points":`)
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatusCode(err))
}

func TestHTTP_Markers(t *testing.T) {
	api := newTestAPI(t)

	resp, err := api.post("/api/v1/markers", `{
		"current_driver": {"id": "D1", "location": {"lat": 14.1, "lng": 121.0}},
		"nearby_drivers": [
			{"id": "D1", "location": {"lat": 14.1, "lng": 121.0}},
			{"id": "D2", "location": {"lat": 14.10005, "lng": 121.00005}}
		],
		"destination": {"location": {"lat": 14.2, "lng": 121.1}},
		"trip_status": "DRIVER_ARRIVING"
	}`)
	require.NoError(t, err)

	res := resp.(markers.Result)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, []string{"markers/destination_queue", "markers/driver"}, res.Changed)

	resp, err = api.get("/api/v1/markers")
	require.NoError(t, err)
	assert.Equal(t, markers.StatusDriverArriving, resp.(markers.State).TripStatus)
}

func TestHTTP_NavigationAndBoundaries(t *testing.T) {
	api := newTestAPI(t)
	s := api.service

	_, err := api.post("/api/v1/location", `{"lat":14.0,"lng":121.0}`)
	require.NoError(t, err)
	_, err = api.post("/api/v1/route", `{"points":[{"lat":14.0,"lng":121.0},{"lat":14.01,"lng":121.0}]}`)
	require.NoError(t, err)

	_, err = api.post("/api/v1/navigation", `{"enabled":true}`)
	require.NoError(t, err)

	// The tick chain outlives the request that started it
	require.Eventually(t, func() bool {
		_, ok := s.camera.LastPose()
		return ok
	}, time.Second, time.Millisecond)

	resp, err := api.get("/api/v1/navigation")
	require.NoError(t, err)
	view := resp.(NavigationView)
	assert.True(t, view.Navigating)
	assert.NotNil(t, view.Progress)

	_, err = api.post("/api/v1/navigation", `{"enabled":false}`)
	require.NoError(t, err)
	assert.False(t, s.Navigation().Navigating)

	resp, err = api.post("/api/v1/boundaries", `{"enabled":true}`)
	require.NoError(t, err)
	assert.True(t, resp.(layers.Stats).Visible)
	require.Eventually(t, func() bool { return s.Boundaries().Adds == 1 }, time.Second, time.Millisecond)
}

func TestHTTP_KML(t *testing.T) {
	s, _ := newTestService(t, newStore())
	mux := http.NewServeMux()
	for _, route := range s.Routes() {
		mux.HandleFunc(route.Path, route.Handler)
	}

	_, err := s.Click(testContext(), cornerA)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/draft.kml", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.google-earth.kml+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<Placemark>")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/markers.kml", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
}
