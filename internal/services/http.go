package services

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dpup/prefab"
	"github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"
	"google.golang.org/grpc/codes"

	"github.com/dpup/ridemap/internal/cache"
	"github.com/dpup/ridemap/internal/lib/draft"
	"github.com/dpup/ridemap/internal/lib/geo"
	"github.com/dpup/ridemap/internal/lib/markers"
	"github.com/dpup/ridemap/internal/metrics"
)

// JSONRoute is a preview API endpoint whose response prefab encodes as JSON
type JSONRoute struct {
	Path    string
	Handler prefab.JSONHandler
}

// Route is a preview endpoint that writes its own response body
type Route struct {
	Path    string
	Handler http.HandlerFunc
}

type indexRequest struct {
	Index int `json:"index"`
}

type idRequest struct {
	ID string `json:"id"`
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

// JSONRoutes returns the preview API, instrumented with request metrics
func (s *MapService) JSONRoutes() []JSONRoute {
	routes := []JSONRoute{
		{"/api/v1/draft", s.handleDraft},
		{"/api/v1/draft/click", s.handleClick},
		{"/api/v1/draft/remove", s.handleRemove},
		{"/api/v1/draft/deselect", s.handleDeselect},
		{"/api/v1/draft/clear", s.handleClear},
		{"/api/v1/draft/discard", s.handleDiscard},
		{"/api/v1/draft/resume", s.handleResume},
		{"/api/v1/draft/outcomes", s.handleOutcomes},
		{"/api/v1/markers", s.handleMarkers},
		{"/api/v1/location", s.handleLocation},
		{"/api/v1/route", s.handleRoute},
		{"/api/v1/navigation", s.handleNavigation},
		{"/api/v1/boundaries", s.handleBoundaries},
	}
	for i := range routes {
		routes[i].Handler = metrics.InstrumentJSON(routes[i].Path, routes[i].Handler)
	}
	return routes
}

// Routes returns the KML exports, instrumented with request metrics
func (s *MapService) Routes() []Route {
	routes := []Route{
		{"/api/v1/draft.kml", s.handleDraftKML},
		{"/api/v1/markers.kml", s.handleMarkersKML},
	}
	for i := range routes {
		routes[i].Handler = metrics.Instrument(routes[i].Path, routes[i].Handler)
	}
	return routes
}

func allow(r *http.Request, methods ...string) error {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return errors.NewC(
		"method "+r.Method+" not allowed, use "+strings.Join(methods, " or "),
		codes.Unimplemented,
	).WithHTTPStatusCode(http.StatusMethodNotAllowed)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Codef(codes.InvalidArgument, "invalid request body: %v", err)
	}
	return nil
}

func invalid(err error) error {
	return errors.WithCode(err, codes.InvalidArgument)
}

// background keeps request-scoped values but outlives the request, for
// timers started by a handler
func background(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *MapService) handleDraft(r *http.Request) (any, error) {
	if err := allow(r, http.MethodGet); err != nil {
		return nil, err
	}
	return s.Draft(), nil
}

func (s *MapService) handleClick(r *http.Request) (any, error) {
	if err := allow(r, http.MethodPost); err != nil {
		return nil, err
	}
	var p geo.Point
	if err := decode(r, &p); err != nil {
		return nil, err
	}
	outcome, err := s.Click(r.Context(), p)
	if err != nil {
		return nil, invalid(err)
	}
	return outcome, nil
}

func (s *MapService) handleRemove(r *http.Request) (any, error) {
	if err := allow(r, http.MethodPost); err != nil {
		return nil, err
	}
	var req indexRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	if err := s.RemovePoint(r.Context(), req.Index); err != nil {
		if errors.Is(err, draft.ErrIndexOutOfRange) {
			return nil, errors.WithCode(err, codes.OutOfRange)
		}
		return nil, errors.WithCode(err, codes.Internal)
	}
	return s.Draft(), nil
}

func (s *MapService) handleDeselect(r *http.Request) (any, error) {
	if err := allow(r, http.MethodPost); err != nil {
		return nil, err
	}
	s.Deselect(r.Context())
	return s.Draft(), nil
}

func (s *MapService) handleClear(r *http.Request) (any, error) {
	if err := allow(r, http.MethodPost); err != nil {
		return nil, err
	}
	s.ClearDraft(r.Context())
	return s.Draft(), nil
}

func (s *MapService) handleDiscard(r *http.Request) (any, error) {
	if err := allow(r, http.MethodPost); err != nil {
		return nil, err
	}
	s.DiscardDraft(r.Context())
	return s.Draft(), nil
}

func (s *MapService) handleResume(r *http.Request) (any, error) {
	if err := allow(r, http.MethodPost); err != nil {
		return nil, err
	}
	var req idRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	if err := s.ResumeDraft(r.Context(), req.ID); err != nil {
		switch {
		case errors.Is(err, cache.ErrDraftNotFound):
			return nil, errors.WithCode(err, codes.NotFound)
		case errors.Is(err, draft.ErrIndexOutOfRange):
			return nil, errors.WithCode(err, codes.FailedPrecondition).
				WithHTTPStatusCode(http.StatusUnprocessableEntity)
		}
		return nil, errors.WithCode(err, codes.Internal)
	}
	return s.Draft(), nil
}

func (s *MapService) handleOutcomes(r *http.Request) (any, error) {
	if err := allow(r, http.MethodGet); err != nil {
		return nil, err
	}
	outcomes := s.Outcomes()
	if outcomes == nil {
		outcomes = []draft.Outcome{}
	}
	return outcomes, nil
}

func (s *MapService) handleMarkers(r *http.Request) (any, error) {
	if err := allow(r, http.MethodGet, http.MethodPost); err != nil {
		return nil, err
	}
	if r.Method == http.MethodGet {
		return s.MarkerState(), nil
	}
	var state markers.State
	if err := decode(r, &state); err != nil {
		return nil, err
	}
	res, err := s.UpdateMarkers(r.Context(), state)
	if err != nil {
		return nil, invalid(err)
	}
	return res, nil
}

func (s *MapService) handleLocation(r *http.Request) (any, error) {
	if err := allow(r, http.MethodPost); err != nil {
		return nil, err
	}
	var p geo.Point
	if err := decode(r, &p); err != nil {
		return nil, err
	}
	if err := s.UpdateLocation(p); err != nil {
		return nil, invalid(err)
	}
	return s.Navigation(), nil
}

func (s *MapService) handleRoute(r *http.Request) (any, error) {
	if err := allow(r, http.MethodPost); err != nil {
		return nil, err
	}
	var route geo.Polyline
	if err := decode(r, &route); err != nil {
		return nil, err
	}
	if err := s.SetRoute(route); err != nil {
		return nil, invalid(err)
	}
	return s.Navigation(), nil
}

func (s *MapService) handleNavigation(r *http.Request) (any, error) {
	if err := allow(r, http.MethodGet, http.MethodPost); err != nil {
		return nil, err
	}
	if r.Method == http.MethodPost {
		var req toggleRequest
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		s.SetNavigating(background(r), req.Enabled)
	}
	return s.Navigation(), nil
}

func (s *MapService) handleBoundaries(r *http.Request) (any, error) {
	if err := allow(r, http.MethodGet, http.MethodPost); err != nil {
		return nil, err
	}
	if r.Method == http.MethodPost {
		var req toggleRequest
		if err := decode(r, &req); err != nil {
			return nil, err
		}
		s.ShowBoundaries(background(r), req.Enabled)
	}
	return s.Boundaries(), nil
}

func (s *MapService) handleDraftKML(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	if err := s.WriteDraftKML(w); err != nil {
		logging.Errorw(r.Context(), "Failed to write draft KML", "error", err)
	}
}

func (s *MapService) handleMarkersKML(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	if err := s.WriteMarkersKML(w); err != nil {
		logging.Errorw(r.Context(), "Failed to write markers KML", "error", err)
	}
}
