package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/ridemap/internal/cache"
	"github.com/dpup/ridemap/internal/config"
	"github.com/dpup/ridemap/internal/export"
	"github.com/dpup/ridemap/internal/host"
	"github.com/dpup/ridemap/internal/lib/camera"
	"github.com/dpup/ridemap/internal/lib/draft"
	"github.com/dpup/ridemap/internal/lib/geo"
	"github.com/dpup/ridemap/internal/lib/layers"
	"github.com/dpup/ridemap/internal/lib/markers"
	"github.com/dpup/ridemap/internal/lib/routing"
	"github.com/dpup/ridemap/internal/metrics"
)

// ErrNoRoute is returned when route progress is requested without an active route
var ErrNoRoute = errors.New("no active route")

// maxOutcomes bounds the click outcomes kept for the host to collect
const maxOutcomes = 100

// DraftView is the current boundary draft as the host sees it
type DraftView struct {
	Snapshot draft.Snapshot `json:"snapshot"`
	State    string         `json:"state"`
	Frame    draft.Frame    `json:"frame"`
}

// NavigationView is the camera and route state while navigating
type NavigationView struct {
	Navigating bool              `json:"navigating"`
	Camera     camera.State      `json:"camera"`
	Pose       *host.CameraPose  `json:"pose,omitempty"`
	Progress   *routing.Progress `json:"progress,omitempty"`
}

// MapService wires the engine components to one map surface: the boundary
// draft, the navigation camera, the marker reconciler and the boundary
// layer monitor.
type MapService struct {
	cfg     *config.Config
	engine  host.Engine
	store   cache.DraftStore
	owned   *host.Owned
	tracker *camera.Tracker
	camera  *camera.Controller
	markers *markers.Reconciler
	monitor *layers.Monitor

	mutex    sync.Mutex
	draft    *draft.Session
	state    markers.State
	outcomes []draft.Outcome
}

// NewMapService creates a service rendering to engine. store may be nil, in
// which case drafts are not persisted.
func NewMapService(cfg *config.Config, engine host.Engine, store cache.DraftStore) *MapService {
	tracker := camera.NewTracker()
	s := &MapService{
		cfg:     cfg,
		engine:  engine,
		store:   store,
		owned:   host.NewOwned(engine),
		tracker: tracker,
		camera:  camera.NewController(engine, tracker, camera.WithSettings(cfg.Camera)),
		markers: markers.NewReconciler(engine, cfg.Markers.EpsilonDegrees),
		monitor: layers.NewMonitor(engine, cfg.Monitor.Spec(), cfg.Monitor.Settings()),
	}
	s.draft = s.newSession()
	return s
}

func (s *MapService) draftOptions() []draft.Option {
	return []draft.Option{
		draft.WithThreshold(s.cfg.Draft.ThresholdPixels),
		draft.WithRingMode(s.cfg.Draft.Mode()),
		draft.WithListener(s.recordOutcome),
	}
}

func (s *MapService) newSession() *draft.Session {
	return draft.NewSession(s.engine, s.draftOptions()...)
}

func (s *MapService) recordOutcome(o draft.Outcome) {
	metrics.DraftClicks.WithLabelValues(string(o.Kind)).Inc()

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.outcomes = append(s.outcomes, o)
	if len(s.outcomes) > maxOutcomes {
		s.outcomes = s.outcomes[len(s.outcomes)-maxOutcomes:]
	}
}

func (s *MapService) session() *draft.Session {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.draft
}

// redraw replaces the draft layers and hands the draft to the store. Host and
// store failures are logged only.
func (s *MapService) redraw(ctx context.Context, session *draft.Session) {
	if err := session.Draw(s.owned); err != nil {
		logging.Warnw(ctx, "Draft: host rejected redraw", "draft", session.ID(), "error", err)
	}
	if s.store == nil {
		return
	}
	if err := s.store.SaveDraft(ctx, session.Snapshot()); err != nil {
		logging.Warnw(ctx, "Draft: save failed", "draft", session.ID(), "error", err)
	}
}

// Click applies a map click to the boundary draft
func (s *MapService) Click(ctx context.Context, p geo.Point) (draft.Outcome, error) {
	if !geo.IsValid(p) {
		return draft.Outcome{}, geo.ErrInvalidCoordinates
	}
	session := s.session()
	outcome := session.Click(p)
	s.redraw(ctx, session)
	return outcome, nil
}

// RemovePoint deletes a boundary point
func (s *MapService) RemovePoint(ctx context.Context, index int) error {
	session := s.session()
	if err := session.Remove(index); err != nil {
		return err
	}
	s.redraw(ctx, session)
	return nil
}

// Deselect drops the point selection
func (s *MapService) Deselect(ctx context.Context) {
	session := s.session()
	session.Deselect()
	s.redraw(ctx, session)
}

// ClearDraft removes every boundary point
func (s *MapService) ClearDraft(ctx context.Context) {
	session := s.session()
	session.Clear()
	s.redraw(ctx, session)
}

// DiscardDraft erases the draft from the map and the store and starts a new one
func (s *MapService) DiscardDraft(ctx context.Context) {
	s.mutex.Lock()
	old := s.draft
	s.draft = s.newSession()
	s.mutex.Unlock()

	if err := old.Erase(s.owned); err != nil {
		logging.Warnw(ctx, "Draft: host rejected erase", "draft", old.ID(), "error", err)
	}
	if s.store != nil {
		if err := s.store.DeleteDraft(ctx, old.ID()); err != nil {
			logging.Warnw(ctx, "Draft: delete failed", "draft", old.ID(), "error", err)
		}
	}
}

// ResumeDraft replaces the current draft with a stored one
func (s *MapService) ResumeDraft(ctx context.Context, id string) error {
	if s.store == nil {
		return fmt.Errorf("%w: no draft store configured", cache.ErrDraftNotFound)
	}
	snap, err := s.store.LoadDraft(ctx, id)
	if err != nil {
		return err
	}
	session, err := draft.Restore(snap, s.engine, s.draftOptions()...)
	if err != nil {
		return fmt.Errorf("restore draft %s: %w", id, err)
	}

	s.mutex.Lock()
	s.draft = session
	s.mutex.Unlock()

	s.redraw(ctx, session)
	logging.Infow(ctx, "Draft resumed", "draft", id, "points", len(snap.Points))
	return nil
}

// Draft returns the current draft
func (s *MapService) Draft() DraftView {
	session := s.session()
	return DraftView{
		Snapshot: session.Snapshot(),
		State:    session.State().String(),
		Frame:    session.Render(),
	}
}

// Outcomes returns and clears the click outcomes recorded since the last call
func (s *MapService) Outcomes() []draft.Outcome {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := s.outcomes
	s.outcomes = nil
	return out
}

// WriteDraftKML exports the rendered draft
func (s *MapService) WriteDraftKML(w io.Writer) error {
	session := s.session()
	return export.Write(w, "Boundary draft "+session.ID(), session.Render().Annotations())
}

// UpdateMarkers reconciles the map markers with state
func (s *MapService) UpdateMarkers(ctx context.Context, state markers.State) (markers.Result, error) {
	if err := state.Validate(); err != nil {
		return markers.Result{}, err
	}
	s.mutex.Lock()
	s.state = state
	s.mutex.Unlock()

	res := s.markers.Reconcile(ctx, state)
	if state.CurrentDriver != nil {
		loc := state.CurrentDriver.Location
		s.tracker.UpdateVehicle(&loc)
	} else {
		s.tracker.UpdateVehicle(nil)
	}
	return res, nil
}

// MarkerState returns the state last passed to UpdateMarkers
func (s *MapService) MarkerState() markers.State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// WriteMarkersKML exports the markers last handed to the host
func (s *MapService) WriteMarkersKML(w io.Writer) error {
	return export.Write(w, "Markers", s.markers.Rendered())
}

// UpdateLocation records the device's own location fix
func (s *MapService) UpdateLocation(p geo.Point) error {
	if !geo.IsValid(p) {
		return geo.ErrInvalidCoordinates
	}
	s.tracker.UpdateUser(p)
	return nil
}

// SetRoute replaces the active route
func (s *MapService) SetRoute(route geo.Polyline) error {
	return s.tracker.SetRoute(route)
}

// SetNavigating turns the chase camera on or off
func (s *MapService) SetNavigating(ctx context.Context, on bool) {
	s.camera.SetNavigating(ctx, on)
}

// Navigation reports camera and route progress
func (s *MapService) Navigation() NavigationView {
	view := NavigationView{
		Navigating: s.camera.Navigating(),
		Camera:     s.camera.State(),
	}
	if pose, ok := s.camera.LastPose(); ok {
		view.Pose = &pose
	}
	if progress, err := s.RouteProgress(); err == nil {
		view.Progress = &progress
	}
	return view
}

// RouteProgress relates the tracked location to the active route
func (s *MapService) RouteProgress() (routing.Progress, error) {
	route := s.tracker.Route()
	if len(route.Points) == 0 {
		return routing.Progress{}, ErrNoRoute
	}
	track, ok := s.tracker.Inputs().Track()
	if !ok {
		return routing.Progress{}, fmt.Errorf("%w: no location", ErrNoRoute)
	}
	return routing.Track(track, route, s.cfg.Route)
}

// ShowBoundaries starts or stops supervision of the saved-zone layer
func (s *MapService) ShowBoundaries(ctx context.Context, visible bool) {
	s.monitor.SetVisible(ctx, visible)
}

// Boundaries reports the boundary layer monitor state
func (s *MapService) Boundaries() layers.Stats {
	return s.monitor.Stats()
}

// Close stops every timer and removes everything the service drew
func (s *MapService) Close(ctx context.Context) {
	s.camera.SetNavigating(ctx, false)
	s.monitor.SetVisible(ctx, false)
	s.markers.Clear(ctx)
	if err := s.owned.ClearAll(); err != nil {
		logging.Warnw(ctx, "Draft: host rejected clear", "error", err)
	}
}
