// Package draft holds the in-progress boundary a user is drawing on the map.
//
// Clicks follow a pick-then-place grammar: a click near an existing point
// selects it, and the next click anywhere relocates the selected point. A
// click away from every point appends a new one.
package draft

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dpup/ridemap/internal/host"
	"github.com/dpup/ridemap/internal/lib/geo"
	"github.com/dpup/ridemap/internal/lib/hittest"
	"github.com/dpup/ridemap/internal/lib/hull"
)

// ErrIndexOutOfRange is returned when a point index does not exist in the draft
var ErrIndexOutOfRange = errors.New("boundary point index out of range")

// State of the click state machine
type State int

const (
	Idle State = iota
	PointSelected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PointSelected:
		return "point_selected"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// OutcomeKind says what a click did
type OutcomeKind string

const (
	OutcomeAdded    OutcomeKind = "added"
	OutcomeSelected OutcomeKind = "selected"
	OutcomeMoved    OutcomeKind = "moved"
)

// Outcome is reported upward after every click so the host can persist it
type Outcome struct {
	Kind  OutcomeKind `json:"kind"`
	Index int         `json:"index"`
	Point geo.Point   `json:"point"`
}

// Listener receives click outcomes. It runs on the caller's stack while the
// session is unlocked.
type Listener func(Outcome)

// Option configures a Session
type Option func(*Session)

// WithThreshold sets the selection radius in pixels
func WithThreshold(px float64) Option {
	return func(s *Session) { s.threshold = px }
}

// WithRingMode chooses how points become a polygon
func WithRingMode(mode hull.Mode) Option {
	return func(s *Session) { s.mode = mode }
}

// WithListener registers the click outcome callback
func WithListener(l Listener) Option {
	return func(s *Session) { s.listener = l }
}

// WithID sets the draft identifier, used as the persistence key
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// Session owns the boundary points and the selection. It is safe for
// concurrent use, though hosts normally drive it from a single event thread.
type Session struct {
	id        string
	points    []geo.Point
	selected  int
	projector host.Projector
	threshold float64
	mode      hull.Mode
	listener  Listener
	mutex     sync.Mutex
}

// NewSession creates an empty draft. The projector is used for hit-testing clicks.
func NewSession(projector host.Projector, opts ...Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		selected:  -1,
		projector: projector,
		threshold: hittest.DefaultThreshold,
		mode:      hull.ModeHull,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the draft identifier
func (s *Session) ID() string {
	return s.id
}

// Click applies one map click at p and reports what happened
func (s *Session) Click(p geo.Point) Outcome {
	s.mutex.Lock()
	var outcome Outcome
	switch {
	case s.selected >= 0:
		index := s.selected
		s.points[index] = p
		s.selected = -1
		outcome = Outcome{Kind: OutcomeMoved, Index: index, Point: p}
	default:
		if index, ok := hittest.Nearest(p, s.points, s.projector, s.threshold); ok {
			s.selected = index
			outcome = Outcome{Kind: OutcomeSelected, Index: index, Point: s.points[index]}
		} else {
			s.points = append(s.points, p)
			outcome = Outcome{Kind: OutcomeAdded, Index: len(s.points) - 1, Point: p}
		}
	}
	listener := s.listener
	s.mutex.Unlock()

	if listener != nil {
		listener(outcome)
	}
	return outcome
}

// Remove deletes the point at index. A selection on that point is cleared and
// a selection after it shifts down to keep pointing at the same point.
func (s *Session) Remove(index int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if index < 0 || index >= len(s.points) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(s.points))
	}

	s.points = append(s.points[:index], s.points[index+1:]...)
	switch {
	case s.selected == index:
		s.selected = -1
	case s.selected > index:
		s.selected--
	}
	return nil
}

// Deselect returns to Idle without moving anything
func (s *Session) Deselect() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.selected = -1
}

// Clear removes every point
func (s *Session) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.points = nil
	s.selected = -1
}

// State returns the current state of the click state machine
func (s *Session) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.selected >= 0 {
		return PointSelected
	}
	return Idle
}

// Selected returns the selected index, if any
func (s *Session) Selected() (int, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.selected, s.selected >= 0
}

// Points returns a copy of the boundary points in insertion order
func (s *Session) Points() []geo.Point {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]geo.Point(nil), s.points...)
}

// Ring returns the closed polygon ring for the current points
func (s *Session) Ring() ([]geo.Point, error) {
	s.mutex.Lock()
	points := append([]geo.Point(nil), s.points...)
	mode := s.mode
	s.mutex.Unlock()

	return hull.Ring(points, mode)
}
