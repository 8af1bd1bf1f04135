// Package camera computes the third-person "chase" camera used while
// navigating: a pose placed behind the tracked vehicle, looking along the
// route, with the heading smoothed so GPS noise does not swing the map.
package camera

import (
	"math"
	"time"

	"github.com/dpup/ridemap/internal/host"
	"github.com/dpup/ridemap/internal/lib/geo"
)

// Settings are the tuning constants of the chase camera
type Settings struct {
	Interval        time.Duration `yaml:"interval"`
	MinDistance     float64       `yaml:"min_distance_meters"`
	MaxStaleness    time.Duration `yaml:"max_staleness"`
	SmoothingFactor float64       `yaml:"smoothing_factor"`
	SnapThreshold   float64       `yaml:"snap_threshold_degrees"`
	ChaseDistance   float64       `yaml:"chase_distance_meters"`
	Zoom            float64       `yaml:"zoom"`
	Pitch           float64       `yaml:"pitch"`
}

// DefaultSettings returns the production tuning
func DefaultSettings() Settings {
	return Settings{
		Interval:        6 * time.Second,
		MinDistance:     25,
		MaxStaleness:    8000 * time.Millisecond,
		SmoothingFactor: 0.15,
		SnapThreshold:   60,
		ChaseDistance:   150,
		Zoom:            18,
		Pitch:           60,
	}
}

// State is the smoothing memory carried from one tick to the next. The zero
// value is the state on entering navigation mode.
type State struct {
	LastLocation *geo.Point `json:"last_location,omitempty"`
	LastBearing  float64    `json:"last_bearing"`
	LastUpdate   time.Time  `json:"last_update"`
}

// Inputs are the values sampled at the start of a tick
type Inputs struct {
	UserLocation    *geo.Point
	VehicleLocation *geo.Point
	Route           []geo.Point
}

// Track returns the location the camera should follow: the vehicle when known, else the user
func (in Inputs) Track() (geo.Point, bool) {
	if in.VehicleLocation != nil {
		return *in.VehicleLocation, true
	}
	if in.UserLocation != nil {
		return *in.UserLocation, true
	}
	return geo.Point{}, false
}

// SkipReason explains why a tick produced no pose
type SkipReason string

const (
	SkipNone       SkipReason = ""
	SkipNoLocation SkipReason = "no_location"
	SkipDebounced  SkipReason = "debounced"

	// Reported by Controller only
	SkipNotNavigating SkipReason = "not_navigating"
	SkipHostError     SkipReason = "host_error"
)

// RouteHeading returns the bearing from the waypoint closest to p to the one
// after it. ok is false when the closest waypoint is the last one.
func RouteHeading(p geo.Point, route []geo.Point) (float64, bool) {
	i := geo.ClosestIndex(p, route)
	if i < 0 || i+1 >= len(route) {
		return 0, false
	}
	return geo.Bearing(route[i], route[i+1]), true
}

// SmoothBearing moves previous toward raw by factor of the shortest angular
// difference, or jumps straight to raw when the turn is at least snap degrees.
func SmoothBearing(previous, raw, factor, snap float64) float64 {
	delta := geo.AngleDelta(previous, raw)
	if math.Abs(delta) < snap {
		return geo.NormalizeBearing(previous + factor*delta)
	}
	return geo.NormalizeBearing(raw)
}

// Step advances the camera by one tick. It is a pure function of its
// arguments: when skip is not SkipNone the returned state equals the input.
func Step(state State, in Inputs, now time.Time, s Settings) (State, host.CameraPose, SkipReason) {
	track, ok := in.Track()
	if !ok {
		return state, host.CameraPose{}, SkipNoLocation
	}

	if state.LastLocation != nil &&
		geo.Distance(*state.LastLocation, track) <= s.MinDistance &&
		now.Sub(state.LastUpdate) <= s.MaxStaleness {
		return state, host.CameraPose{}, SkipDebounced
	}

	bearing := state.LastBearing
	if raw, ok := RouteHeading(track, in.Route); ok {
		bearing = SmoothBearing(state.LastBearing, raw, s.SmoothingFactor, s.SnapThreshold)
	}

	pose := host.CameraPose{
		Center:  geo.Project(track, geo.NormalizeBearing(bearing+180), s.ChaseDistance),
		Zoom:    s.Zoom,
		Bearing: bearing,
		Pitch:   s.Pitch,
	}

	tracked := track
	return State{
		LastLocation: &tracked,
		LastBearing:  bearing,
		LastUpdate:   now,
	}, pose, SkipNone
}
