package camera

import (
	"fmt"
	"sync"

	"github.com/dpup/ridemap/internal/lib/geo"
)

// Tracker holds the latest location fixes and route so a tick can sample
// them at once. Location-stream callbacks write to it from any goroutine.
type Tracker struct {
	user    *geo.Point
	vehicle *geo.Point
	route   geo.Polyline
	mutex   sync.RWMutex
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{}
}

// UpdateUser records the device's own location
func (t *Tracker) UpdateUser(p geo.Point) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.user = &p
}

// UpdateVehicle records the tracked vehicle's location. A nil point clears it.
func (t *Tracker) UpdateVehicle(p *geo.Point) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if p == nil {
		t.vehicle = nil
		return
	}
	v := *p
	t.vehicle = &v
}

// SetRoute replaces the active route, decoding it when only the encoded form
// is present. The zero Polyline clears it.
func (t *Tracker) SetRoute(route geo.Polyline) error {
	if route.EncodedPolyline != "" || len(route.Points) > 0 {
		points, err := route.Waypoints()
		if err != nil {
			return fmt.Errorf("route: %w", err)
		}
		route.Points = append([]geo.Point(nil), points...)
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.route = route
	return nil
}

// Route returns the active route
func (t *Tracker) Route() geo.Polyline {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.route
}

// Inputs samples the current values
func (t *Tracker) Inputs() Inputs {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	in := Inputs{Route: t.route.Points}
	if t.user != nil {
		u := *t.user
		in.UserLocation = &u
	}
	if t.vehicle != nil {
		v := *t.vehicle
		in.VehicleLocation = &v
	}
	return in
}
