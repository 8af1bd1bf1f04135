// Package routing relates a tracked location to the active route: how far off
// the route it is and how much of the route remains.
package routing

import (
	"fmt"

	"github.com/dpup/ridemap/internal/lib/geo"
)

// Classification is the relationship between a location and the route
type Classification string

const (
	OnRoute  Classification = "on_route"
	Nearby   Classification = "nearby"
	OffRoute Classification = "off_route"
)

// Thresholds bound each classification in meters from the polyline
type Thresholds struct {
	OnRoute float64 `yaml:"on_route_meters"`
	Nearby  float64 `yaml:"nearby_meters"`
}

// DefaultThresholds treats anything within 100m as on the route
func DefaultThresholds() Thresholds {
	return Thresholds{OnRoute: 100, Nearby: 500}
}

// Classify maps a distance from the route to a Classification
func (t Thresholds) Classify(distance float64) Classification {
	switch {
	case distance <= t.OnRoute:
		return OnRoute
	case distance <= t.Nearby:
		return Nearby
	}
	return OffRoute
}

// Progress describes a location against a route
type Progress struct {
	Classification   Classification `json:"classification"`
	DistanceToRoute  float64        `json:"distance_to_route"`
	ClosestWaypoint  int            `json:"closest_waypoint"`
	RemainingMeters  float64        `json:"remaining_meters"`
	RemainingSeconds float64        `json:"remaining_seconds,omitempty"`
}

// Track computes the progress of p along route. Remaining distance is
// measured from p to the closest waypoint and then along the polyline.
// Remaining time scales the route duration by the remaining share of its length.
func Track(p geo.Point, route geo.Polyline, t Thresholds) (Progress, error) {
	points, err := route.Waypoints()
	if err != nil {
		return Progress{}, err
	}
	if len(points) < 2 {
		return Progress{}, fmt.Errorf("route must have at least 2 points, got %d", len(points))
	}

	distance, err := geo.PointToPolyline(p, points)
	if err != nil {
		return Progress{}, err
	}

	closest := geo.ClosestIndex(p, points)
	remaining := geo.Distance(p, points[closest]) + geo.PolylineLength(points[closest:])

	progress := Progress{
		Classification:  t.Classify(distance),
		DistanceToRoute: distance,
		ClosestWaypoint: closest,
		RemainingMeters: remaining,
	}

	total := route.DistanceMeters
	if total <= 0 {
		total = geo.PolylineLength(points)
	}
	if route.DurationSeconds > 0 && total > 0 {
		share := remaining / total
		if share > 1 {
			share = 1
		}
		progress.RemainingSeconds = route.DurationSeconds * share
	}
	return progress, nil
}
