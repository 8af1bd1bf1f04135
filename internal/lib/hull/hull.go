// Package hull arranges hand-drawn boundary points into a polygon ring.
//
// Coordinates are treated as planar with longitude on the x axis and latitude
// on the y axis, which is adequate for the neighbourhood-sized zones drawn on
// a map. Two orderings are offered: the hull ordering, which keeps only the
// outer hull vertices in counter-clockwise order, and the insertion ordering,
// which keeps every point in the order it was drawn and rejects rings whose
// edges cross.
package hull

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/dpup/ridemap/internal/lib/geo"
)

var (
	// ErrTooFewPoints means a ring cannot be formed from fewer than three vertices.
	ErrTooFewPoints = errors.New("polygon requires 3 or more points")
	// ErrSelfIntersecting means two non-adjacent edges of an insertion-ordered ring cross.
	ErrSelfIntersecting = errors.New("polygon edges intersect")
)

// Mode selects how boundary points become a ring.
type Mode string

const (
	// ModeHull orders points around the lowest point and drops interior points.
	ModeHull Mode = "hull"
	// ModeInsertion keeps drawing order and validates the ring is simple.
	ModeInsertion Mode = "insertion"
)

// ParseMode converts a configuration value into a Mode. Empty means ModeHull.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeHull:
		return ModeHull, nil
	case ModeInsertion:
		return ModeInsertion, nil
	}
	return "", fmt.Errorf("unknown ring mode %q", s)
}

// cross is the z component of (a-o) x (b-o). Positive means o->a->b turns left.
func cross(o, a, b geo.Point) float64 {
	return (a.Longitude-o.Longitude)*(b.Latitude-o.Latitude) -
		(a.Latitude-o.Latitude)*(b.Longitude-o.Longitude)
}

func planarDistance(a, b geo.Point) float64 {
	return math.Hypot(a.Longitude-b.Longitude, a.Latitude-b.Latitude)
}

// Order sorts points into a counter-clockwise hull ring (open, first vertex not
// repeated). Points that are not hull vertices, duplicates and collinear edge
// points are dropped, so the result can hold fewer than three points when the
// input is degenerate; callers must check before closing the ring.
func Order(points []geo.Point) ([]geo.Point, error) {
	if len(points) < 3 {
		return nil, fmt.Errorf("%w: got=%d", ErrTooFewPoints, len(points))
	}

	pivot := 0
	for i, p := range points {
		lowest := points[pivot]
		if p.Latitude < lowest.Latitude ||
			(p.Latitude == lowest.Latitude && p.Longitude < lowest.Longitude) {
			pivot = i
		}
	}
	origin := points[pivot]

	rest := make([]geo.Point, 0, len(points)-1)
	for i, p := range points {
		if i != pivot {
			rest = append(rest, p)
		}
	}

	sort.SliceStable(rest, func(i, j int) bool {
		ai := math.Atan2(rest[i].Latitude-origin.Latitude, rest[i].Longitude-origin.Longitude)
		aj := math.Atan2(rest[j].Latitude-origin.Latitude, rest[j].Longitude-origin.Longitude)
		if ai != aj {
			return ai < aj
		}
		return planarDistance(origin, rest[i]) < planarDistance(origin, rest[j])
	})

	stack := []geo.Point{origin}
	for _, p := range rest {
		if p == origin {
			continue
		}
		for len(stack) >= 2 && cross(stack[len(stack)-2], stack[len(stack)-1], p) <= 0 {
			stack = stack[:len(stack)-1]
		}
		if stack[len(stack)-1] == p {
			continue
		}
		stack = append(stack, p)
	}

	return stack, nil
}

// OrderInsertion returns the points in drawing order after checking that the
// implied closed ring does not cross itself.
func OrderInsertion(points []geo.Point) ([]geo.Point, error) {
	if len(points) < 3 {
		return nil, fmt.Errorf("%w: got=%d", ErrTooFewPoints, len(points))
	}
	ring := dropAdjacentDuplicates(points)
	if len(ring) < 3 {
		return nil, fmt.Errorf("%w: got=%d distinct", ErrTooFewPoints, len(ring))
	}
	if err := ValidateSimple(ring); err != nil {
		return nil, err
	}
	return ring, nil
}

// ValidateSimple checks that no two non-adjacent edges of the open ring intersect.
func ValidateSimple(ring []geo.Point) error {
	n := len(ring)
	if n < 3 {
		return ErrTooFewPoints
	}
	for i := 0; i < n; i++ {
		a1, a2 := ring[i], ring[(i+1)%n]
		for j := i + 1; j < n; j++ {
			// Skip edges that share a vertex with edge i.
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			b1, b2 := ring[j], ring[(j+1)%n]
			if segmentsIntersect(a1, a2, b1, b2) {
				return fmt.Errorf("%w: edge %d crosses edge %d", ErrSelfIntersecting, i, j)
			}
		}
	}
	return nil
}

func segmentsIntersect(p1, p2, q1, q2 geo.Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	return (d1 == 0 && onSegment(q1, q2, p1)) ||
		(d2 == 0 && onSegment(q1, q2, p2)) ||
		(d3 == 0 && onSegment(p1, p2, q1)) ||
		(d4 == 0 && onSegment(p1, p2, q2))
}

// onSegment assumes p is collinear with a->b.
func onSegment(a, b, p geo.Point) bool {
	return math.Min(a.Longitude, b.Longitude) <= p.Longitude && p.Longitude <= math.Max(a.Longitude, b.Longitude) &&
		math.Min(a.Latitude, b.Latitude) <= p.Latitude && p.Latitude <= math.Max(a.Latitude, b.Latitude)
}

func dropAdjacentDuplicates(points []geo.Point) []geo.Point {
	out := make([]geo.Point, 0, len(points))
	for _, p := range points {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

// CloseRing repeats the first vertex at the end, as polygon renderers expect.
func CloseRing(ring []geo.Point) ([]geo.Point, error) {
	ring = dropAdjacentDuplicates(ring)
	if len(ring) < 3 {
		return nil, fmt.Errorf("%w: got=%d", ErrTooFewPoints, len(ring))
	}
	closed := make([]geo.Point, 0, len(ring)+1)
	closed = append(closed, ring...)
	return append(closed, ring[0]), nil
}

// Ring orders points using mode and returns the closed ring.
func Ring(points []geo.Point, mode Mode) ([]geo.Point, error) {
	var (
		ordered []geo.Point
		err     error
	)
	switch mode {
	case ModeInsertion:
		ordered, err = OrderInsertion(points)
	default:
		ordered, err = Order(points)
	}
	if err != nil {
		return nil, err
	}
	return CloseRing(ordered)
}
