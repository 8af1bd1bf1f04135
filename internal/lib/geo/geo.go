package geo

import (
	"errors"
	"math"

	"github.com/twpayne/go-polyline"
)

var (
	// ErrInvalidCoordinates is returned when a latitude or longitude is out of range or not finite.
	ErrInvalidCoordinates = errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	// ErrEmptyPolyline is returned for operations that need at least one waypoint.
	ErrEmptyPolyline = errors.New("polyline has no points")
)

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }

// Distance calculates great-circle distance in meters between two points using the Haversine formula
func Distance(p1, p2 Point) float64 {
	if p1 == p2 {
		return 0
	}

	lat1 := toRadians(p1.Latitude)
	lat2 := toRadians(p2.Latitude)
	dlat := lat2 - lat1
	dlon := toRadians(p2.Longitude - p1.Longitude)

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// Bearing returns the initial bearing from p1 to p2 in degrees, within [0, 360)
func Bearing(p1, p2 Point) float64 {
	lat1 := toRadians(p1.Latitude)
	lat2 := toRadians(p2.Latitude)
	dlon := toRadians(p2.Longitude - p1.Longitude)

	y := math.Sin(dlon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dlon)

	return NormalizeBearing(toDegrees(math.Atan2(y, x)))
}

// Project returns the point reached by travelling distanceMeters from origin
// along the great circle with the given initial bearing.
func Project(origin Point, bearingDegrees, distanceMeters float64) Point {
	delta := distanceMeters / EarthRadius
	theta := toRadians(bearingDegrees)
	lat1 := toRadians(origin.Latitude)
	lon1 := toRadians(origin.Longitude)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) +
		math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	lon2 := lon1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2),
	)

	return Point{
		Latitude:  toDegrees(lat2),
		Longitude: normalizeLongitude(toDegrees(lon2)),
	}
}

// NormalizeBearing maps any angle in degrees onto [0, 360)
func NormalizeBearing(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// AngleDelta returns the signed shortest rotation from one bearing to another, within [-180, 180)
func AngleDelta(from, to float64) float64 {
	return NormalizeBearing(to-from+180) - 180
}

func normalizeLongitude(lon float64) float64 {
	return math.Mod(lon+540, 360) - 180
}

// NearlyEqual reports whether both axes differ by strictly less than eps degrees.
func NearlyEqual(a, b Point, eps float64) bool {
	return math.Abs(a.Latitude-b.Latitude) < eps && math.Abs(a.Longitude-b.Longitude) < eps
}

// ClosestIndex returns the index of the waypoint nearest to point, or -1 when points is empty.
// Ties resolve to the earliest waypoint.
func ClosestIndex(point Point, points []Point) int {
	best := -1
	minDistance := math.Inf(1)
	for i, p := range points {
		if d := Distance(point, p); d < minDistance {
			minDistance = d
			best = i
		}
	}
	return best
}

// PolylineLength sums the great-circle length of consecutive segments in meters
func PolylineLength(points []Point) float64 {
	total := 0.0
	for i := 0; i < len(points)-1; i++ {
		total += Distance(points[i], points[i+1])
	}
	return total
}

// PointToPolyline calculates minimum distance in meters from point to polyline
func PointToPolyline(point Point, points []Point) (float64, error) {
	if !IsValid(point) {
		return 0, ErrInvalidCoordinates
	}

	switch len(points) {
	case 0:
		return 0, ErrEmptyPolyline
	case 1:
		return Distance(point, points[0]), nil
	}

	minDistance := math.Inf(1)
	for i := 0; i < len(points)-1; i++ {
		if d := pointToSegmentDistance(point, points[i], points[i+1]); d < minDistance {
			minDistance = d
		}
	}
	return minDistance, nil
}

// pointToSegmentDistance uses the cross-track formula, clamped to the segment endpoints.
func pointToSegmentDistance(point, segmentStart, segmentEnd Point) float64 {
	distanceToStart := Distance(point, segmentStart)
	distanceToEnd := Distance(point, segmentEnd)
	segmentLength := Distance(segmentStart, segmentEnd)

	if segmentLength < 1 {
		return math.Min(distanceToStart, distanceToEnd)
	}

	d13 := distanceToStart / EarthRadius
	bearing13 := toRadians(Bearing(segmentStart, point))
	bearing12 := toRadians(Bearing(segmentStart, segmentEnd))

	dxt := math.Asin(math.Sin(d13) * math.Sin(bearing13-bearing12))

	// Projection falls behind the start of the segment.
	if math.Cos(bearing13-bearing12) < 0 {
		return distanceToStart
	}

	dat := math.Acos(math.Min(1, math.Cos(d13)/math.Cos(dxt)))
	if dat*EarthRadius > segmentLength {
		return distanceToEnd
	}

	return math.Abs(dxt) * EarthRadius
}

// DecodePolyline decodes a Google encoded polyline string to a point sequence
func DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, errors.New("failed to decode polyline: " + err.Error())
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{Latitude: coord[0], Longitude: coord[1]}
		if !IsValid(points[i]) {
			return nil, errors.New("decoded polyline contains invalid coordinates")
		}
	}

	return points, nil
}

// EncodePolyline encodes points with the Google polyline algorithm
func EncodePolyline(points []Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Latitude, p.Longitude}
	}
	return string(polyline.EncodeCoords(coords))
}

// Waypoints returns the decoded points of a polyline, decoding the encoded form
// when no points were supplied.
func (p Polyline) Waypoints() ([]Point, error) {
	if len(p.Points) > 0 {
		return p.Points, nil
	}
	if p.EncodedPolyline == "" {
		return nil, ErrEmptyPolyline
	}
	return DecodePolyline(p.EncodedPolyline)
}

// NewPoint creates a Point from latitude and longitude values with validation
func NewPoint(latitude, longitude float64) (Point, error) {
	point := Point{Latitude: latitude, Longitude: longitude}
	if !IsValid(point) {
		return Point{}, ErrInvalidCoordinates
	}
	return point, nil
}

// IsValid validates latitude and longitude ranges and rejects NaN
func IsValid(point Point) bool {
	return point.Latitude >= -90 && point.Latitude <= 90 &&
		point.Longitude >= -180 && point.Longitude <= 180
}
