package geo

// Point represents a geographic coordinate
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Polyline is an ordered sequence of waypoints with optional aggregate metrics.
// Routes arrive from the trip context either decoded or as a Google encoded string.
type Polyline struct {
	EncodedPolyline string  `json:"encoded_polyline,omitempty"`
	Points          []Point `json:"points"`
	DistanceMeters  float64 `json:"distance_meters,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// EarthRadius is the mean earth radius in meters used by every spherical formula here.
const EarthRadius = 6371000.0

// Epsilon is the coordinate tolerance, in degrees, under which two points are
// treated as the same place (about 11m at the equator).
const Epsilon = 0.0001
