// Package markers turns category-tagged application state into the exact
// set of map markers to render, and reconciles that set with the host.
package markers

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/dpup/ridemap/internal/host"
	"github.com/dpup/ridemap/internal/lib/geo"
)

// Entry is one location in a marker collection
type Entry struct {
	ID       string    `json:"id,omitempty"`
	Location geo.Point `json:"location"`
	Label    string    `json:"label,omitempty"`
}

// State is everything marker rendering depends on
type State struct {
	CurrentDriver    *Entry               `json:"current_driver,omitempty"`
	Passenger        *Entry               `json:"passenger,omitempty"`
	NearbyDrivers    []Entry              `json:"nearby_drivers,omitempty"`
	Home             *Entry               `json:"home,omitempty"`
	Favorites        []Entry              `json:"favorites,omitempty"`
	Landmarks        []Entry              `json:"landmarks,omitempty"`
	PickupQueue      []Entry              `json:"pickup_queue,omitempty"`
	DestinationQueue []Entry              `json:"destination_queue,omitempty"`
	POIs             map[Category][]Entry `json:"pois,omitempty"`
	Destination      *Entry               `json:"destination,omitempty"`
	TripStatus       TripStatus           `json:"trip_status,omitempty"`
}

// Validate reports every malformed coordinate, unknown POI category and unknown status
func (s State) Validate() error {
	var errs []error
	check := func(what string, e *Entry) {
		if e != nil && !geo.IsValid(e.Location) {
			errs = append(errs, fmt.Errorf("%s: %w", what, geo.ErrInvalidCoordinates))
		}
	}
	checkAll := func(what string, entries []Entry) {
		for i := range entries {
			check(what+"["+strconv.Itoa(i)+"]", &entries[i])
		}
	}

	check("current_driver", s.CurrentDriver)
	check("passenger", s.Passenger)
	check("home", s.Home)
	check("destination", s.Destination)
	checkAll("nearby_drivers", s.NearbyDrivers)
	checkAll("favorites", s.Favorites)
	checkAll("landmarks", s.Landmarks)
	checkAll("pickup_queue", s.PickupQueue)
	checkAll("destination_queue", s.DestinationQueue)
	for c, entries := range s.POIs {
		if !c.IsPOI() {
			errs = append(errs, fmt.Errorf("pois: %q is not a point-of-interest category", c))
			continue
		}
		checkAll("pois."+string(c), entries)
	}
	if _, err := ParseTripStatus(string(s.TripStatus)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SameDriver reports whether two driver entries denote the same driver. Ids
// decide when both are present; otherwise the locations must agree within
// eps degrees on both axes.
func SameDriver(a, b Entry, eps float64) bool {
	if a.ID != "" && b.ID != "" {
		return a.ID == b.ID
	}
	return geo.NearlyEqual(a.Location, b.Location, eps)
}

// FilterNearbyDrivers drops entries that denote the current driver. The input
// order is preserved.
func FilterNearbyDrivers(current *Entry, nearby []Entry, eps float64) []Entry {
	if current == nil {
		return append([]Entry(nil), nearby...)
	}

	var near map[int]bool
	if current.ID == "" || hasMissingID(nearby) {
		near = newProximityIndex(nearby).near(current.Location, eps)
	}

	out := make([]Entry, 0, len(nearby))
	for i, e := range nearby {
		if current.ID != "" && e.ID != "" {
			if e.ID == current.ID {
				continue
			}
		} else if near[i] {
			continue
		}
		out = append(out, e)
	}
	return out
}

func hasMissingID(entries []Entry) bool {
	for _, e := range entries {
		if e.ID == "" {
			return true
		}
	}
	return false
}

func markerKey(prefix string, i int, e Entry) string {
	if e.ID != "" {
		return prefix + ":" + e.ID
	}
	return prefix + ":#" + strconv.Itoa(i)
}

func marker(c Category, key string, e Entry) host.Annotation {
	return host.Annotation{
		Layer:  c.Layer(),
		Key:    key,
		Kind:   host.KindPoint,
		Points: []geo.Point{e.Location},
		Style:  c.Style(),
		Label:  e.Label,
	}
}

// Build computes the marker set for state. The result is sorted by layer
// then key, so equal states always produce equal slices.
func Build(s State, eps float64) []host.Annotation {
	var out []host.Annotation

	single := func(c Category, prefix string, e *Entry) {
		if e != nil {
			out = append(out, marker(c, prefix, *e))
		}
	}
	many := func(c Category, prefix string, entries []Entry) {
		for i, e := range entries {
			out = append(out, marker(c, markerKey(prefix, i, e), e))
		}
	}

	single(CategoryDriver, "current", s.CurrentDriver)
	many(CategoryDriver, "nearby", FilterNearbyDrivers(s.CurrentDriver, s.NearbyDrivers, eps))
	single(CategoryPassenger, "passenger", s.Passenger)
	single(CategoryHome, "home", s.Home)
	many(CategoryFavorite, "favorite", s.Favorites)
	many(CategoryLandmark, "landmark", s.Landmarks)
	many(CategoryPickupQueue, "pickup", s.PickupQueue)
	many(CategoryDestinationQueue, "queued", s.DestinationQueue)
	if s.TripStatus.ShowsDestination() {
		single(CategoryDestinationQueue, "destination", s.Destination)
	}
	for c, entries := range s.POIs {
		if c.IsPOI() {
			many(c, string(c), entries)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Layer != out[j].Layer {
			return out[i].Layer < out[j].Layer
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// ByLayer groups a built marker set by layer. Every category layer is present,
// empty when nothing renders there.
func ByLayer(anns []host.Annotation) map[string][]host.Annotation {
	layers := make(map[string][]host.Annotation, len(categories))
	for _, c := range categories {
		layers[c.Layer()] = nil
	}
	for _, a := range anns {
		layers[a.Layer] = append(layers[a.Layer], a)
	}
	return layers
}
