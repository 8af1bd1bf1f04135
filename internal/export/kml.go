// Package export writes rendered map annotations as KML documents so drafted
// zones and marker sets can be inspected in desktop GIS tools.
package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/twpayne/go-kml/v2"

	"github.com/dpup/ridemap/internal/host"
	"github.com/dpup/ridemap/internal/lib/geo"
)

func coordinates(points []geo.Point) []kml.Coordinate {
	coords := make([]kml.Coordinate, len(points))
	for i, p := range points {
		coords[i] = kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude}
	}
	return coords
}

func geometry(a host.Annotation) (kml.Element, error) {
	switch a.Kind {
	case host.KindPoint:
		if len(a.Points) != 1 {
			return nil, fmt.Errorf("point %s/%s has %d coordinates", a.Layer, a.Key, len(a.Points))
		}
		return kml.Point(kml.Coordinates(coordinates(a.Points)...)), nil
	case host.KindLine:
		if len(a.Points) < 2 {
			return nil, fmt.Errorf("line %s/%s has %d coordinates", a.Layer, a.Key, len(a.Points))
		}
		return kml.LineString(kml.Coordinates(coordinates(a.Points)...)), nil
	case host.KindPolygon:
		if len(a.Points) < 4 || a.Points[0] != a.Points[len(a.Points)-1] {
			return nil, fmt.Errorf("polygon %s/%s is not a closed ring", a.Layer, a.Key)
		}
		return kml.Polygon(
			kml.OuterBoundaryIs(
				kml.LinearRing(kml.Coordinates(coordinates(a.Points)...)),
			),
		), nil
	}
	return nil, fmt.Errorf("unknown annotation kind %q", a.Kind)
}

func placemark(a host.Annotation) (kml.Element, error) {
	g, err := geometry(a)
	if err != nil {
		return nil, err
	}
	name := a.Key
	if a.Label != "" {
		name = a.Label
	}
	return kml.Placemark(
		kml.Name(name),
		kml.Description(fmt.Sprintf("%s/%s", a.Layer, a.Key)),
		g,
	), nil
}

// Write encodes anns as one KML document named name, with a folder per layer.
// Folders and placemarks are ordered by layer and key.
func Write(w io.Writer, name string, anns []host.Annotation) error {
	byLayer := make(map[string][]host.Annotation)
	for _, a := range anns {
		byLayer[a.Layer] = append(byLayer[a.Layer], a)
	}
	layers := make([]string, 0, len(byLayer))
	for layer := range byLayer {
		layers = append(layers, layer)
	}
	sort.Strings(layers)

	children := []kml.Element{kml.Name(name)}
	for _, layer := range layers {
		group := byLayer[layer]
		sort.SliceStable(group, func(i, j int) bool { return group[i].Key < group[j].Key })

		folder := []kml.Element{kml.Name(layer)}
		for _, a := range group {
			pm, err := placemark(a)
			if err != nil {
				return err
			}
			folder = append(folder, pm)
		}
		children = append(children, kml.Folder(folder...))
	}

	return kml.KML(kml.Document(children...)).WriteIndent(w, "", "  ")
}

// Points writes a bare list of points as a document of point placemarks named 1..n
func Points(w io.Writer, name string, points []geo.Point) error {
	children := []kml.Element{kml.Name(name)}
	for i, p := range points {
		children = append(children, kml.Placemark(
			kml.Name(fmt.Sprintf("%d", i+1)),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude})),
		))
	}
	return kml.KML(kml.Document(children...)).WriteIndent(w, "", "  ")
}
