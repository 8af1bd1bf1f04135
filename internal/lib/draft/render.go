package draft

import (
	"errors"
	"fmt"

	"github.com/dpup/ridemap/internal/host"
	"github.com/dpup/ridemap/internal/lib/geo"
	"github.com/dpup/ridemap/internal/lib/hull"
)

// Layers owned by a draft session on the rendering surface
const (
	LayerPoints  = "boundary-draft/points"
	LayerLine    = "boundary-draft/line"
	LayerPolygon = "boundary-draft/polygon"
)

var (
	pointStyle    = host.Style{Icon: "circle", Color: "#1E88E5", Size: 8, Opacity: 1}
	selectedStyle = host.Style{Icon: "circle", Color: "#E53935", Size: 14, Opacity: 1}
	lineStyle     = host.Style{Color: "#1E88E5", Size: 3, Opacity: 0.9}
	polygonStyle  = host.Style{Color: "#1E88E5", Opacity: 0.25}
)

// Frame is everything a draft session wants drawn
type Frame struct {
	Markers []host.Annotation `json:"markers"`
	Line    *host.Annotation  `json:"line,omitempty"`
	Polygon *host.Annotation  `json:"polygon,omitempty"`
	// RingError explains why no polygon was produced once three or more points exist
	RingError string `json:"ring_error,omitempty"`
}

// Annotations flattens the frame: markers, then the line, then the polygon
func (f Frame) Annotations() []host.Annotation {
	out := append([]host.Annotation(nil), f.Markers...)
	out = append(out, optional(f.Line)...)
	return append(out, optional(f.Polygon)...)
}

// Render builds the frame for the current points and selection: one marker per
// point, an open line in insertion order, and a filled polygon once a valid
// ring of three or more vertices exists.
func (s *Session) Render() Frame {
	s.mutex.Lock()
	points := append([]geo.Point(nil), s.points...)
	selected := s.selected
	mode := s.mode
	s.mutex.Unlock()

	var frame Frame
	for i, p := range points {
		style := pointStyle
		if i == selected {
			style = selectedStyle
		}
		frame.Markers = append(frame.Markers, host.Annotation{
			Layer:  LayerPoints,
			Key:    fmt.Sprintf("point:%d", i),
			Kind:   host.KindPoint,
			Points: []geo.Point{p},
			Style:  style,
			Label:  fmt.Sprintf("%d", i+1),
		})
	}

	if len(points) >= 2 {
		frame.Line = &host.Annotation{
			Layer:  LayerLine,
			Key:    "line",
			Kind:   host.KindLine,
			Points: points,
			Style:  lineStyle,
		}
	}

	if len(points) >= 3 {
		ring, err := hull.Ring(points, mode)
		if err != nil {
			frame.RingError = err.Error()
		} else {
			frame.Polygon = &host.Annotation{
				Layer:  LayerPolygon,
				Key:    "polygon",
				Kind:   host.KindPolygon,
				Points: ring,
				Style:  polygonStyle,
			}
		}
	}

	return frame
}

// Draw renders the session and replaces the draft layers through owned
func (s *Session) Draw(owned *host.Owned) error {
	frame := s.Render()

	var errs []error
	errs = append(errs, owned.Replace(LayerPoints, frame.Markers))
	errs = append(errs, owned.Replace(LayerLine, optional(frame.Line)))
	errs = append(errs, owned.Replace(LayerPolygon, optional(frame.Polygon)))
	return errors.Join(errs...)
}

// Erase removes everything the session drew
func (s *Session) Erase(owned *host.Owned) error {
	return errors.Join(
		owned.Clear(LayerPoints),
		owned.Clear(LayerLine),
		owned.Clear(LayerPolygon),
	)
}

func optional(a *host.Annotation) []host.Annotation {
	if a == nil {
		return nil
	}
	return []host.Annotation{*a}
}
