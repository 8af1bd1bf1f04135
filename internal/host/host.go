// Package host defines the boundary between the map engine and the
// map-rendering surface that owns pixels, tiles, and style layers.
package host

import (
	"github.com/dpup/ridemap/internal/lib/geo"
)

// ScreenPoint is a position on the rendering surface in pixels
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Projector converts world coordinates to screen pixels. Projection may fail
// when the map is not ready or the point cannot be placed on screen.
type Projector interface {
	Project(p geo.Point) (ScreenPoint, error)
}

// ProjectorFunc adapts a function to Projector
type ProjectorFunc func(p geo.Point) (ScreenPoint, error)

// Project implements Projector
func (f ProjectorFunc) Project(p geo.Point) (ScreenPoint, error) { return f(p) }

// AnnotationKind identifies the geometry of an annotation
type AnnotationKind string

const (
	KindPoint   AnnotationKind = "point"
	KindLine    AnnotationKind = "line"
	KindPolygon AnnotationKind = "polygon"
)

// Style is the visual treatment of an annotation
type Style struct {
	Icon    string  `json:"icon,omitempty"`
	Color   string  `json:"color"`
	Size    float64 `json:"size,omitempty"`
	Opacity float64 `json:"opacity,omitempty"`
}

// Annotation is a renderable marker, line, or polygon instruction.
// Key identifies the annotation within its layer and is stable across renders.
type Annotation struct {
	Layer  string         `json:"layer"`
	Key    string         `json:"key"`
	Kind   AnnotationKind `json:"kind"`
	Points []geo.Point    `json:"points"`
	Style  Style          `json:"style"`
	Label  string         `json:"label,omitempty"`
}

// Handle references an annotation created on the host
type Handle string

// Annotations creates and deletes annotations on the rendering surface
type Annotations interface {
	CreateAnnotation(a Annotation) (Handle, error)
	DeleteAnnotation(h Handle) error
}

// CameraPose is the full camera state applied in one call
type CameraPose struct {
	Center  geo.Point `json:"center"`
	Zoom    float64   `json:"zoom"`
	Bearing float64   `json:"bearing"`
	Pitch   float64   `json:"pitch"`
}

// Camera applies camera poses
type Camera interface {
	SetCamera(pose CameraPose) error
}

// LayerSpec describes a declarative style layer
type LayerSpec struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Layers inspects and mutates the declarative style layers. The host may
// evict layers at any time, for example while reloading a style.
type Layers interface {
	LayerExists(id string) (bool, error)
	AddLayer(spec LayerSpec) error
	RemoveLayer(id string) error
}

// Engine is everything the map engine consumes from the rendering surface
type Engine interface {
	Projector
	Annotations
	Camera
	Layers
}
