// Package memhost is an in-memory rendering surface. It records every
// instruction it receives so the preview server can show what a device would
// draw, and it lets tests inject failures and layer evictions.
package memhost

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dpup/ridemap/internal/host"
	"github.com/dpup/ridemap/internal/lib/geo"
)

// ErrNotReady is returned by operations configured to fail
var ErrNotReady = errors.New("map not ready")

// Operation names accepted by FailNext
const (
	OpProject     = "project"
	OpCreate      = "create"
	OpDelete      = "delete"
	OpSetCamera   = "set_camera"
	OpLayerExists = "layer_exists"
	OpAddLayer    = "add_layer"
	OpRemoveLayer = "remove_layer"
)

// HistoryLimit bounds the recorded calls and camera poses. Older entries are
// dropped; the totals keep counting.
const HistoryLimit = 256

// Call is one recorded instruction
type Call struct {
	Op     string      `json:"op"`
	Layer  string      `json:"layer,omitempty"`
	Handle host.Handle `json:"handle,omitempty"`
}

// Viewport maps world coordinates linearly onto pixels around a center.
// It is accurate enough for hit-testing at street zoom levels.
type Viewport struct {
	Center       geo.Point `json:"center"`
	Width        float64   `json:"width"`
	Height       float64   `json:"height"`
	PixelsPerDeg float64   `json:"pixels_per_degree"`
}

// DefaultViewport is a phone-sized surface at roughly zoom 17 over Manila
func DefaultViewport() Viewport {
	return Viewport{
		Center:       geo.Point{Latitude: 14.5995, Longitude: 120.9842},
		Width:        1080,
		Height:       1920,
		PixelsPerDeg: 100_000,
	}
}

// Snapshot is a copy of everything the host is currently displaying
type Snapshot struct {
	Annotations map[host.Handle]host.Annotation `json:"annotations"`
	Layers      []host.LayerSpec                `json:"layers"`
	Camera      *host.CameraPose                `json:"camera,omitempty"`
	Calls       int                             `json:"calls"`
}

// Host implements host.Engine in memory. It is safe for concurrent use.
type Host struct {
	viewport    Viewport
	annotations map[host.Handle]host.Annotation
	layers      map[string]host.LayerSpec
	poses       []host.CameraPose
	calls       []Call
	callCount   int
	failures    map[string][]error
	mutex       sync.Mutex
}

var _ host.Engine = (*Host)(nil)

// New creates an empty host with the given viewport
func New(viewport Viewport) *Host {
	return &Host{
		viewport:    viewport,
		annotations: make(map[host.Handle]host.Annotation),
		layers:      make(map[string]host.LayerSpec),
		failures:    make(map[string][]error),
	}
}

// FailNext makes the next call of op return err. Calls queue in order.
func (h *Host) FailNext(op string, err error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.failures[op] = append(h.failures[op], err)
}

func (h *Host) failureLocked(op string) error {
	queue := h.failures[op]
	if len(queue) == 0 {
		return nil
	}
	h.failures[op] = queue[1:]
	return queue[0]
}

func (h *Host) record(c Call) {
	h.callCount++
	h.calls = trim(append(h.calls, c))
}

// trim keeps the newest HistoryLimit entries, copying only once the slice
// has doubled so appends stay amortised constant time.
func trim[T any](s []T) []T {
	if len(s) < 2*HistoryLimit {
		return s
	}
	return append([]T(nil), s[len(s)-HistoryLimit:]...)
}

// Project implements host.Projector. Points outside the viewport fail.
func (h *Host) Project(p geo.Point) (host.ScreenPoint, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if err := h.failureLocked(OpProject); err != nil {
		return host.ScreenPoint{}, err
	}

	v := h.viewport
	sp := host.ScreenPoint{
		X: v.Width/2 + (p.Longitude-v.Center.Longitude)*v.PixelsPerDeg,
		Y: v.Height/2 - (p.Latitude-v.Center.Latitude)*v.PixelsPerDeg,
	}
	if sp.X < 0 || sp.X > v.Width || sp.Y < 0 || sp.Y > v.Height {
		return host.ScreenPoint{}, fmt.Errorf("point %.6f,%.6f is off screen", p.Latitude, p.Longitude)
	}
	return sp, nil
}

// Unproject is the inverse of Project, for turning a tap position into a coordinate
func (h *Host) Unproject(sp host.ScreenPoint) geo.Point {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	v := h.viewport
	return geo.Point{
		Latitude:  v.Center.Latitude - (sp.Y-v.Height/2)/v.PixelsPerDeg,
		Longitude: v.Center.Longitude + (sp.X-v.Width/2)/v.PixelsPerDeg,
	}
}

// SetViewport moves the visible area
func (h *Host) SetViewport(v Viewport) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.viewport = v
}

// CreateAnnotation implements host.Annotations
func (h *Host) CreateAnnotation(a host.Annotation) (host.Handle, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if err := h.failureLocked(OpCreate); err != nil {
		return "", err
	}

	handle := host.Handle(uuid.NewString())
	a.Points = append([]geo.Point(nil), a.Points...)
	h.annotations[handle] = a
	h.record(Call{Op: OpCreate, Layer: a.Layer, Handle: handle})
	return handle, nil
}

// DeleteAnnotation implements host.Annotations
func (h *Host) DeleteAnnotation(handle host.Handle) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if err := h.failureLocked(OpDelete); err != nil {
		return err
	}

	a, ok := h.annotations[handle]
	if !ok {
		return fmt.Errorf("unknown annotation %s", handle)
	}
	delete(h.annotations, handle)
	h.record(Call{Op: OpDelete, Layer: a.Layer, Handle: handle})
	return nil
}

// SetCamera implements host.Camera
func (h *Host) SetCamera(pose host.CameraPose) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if err := h.failureLocked(OpSetCamera); err != nil {
		return err
	}
	h.poses = trim(append(h.poses, pose))
	h.record(Call{Op: OpSetCamera})
	return nil
}

// LayerExists implements host.Layers
func (h *Host) LayerExists(id string) (bool, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if err := h.failureLocked(OpLayerExists); err != nil {
		return false, err
	}
	_, ok := h.layers[id]
	return ok, nil
}

// AddLayer implements host.Layers
func (h *Host) AddLayer(spec host.LayerSpec) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if err := h.failureLocked(OpAddLayer); err != nil {
		return err
	}
	if _, ok := h.layers[spec.ID]; ok {
		return fmt.Errorf("layer %s already exists", spec.ID)
	}
	h.layers[spec.ID] = spec
	h.record(Call{Op: OpAddLayer, Layer: spec.ID})
	return nil
}

// RemoveLayer implements host.Layers
func (h *Host) RemoveLayer(id string) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if err := h.failureLocked(OpRemoveLayer); err != nil {
		return err
	}
	delete(h.layers, id)
	h.record(Call{Op: OpRemoveLayer, Layer: id})
	return nil
}

// Evict drops a layer without recording a call, the way a style reload does
func (h *Host) Evict(id string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.layers, id)
}

// AnnotationsInLayer returns the live annotations of one layer sorted by key
func (h *Host) AnnotationsInLayer(layer string) []host.Annotation {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	var out []host.Annotation
	for _, a := range h.annotations {
		if a.Layer == layer {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Poses returns the most recent camera poses, oldest first. At least the last
// HistoryLimit poses are kept.
func (h *Host) Poses() []host.CameraPose {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return append([]host.CameraPose(nil), h.poses...)
}

// Calls returns the most recent recorded instructions, oldest first. At least
// the last HistoryLimit calls are kept.
func (h *Host) Calls() []Call {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return append([]Call(nil), h.calls...)
}

// Snapshot copies the current display state
func (h *Host) Snapshot() Snapshot {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	snap := Snapshot{
		Annotations: make(map[host.Handle]host.Annotation, len(h.annotations)),
		Calls:       h.callCount,
	}
	for k, v := range h.annotations {
		snap.Annotations[k] = v
	}
	for _, spec := range h.layers {
		snap.Layers = append(snap.Layers, spec)
	}
	sort.Slice(snap.Layers, func(i, j int) bool { return snap.Layers[i].ID < snap.Layers[j].ID })
	if n := len(h.poses); n > 0 {
		pose := h.poses[n-1]
		snap.Camera = &pose
	}
	return snap
}
