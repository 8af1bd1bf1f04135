package markers

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/ridemap/internal/host"
	"github.com/dpup/ridemap/internal/lib/geo"
	"github.com/dpup/ridemap/internal/metrics"
)

// Result describes what one reconciliation did
type Result struct {
	// Layers that were cleared and recreated, sorted
	Changed []string `json:"changed"`
	// Layers whose clear or recreate hit a host error, sorted
	Failed []string `json:"failed,omitempty"`
	// Markers in the desired set
	Total int `json:"total"`
}

// Reconciler brings the host's markers in line with application state. Only
// layers whose desired markers changed are touched; each of those is cleared
// and recreated on the caller's stack. Layers owned by other components are
// never modified.
type Reconciler struct {
	owned   *host.Owned
	epsilon float64

	mutex sync.Mutex
	// rendered is the last marker set handed to the host per layer
	rendered map[string][]host.Annotation
	// dirty layers are redrawn on the next call even if unchanged
	dirty map[string]bool
}

// NewReconciler creates a reconciler that owns markers created through api.
// eps is the near-duplicate tolerance in degrees; zero means geo.Epsilon.
func NewReconciler(api host.Annotations, eps float64) *Reconciler {
	if eps <= 0 {
		eps = geo.Epsilon
	}
	return &Reconciler{
		owned:    host.NewOwned(api),
		epsilon:  eps,
		rendered: make(map[string][]host.Annotation),
		dirty:    make(map[string]bool),
	}
}

// Reconcile renders state. Host failures are logged and the affected layer
// is retried on the next call; they are never returned.
func (r *Reconciler) Reconcile(ctx context.Context, state State) Result {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	desired := Build(state, r.epsilon)
	res := Result{Total: len(desired)}

	byLayer := ByLayer(desired)
	layers := make([]string, 0, len(byLayer))
	for layer := range byLayer {
		layers = append(layers, layer)
	}
	sort.Strings(layers)

	for _, layer := range layers {
		anns := byLayer[layer]
		if !r.dirty[layer] && sameMarkers(r.rendered[layer], anns) {
			continue
		}

		res.Changed = append(res.Changed, layer)
		metrics.MarkerReconciles.WithLabelValues(layer).Inc()

		err := r.owned.Replace(layer, anns)
		metrics.MarkersRendered.WithLabelValues(layer).Set(float64(r.owned.Count(layer)))
		if err != nil {
			res.Failed = append(res.Failed, layer)
			metrics.MarkerHostErrors.WithLabelValues(layer).Inc()
			logging.Warnw(ctx, "Markers: host rejected layer update", "layer", layer, "error", err)
			r.dirty[layer] = true
			delete(r.rendered, layer)
			continue
		}

		delete(r.dirty, layer)
		if len(anns) == 0 {
			delete(r.rendered, layer)
		} else {
			r.rendered[layer] = anns
		}
	}

	if len(res.Changed) > 0 {
		logging.Debugw(ctx, "Markers reconciled", "changed", res.Changed, "total", res.Total)
	}
	return res
}

// Clear removes every marker the reconciler owns
func (r *Reconciler) Clear(ctx context.Context) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if err := r.owned.ClearAll(); err != nil {
		logging.Warnw(ctx, "Markers: host rejected clear", "error", err)
	}
	for layer := range r.rendered {
		metrics.MarkersRendered.WithLabelValues(layer).Set(0)
	}
	r.rendered = make(map[string][]host.Annotation)
	r.dirty = make(map[string]bool)
}

// Rendered returns the marker set last handed to the host, sorted by layer then key
func (r *Reconciler) Rendered() []host.Annotation {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var out []host.Annotation
	for _, anns := range r.rendered {
		out = append(out, anns...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Layer != out[j].Layer {
			return out[i].Layer < out[j].Layer
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func sameMarkers(a, b []host.Annotation) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}
