package host

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Owned tracks the annotation handles one component created, grouped by
// layer, so the component can clear exactly what it owns and nothing else.
type Owned struct {
	api     Annotations
	handles map[string][]Handle
	mutex   sync.Mutex
}

// NewOwned creates an empty handle set over api
func NewOwned(api Annotations) *Owned {
	return &Owned{
		api:     api,
		handles: make(map[string][]Handle),
	}
}

// Replace deletes every owned annotation in layer and creates anns in its
// place, on the caller's stack. Individual host failures do not stop the
// remaining calls; they are joined into the returned error.
func (o *Owned) Replace(layer string, anns []Annotation) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	errs := o.clearLocked(layer)

	created := make([]Handle, 0, len(anns))
	for _, a := range anns {
		a.Layer = layer
		h, err := o.api.CreateAnnotation(a)
		if err != nil {
			errs = append(errs, fmt.Errorf("create %s/%s: %w", layer, a.Key, err))
			continue
		}
		created = append(created, h)
	}
	if len(created) > 0 {
		o.handles[layer] = created
	}

	return errors.Join(errs...)
}

// Clear deletes every owned annotation in layer
func (o *Owned) Clear(layer string) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return errors.Join(o.clearLocked(layer)...)
}

// ClearAll deletes every owned annotation in every layer
func (o *Owned) ClearAll() error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	var errs []error
	for layer := range o.handles {
		errs = append(errs, o.clearLocked(layer)...)
	}
	return errors.Join(errs...)
}

// clearLocked forgets handles even when deletion fails; a handle the host
// refused to delete is treated as already gone.
func (o *Owned) clearLocked(layer string) []error {
	var errs []error
	for _, h := range o.handles[layer] {
		if err := o.api.DeleteAnnotation(h); err != nil {
			errs = append(errs, fmt.Errorf("delete %s/%s: %w", layer, h, err))
		}
	}
	delete(o.handles, layer)
	return errs
}

// Count returns the number of owned annotations in layer
func (o *Owned) Count(layer string) int {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return len(o.handles[layer])
}

// Layers returns the layers that currently hold owned annotations, sorted
func (o *Owned) Layers() []string {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	layers := make([]string, 0, len(o.handles))
	for layer := range o.handles {
		layers = append(layers, layer)
	}
	sort.Strings(layers)
	return layers
}
