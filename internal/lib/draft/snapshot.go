package draft

import (
	"fmt"

	"github.com/dpup/ridemap/internal/host"
	"github.com/dpup/ridemap/internal/lib/geo"
	"github.com/dpup/ridemap/internal/lib/hull"
)

// Snapshot is the persistable form of a draft
type Snapshot struct {
	ID       string      `json:"id"`
	Points   []geo.Point `json:"points"`
	Selected int         `json:"selected"`
	Mode     hull.Mode   `json:"mode"`
}

// Snapshot captures the session so it can be handed to a store
func (s *Session) Snapshot() Snapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return Snapshot{
		ID:       s.id,
		Points:   append([]geo.Point(nil), s.points...),
		Selected: s.selected,
		Mode:     s.mode,
	}
}

// Restore rebuilds a session from a snapshot. Options apply after the
// snapshot, so a caller can still override the listener or threshold.
func Restore(snap Snapshot, projector host.Projector, opts ...Option) (*Session, error) {
	if snap.Selected < -1 || snap.Selected >= len(snap.Points) {
		return nil, fmt.Errorf("%w: selected %d of %d", ErrIndexOutOfRange, snap.Selected, len(snap.Points))
	}
	mode, err := hull.ParseMode(string(snap.Mode))
	if err != nil {
		return nil, err
	}

	all := []Option{WithRingMode(mode)}
	if snap.ID != "" {
		all = append(all, WithID(snap.ID))
	}
	s := NewSession(projector, append(all, opts...)...)
	s.points = append([]geo.Point(nil), snap.Points...)
	s.selected = snap.Selected
	return s, nil
}
