// Package hittest finds which known map point a tap landed on.
package hittest

import (
	"math"

	"github.com/dpup/ridemap/internal/host"
	"github.com/dpup/ridemap/internal/lib/geo"
)

// DefaultThreshold is the largest tap-to-point distance, in pixels, that still selects the point
const DefaultThreshold = 50.0

// Nearest projects the click and every candidate to screen space and returns
// the index of the closest candidate strictly within threshold pixels.
// Candidates whose projection fails are skipped. On equal distances the lowest
// index wins. ok is false when nothing is in range or the click itself cannot
// be projected.
func Nearest(click geo.Point, candidates []geo.Point, projector host.Projector, threshold float64) (index int, ok bool) {
	if len(candidates) == 0 {
		return -1, false
	}

	clickScreen, err := projector.Project(click)
	if err != nil {
		return -1, false
	}

	index = -1
	best := math.Inf(1)
	for i, candidate := range candidates {
		sp, err := projector.Project(candidate)
		if err != nil {
			continue
		}
		d := math.Hypot(sp.X-clickScreen.X, sp.Y-clickScreen.Y)
		if d < threshold && d < best {
			best = d
			index = i
		}
	}

	return index, index >= 0
}
