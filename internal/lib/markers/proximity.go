package markers

import (
	"github.com/dhconnelly/rtreego"

	"github.com/dpup/ridemap/internal/lib/geo"
)

const (
	dimensions  = 2
	minChildren = 25
	maxChildren = 50

	// pointTolerance gives indexed points a non-empty rectangle
	pointTolerance = 1e-9
)

type indexedEntry struct {
	index int
	entry Entry
	rect  *rtreego.Rect
}

func (ie *indexedEntry) Bounds() *rtreego.Rect {
	return ie.rect
}

// proximityIndex finds entries lying within an epsilon box of a location
type proximityIndex struct {
	tree *rtreego.Rtree
}

func newProximityIndex(entries []Entry) *proximityIndex {
	idx := &proximityIndex{tree: rtreego.NewTree(dimensions, minChildren, maxChildren)}
	for i, e := range entries {
		p := rtreego.Point{e.Location.Latitude, e.Location.Longitude}
		idx.tree.Insert(&indexedEntry{index: i, entry: e, rect: p.ToRect(pointTolerance)})
	}
	return idx
}

// near returns the positions of entries differing from p by strictly less
// than eps degrees on both axes
func (idx *proximityIndex) near(p geo.Point, eps float64) map[int]bool {
	bounds, err := rtreego.NewRect(
		rtreego.Point{p.Latitude - eps, p.Longitude - eps},
		[]float64{2 * eps, 2 * eps},
	)
	if err != nil {
		return nil
	}

	found := make(map[int]bool)
	for _, result := range idx.tree.SearchIntersect(bounds) {
		item, ok := result.(*indexedEntry)
		if !ok {
			continue
		}
		// The tree search is inclusive and padded; apply the strict test.
		if geo.NearlyEqual(p, item.entry.Location, eps) {
			found[item.index] = true
		}
	}
	return found
}
