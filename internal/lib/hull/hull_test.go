package hull

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/ridemap/internal/lib/geo"
)

func pt(lat, lng float64) geo.Point { return geo.Point{Latitude: lat, Longitude: lng} }

func TestOrder_SquareWithInteriorPoint(t *testing.T) {
	// Clicked out of order, with one point in the middle
	points := []geo.Point{
		pt(14.11, 121.01),
		pt(14.10, 121.00),
		pt(14.105, 121.005), // interior
		pt(14.11, 121.00),
		pt(14.10, 121.01),
	}

	ordered, err := Order(points)
	require.NoError(t, err)

	assert.Equal(t, []geo.Point{
		pt(14.10, 121.00), // lowest latitude, then lowest longitude
		pt(14.10, 121.01),
		pt(14.11, 121.01),
		pt(14.11, 121.00),
	}, ordered)
}

func TestOrder_DropsDuplicatesAndCollinear(t *testing.T) {
	points := []geo.Point{
		pt(0, 0), pt(0, 0), pt(0, 1), pt(0, 2), pt(1, 1), pt(1, 1),
	}
	ordered, err := Order(points)
	require.NoError(t, err)
	assert.Equal(t, []geo.Point{pt(0, 0), pt(0, 2), pt(1, 1)}, ordered)
}

func TestOrder_DegenerateInput(t *testing.T) {
	_, err := Order([]geo.Point{pt(0, 0), pt(1, 1)})
	assert.ErrorIs(t, err, ErrTooFewPoints)

	// All collinear: hull reduction leaves two points and the ring cannot close
	ordered, err := Order([]geo.Point{pt(0, 0), pt(1, 1), pt(2, 2)})
	require.NoError(t, err)
	assert.Len(t, ordered, 2)

	_, err = CloseRing(ordered)
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestOrder_HullValidity(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		n := 3 + rng.Intn(20)
		points := make([]geo.Point, n)
		for i := range points {
			points[i] = pt(14.5+rng.Float64()*0.01, 121.0+rng.Float64()*0.01)
		}

		ring, err := Ring(points, ModeHull)
		require.NoError(t, err, "trial %d", trial)
		require.GreaterOrEqual(t, len(ring), 4)
		assert.Equal(t, ring[0], ring[len(ring)-1], "ring must be closed")

		for k := 0; k < len(ring)-1; k++ {
			assert.NotEqual(t, ring[k], ring[k+1], "duplicate adjacent vertex at %d", k)
		}

		// Counter-clockwise ring: every input point is on or left of each edge
		for _, p := range points {
			for k := 0; k < len(ring)-1; k++ {
				assert.GreaterOrEqual(t, cross(ring[k], ring[k+1], p), -1e-12,
					"trial %d: point %+v outside edge %d", trial, p, k)
			}
		}

		// Every ring vertex came from the input
		for _, v := range ring {
			assert.Contains(t, points, v)
		}
	}
}

func TestOrderInsertion(t *testing.T) {
	// Concave "L" shape drawn in order keeps its notch
	lShape := []geo.Point{
		pt(0, 0), pt(0, 2), pt(1, 2), pt(1, 1), pt(2, 1), pt(2, 0),
	}
	ordered, err := OrderInsertion(lShape)
	require.NoError(t, err)
	assert.Equal(t, lShape, ordered)

	hullOrdered, err := Order(lShape)
	require.NoError(t, err)
	assert.NotContains(t, hullOrdered, pt(1, 1), "hull ordering drops the concave vertex")

	// Bow tie crosses itself
	bowTie := []geo.Point{pt(0, 0), pt(1, 1), pt(1, 0), pt(0, 1)}
	_, err = OrderInsertion(bowTie)
	assert.ErrorIs(t, err, ErrSelfIntersecting)

	_, err = OrderInsertion([]geo.Point{pt(0, 0), pt(0, 0), pt(1, 1)})
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestValidateSimple_TouchingVertex(t *testing.T) {
	// Vertex 3 lies on edge 0->1
	ring := []geo.Point{pt(0, 0), pt(0, 2), pt(1, 1), pt(0, 1), pt(-1, 1)}
	assert.ErrorIs(t, ValidateSimple(ring), ErrSelfIntersecting)

	square := []geo.Point{pt(0, 0), pt(0, 1), pt(1, 1), pt(1, 0)}
	assert.NoError(t, ValidateSimple(square))
}

func TestRing_Modes(t *testing.T) {
	points := []geo.Point{pt(0, 0), pt(0, 2), pt(1, 2), pt(1, 1), pt(2, 1), pt(2, 0)}

	closed, err := Ring(points, ModeInsertion)
	require.NoError(t, err)
	assert.Len(t, closed, len(points)+1)
	assert.Equal(t, closed[0], closed[len(closed)-1])

	closed, err = Ring(points, ModeHull)
	require.NoError(t, err)
	assert.Len(t, closed, 6, "five hull vertices plus closing vertex")
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeHull, m)

	m, err = ParseMode("insertion")
	require.NoError(t, err)
	assert.Equal(t, ModeInsertion, m)

	_, err = ParseMode("spline")
	assert.Error(t, err)
}
