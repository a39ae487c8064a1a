package grid

import (
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHEALPixShapes(t *testing.T) {
	g, err := NewHEALPix(2, 2)
	require.NoError(t, err)
	require.Equal(t, 2, g.Depth())
	assert.Equal(t, 2, g.Nside0())

	want := []int{48, 192, 768}
	for lvl, size := range want {
		l, err := g.At(lvl)
		require.NoError(t, err)
		assert.Equal(t, size, l.Size())
		assert.Equal(t, []int{size}, l.Shape())
		assert.Equal(t, 1, l.NDim())
	}
}

func TestHEALPixChildrenParent(t *testing.T) {
	g, err := NewHEALPix(2, 1)
	require.NoError(t, err)
	l0, err := g.At(0)
	require.NoError(t, err)
	l1, err := g.At(1)
	require.NoError(t, err)

	kids, err := l0.Children([]int{5})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{20}, {21}, {22}, {23}}, kids)
	for _, kid := range kids {
		p, err := l1.Parent(kid)
		require.NoError(t, err)
		assert.Equal(t, []int{5}, p)
	}
}

func TestHEALPixNeighborhood(t *testing.T) {
	g, err := NewHEALPix(2, 0)
	require.NoError(t, err)
	l, err := g.At(0)
	require.NoError(t, err)

	for pix := 0; pix < l.Size(); pix++ {
		nb, err := l.Neighborhood([]int{pix}, []int{9})
		require.NoError(t, err)
		require.NotEmpty(t, nb)
		assert.Equal(t, []int{pix}, nb[0], "window starts at the pixel itself")
		// Pixels at cut polar corners have only seven neighbors.
		assert.GreaterOrEqual(t, len(nb), 8)
		assert.LessOrEqual(t, len(nb), 9)

		seen := map[int]bool{}
		for _, c := range nb {
			require.Len(t, c, 1)
			assert.GreaterOrEqual(t, c[0], 0)
			assert.Less(t, c[0], l.Size())
			assert.False(t, seen[c[0]], "duplicate pixel %d around %d", c[0], pix)
			seen[c[0]] = true
		}
	}

	nb, err := l.Neighborhood([]int{3}, []int{1})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{3}}, nb)

	_, err = l.Neighborhood([]int{3}, []int{10})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = l.Neighborhood([]int{3}, []int{3, 3})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestHEALPixNeighborhoodBaseResolution(t *testing.T) {
	g, err := NewHEALPix(1, 0)
	require.NoError(t, err)
	l, err := g.At(0)
	require.NoError(t, err)

	// At nside 1 a pixel can reach the same face through two directions;
	// the window must stay duplicate free.
	for pix := 0; pix < 12; pix++ {
		nb, err := l.Neighborhood([]int{pix}, []int{9})
		require.NoError(t, err)
		seen := map[int]bool{}
		for _, c := range nb {
			assert.False(t, seen[c[0]], "duplicate pixel %d around %d", c[0], pix)
			seen[c[0]] = true
		}
	}
}

func TestHEALPixAmendConsistency(t *testing.T) {
	for _, nside0 := range []int{1, 2, 16} {
		for _, depth := range []int{0, 1} {
			t.Run(fmt.Sprintf("nside%d_depth%d", nside0, depth), func(t *testing.T) {
				g, err := NewHEALPix(nside0, depth)
				require.NoError(t, err)
				amended, err := g.Amend(2)
				require.NoError(t, err)
				direct, err := NewHEALPix(nside0, depth+2)
				require.NoError(t, err)

				got := recordLevels(t, amended, zeroIndex, uniformWindow(5))
				want := recordLevels(t, direct, zeroIndex, uniformWindow(5))
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("amended grid differs from direct construction:\n%s", diff)
				}
			})
		}
	}
}

func TestHEALPixCoord(t *testing.T) {
	g, err := NewHEALPix(2, 0)
	require.NoError(t, err)
	l, err := g.At(0)
	require.NoError(t, err)

	for pix := 0; pix < l.Size(); pix++ {
		c, err := l.Coord([]int{pix})
		require.NoError(t, err)
		require.Len(t, c, 3)
		norm := math.Sqrt(c[0]*c[0] + c[1]*c[1] + c[2]*c[2])
		assert.InDelta(t, 1, norm, 1e-12, "pixel %d center off the unit sphere", pix)
	}
}

func TestHEALPixErrors(t *testing.T) {
	_, err := NewHEALPix(3, 1)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewHEALPix(0, 1)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewHEALPix(2, -1)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	g, err := NewHEALPix(2, 1)
	require.NoError(t, err)
	_, err = g.Amend(-1)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = g.At(2)
	assert.ErrorIs(t, err, ErrLevelOutOfRange)

	l0, err := g.At(0)
	require.NoError(t, err)
	_, err = l0.Children([]int{48})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = l0.Children([]int{0, 0})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	l1, err := g.At(1)
	require.NoError(t, err)
	_, err = l1.Children([]int{0})
	assert.ErrorIs(t, err, ErrLevelOutOfRange)
	_, err = l0.Parent([]int{0})
	assert.ErrorIs(t, err, ErrLevelOutOfRange)
}
