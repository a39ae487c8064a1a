package grid

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenShapes(t *testing.T) {
	g, err := NewOpen([]int{12, 12}, [][]int{{2}, {2}}, []int{1, 1})
	require.NoError(t, err)
	require.Equal(t, 2, g.Depth())
	assert.Equal(t, []int{1, 1}, g.Padding())

	want := [][]int{{12, 12}, {20, 20}, {36, 36}}
	for lvl, shape := range want {
		l, err := g.At(lvl)
		require.NoError(t, err)
		assert.Equal(t, shape, l.Shape())
	}
}

func TestOpenBorderCells(t *testing.T) {
	g, err := NewOpen([]int{6}, [][]int{{2}}, []int{1})
	require.NoError(t, err)
	l0, err := g.At(0)
	require.NoError(t, err)

	// The reserved border has no children.
	_, err = l0.Children([]int{0})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = l0.Children([]int{5})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	// Interior cells subdivide relative to the shed border.
	kids, err := l0.Children([]int{1})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0}, {1}}, kids)
	kids, err = l0.Children([]int{4})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{6}, {7}}, kids)

	l1, err := g.At(1)
	require.NoError(t, err)
	p, err := l1.Parent([]int{0})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, p)
	p, err = l1.Parent([]int{7})
	require.NoError(t, err)
	assert.Equal(t, []int{4}, p)

	// The border still supports windowed reads and coordinates.
	nb, err := l0.Neighborhood([]int{0}, []int{3})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0}, {1}, {2}}, nb)
	_, err = l0.Coord([]int{0})
	assert.NoError(t, err)
}

func TestOpenCoords(t *testing.T) {
	g, err := NewOpen([]int{6}, [][]int{{2}}, []int{1})
	require.NoError(t, err)

	l0, err := g.At(0)
	require.NoError(t, err)
	l1, err := g.At(1)
	require.NoError(t, err)

	// Refinement keeps physical positions: only the interior is covered,
	// so the finer level's origin moves past the shed border band.
	c, err := l1.Coord([]int{0})
	require.NoError(t, err)
	assert.InDelta(t, 1.25, c[0], 1e-12)

	pc, err := l0.Coord([]int{1})
	require.NoError(t, err)
	kids, err := l0.Children([]int{1})
	require.NoError(t, err)
	for _, kid := range kids {
		cc, err := l1.Coord(kid)
		require.NoError(t, err)
		assert.Less(t, pc[0]-0.5, cc[0])
		assert.Greater(t, pc[0]+0.5, cc[0])
	}
}

func TestOpenWalk(t *testing.T) {
	g, err := NewOpen([]int{8, 8}, [][]int{{2}, {2}}, []int{1, 1})
	require.NoError(t, err)

	// Probe at the padding offset: interior at every level.
	interior := func(l Level) []int {
		idx := make([]int, l.NDim())
		for i := range idx {
			idx[i] = 1
		}
		return idx
	}
	recs := recordLevels(t, g, interior, uniformWindow(3))
	assert.Equal(t, []int{8, 8}, recs[0].Shape)
	assert.Equal(t, []int{12, 12}, recs[1].Shape)
	assert.Equal(t, []int{20, 20}, recs[2].Shape)
	for _, rec := range recs {
		assert.Len(t, rec.Neighborhood, 9)
	}
}

func TestOpenAmendConsistency(t *testing.T) {
	g, err := NewOpen([]int{8}, [][]int{{2}}, []int{1})
	require.NoError(t, err)
	amended, err := g.Amend([]int{2})
	require.NoError(t, err)
	direct, err := NewOpen([]int{8}, [][]int{{2}, {2}}, []int{1})
	require.NoError(t, err)

	at := func(l Level) []int { return []int{1} }
	got := recordLevels(t, amended, at, uniformWindow(3))
	want := recordLevels(t, direct, at, uniformWindow(3))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("amended grid differs from direct construction:\n%s", diff)
	}
}

func TestOpenShape0(t *testing.T) {
	shape0, padding := OpenShape0([]int{32, 32}, 2, 2, 3)
	assert.Equal(t, []int{12, 12}, shape0)
	assert.Equal(t, 1, padding)

	// The provisioned grid must cover the target after all refinements.
	g, err := NewOpen(shape0, [][]int{{2}, {2}}, []int{padding, padding})
	require.NoError(t, err)
	finest, err := g.At(g.Depth())
	require.NoError(t, err)
	for i, s := range finest.Shape() {
		assert.GreaterOrEqual(t, s, 32, "dimension %d", i)
	}
}

func TestOpenShape0LargeSplit(t *testing.T) {
	// The border factor 2 + 2/split is fractional for split > 2; a wide
	// window then needs the full allowance to keep the deepest level
	// covering the target.
	shape0, padding := OpenShape0([]int{27}, 3, 2, 7)
	require.Equal(t, 3, padding)
	assert.Equal(t, []int{12}, shape0)

	g, err := NewOpen(shape0, [][]int{{3}, {3}}, []int{padding})
	require.NoError(t, err)
	finest, err := g.At(g.Depth())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, finest.Shape()[0], 27)
}

func TestOpenErrors(t *testing.T) {
	_, err := NewOpen([]int{4}, [][]int{{2}}, []int{1, 1})
	assert.ErrorIs(t, err, ErrInvalidConfig, "padding dimension mismatch")

	_, err = NewOpen([]int{4}, [][]int{{2}}, []int{-1})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewOpen([]int{4}, [][]int{{2}}, []int{2})
	assert.ErrorIs(t, err, ErrInvalidConfig, "padding consumes the whole level")

	// Deep refinement may run out of interior cells.
	_, err = NewOpen([]int{4}, [][]int{{1}, {1}, {1}}, []int{1})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
