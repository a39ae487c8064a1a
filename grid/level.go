package grid

import (
	"fmt"
	"slices"

	"github.com/NIFTy-PPL/niftygo/internal/ndindex"
)

// Level is one resolution layer of a grid. Implementations are immutable
// and safe for concurrent use.
type Level interface {
	// Shape returns the per-dimension extents of the level's index space.
	// The returned slice must not be modified.
	Shape() []int

	// Size returns the total number of cells (product of Shape).
	Size() int

	// NDim returns the number of index dimensions.
	NDim() int

	// Children returns the indices at the next finer level that are
	// geometrically nested inside idx. Fails with ErrLevelOutOfRange at
	// the finest level.
	Children(idx []int) ([][]int, error)

	// Parent returns the unique index at the next coarser level that
	// contains idx. Fails with ErrLevelOutOfRange at level 0.
	Parent(idx []int) ([]int, error)

	// Neighborhood returns the indices of all cells inside a window of
	// the given per-dimension extents around idx, using the level's own
	// adjacency topology. Extents larger than the level are clamped to it
	// and duplicate entries are removed, so the result may be shorter
	// than the product of the window extents.
	Neighborhood(idx, window []int) ([][]int, error)

	// Coord returns the physical location of the cell center of idx.
	// Its length is fixed per grid and may differ from NDim (HEALPix
	// cells live on the unit sphere in R^3).
	Coord(idx []int) ([]float64, error)
}

// cartesianLevel backs both Grid and OpenGrid levels. A zero padding makes
// the open-grid child/parent arithmetic collapse to the plain case.
type cartesianLevel struct {
	shape      []int
	splitAbove []int // split that produced this level; nil at level 0
	splitBelow []int // split to the next finer level; nil at the finest
	padding    []int // reserved border cells per dimension
	origin     []float64
	width      []float64 // physical cell extent per dimension
}

func (l *cartesianLevel) Shape() []int { return l.shape }
func (l *cartesianLevel) Size() int    { return ndindex.Size(l.shape) }
func (l *cartesianLevel) NDim() int    { return len(l.shape) }

func (l *cartesianLevel) checkIndex(idx []int) error {
	if len(idx) != len(l.shape) {
		return fmt.Errorf("%w: got %d index components, level has %d dimensions", ErrIndexOutOfRange, len(idx), len(l.shape))
	}
	if !ndindex.InBounds(idx, l.shape) {
		return fmt.Errorf("%w: index %v outside shape %v", ErrIndexOutOfRange, idx, l.shape)
	}
	return nil
}

func (l *cartesianLevel) Children(idx []int) ([][]int, error) {
	if l.splitBelow == nil {
		return nil, fmt.Errorf("%w: finest level has no children", ErrLevelOutOfRange)
	}
	if err := l.checkIndex(idx); err != nil {
		return nil, err
	}
	for i, p := range l.padding {
		if idx[i] < p || idx[i] >= l.shape[i]-p {
			return nil, fmt.Errorf("%w: index %v lies in the reserved border of shape %v (padding %v)", ErrIndexOutOfRange, idx, l.shape, l.padding)
		}
	}
	offsets := ndindex.Enumerate(l.splitBelow)
	out := make([][]int, len(offsets))
	for c, off := range offsets {
		child := make([]int, len(idx))
		for i := range idx {
			child[i] = (idx[i]-l.padding[i])*l.splitBelow[i] + off[i]
		}
		out[c] = child
	}
	return out, nil
}

func (l *cartesianLevel) Parent(idx []int) ([]int, error) {
	if l.splitAbove == nil {
		return nil, fmt.Errorf("%w: level 0 has no parent", ErrLevelOutOfRange)
	}
	if err := l.checkIndex(idx); err != nil {
		return nil, err
	}
	parent := make([]int, len(idx))
	for i := range idx {
		parent[i] = idx[i]/l.splitAbove[i] + l.padding[i]
	}
	return parent, nil
}

func (l *cartesianLevel) Neighborhood(idx, window []int) ([][]int, error) {
	if err := l.checkIndex(idx); err != nil {
		return nil, err
	}
	if len(window) != len(l.shape) {
		return nil, fmt.Errorf("%w: window %v does not match %d dimensions", ErrInvalidConfig, window, len(l.shape))
	}
	eff := make([]int, len(window))
	start := make([]int, len(idx))
	for i, w := range window {
		if w < 1 {
			return nil, fmt.Errorf("%w: non-positive window extent %d", ErrInvalidConfig, w)
		}
		// An extent beyond the level covers the whole axis, so the result
		// may be shorter than the product of the requested extents.
		if w > l.shape[i] {
			w = l.shape[i]
		}
		eff[i] = w
		// Shift the window so it stays inside the level instead of
		// clipping it, keeping the cell count constant.
		start[i] = ndindex.Clamp(idx[i]-w/2, 0, l.shape[i]-w)
	}
	offsets := ndindex.Enumerate(eff)
	out := make([][]int, len(offsets))
	for c, off := range offsets {
		cell := make([]int, len(idx))
		for i := range idx {
			cell[i] = start[i] + off[i]
		}
		out[c] = cell
	}
	return out, nil
}

func (l *cartesianLevel) Coord(idx []int) ([]float64, error) {
	if err := l.checkIndex(idx); err != nil {
		return nil, err
	}
	coord := make([]float64, len(idx))
	for i := range idx {
		coord[i] = l.origin[i] + (float64(idx[i])+0.5)*l.width[i]
	}
	return coord, nil
}

// dedupe removes repeated indices from a query result, preserving first
// occurrence order.
func dedupe(cells [][]int) [][]int {
	out := cells[:0:0]
	for _, c := range cells {
		seen := false
		for _, o := range out {
			if slices.Equal(o, c) {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, c)
		}
	}
	return out
}
