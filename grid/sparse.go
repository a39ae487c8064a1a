package grid

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/NIFTy-PPL/niftygo/internal/ndindex"
)

// Sparse restricts a wrapped grid to an explicit per-level subset of its
// cells. The mapping holds, for every level, the strictly increasing
// row-major (flattened) indices of the retained cells; a level's index
// space then becomes the one-dimensional compact range [0, len(mapping)).
//
// Children and neighborhood results are filtered silently: cells of the
// wrapped grid that are not retained simply do not appear. Querying a
// compact index outside a level, or asking for the parent of a cell whose
// parent was not retained, fails with ErrIndexOutOfRange.
type Sparse struct {
	base     Grid
	mappings [][]int
	sets     []*roaring.Bitmap
	levels   []*sparseLevel
}

var _ Grid = (*Sparse)(nil)

// NewSparse wraps base, retaining per level exactly the flattened indices
// listed in mappings. One strictly increasing list per level is required.
func NewSparse(base Grid, mappings [][]int) (*Sparse, error) {
	if len(mappings) != base.Depth()+1 {
		return nil, fmt.Errorf("%w: %d mappings for %d levels", ErrInvalidConfig, len(mappings), base.Depth()+1)
	}
	g := &Sparse{base: base, mappings: mappings}
	for k, m := range mappings {
		lvl, err := base.At(k)
		if err != nil {
			return nil, err
		}
		if len(m) == 0 {
			return nil, fmt.Errorf("%w: empty mapping at level %d", ErrInvalidConfig, k)
		}
		set := roaring.New()
		prev := -1
		for _, orig := range m {
			if orig <= prev {
				return nil, fmt.Errorf("%w: mapping at level %d is not strictly increasing at index %d", ErrInvalidConfig, k, orig)
			}
			if orig >= lvl.Size() {
				return nil, fmt.Errorf("%w: mapping entry %d outside level %d size %d", ErrInvalidConfig, orig, k, lvl.Size())
			}
			set.Add(uint32(orig))
			prev = orig
		}
		g.sets = append(g.sets, set)
		g.levels = append(g.levels, &sparseLevel{g: g, k: k, base: lvl})
	}
	return g, nil
}

// Depth returns the number of refinement steps of the wrapped grid.
func (g *Sparse) Depth() int { return g.base.Depth() }

// Base returns the wrapped grid.
func (g *Sparse) Base() Grid { return g.base }

// Mapping returns the retained flattened indices at a level. The result
// must not be modified.
func (g *Sparse) Mapping(level int) ([]int, error) {
	if level < 0 || level >= len(g.mappings) {
		return nil, fmt.Errorf("%w: level %d outside [0, %d]", ErrLevelOutOfRange, level, len(g.mappings)-1)
	}
	return g.mappings[level], nil
}

// At returns the level descriptor for 0 <= level <= Depth().
func (g *Sparse) At(level int) (Level, error) {
	if level < 0 || level >= len(g.levels) {
		return nil, fmt.Errorf("%w: level %d outside [0, %d]", ErrLevelOutOfRange, level, len(g.levels)-1)
	}
	return g.levels[level], nil
}

// compact translates a retained original flat index into its compact
// index via the bitmap rank; ok is false for cells not retained.
func (g *Sparse) compact(level, orig int) (int, bool) {
	set := g.sets[level]
	if !set.Contains(uint32(orig)) {
		return 0, false
	}
	return int(set.Rank(uint32(orig))) - 1, true
}

type sparseLevel struct {
	g    *Sparse
	k    int
	base Level
}

func (l *sparseLevel) Shape() []int { return []int{len(l.g.mappings[l.k])} }
func (l *sparseLevel) Size() int    { return len(l.g.mappings[l.k]) }
func (l *sparseLevel) NDim() int    { return 1 }

// unwrap resolves a compact index into the wrapped grid's coordinate.
func (l *sparseLevel) unwrap(idx []int) ([]int, error) {
	if len(idx) != 1 {
		return nil, fmt.Errorf("%w: sparse index has one component, got %d", ErrIndexOutOfRange, len(idx))
	}
	m := l.g.mappings[l.k]
	if idx[0] < 0 || idx[0] >= len(m) {
		return nil, fmt.Errorf("%w: compact index %d outside [0, %d)", ErrIndexOutOfRange, idx[0], len(m))
	}
	return ndindex.Unravel(m[idx[0]], l.base.Shape()), nil
}

// filter keeps the retained cells of a wrapped-grid query result,
// translated to compact indices.
func (l *sparseLevel) filter(k int, coords [][]int) [][]int {
	shape := l.g.levels[k].base.Shape()
	out := make([][]int, 0, len(coords))
	for _, c := range coords {
		if ci, ok := l.g.compact(k, ndindex.Ravel(c, shape)); ok {
			out = append(out, []int{ci})
		}
	}
	return out
}

func (l *sparseLevel) Children(idx []int) ([][]int, error) {
	coord, err := l.unwrap(idx)
	if err != nil {
		return nil, err
	}
	kids, err := l.base.Children(coord)
	if err != nil {
		return nil, err
	}
	return l.filter(l.k+1, kids), nil
}

func (l *sparseLevel) Parent(idx []int) ([]int, error) {
	coord, err := l.unwrap(idx)
	if err != nil {
		return nil, err
	}
	parent, err := l.base.Parent(coord)
	if err != nil {
		return nil, err
	}
	shape := l.g.levels[l.k-1].base.Shape()
	ci, ok := l.g.compact(l.k-1, ndindex.Ravel(parent, shape))
	if !ok {
		return nil, fmt.Errorf("%w: parent %v of compact index %d is not retained at level %d", ErrIndexOutOfRange, parent, idx[0], l.k-1)
	}
	return []int{ci}, nil
}

func (l *sparseLevel) Neighborhood(idx, window []int) ([][]int, error) {
	coord, err := l.unwrap(idx)
	if err != nil {
		return nil, err
	}
	nbrs, err := l.base.Neighborhood(coord, broadcastWindow(window, l.base.NDim()))
	if err != nil {
		return nil, err
	}
	return l.filter(l.k, nbrs), nil
}

func (l *sparseLevel) Coord(idx []int) ([]float64, error) {
	coord, err := l.unwrap(idx)
	if err != nil {
		return nil, err
	}
	return l.base.Coord(coord)
}
