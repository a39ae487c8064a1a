package grid

import (
	"fmt"
	"slices"

	"github.com/NIFTy-PPL/niftygo/internal/ndindex"
)

// Ordering selects how Flat maps a wrapped grid's multi-dimensional
// coordinates onto one-dimensional indices.
type Ordering string

const (
	// OrderingSerial is plain row-major order per level.
	OrderingSerial Ordering = "serial"
	// OrderingNest orders a level's cells by their ancestry: all children
	// of one parent are contiguous and follow the parent's own nest
	// position, preserving locality across levels.
	OrderingNest Ordering = "nest"
)

// Flat wraps a grid and relabels every level's index space with a
// one-dimensional ordering. Only the labeling changes: children, parent
// and neighborhood results are the wrapped grid's results translated
// through the per-level bijection. Neighborhood windows keep the wrapped
// grid's dimensionality; a single extent is broadcast to all wrapped
// dimensions.
type Flat struct {
	base     Grid
	ordering Ordering
	levels   []*flatLevel
	nchild   []int // children per parent at each transition (nest only)
}

var _ Grid = (*Flat)(nil)

// NewFlat wraps base with the given ordering. Nest ordering requires the
// wrapped grid to subdivide every cell (it is unavailable for open grids,
// whose border cells have no children).
func NewFlat(base Grid, ordering Ordering) (*Flat, error) {
	if ordering != OrderingSerial && ordering != OrderingNest {
		return nil, fmt.Errorf("%w: unknown ordering %q", ErrInvalidConfig, ordering)
	}
	g := &Flat{base: base, ordering: ordering}
	depth := base.Depth()
	g.nchild = make([]int, depth+1)
	for k := 0; k <= depth; k++ {
		lvl, err := base.At(k)
		if err != nil {
			return nil, err
		}
		if k > 0 {
			prev, err := base.At(k - 1)
			if err != nil {
				return nil, err
			}
			if ordering == OrderingNest {
				if lvl.Size()%prev.Size() != 0 {
					return nil, fmt.Errorf("%w: nest ordering needs every cell subdivided, level %d size %d is not a multiple of level %d size %d",
						ErrInvalidConfig, k, lvl.Size(), k-1, prev.Size())
				}
				g.nchild[k] = lvl.Size() / prev.Size()
			}
		}
		g.levels = append(g.levels, &flatLevel{g: g, k: k, base: lvl})
	}
	return g, nil
}

// Depth returns the number of refinement steps of the wrapped grid.
func (g *Flat) Depth() int { return g.base.Depth() }

// Base returns the wrapped grid.
func (g *Flat) Base() Grid { return g.base }

// At returns the level descriptor for 0 <= level <= Depth().
func (g *Flat) At(level int) (Level, error) {
	if level < 0 || level >= len(g.levels) {
		return nil, fmt.Errorf("%w: level %d outside [0, %d]", ErrLevelOutOfRange, level, len(g.levels)-1)
	}
	return g.levels[level], nil
}

// flatten translates a wrapped-grid coordinate at level k into its flat
// index.
func (g *Flat) flatten(k int, coord []int) (int, error) {
	base := g.levels[k].base
	if len(coord) != base.NDim() || !ndindex.InBounds(coord, base.Shape()) {
		return 0, fmt.Errorf("%w: coordinate %v outside shape %v", ErrIndexOutOfRange, coord, base.Shape())
	}
	if g.ordering == OrderingSerial || k == 0 {
		return ndindex.Ravel(coord, base.Shape()), nil
	}
	parent, err := base.Parent(coord)
	if err != nil {
		return 0, err
	}
	siblings, err := g.levels[k-1].base.Children(parent)
	if err != nil {
		return 0, err
	}
	pos := -1
	for i, s := range siblings {
		if slices.Equal(s, coord) {
			pos = i
			break
		}
	}
	if pos < 0 {
		return 0, fmt.Errorf("%w: coordinate %v is not among the children of its parent %v", ErrIndexOutOfRange, coord, parent)
	}
	pf, err := g.flatten(k-1, parent)
	if err != nil {
		return 0, err
	}
	return pf*g.nchild[k] + pos, nil
}

// unflatten translates a flat index at level k back into a wrapped-grid
// coordinate.
func (g *Flat) unflatten(k, flat int) ([]int, error) {
	base := g.levels[k].base
	if flat < 0 || flat >= base.Size() {
		return nil, fmt.Errorf("%w: flat index %d outside [0, %d)", ErrIndexOutOfRange, flat, base.Size())
	}
	if g.ordering == OrderingSerial || k == 0 {
		return ndindex.Unravel(flat, base.Shape()), nil
	}
	parent, err := g.unflatten(k-1, flat/g.nchild[k])
	if err != nil {
		return nil, err
	}
	siblings, err := g.levels[k-1].base.Children(parent)
	if err != nil {
		return nil, err
	}
	return siblings[flat%g.nchild[k]], nil
}

// broadcastWindow expands a single window extent to a wrapped level's
// dimensionality, so callers that see the one-dimensional relabeling can
// still request a symmetric window of the underlying grid.
func broadcastWindow(window []int, ndim int) []int {
	if len(window) != 1 || ndim == 1 {
		return window
	}
	out := make([]int, ndim)
	for i := range out {
		out[i] = window[0]
	}
	return out
}

type flatLevel struct {
	g    *Flat
	k    int
	base Level
}

func (l *flatLevel) Shape() []int { return []int{l.base.Size()} }
func (l *flatLevel) Size() int    { return l.base.Size() }
func (l *flatLevel) NDim() int    { return 1 }

func (l *flatLevel) unwrap(idx []int) ([]int, error) {
	if len(idx) != 1 {
		return nil, fmt.Errorf("%w: flat index has one component, got %d", ErrIndexOutOfRange, len(idx))
	}
	return l.g.unflatten(l.k, idx[0])
}

func (l *flatLevel) wrapAll(k int, coords [][]int) ([][]int, error) {
	out := make([][]int, len(coords))
	for i, c := range coords {
		f, err := l.g.flatten(k, c)
		if err != nil {
			return nil, err
		}
		out[i] = []int{f}
	}
	return out, nil
}

func (l *flatLevel) Children(idx []int) ([][]int, error) {
	coord, err := l.unwrap(idx)
	if err != nil {
		return nil, err
	}
	kids, err := l.base.Children(coord)
	if err != nil {
		return nil, err
	}
	return l.wrapAll(l.k+1, kids)
}

func (l *flatLevel) Parent(idx []int) ([]int, error) {
	coord, err := l.unwrap(idx)
	if err != nil {
		return nil, err
	}
	parent, err := l.base.Parent(coord)
	if err != nil {
		return nil, err
	}
	f, err := l.g.flatten(l.k-1, parent)
	if err != nil {
		return nil, err
	}
	return []int{f}, nil
}

func (l *flatLevel) Neighborhood(idx, window []int) ([][]int, error) {
	coord, err := l.unwrap(idx)
	if err != nil {
		return nil, err
	}
	nbrs, err := l.base.Neighborhood(coord, broadcastWindow(window, l.base.NDim()))
	if err != nil {
		return nil, err
	}
	return l.wrapAll(l.k, nbrs)
}

func (l *flatLevel) Coord(idx []int) ([]float64, error) {
	coord, err := l.unwrap(idx)
	if err != nil {
		return nil, err
	}
	return l.base.Coord(coord)
}
