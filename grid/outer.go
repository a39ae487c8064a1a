package grid

import "fmt"

// Outer composes independent grids into one joint index space: the level-k
// index of the composite is the concatenation of each sub-grid's level-k
// index (a sub-grid shallower than k contributes its deepest level and no
// longer subdivides). Children, parent and neighborhood are computed per
// sub-grid and combined as the outer product of the per-sub-grid results;
// windows concatenate the per-sub-grid window extents the same way.
type Outer struct {
	subs   []Grid
	depth  int
	levels []*outerLevel
}

var _ Grid = (*Outer)(nil)

// NewOuter composes the given sub-grids. At least one is required; the
// composite depth is the maximum sub-grid depth.
func NewOuter(subs ...Grid) (*Outer, error) {
	if len(subs) == 0 {
		return nil, fmt.Errorf("%w: outer grid needs at least one sub-grid", ErrInvalidConfig)
	}
	depth := 0
	for _, s := range subs {
		if s.Depth() > depth {
			depth = s.Depth()
		}
	}
	g := &Outer{subs: subs, depth: depth}
	for k := 0; k <= depth; k++ {
		ol := &outerLevel{k: k}
		for _, s := range subs {
			sk := min(k, s.Depth())
			lvl, err := s.At(sk)
			if err != nil {
				return nil, err
			}
			ol.subs = append(ol.subs, lvl)
			ol.ndims = append(ol.ndims, lvl.NDim())
			ol.shape = append(ol.shape, lvl.Shape()...)
			// A saturated sub-grid keeps its deepest level across the
			// remaining transitions.
			ol.splitBelow = append(ol.splitBelow, k < s.Depth())
			ol.splitAbove = append(ol.splitAbove, k > 0 && k <= s.Depth())
		}
		ol.finest = k == depth
		g.levels = append(g.levels, ol)
	}
	return g, nil
}

// Depth returns the number of refinement steps of the deepest sub-grid.
func (g *Outer) Depth() int { return g.depth }

// Subs returns the composed sub-grids. The result must not be modified.
func (g *Outer) Subs() []Grid { return g.subs }

// At returns the level descriptor for 0 <= level <= Depth().
func (g *Outer) At(level int) (Level, error) {
	if level < 0 || level >= len(g.levels) {
		return nil, fmt.Errorf("%w: level %d outside [0, %d]", ErrLevelOutOfRange, level, len(g.levels)-1)
	}
	return g.levels[level], nil
}

type outerLevel struct {
	k          int
	subs       []Level
	ndims      []int
	shape      []int
	splitBelow []bool // whether each sub-grid still subdivides below this level
	splitAbove []bool // whether each sub-grid was subdivided above this level
	finest     bool
}

func (l *outerLevel) Shape() []int { return l.shape }
func (l *outerLevel) NDim() int    { return len(l.shape) }

func (l *outerLevel) Size() int {
	n := 1
	for _, s := range l.shape {
		n *= s
	}
	return n
}

// split cuts a concatenated index into per-sub-grid slices.
func (l *outerLevel) split(idx []int) ([][]int, error) {
	if len(idx) != len(l.shape) {
		return nil, fmt.Errorf("%w: got %d index components, level has %d dimensions", ErrIndexOutOfRange, len(idx), len(l.shape))
	}
	parts := make([][]int, len(l.subs))
	at := 0
	for i, nd := range l.ndims {
		parts[i] = idx[at : at+nd]
		at += nd
	}
	return parts, nil
}

// product concatenates one choice per sub-grid from parts, enumerating
// all combinations in row-major order (first sub-grid slowest).
func product(parts [][][]int) [][]int {
	out := [][]int{{}}
	for _, choices := range parts {
		next := make([][]int, 0, len(out)*len(choices))
		for _, prefix := range out {
			for _, c := range choices {
				row := make([]int, 0, len(prefix)+len(c))
				row = append(row, prefix...)
				row = append(row, c...)
				next = append(next, row)
			}
		}
		out = next
	}
	return out
}

func (l *outerLevel) Children(idx []int) ([][]int, error) {
	if l.finest {
		return nil, fmt.Errorf("%w: finest level has no children", ErrLevelOutOfRange)
	}
	parts, err := l.split(idx)
	if err != nil {
		return nil, err
	}
	per := make([][][]int, len(l.subs))
	for i, sub := range l.subs {
		if !l.splitBelow[i] {
			per[i] = [][]int{parts[i]}
			continue
		}
		kids, err := sub.Children(parts[i])
		if err != nil {
			return nil, err
		}
		per[i] = kids
	}
	return product(per), nil
}

func (l *outerLevel) Parent(idx []int) ([]int, error) {
	if l.k == 0 {
		return nil, fmt.Errorf("%w: level 0 has no parent", ErrLevelOutOfRange)
	}
	parts, err := l.split(idx)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(idx))
	for i, sub := range l.subs {
		if !l.splitAbove[i] {
			out = append(out, parts[i]...)
			continue
		}
		p, err := sub.Parent(parts[i])
		if err != nil {
			return nil, err
		}
		out = append(out, p...)
	}
	return out, nil
}

func (l *outerLevel) Neighborhood(idx, window []int) ([][]int, error) {
	parts, err := l.split(idx)
	if err != nil {
		return nil, err
	}
	wparts, err := l.split(window)
	if err != nil {
		return nil, fmt.Errorf("%w: window %v does not match %d dimensions", ErrInvalidConfig, window, len(l.shape))
	}
	per := make([][][]int, len(l.subs))
	for i, sub := range l.subs {
		nb, err := sub.Neighborhood(parts[i], wparts[i])
		if err != nil {
			return nil, err
		}
		per[i] = nb
	}
	return product(per), nil
}

func (l *outerLevel) Coord(idx []int) ([]float64, error) {
	parts, err := l.split(idx)
	if err != nil {
		return nil, err
	}
	var out []float64
	for i, sub := range l.subs {
		c, err := sub.Coord(parts[i])
		if err != nil {
			return nil, err
		}
		out = append(out, c...)
	}
	return out, nil
}
