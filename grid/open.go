package grid

import "fmt"

// Open is a Cartesian refinement grid with a fixed number of border cells
// reserved at both ends of every dimension on every level. The border is
// a storage reservation for windowed access near the true image boundary,
// not a coordinate shift: only the interior of a level is subdivided, so
// each refinement sheds one border band. Callers size shape0 so that the
// deepest level still covers the target region (see the kernel package).
type Open struct {
	shape0  []int
	splits  [][]int
	padding []int
	levels  []*cartesianLevel
}

var _ Grid = (*Open)(nil)

// NewOpen constructs an open grid. Padding is one non-negative count per
// dimension; splits follow the same conventions as New.
func NewOpen(shape0 []int, splits [][]int, padding []int) (*Open, error) {
	norm, err := normalizeSplits(shape0, splits)
	if err != nil {
		return nil, err
	}
	if len(padding) != len(shape0) {
		return nil, fmt.Errorf("%w: padding %v does not match shape %v", ErrInvalidConfig, padding, shape0)
	}
	levels, err := buildCartesianLevels(shape0, norm, padding)
	if err != nil {
		return nil, err
	}
	return &Open{shape0: shape0, splits: norm, padding: padding, levels: levels}, nil
}

// Depth returns the number of refinement steps.
func (g *Open) Depth() int { return len(g.splits) }

// At returns the level descriptor for 0 <= level <= Depth().
func (g *Open) At(level int) (Level, error) {
	if level < 0 || level >= len(g.levels) {
		return nil, fmt.Errorf("%w: level %d outside [0, %d]", ErrLevelOutOfRange, level, len(g.levels)-1)
	}
	return g.levels[level], nil
}

// Padding returns the reserved border cell count per dimension.
func (g *Open) Padding() []int { return g.padding }

// Amend returns a new grid with the given extra splits appended, keeping
// the padding. Shared levels answer every query identically to g.
func (g *Open) Amend(extra ...[]int) (*Open, error) {
	all := make([][]int, 0, len(g.splits)+len(extra))
	all = append(all, g.splits...)
	all = append(all, extra...)
	return NewOpen(g.shape0, all, g.padding)
}

// OpenShape0 computes the level-0 shape an open grid needs so that after
// depth refinements with the given uniform split it still covers a target
// output shape, with padding sized for a centered window of the given
// extent. This mirrors how callers provision padded charts.
func OpenShape0(target []int, split, depth, window int) ([]int, int) {
	padding := window / 2
	// The border allowance accumulates 2/split of a coarse cell per
	// refinement; truncating the integer ratio would under-provision any
	// split above two.
	border := int((2 + 2/float64(split)) * float64(padding))
	shape0 := make([]int, len(target))
	for i, s := range target {
		d := 1
		for k := 0; k < depth; k++ {
			d *= split
		}
		shape0[i] = s/d + border + 1
	}
	return shape0, padding
}
