package grid

import "fmt"

// Grid is an immutable stack of refinement levels. Depth is the number of
// refinement steps, so a grid exposes Depth()+1 levels.
type Grid interface {
	// Depth returns the number of refinement steps.
	Depth() int

	// At returns the level descriptor for 0 <= level <= Depth().
	At(level int) (Level, error)
}

// Regular is a Cartesian grid produced by successive integer splitting of
// an initial shape.
type Regular struct {
	shape0 []int
	splits [][]int
	levels []*cartesianLevel
}

var _ Grid = (*Regular)(nil)

// New constructs a regular grid with len(splits)+1 levels. Each split is
// either one factor per dimension or a single factor broadcast to all
// dimensions.
func New(shape0 []int, splits ...[]int) (*Regular, error) {
	norm, err := normalizeSplits(shape0, splits)
	if err != nil {
		return nil, err
	}
	zero := make([]int, len(shape0))
	levels, err := buildCartesianLevels(shape0, norm, zero)
	if err != nil {
		return nil, err
	}
	return &Regular{shape0: shape0, splits: norm, levels: levels}, nil
}

// Depth returns the number of refinement steps.
func (g *Regular) Depth() int { return len(g.splits) }

// At returns the level descriptor for 0 <= level <= Depth().
func (g *Regular) At(level int) (Level, error) {
	if level < 0 || level >= len(g.levels) {
		return nil, fmt.Errorf("%w: level %d outside [0, %d]", ErrLevelOutOfRange, level, len(g.levels)-1)
	}
	return g.levels[level], nil
}

// Amend returns a new grid with the given extra splits appended. The
// first Depth()+1 levels answer every query identically to g.
func (g *Regular) Amend(extra ...[]int) (*Regular, error) {
	all := make([][]int, 0, len(g.splits)+len(extra))
	all = append(all, g.splits...)
	all = append(all, extra...)
	return New(g.shape0, all...)
}

// normalizeSplits validates shape0 and expands scalar splits to one factor
// per dimension.
func normalizeSplits(shape0 []int, splits [][]int) ([][]int, error) {
	if len(shape0) == 0 {
		return nil, fmt.Errorf("%w: empty shape", ErrInvalidConfig)
	}
	for _, s := range shape0 {
		if s <= 0 {
			return nil, fmt.Errorf("%w: non-positive extent %d in shape %v", ErrInvalidConfig, s, shape0)
		}
	}
	out := make([][]int, len(splits))
	for k, sp := range splits {
		switch len(sp) {
		case len(shape0):
			out[k] = sp
		case 1:
			b := make([]int, len(shape0))
			for i := range b {
				b[i] = sp[0]
			}
			out[k] = b
		default:
			return nil, fmt.Errorf("%w: split %v has %d factors, shape %v has %d dimensions", ErrInvalidConfig, sp, len(sp), shape0, len(shape0))
		}
		for _, f := range out[k] {
			if f <= 0 {
				return nil, fmt.Errorf("%w: non-positive split factor %d", ErrInvalidConfig, f)
			}
		}
	}
	return out, nil
}

// buildCartesianLevels derives the level stack from shape0 and splits.
// The padding is reserved at both ends of every dimension and removed
// before splitting, so open grids shed one border band per refinement.
func buildCartesianLevels(shape0 []int, splits [][]int, padding []int) ([]*cartesianLevel, error) {
	for i, p := range padding {
		if p < 0 {
			return nil, fmt.Errorf("%w: negative padding %d", ErrInvalidConfig, p)
		}
		if shape0[i] <= 2*p {
			return nil, fmt.Errorf("%w: shape %v too small for padding %v", ErrInvalidConfig, shape0, padding)
		}
	}
	ndim := len(shape0)
	levels := make([]*cartesianLevel, len(splits)+1)

	shape := shape0
	origin := make([]float64, ndim)
	width := make([]float64, ndim)
	for i := range width {
		width[i] = 1
	}
	for k := range levels {
		lvl := &cartesianLevel{
			shape:   shape,
			padding: padding,
			origin:  origin,
			width:   width,
		}
		if k > 0 {
			lvl.splitAbove = splits[k-1]
		}
		if k < len(splits) {
			lvl.splitBelow = splits[k]
		}
		levels[k] = lvl

		if k == len(splits) {
			break
		}
		next := make([]int, ndim)
		nextOrigin := make([]float64, ndim)
		nextWidth := make([]float64, ndim)
		for i := range next {
			interior := shape[i] - 2*padding[i]
			if interior <= 0 {
				return nil, fmt.Errorf("%w: level %d shape %v consumed by padding %v", ErrInvalidConfig, k, shape, padding)
			}
			next[i] = interior * splits[k][i]
			nextOrigin[i] = origin[i] + float64(padding[i])*width[i]
			nextWidth[i] = width[i] / float64(splits[k][i])
		}
		shape, origin, width = next, nextOrigin, nextWidth
	}
	return levels, nil
}
