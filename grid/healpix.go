package grid

import (
	"fmt"

	"github.com/NIFTy-PPL/niftygo/healpix"
)

// HEALPix is a hierarchy of HEALPix spherical pixelizations in nested
// ordering. Level k has resolution nside0*2^k, so each refinement step
// subdivides every pixel into four children. Indices are one-dimensional
// nested pixel numbers; coordinates are unit vectors in R^3.
type HEALPix struct {
	nside0 int
	depth  int
	levels []*healpixLevel
}

var _ Grid = (*HEALPix)(nil)

// NewHEALPix constructs a HEALPix grid with depth+1 levels. nside0 must
// be a power of two.
func NewHEALPix(nside0, depth int) (*HEALPix, error) {
	if !healpix.ValidNside(nside0) {
		return nil, fmt.Errorf("%w: nside0 %d is not a power of two", ErrInvalidConfig, nside0)
	}
	if depth < 0 {
		return nil, fmt.Errorf("%w: negative depth %d", ErrInvalidConfig, depth)
	}
	levels := make([]*healpixLevel, depth+1)
	nside := nside0
	for k := range levels {
		levels[k] = &healpixLevel{
			nside:    nside,
			coarsest: k == 0,
			finest:   k == depth,
		}
		nside *= 2
	}
	return &HEALPix{nside0: nside0, depth: depth, levels: levels}, nil
}

// Depth returns the number of refinement steps.
func (g *HEALPix) Depth() int { return g.depth }

// Nside0 returns the resolution parameter of the coarsest level.
func (g *HEALPix) Nside0() int { return g.nside0 }

// At returns the level descriptor for 0 <= level <= Depth().
func (g *HEALPix) At(level int) (Level, error) {
	if level < 0 || level > g.depth {
		return nil, fmt.Errorf("%w: level %d outside [0, %d]", ErrLevelOutOfRange, level, g.depth)
	}
	return g.levels[level], nil
}

// Amend returns a new grid with addedDepth extra refinement levels.
// Shared levels answer every query identically to g.
func (g *HEALPix) Amend(addedDepth int) (*HEALPix, error) {
	if addedDepth < 0 {
		return nil, fmt.Errorf("%w: negative added depth %d", ErrInvalidConfig, addedDepth)
	}
	return NewHEALPix(g.nside0, g.depth+addedDepth)
}

type healpixLevel struct {
	nside    int
	coarsest bool
	finest   bool
}

func (l *healpixLevel) Shape() []int { return []int{healpix.NPix(l.nside)} }
func (l *healpixLevel) Size() int    { return healpix.NPix(l.nside) }
func (l *healpixLevel) NDim() int    { return 1 }

func (l *healpixLevel) checkIndex(idx []int) error {
	if len(idx) != 1 {
		return fmt.Errorf("%w: HEALPix index has one component, got %d", ErrIndexOutOfRange, len(idx))
	}
	if err := healpix.CheckPix(l.nside, idx[0]); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexOutOfRange, err)
	}
	return nil
}

func (l *healpixLevel) Children(idx []int) ([][]int, error) {
	if l.finest {
		return nil, fmt.Errorf("%w: finest level has no children", ErrLevelOutOfRange)
	}
	if err := l.checkIndex(idx); err != nil {
		return nil, err
	}
	out := make([][]int, 4)
	for c := range out {
		out[c] = []int{idx[0]*4 + c}
	}
	return out, nil
}

func (l *healpixLevel) Parent(idx []int) ([]int, error) {
	if l.coarsest {
		return nil, fmt.Errorf("%w: level 0 has no parent", ErrLevelOutOfRange)
	}
	if err := l.checkIndex(idx); err != nil {
		return nil, err
	}
	return []int{idx[0] / 4}, nil
}

// Neighborhood returns the pixel itself followed by its ring-adjacent
// neighbors, truncated to the requested window count. The window may be
// at most 9 (self plus eight neighbors); the polar corner pixels have
// only seven neighbors, so the result may be one entry short.
func (l *healpixLevel) Neighborhood(idx, window []int) ([][]int, error) {
	if err := l.checkIndex(idx); err != nil {
		return nil, err
	}
	if len(window) != 1 {
		return nil, fmt.Errorf("%w: HEALPix window has one extent, got %v", ErrInvalidConfig, window)
	}
	w := window[0]
	if w < 1 || w > healpix.NumNeighbors+1 {
		return nil, fmt.Errorf("%w: window extent %d outside [1, %d]", ErrInvalidConfig, w, healpix.NumNeighbors+1)
	}
	nb, err := healpix.Neighbors(l.nside, idx[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexOutOfRange, err)
	}
	out := make([][]int, 0, w)
	out = append(out, []int{idx[0]})
	for _, p := range nb {
		if len(out) == w {
			break
		}
		if p < 0 {
			continue
		}
		out = append(out, []int{p})
	}
	// At nside 1 a pixel can border the same face twice.
	return dedupe(out), nil
}

func (l *healpixLevel) Coord(idx []int) ([]float64, error) {
	if err := l.checkIndex(idx); err != nil {
		return nil, err
	}
	v, err := healpix.PixToVec(l.nside, idx[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexOutOfRange, err)
	}
	return v[:], nil
}
