// Package ndindex provides n-dimensional index arithmetic shared by the
// grid and kernel packages: row-major ravel/unravel, stride computation,
// and Cartesian offset enumeration for windowed queries.
package ndindex

// Size returns the number of cells in a shape (product of extents).
// An empty shape has size 1.
func Size(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// Strides returns the row-major strides for shape. The last dimension is
// the fastest varying.
func Strides(shape []int) []int {
	st := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		st[i] = acc
		acc *= shape[i]
	}
	return st
}

// Ravel converts a multi-dimensional coordinate into a flat row-major
// index. The coordinate must be in-bounds for shape.
func Ravel(coord, shape []int) int {
	flat := 0
	for i, c := range coord {
		flat = flat*shape[i] + c
	}
	return flat
}

// Unravel converts a flat row-major index back into a multi-dimensional
// coordinate.
func Unravel(flat int, shape []int) []int {
	coord := make([]int, len(shape))
	for i := len(shape) - 1; i >= 0; i-- {
		coord[i] = flat % shape[i]
		flat /= shape[i]
	}
	return coord
}

// InBounds reports whether every component of coord lies in [0, shape[i]).
func InBounds(coord, shape []int) bool {
	for i, c := range coord {
		if c < 0 || c >= shape[i] {
			return false
		}
	}
	return true
}

// Enumerate returns all coordinates of shape in row-major order. The
// result has Size(shape) entries of len(shape) components each.
func Enumerate(shape []int) [][]int {
	n := Size(shape)
	out := make([][]int, n)
	for f := 0; f < n; f++ {
		out[f] = Unravel(f, shape)
	}
	return out
}

// WindowOffsets returns the per-cell offsets of a centered window, one
// entry per window cell in row-major order. For an extent w the offsets
// along that dimension are -w/2 .. w-1-w/2, so odd extents are symmetric
// around zero and even extents carry one extra cell below.
func WindowOffsets(window []int) [][]int {
	out := Enumerate(window)
	for _, off := range out {
		for i := range off {
			off[i] -= window[i] / 2
		}
	}
	return out
}

// Clamp returns v limited to the inclusive range [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
