package kernel

import (
	"gonum.org/v1/gonum/mat"

	"github.com/NIFTy-PPL/niftygo/cache"
)

// FrozenKernel is the precomputed, immutable form of an ICRefine: a dense
// level-0 factor plus per-transition refinement entries whose matrices
// were memoized at freeze time. Apply is pure and deterministic; repeated
// calls with identical inputs return bit-identical outputs regardless of
// the cache's eviction history, because every entry pins its matrices.
type FrozenKernel struct {
	shapes  [][]int
	sizes   []int
	base    *mat.TriDense
	entries [][]refEntry
	cache   *cache.Approx[*refMatrices]
}

// Depth returns the number of refinement transitions.
func (fk *FrozenKernel) Depth() int { return len(fk.entries) }

// Shapes returns the per-level index shapes, for sizing coefficient
// arrays. The result must not be modified.
func (fk *FrozenKernel) Shapes() [][]int { return fk.shapes }

// Sizes returns the per-level flat sizes. The result must not be
// modified.
func (fk *FrozenKernel) Sizes() []int { return fk.sizes }

// CacheStats returns the freeze-time cache counters. Zero for kernels
// loaded from a snapshot.
func (fk *FrozenKernel) CacheStats() cache.Stats {
	if fk.cache == nil {
		return cache.Stats{}
	}
	return fk.cache.Stats()
}

// Apply maps per-level white-noise coefficients (row-major flattened, one
// slice per level) to per-level correlated field values. The last slice
// of the result is the finest level's field.
func (fk *FrozenKernel) Apply(coeffs [][]float64) ([][]float64, error) {
	if len(coeffs) != len(fk.sizes) {
		return nil, &ErrShapeMismatch{Level: -1, Expected: len(fk.sizes), Actual: len(coeffs)}
	}
	for lvl, xs := range coeffs {
		if len(xs) != fk.sizes[lvl] {
			return nil, &ErrShapeMismatch{Level: lvl, Expected: fk.sizes[lvl], Actual: len(xs)}
		}
	}

	out := make([][]float64, len(fk.sizes))
	out[0] = make([]float64, fk.sizes[0])
	base := mat.NewVecDense(fk.sizes[0], out[0])
	base.MulVec(fk.base, mat.NewVecDense(fk.sizes[0], coeffs[0]))

	for lvl, entries := range fk.entries {
		next := make([]float64, fk.sizes[lvl+1])
		for _, e := range entries {
			nw, nc := len(e.window), len(e.children)
			win := make([]float64, nw)
			for j, w := range e.window {
				win[j] = out[lvl][w]
			}
			xi := make([]float64, nc)
			for i, ci := range e.children {
				xi[i] = coeffs[lvl+1][ci]
			}

			var smooth, excite mat.VecDense
			smooth.MulVec(e.mats.olf, mat.NewVecDense(nw, win))
			excite.MulVec(e.mats.fks, mat.NewVecDense(nc, xi))
			for i, ci := range e.children {
				next[ci] = smooth.AtVec(i) + excite.AtVec(i)
			}
		}
		out[lvl+1] = next
	}
	return out, nil
}

// Finest applies the kernel and returns only the deepest level's field.
func (fk *FrozenKernel) Finest(coeffs [][]float64) ([]float64, error) {
	out, err := fk.Apply(coeffs)
	if err != nil {
		return nil, err
	}
	return out[len(out)-1], nil
}
