package kernel

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/NIFTy-PPL/niftygo/cache"
	"github.com/NIFTy-PPL/niftygo/covariance"
	"github.com/NIFTy-PPL/niftygo/grid"
	"github.com/NIFTy-PPL/niftygo/internal/ndindex"
)

// ICRefine evaluates a covariance function between cell centers of a grid
// across all refinement levels, producing the windowed refinement
// matrices of an iterative charted refinement. ICRefine itself is cheap
// to construct; the matrix work happens in Freeze (cached) or Apply
// (uncached).
type ICRefine struct {
	grid   grid.Grid
	cov    covariance.Func
	window []int
	log    *slog.Logger
}

// New constructs an ICRefine for the given grid and covariance function.
func New(g grid.Grid, cov covariance.Func, opts ...Option) (*ICRefine, error) {
	if g == nil || cov == nil {
		return nil, fmt.Errorf("%w: grid and covariance are required", ErrInvalidConfig)
	}
	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}

	lvl0, err := g.At(0)
	if err != nil {
		return nil, err
	}
	ndim := lvl0.NDim()
	window := o.WindowSize
	switch len(window) {
	case 0:
		window = make([]int, ndim)
		for i := range window {
			window[i] = 3
		}
	case 1:
		w := window[0]
		window = make([]int, ndim)
		for i := range window {
			window[i] = w
		}
	case ndim:
	default:
		return nil, fmt.Errorf("%w: window %v does not match %d index dimensions", ErrInvalidConfig, o.WindowSize, ndim)
	}
	for _, w := range window {
		if w < 1 {
			return nil, fmt.Errorf("%w: non-positive window extent %d", ErrInvalidConfig, w)
		}
	}

	log := o.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ICRefine{grid: g, cov: cov, window: window, log: log}, nil
}

// Grid returns the grid the kernel refines over.
func (k *ICRefine) Grid() grid.Grid { return k.grid }

// WindowSize returns the per-dimension neighborhood extents.
func (k *ICRefine) WindowSize() []int { return k.window }

// Freeze precomputes the refinement matrices for every cell of every
// level, memoizing them in a bounded tolerance-aware LRU cache, and
// returns an immutable FrozenKernel. Within the cache's tolerance budget
// the frozen kernel reproduces the unfrozen kernel's output.
func (k *ICRefine) Freeze(opts ...FreezeOption) (*FrozenKernel, error) {
	o := defaultFreezeOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.BufferSize <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d must be positive", ErrInvalidConfig, o.BufferSize)
	}
	c, err := cache.New[*refMatrices](o.BufferSize, o.RTol, o.ATol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return k.build(c, o.UseDistances)
}

// Apply evaluates the unfrozen kernel: it recomputes every refinement
// matrix from the covariance function and applies the transform. Frozen
// kernels should be preferred for repeated evaluation.
func (k *ICRefine) Apply(coeffs [][]float64) ([][]float64, error) {
	fk, err := k.build(nil, false)
	if err != nil {
		return nil, err
	}
	return fk.Apply(coeffs)
}

// refMatrices is one memoized refinement: the optimal linear filter on
// the coarse window and the Cholesky factor of the fine conditional
// covariance.
type refMatrices struct {
	olf *mat.Dense
	fks *mat.TriDense
}

// refEntry binds one coarse cell's matrices to the flat indices it reads
// (window, at the coarse level) and writes (children, at the fine level).
type refEntry struct {
	window   []int
	children []int
	mats     *refMatrices
}

// build constructs the complete per-level refinement tables. A nil cache
// disables memoization. Level tables are independent of one another and
// are built concurrently; the cache serializes its own access.
func (k *ICRefine) build(c *cache.Approx[*refMatrices], useDistances bool) (*FrozenKernel, error) {
	depth := k.grid.Depth()
	levels := make([]grid.Level, depth+1)
	for lvl := range levels {
		l, err := k.grid.At(lvl)
		if err != nil {
			return nil, err
		}
		levels[lvl] = l
	}

	fk := &FrozenKernel{
		shapes:  make([][]int, depth+1),
		sizes:   make([]int, depth+1),
		entries: make([][]refEntry, depth),
		cache:   c,
	}
	for lvl, l := range levels {
		fk.shapes[lvl] = l.Shape()
		fk.sizes[lvl] = l.Size()
	}

	var eg errgroup.Group
	eg.Go(func() error {
		base, err := k.baseFactor(levels[0])
		if err != nil {
			return err
		}
		fk.base = base
		return nil
	})
	for lvl := 0; lvl < depth; lvl++ {
		lvl := lvl
		eg.Go(func() error {
			entries, err := k.buildTransition(levels[lvl], levels[lvl+1], c, useDistances)
			if err != nil {
				return fmt.Errorf("level %d: %w", lvl, err)
			}
			fk.entries[lvl] = entries
			k.log.Debug("refinement level frozen", "level", lvl, "entries", len(entries))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// Every fine cell must be written by exactly one entry, otherwise the
	// transform would silently leave zeros in the output.
	for lvl := 0; lvl < depth; lvl++ {
		covered := make([]bool, fk.sizes[lvl+1])
		n := 0
		for _, e := range fk.entries[lvl] {
			for _, ci := range e.children {
				if !covered[ci] {
					covered[ci] = true
					n++
				}
			}
		}
		if n != fk.sizes[lvl+1] {
			return nil, fmt.Errorf("%w: level %d covers %d of %d cells", ErrUncoveredCell, lvl+1, n, fk.sizes[lvl+1])
		}
	}
	return fk, nil
}

// baseFactor computes the dense Cholesky factor of the full level-0
// covariance.
func (k *ICRefine) baseFactor(lvl0 grid.Level) (*mat.TriDense, error) {
	size := lvl0.Size()
	coords := make([][]float64, size)
	for f := 0; f < size; f++ {
		c, err := lvl0.Coord(ndindex.Unravel(f, lvl0.Shape()))
		if err != nil {
			return nil, err
		}
		coords[f] = c
	}
	sym := mat.NewSymDense(size, nil)
	for i := 0; i < size; i++ {
		for j := i; j < size; j++ {
			sym.SetSym(i, j, k.cov(coords[i], coords[j]))
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(sym) {
		return nil, fmt.Errorf("%w: level 0 covariance of %d cells", ErrNotPositiveDefinite, size)
	}
	l := mat.NewTriDense(size, mat.Lower, nil)
	chol.LTo(l)
	return l, nil
}

// buildTransition computes one refinement table: for every coarse cell
// with children, the window/children index lists and the (possibly
// cached) refinement matrices.
func (k *ICRefine) buildTransition(coarse, fine grid.Level, c *cache.Approx[*refMatrices], useDistances bool) ([]refEntry, error) {
	var entries []refEntry
	coarseShape := coarse.Shape()
	fineShape := fine.Shape()
	for f := 0; f < coarse.Size(); f++ {
		idx := ndindex.Unravel(f, coarseShape)
		kids, err := coarse.Children(idx)
		if err != nil {
			if errors.Is(err, grid.ErrIndexOutOfRange) {
				continue // reserved border cells of open grids
			}
			return nil, err
		}
		if len(kids) == 0 {
			continue // all children dropped by a sparse mapping
		}
		nbrs, err := coarse.Neighborhood(idx, k.window)
		if err != nil {
			return nil, err
		}

		wc := make([][]float64, len(nbrs))
		for j, nb := range nbrs {
			if wc[j], err = coarse.Coord(nb); err != nil {
				return nil, err
			}
		}
		kc := make([][]float64, len(kids))
		for i, kid := range kids {
			if kc[i], err = fine.Coord(kid); err != nil {
				return nil, err
			}
		}

		var mats *refMatrices
		if c != nil {
			sig := signature(wc, kc, useDistances)
			cached, ok := c.Lookup(sig)
			if !ok {
				if mats, err = computeMatrices(k.cov, wc, kc); err != nil {
					return nil, err
				}
				c.Insert(sig, mats)
			} else {
				mats = cached
			}
		} else if mats, err = computeMatrices(k.cov, wc, kc); err != nil {
			return nil, err
		}

		e := refEntry{
			window:   make([]int, len(nbrs)),
			children: make([]int, len(kids)),
			mats:     mats,
		}
		for j, nb := range nbrs {
			e.window[j] = ndindex.Ravel(nb, coarseShape)
		}
		for i, kid := range kids {
			e.children[i] = ndindex.Ravel(kid, fineShape)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// signature summarizes a window/children geometry for cache matching.
// With useDistances the key is all pairwise distances, which collapses
// congruent geometries regardless of position or orientation; otherwise
// it is the raw offsets relative to the first window cell.
func signature(wc, kc [][]float64, useDistances bool) []float64 {
	if useDistances {
		sig := make([]float64, 0, len(wc)*(len(wc)-1)/2+len(kc)*len(wc)+len(kc)*(len(kc)-1)/2)
		for j := range wc {
			for l := j + 1; l < len(wc); l++ {
				sig = append(sig, covariance.Distance(wc[j], wc[l]))
			}
		}
		for i := range kc {
			for j := range wc {
				sig = append(sig, covariance.Distance(kc[i], wc[j]))
			}
		}
		for i := range kc {
			for l := i + 1; l < len(kc); l++ {
				sig = append(sig, covariance.Distance(kc[i], kc[l]))
			}
		}
		return sig
	}
	ref := wc[0]
	sig := make([]float64, 0, (len(wc)+len(kc))*len(ref))
	for _, c := range wc {
		for d := range c {
			sig = append(sig, c[d]-ref[d])
		}
	}
	for _, c := range kc {
		for d := range c {
			sig = append(sig, c[d]-ref[d])
		}
	}
	return sig
}

// computeMatrices assembles the covariance blocks for one coarse cell and
// factors them into the optimal linear filter and the fine conditional
// Cholesky factor. Non-finite covariance values propagate unchanged into
// the factorization, which then fails; kernels must be well defined on
// the grid's geometry.
func computeMatrices(cov covariance.Func, wc, kc [][]float64) (*refMatrices, error) {
	n, m := len(wc), len(kc)

	ccc := mat.NewSymDense(n, nil)
	for j := 0; j < n; j++ {
		for l := j; l < n; l++ {
			ccc.SetSym(j, l, cov(wc[j], wc[l]))
		}
	}
	cfc := mat.NewDense(m, n, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			cfc.Set(i, j, cov(kc[i], wc[j]))
		}
	}
	cff := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		for l := i; l < m; l++ {
			cff.SetSym(i, l, cov(kc[i], kc[l]))
		}
	}

	var chol mat.Cholesky
	if !chol.Factorize(ccc) {
		return nil, fmt.Errorf("%w: window covariance of %d cells", ErrNotPositiveDefinite, n)
	}
	var solved mat.Dense // Ccc^-1 Cfc^T, n x m
	if err := chol.SolveTo(&solved, cfc.T()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPositiveDefinite, err)
	}
	olf := mat.NewDense(m, n, nil)
	olf.CloneFrom(solved.T())

	// Fine conditional covariance: Cff - olf Cfc^T, symmetrized against
	// roundoff before factorization.
	var prod mat.Dense
	prod.Mul(olf, cfc.T())
	post := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		for l := i; l < m; l++ {
			v := cff.At(i, l) - 0.5*(prod.At(i, l)+prod.At(l, i))
			post.SetSym(i, l, v)
		}
	}
	var cholPost mat.Cholesky
	if !cholPost.Factorize(post) {
		return nil, fmt.Errorf("%w: fine conditional covariance of %d cells", ErrNotPositiveDefinite, m)
	}
	fks := mat.NewTriDense(m, mat.Lower, nil)
	cholPost.LTo(fks)
	return &refMatrices{olf: olf, fks: fks}, nil
}
