// Package niftygo provides multi-resolution grid indexing and iterative
// charted refinement (ICR) kernels for Gaussian-process-like priors over
// structured and unstructured spaces.
//
// The heavy lifting lives in the subpackages:
//
//   - grid: Cartesian, open (border-padded), HEALPix, flattened, sparse
//     and outer-product grids with children/parent/neighborhood queries
//   - healpix: nested-scheme spherical pixel arithmetic
//   - covariance: stationary covariance functions (Matérn family,
//     squared exponential)
//   - kernel: refinement-matrix construction, tolerance-aware freezing
//     and snapshot persistence
//   - cache: the bounded approximate-key LRU backing frozen kernels
//
// This package ties them together with a fluent builder:
//
//	g, err := grid.NewOpen([]int{12, 12}, [][]int{{2}, {2}}, []int{1, 1})
//	if err != nil {
//		panic(err)
//	}
//	model, err := niftygo.Correlate(g).
//		Matern12(1.0, 1.0). // scale, cutoff
//		WindowSize(3).
//		BufferSize(1000).
//		Freeze()
//	if err != nil {
//		panic(err)
//	}
//
//	xi := model.RandomCoeffs(rand.New(rand.NewSource(42)))
//	field, err := model.Finest(xi) // correlated field at the deepest level
//
// Freezing evaluates the covariance once per distinct local geometry and
// memoizes the resulting refinement matrices, so the returned model is
// cheap to apply inside an optimization or sampling loop.
package niftygo
