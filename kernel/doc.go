// Package kernel turns a multi-resolution grid and a covariance function
// into an iterative charted refinement (ICR) transform: per-level white
// noise coefficients in, per-level correlated field values out.
//
// At level 0 the field is a dense Cholesky factor of the full level-0
// covariance applied to the coefficients. Each refinement step then
// conditions the children of a coarse cell on the already-realized values
// in a window around that cell: with C_cc the covariance of the window
// cells, C_fc the cross covariance and C_ff the children covariance,
//
//	fine = C_fc C_cc^-1 · window  +  chol(C_ff - C_fc C_cc^-1 C_fc^T) · xi
//
// Freeze precomputes these matrices for every cell of every level,
// memoizing them in a bounded tolerance-aware LRU cache keyed by the local
// window geometry (or by pairwise distances when the covariance is
// isotropic), and returns an immutable FrozenKernel whose Apply is pure
// and deterministic.
package kernel
