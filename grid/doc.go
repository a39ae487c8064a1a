// Package grid implements composable multi-resolution spatial indexing
// schemes: regular Cartesian refinement grids, open (border-padded) grids,
// HEALPix spherical pixelizations, flattened re-orderings, sparse index
// subsets, and outer-product compositions.
//
// A grid is an immutable ordered stack of levels. Level 0 is the coarsest;
// each deeper level subdivides the previous one by an integer split factor
// per dimension. Levels answer children, parent and neighborhood queries
// and locate cells in a physical coordinate system, which is what the
// kernel package consumes to build multi-resolution covariance structure.
//
// All grids are read-only after construction and safe for concurrent use.
// Extending a grid to greater depth (Amend) returns a new grid whose
// shared levels answer every query identically to the original.
package grid
