package grid

import "errors"

var (
	// ErrInvalidConfig is returned for invalid construction parameters:
	// non-positive shapes or split factors, negative padding, malformed
	// sparse mappings, or orderings the wrapped grid cannot support.
	ErrInvalidConfig = errors.New("invalid grid configuration")

	// ErrLevelOutOfRange is returned when a level argument lies outside
	// [0, depth], or when children/parent are requested at the finest or
	// coarsest level respectively.
	ErrLevelOutOfRange = errors.New("level out of range")

	// ErrIndexOutOfRange is returned when an index does not address a cell
	// of the queried level.
	ErrIndexOutOfRange = errors.New("index out of range")
)
