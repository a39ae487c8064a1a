package kernel

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned for invalid kernel construction or
	// freeze parameters (nil covariance, malformed window, non-positive
	// buffer size or negative tolerances).
	ErrInvalidConfig = errors.New("invalid kernel configuration")

	// ErrNotPositiveDefinite is returned when a covariance matrix built
	// from the supplied covariance function cannot be Cholesky-factorized.
	ErrNotPositiveDefinite = errors.New("covariance matrix is not positive definite")

	// ErrUncoveredCell is returned when freezing a grid in which some
	// fine-level cell is not the child of any coarse cell (possible for
	// sparse grids whose mapping drops a parent but keeps its children).
	ErrUncoveredCell = errors.New("fine-level cell not covered by any refinement entry")
)

// ErrShapeMismatch indicates a coefficient array whose length does not
// match the corresponding level's size.
type ErrShapeMismatch struct {
	Level    int
	Expected int
	Actual   int
}

func (e *ErrShapeMismatch) Error() string {
	return fmt.Sprintf("coefficient shape mismatch at level %d: expected %d values, got %d", e.Level, e.Expected, e.Actual)
}
