package niftygo

import (
	"errors"
	"fmt"

	"github.com/NIFTy-PPL/niftygo/cache"
	"github.com/NIFTy-PPL/niftygo/grid"
	"github.com/NIFTy-PPL/niftygo/kernel"
)

var (
	// ErrInvalidConfig unifies all construction-parameter failures from
	// the subpackages.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrOutOfRange unifies level and index range failures.
	ErrOutOfRange = errors.New("out of range")
)

// translateError normalizes subpackage errors into the public contract.
// Typed errors such as kernel.ErrShapeMismatch pass through unchanged and
// remain accessible via errors.As.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, grid.ErrInvalidConfig),
		errors.Is(err, kernel.ErrInvalidConfig),
		errors.Is(err, cache.ErrInvalidCapacity):
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	case errors.Is(err, grid.ErrLevelOutOfRange),
		errors.Is(err, grid.ErrIndexOutOfRange):
		return fmt.Errorf("%w: %w", ErrOutOfRange, err)
	}
	return err
}
