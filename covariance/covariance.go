// Package covariance provides stationary covariance functions for
// Gaussian-process-like priors over grid cell centers.
//
// All kernels are isotropic: they depend on the Euclidean distance between
// the two locations only, which lets the kernel package key its frozen
// cache by scalar distances. Values at (numerically) zero distance equal
// scale^2; behavior under differentiation near zero is the caller's
// concern.
package covariance

import (
	"fmt"
	"math"
)

// Func evaluates the covariance between two locations. Both arguments
// have the coordinate dimensionality of the grid the kernel is used with.
type Func func(x, y []float64) float64

// Distance returns the Euclidean distance between two locations.
func Distance(x, y []float64) float64 {
	var s float64
	for i := range x {
		d := x[i] - y[i]
		s += d * d
	}
	return math.Sqrt(s)
}

// Matern12 returns the Matérn covariance with smoothness 1/2
// (exponential kernel): scale^2 * exp(-d/cutoff).
func Matern12(scale, cutoff float64) Func {
	return func(x, y []float64) float64 {
		return scale * scale * math.Exp(-Distance(x, y)/cutoff)
	}
}

// Matern32 returns the Matérn covariance with smoothness 3/2.
func Matern32(scale, cutoff float64) Func {
	return func(x, y []float64) float64 {
		r := math.Sqrt(3) * Distance(x, y) / cutoff
		return scale * scale * (1 + r) * math.Exp(-r)
	}
}

// Matern52 returns the Matérn covariance with smoothness 5/2.
func Matern52(scale, cutoff float64) Func {
	return func(x, y []float64) float64 {
		r := math.Sqrt(5) * Distance(x, y) / cutoff
		return scale * scale * (1 + r + r*r/3) * math.Exp(-r)
	}
}

// SquaredExponential returns the Gaussian covariance
// scale^2 * exp(-d^2 / (2 cutoff^2)).
func SquaredExponential(scale, cutoff float64) Func {
	return func(x, y []float64) float64 {
		d := Distance(x, y)
		return scale * scale * math.Exp(-d*d/(2*cutoff*cutoff))
	}
}

// Kind names a covariance family for Provider lookup.
type Kind string

const (
	KindMatern12           Kind = "matern12"
	KindMatern32           Kind = "matern32"
	KindMatern52           Kind = "matern52"
	KindSquaredExponential Kind = "squared-exponential"
)

// Provider returns the covariance function of the given family with the
// given scale and cutoff.
func Provider(kind Kind, scale, cutoff float64) (Func, error) {
	switch kind {
	case KindMatern12:
		return Matern12(scale, cutoff), nil
	case KindMatern32:
		return Matern32(scale, cutoff), nil
	case KindMatern52:
		return Matern52(scale, cutoff), nil
	case KindSquaredExponential:
		return SquaredExponential(scale, cutoff), nil
	default:
		return nil, fmt.Errorf("unsupported covariance kind: %q", kind)
	}
}
