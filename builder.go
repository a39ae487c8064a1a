package niftygo

import (
	"math/rand"

	"github.com/NIFTy-PPL/niftygo/covariance"
	"github.com/NIFTy-PPL/niftygo/grid"
	"github.com/NIFTy-PPL/niftygo/kernel"
)

// CorrelateBuilder is an immutable fluent builder for correlated-field
// models: each method returns a new builder with the updated
// configuration, so partially configured builders can be shared and
// branched safely. Obtain one with Correlate, chain configuration calls,
// then Freeze.
type CorrelateBuilder struct {
	grid         grid.Grid
	cov          covariance.Func
	window       []int
	logger       *Logger
	rtol         float64
	atol         float64
	bufferSize   int
	useDistances bool
}

// Correlate starts building a correlated-field model over g.
func Correlate(g grid.Grid) CorrelateBuilder {
	return CorrelateBuilder{
		grid:         g,
		rtol:         1e-5,
		atol:         1e-5,
		bufferSize:   1000,
		useDistances: true,
	}
}

// Covariance sets the covariance function between cell-center locations.
func (b CorrelateBuilder) Covariance(f covariance.Func) CorrelateBuilder {
	b.cov = f
	return b
}

// Matern12 selects the Matérn-1/2 (exponential) covariance.
func (b CorrelateBuilder) Matern12(scale, cutoff float64) CorrelateBuilder {
	return b.Covariance(covariance.Matern12(scale, cutoff))
}

// Matern32 selects the Matérn-3/2 covariance.
func (b CorrelateBuilder) Matern32(scale, cutoff float64) CorrelateBuilder {
	return b.Covariance(covariance.Matern32(scale, cutoff))
}

// Matern52 selects the Matérn-5/2 covariance.
func (b CorrelateBuilder) Matern52(scale, cutoff float64) CorrelateBuilder {
	return b.Covariance(covariance.Matern52(scale, cutoff))
}

// SquaredExponential selects the Gaussian covariance.
func (b CorrelateBuilder) SquaredExponential(scale, cutoff float64) CorrelateBuilder {
	return b.Covariance(covariance.SquaredExponential(scale, cutoff))
}

// WindowSize sets the refinement window extents (one per index dimension,
// or a single value broadcast to all).
func (b CorrelateBuilder) WindowSize(size ...int) CorrelateBuilder {
	b.window = size
	return b
}

// Logger routes freeze progress logs.
func (b CorrelateBuilder) Logger(l *Logger) CorrelateBuilder {
	b.logger = l
	return b
}

// RTol sets the relative cache tolerance used while freezing.
func (b CorrelateBuilder) RTol(rtol float64) CorrelateBuilder {
	b.rtol = rtol
	return b
}

// ATol sets the absolute cache tolerance used while freezing.
func (b CorrelateBuilder) ATol(atol float64) CorrelateBuilder {
	b.atol = atol
	return b
}

// BufferSize bounds the freeze-time matrix cache.
func (b CorrelateBuilder) BufferSize(n int) CorrelateBuilder {
	b.bufferSize = n
	return b
}

// UseDistances toggles distance-keyed (isotropic) cache signatures.
func (b CorrelateBuilder) UseDistances(use bool) CorrelateBuilder {
	b.useDistances = use
	return b
}

// Freeze builds the refinement kernel, precomputes its matrices and
// returns the ready-to-apply model.
func (b CorrelateBuilder) Freeze() (*Model, error) {
	var kernelOpts []kernel.Option
	if b.window != nil {
		kernelOpts = append(kernelOpts, kernel.WithWindowSize(b.window...))
	}
	if b.logger != nil {
		kernelOpts = append(kernelOpts, kernel.WithLogger(b.logger.Logger))
	}
	ic, err := kernel.New(b.grid, b.cov, kernelOpts...)
	if err != nil {
		return nil, translateError(err)
	}
	fk, err := ic.Freeze(
		kernel.WithRTol(b.rtol),
		kernel.WithATol(b.atol),
		kernel.WithBufferSize(b.bufferSize),
		kernel.WithUseDistances(b.useDistances),
	)
	if err != nil {
		return nil, translateError(err)
	}
	return &Model{fk: fk}, nil
}

// Model is a frozen correlated-field transform: per-level white-noise
// coefficients in, per-level correlated field values out. Models are
// immutable and safe for concurrent use.
type Model struct {
	fk *kernel.FrozenKernel
}

// LoadModel rebuilds a model from a snapshot written with
// Frozen().Save.
func LoadModel(fk *kernel.FrozenKernel) *Model {
	return &Model{fk: fk}
}

// Frozen exposes the underlying frozen kernel, e.g. for Save.
func (m *Model) Frozen() *kernel.FrozenKernel { return m.fk }

// Shapes returns the per-level index shapes for sizing coefficient
// arrays.
func (m *Model) Shapes() [][]int { return m.fk.Shapes() }

// Sizes returns the per-level flat coefficient lengths.
func (m *Model) Sizes() []int { return m.fk.Sizes() }

// Apply maps per-level white-noise coefficients to per-level correlated
// fields.
func (m *Model) Apply(coeffs [][]float64) ([][]float64, error) {
	out, err := m.fk.Apply(coeffs)
	return out, translateError(err)
}

// Finest applies the model and returns the deepest level's field, the
// scientifically meaningful output.
func (m *Model) Finest(coeffs [][]float64) ([]float64, error) {
	out, err := m.fk.Finest(coeffs)
	return out, translateError(err)
}

// RandomCoeffs draws standard-normal white-noise coefficients shaped for
// this model, for initialization and testing.
func (m *Model) RandomCoeffs(rng *rand.Rand) [][]float64 {
	out := make([][]float64, len(m.fk.Sizes()))
	for lvl, size := range m.fk.Sizes() {
		xs := make([]float64, size)
		for i := range xs {
			xs[i] = rng.NormFloat64()
		}
		out[lvl] = xs
	}
	return out
}
