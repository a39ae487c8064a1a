package kernel

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NIFTy-PPL/niftygo/covariance"
	"github.com/NIFTy-PPL/niftygo/grid"
)

func testGrid1D(t *testing.T) *grid.Regular {
	t.Helper()
	g, err := grid.New([]int{4}, []int{2}, []int{2})
	require.NoError(t, err)
	return g
}

func drawCoeffs(seed int64, sizes []int) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]float64, len(sizes))
	for lvl, size := range sizes {
		xs := make([]float64, size)
		for i := range xs {
			xs[i] = rng.NormFloat64()
		}
		out[lvl] = xs
	}
	return out
}

func requireAllFinite(t *testing.T, fields [][]float64) {
	t.Helper()
	for lvl, xs := range fields {
		for i, v := range xs {
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "level %d index %d: %v", lvl, i, v)
		}
	}
}

func TestNewValidation(t *testing.T) {
	g := testGrid1D(t)
	cov := covariance.Matern32(1, 2)

	_, err := New(nil, cov)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = New(g, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = New(g, cov, WithWindowSize(3, 3))
	assert.ErrorIs(t, err, ErrInvalidConfig, "window dimensions must match the grid")
	_, err = New(g, cov, WithWindowSize(0))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestWindowDefaults(t *testing.T) {
	g2d, err := grid.New([]int{3, 3}, []int{2})
	require.NoError(t, err)
	cov := covariance.Matern32(1, 2)

	k, err := New(g2d, cov)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3}, k.WindowSize())

	k, err = New(g2d, cov, WithWindowSize(5))
	require.NoError(t, err)
	assert.Equal(t, []int{5, 5}, k.WindowSize(), "single extent broadcast to all dimensions")
}

func TestFreezeValidation(t *testing.T) {
	k, err := New(testGrid1D(t), covariance.Matern32(1, 2))
	require.NoError(t, err)

	_, err = k.Freeze(WithBufferSize(0))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = k.Freeze(WithBufferSize(-5))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFrozenMatchesUnfrozen(t *testing.T) {
	k, err := New(testGrid1D(t), covariance.Matern32(1, 2))
	require.NoError(t, err)

	fk, err := k.Freeze()
	require.NoError(t, err)
	assert.Equal(t, []int{4, 8, 16}, fk.Sizes())

	coeffs := drawCoeffs(1, fk.Sizes())
	want, err := k.Apply(coeffs)
	require.NoError(t, err)
	got, err := fk.Apply(coeffs)
	require.NoError(t, err)

	require.Len(t, got, len(want))
	for lvl := range want {
		require.Len(t, got[lvl], len(want[lvl]))
		for i := range want[lvl] {
			assert.InDelta(t, want[lvl][i], got[lvl][i], 1e-8, "level %d index %d", lvl, i)
		}
	}
}

func TestApplyDeterministic(t *testing.T) {
	k, err := New(testGrid1D(t), covariance.Matern12(1, 1))
	require.NoError(t, err)
	fk, err := k.Freeze(WithBufferSize(2))
	require.NoError(t, err)

	coeffs := drawCoeffs(2, fk.Sizes())
	first, err := fk.Apply(coeffs)
	require.NoError(t, err)
	second, err := fk.Apply(coeffs)
	require.NoError(t, err)

	// Entries pin their matrices, so eviction history cannot change the
	// output: repeated application is bit identical.
	require.Equal(t, first, second)
}

func TestApplyLinearity(t *testing.T) {
	k, err := New(testGrid1D(t), covariance.Matern32(1, 2))
	require.NoError(t, err)
	fk, err := k.Freeze()
	require.NoError(t, err)

	coeffs := drawCoeffs(3, fk.Sizes())
	doubled := make([][]float64, len(coeffs))
	for lvl, xs := range coeffs {
		doubled[lvl] = make([]float64, len(xs))
		for i, v := range xs {
			doubled[lvl][i] = 2 * v
		}
	}

	one, err := fk.Apply(coeffs)
	require.NoError(t, err)
	two, err := fk.Apply(doubled)
	require.NoError(t, err)
	for lvl := range one {
		for i := range one[lvl] {
			assert.InDelta(t, 2*one[lvl][i], two[lvl][i], 1e-12)
		}
	}

	zeros := make([][]float64, len(fk.Sizes()))
	for lvl, size := range fk.Sizes() {
		zeros[lvl] = make([]float64, size)
	}
	out, err := fk.Apply(zeros)
	require.NoError(t, err)
	for lvl := range out {
		for _, v := range out[lvl] {
			assert.Zero(t, v)
		}
	}
}

func TestOffsetSignatures(t *testing.T) {
	k, err := New(testGrid1D(t), covariance.Matern52(1, 2))
	require.NoError(t, err)

	byDistance, err := k.Freeze(WithUseDistances(true))
	require.NoError(t, err)
	byOffset, err := k.Freeze(WithUseDistances(false))
	require.NoError(t, err)

	coeffs := drawCoeffs(4, byDistance.Sizes())
	want, err := byDistance.Apply(coeffs)
	require.NoError(t, err)
	got, err := byOffset.Apply(coeffs)
	require.NoError(t, err)
	for lvl := range want {
		for i := range want[lvl] {
			assert.InDelta(t, want[lvl][i], got[lvl][i], 1e-8)
		}
	}
}

func TestCacheReuse(t *testing.T) {
	k, err := New(testGrid1D(t), covariance.Matern32(1, 2))
	require.NoError(t, err)
	fk, err := k.Freeze()
	require.NoError(t, err)

	// Every coarse cell of both transitions consults the cache once;
	// translated interior cells share one congruent geometry per level.
	stats := fk.CacheStats()
	assert.Equal(t, int64(12), stats.Hits+stats.Misses)
	assert.Positive(t, stats.Hits)
	assert.GreaterOrEqual(t, stats.Misses, int64(2))
	assert.Zero(t, stats.Evictions)
}

func TestApplyShapeMismatch(t *testing.T) {
	k, err := New(testGrid1D(t), covariance.Matern32(1, 2))
	require.NoError(t, err)
	fk, err := k.Freeze()
	require.NoError(t, err)

	_, err = fk.Apply([][]float64{make([]float64, 4)})
	var mismatch *ErrShapeMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, -1, mismatch.Level)
	assert.Equal(t, 3, mismatch.Expected)

	coeffs := drawCoeffs(5, fk.Sizes())
	coeffs[1] = coeffs[1][:7]
	_, err = fk.Apply(coeffs)
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 1, mismatch.Level)
	assert.Equal(t, 8, mismatch.Expected)
	assert.Equal(t, 7, mismatch.Actual)
}

func TestFreezeOpenGrid(t *testing.T) {
	g, err := grid.NewOpen([]int{6, 6}, [][]int{{2}}, []int{1, 1})
	require.NoError(t, err)
	k, err := New(g, covariance.Matern12(1, 2))
	require.NoError(t, err)

	fk, err := k.Freeze()
	require.NoError(t, err)
	assert.Equal(t, []int{36, 64}, fk.Sizes())

	fields, err := fk.Apply(drawCoeffs(6, fk.Sizes()))
	require.NoError(t, err)
	requireAllFinite(t, fields)

	// Border cells have no children, yet every fine cell is written.
	assert.Len(t, fk.entries[0], 16)
}

func TestFreezeHEALPix(t *testing.T) {
	g, err := grid.NewHEALPix(1, 1)
	require.NoError(t, err)
	k, err := New(g, covariance.Matern32(1, 1), WithWindowSize(5))
	require.NoError(t, err)

	fk, err := k.Freeze()
	require.NoError(t, err)
	assert.Equal(t, []int{12, 48}, fk.Sizes())

	fields, err := fk.Apply(drawCoeffs(7, fk.Sizes()))
	require.NoError(t, err)
	requireAllFinite(t, fields)
}

func TestFreezeUncoveredSparseCell(t *testing.T) {
	base, err := grid.New([]int{4}, []int{2})
	require.NoError(t, err)
	// Fine cell 2 descends from the dropped coarse cell 1 and can never be
	// refined into.
	sp, err := grid.NewSparse(base, [][]int{{0, 3}, {0, 1, 2}})
	require.NoError(t, err)

	k, err := New(sp, covariance.Matern12(1, 1))
	require.NoError(t, err)
	_, err = k.Freeze()
	assert.ErrorIs(t, err, ErrUncoveredCell)
}

func TestNotPositiveDefinite(t *testing.T) {
	// A constant "covariance" makes every matrix rank one.
	k, err := New(testGrid1D(t), func(x, y []float64) float64 { return 1 })
	require.NoError(t, err)
	_, err = k.Freeze()
	assert.ErrorIs(t, err, ErrNotPositiveDefinite)
}
