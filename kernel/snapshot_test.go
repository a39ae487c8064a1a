package kernel

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NIFTy-PPL/niftygo/cache"
	"github.com/NIFTy-PPL/niftygo/covariance"
	"github.com/NIFTy-PPL/niftygo/grid"
)

func frozenFixture(t *testing.T) *FrozenKernel {
	t.Helper()
	g, err := grid.New([]int{3}, []int{2}, []int{2})
	require.NoError(t, err)
	k, err := New(g, covariance.Matern32(1, 2))
	require.NoError(t, err)
	fk, err := k.Freeze()
	require.NoError(t, err)
	return fk
}

func TestSnapshotRoundTrip(t *testing.T) {
	fk := frozenFixture(t)
	coeffs := drawCoeffs(11, fk.Sizes())
	want, err := fk.Apply(coeffs)
	require.NoError(t, err)

	for _, comp := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		var buf bytes.Buffer
		require.NoError(t, fk.Save(&buf, comp))

		loaded, err := Load(&buf)
		require.NoError(t, err)
		assert.Equal(t, fk.Shapes(), loaded.Shapes())
		assert.Equal(t, fk.Sizes(), loaded.Sizes())
		assert.Equal(t, fk.Depth(), loaded.Depth())
		assert.Equal(t, cache.Stats{}, loaded.CacheStats(), "loaded kernels carry no cache")

		// Matrices are stored at full precision: the loaded kernel must
		// reproduce the original bit for bit.
		got, err := loaded.Apply(coeffs)
		require.NoError(t, err)
		require.Equal(t, want, got, "compression %d", comp)
	}
}

func TestSnapshotUnknownCompression(t *testing.T) {
	fk := frozenFixture(t)
	var buf bytes.Buffer
	err := fk.Save(&buf, Compression(9))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSnapshotBadMagic(t *testing.T) {
	fk := frozenFixture(t)
	var buf bytes.Buffer
	require.NoError(t, fk.Save(&buf, CompressionNone))

	raw := buf.Bytes()
	raw[0] ^= 0xFF
	_, err := Load(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrInvalidSnapshot)
}

func TestSnapshotBadVersion(t *testing.T) {
	fk := frozenFixture(t)
	var buf bytes.Buffer
	require.NoError(t, fk.Save(&buf, CompressionNone))

	raw := buf.Bytes()
	raw[4] ^= 0xFF
	_, err := Load(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrSnapshotVersion)
}

func TestSnapshotChecksum(t *testing.T) {
	fk := frozenFixture(t)
	var buf bytes.Buffer
	require.NoError(t, fk.Save(&buf, CompressionZSTD))

	// Header is 25 bytes; flip one payload byte.
	raw := buf.Bytes()
	raw[30] ^= 0x01
	_, err := Load(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrSnapshotChecksum)
}

func TestSnapshotTruncated(t *testing.T) {
	fk := frozenFixture(t)
	var buf bytes.Buffer
	require.NoError(t, fk.Save(&buf, CompressionNone))

	raw := buf.Bytes()
	_, err := Load(bytes.NewReader(raw[:10]))
	assert.Error(t, err)
	_, err = Load(bytes.NewReader(raw[:len(raw)-2]))
	assert.Error(t, err)
}
