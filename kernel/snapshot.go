package kernel

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"gonum.org/v1/gonum/mat"
)

// Snapshot file layout:
//
//	[Magic:4][Version:4][Compression:1][RawSize:8][StoredSize:8]
//	[StoredSize payload bytes][CRC32:4]
//
// The payload holds the level shapes, the level-0 factor, the deduplicated
// matrix table and the per-transition entries; the CRC covers the stored
// (possibly compressed) payload.
const (
	snapshotMagic   = 0x4E47464B // "NGFK"
	snapshotVersion = 0x00010000
)

var (
	// ErrInvalidSnapshot is returned when a snapshot's magic number or
	// structure is not recognized.
	ErrInvalidSnapshot = errors.New("invalid frozen kernel snapshot")
	// ErrSnapshotVersion is returned for an unsupported snapshot version.
	ErrSnapshotVersion = errors.New("unsupported snapshot version")
	// ErrSnapshotChecksum is returned when the payload checksum does not
	// match.
	ErrSnapshotChecksum = errors.New("snapshot checksum mismatch")
)

// Compression selects the snapshot payload codec.
type Compression uint8

const (
	// CompressionNone stores the payload uncompressed.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd (better ratio).
	CompressionZSTD Compression = 2
)

// Save writes the frozen kernel to w so it can be rebuilt with Load,
// avoiding a re-freeze across processes.
func (fk *FrozenKernel) Save(w io.Writer, comp Compression) error {
	payload, err := fk.encodePayload()
	if err != nil {
		return err
	}

	stored := payload
	switch comp {
	case CompressionNone:
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(payload)))
		var c lz4.Compressor
		n, err := c.CompressBlock(payload, dst)
		if err != nil {
			return err
		}
		if n == 0 { // incompressible, keep raw
			comp = CompressionNone
		} else {
			stored = dst[:n]
		}
	case CompressionZSTD:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return err
		}
		stored = enc.EncodeAll(payload, nil)
		if err := enc.Close(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown compression %d", ErrInvalidConfig, comp)
	}

	hdr := struct {
		Magic       uint32
		Version     uint32
		Compression uint8
		RawSize     uint64
		StoredSize  uint64
	}{snapshotMagic, snapshotVersion, uint8(comp), uint64(len(payload)), uint64(len(stored))}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}
	if _, err := w.Write(stored); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, crc32.ChecksumIEEE(stored))
}

// Load rebuilds a frozen kernel previously written with Save. Loaded
// kernels carry no cache; CacheStats reports zeros.
func Load(r io.Reader) (*FrozenKernel, error) {
	var hdr struct {
		Magic       uint32
		Version     uint32
		Compression uint8
		RawSize     uint64
		StoredSize  uint64
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	if hdr.Magic != snapshotMagic {
		return nil, ErrInvalidSnapshot
	}
	if hdr.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: %#x", ErrSnapshotVersion, hdr.Version)
	}

	stored := make([]byte, hdr.StoredSize)
	if _, err := io.ReadFull(r, stored); err != nil {
		return nil, err
	}
	var sum uint32
	if err := binary.Read(r, binary.LittleEndian, &sum); err != nil {
		return nil, err
	}
	if sum != crc32.ChecksumIEEE(stored) {
		return nil, ErrSnapshotChecksum
	}

	payload := stored
	switch Compression(hdr.Compression) {
	case CompressionNone:
	case CompressionLZ4:
		payload = make([]byte, hdr.RawSize)
		if _, err := lz4.UncompressBlock(stored, payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
	case CompressionZSTD:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		if payload, err = dec.DecodeAll(stored, nil); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrInvalidSnapshot, hdr.Compression)
	}
	return decodePayload(payload)
}

func (fk *FrozenKernel) encodePayload() ([]byte, error) {
	buf := &bytes.Buffer{}
	w := func(v any) error { return binary.Write(buf, binary.LittleEndian, v) }

	if err := w(uint32(len(fk.sizes))); err != nil {
		return nil, err
	}
	for _, shape := range fk.shapes {
		if err := w(uint32(len(shape))); err != nil {
			return nil, err
		}
		for _, d := range shape {
			if err := w(uint64(d)); err != nil {
				return nil, err
			}
		}
	}

	n0 := fk.sizes[0]
	if err := w(uint32(n0)); err != nil {
		return nil, err
	}
	if err := w(lowerPacked(fk.base)); err != nil {
		return nil, err
	}

	// Entries share matrices; store each set once.
	matID := map[*refMatrices]uint32{}
	var uniq []*refMatrices
	for _, entries := range fk.entries {
		for _, e := range entries {
			if _, ok := matID[e.mats]; !ok {
				matID[e.mats] = uint32(len(uniq))
				uniq = append(uniq, e.mats)
			}
		}
	}
	if err := w(uint32(len(uniq))); err != nil {
		return nil, err
	}
	for _, m := range uniq {
		rows, cols := m.olf.Dims()
		if err := w(uint32(rows)); err != nil {
			return nil, err
		}
		if err := w(uint32(cols)); err != nil {
			return nil, err
		}
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				if err := w(m.olf.At(i, j)); err != nil {
					return nil, err
				}
			}
		}
		if err := w(lowerPacked(m.fks)); err != nil {
			return nil, err
		}
	}

	for _, entries := range fk.entries {
		if err := w(uint32(len(entries))); err != nil {
			return nil, err
		}
		for _, e := range entries {
			if err := w(matID[e.mats]); err != nil {
				return nil, err
			}
			if err := w(uint32(len(e.window))); err != nil {
				return nil, err
			}
			for _, idx := range e.window {
				if err := w(uint64(idx)); err != nil {
					return nil, err
				}
			}
			if err := w(uint32(len(e.children))); err != nil {
				return nil, err
			}
			for _, idx := range e.children {
				if err := w(uint64(idx)); err != nil {
					return nil, err
				}
			}
		}
	}
	return buf.Bytes(), nil
}

func decodePayload(payload []byte) (*FrozenKernel, error) {
	r := bytes.NewReader(payload)
	var readErr error
	ru32 := func() uint32 {
		var v uint32
		if readErr == nil {
			readErr = binary.Read(r, binary.LittleEndian, &v)
		}
		return v
	}
	ru64 := func() uint64 {
		var v uint64
		if readErr == nil {
			readErr = binary.Read(r, binary.LittleEndian, &v)
		}
		return v
	}
	rf64 := func() float64 {
		var v float64
		if readErr == nil {
			readErr = binary.Read(r, binary.LittleEndian, &v)
		}
		return v
	}

	fk := &FrozenKernel{}
	numLevels := int(ru32())
	if readErr != nil || numLevels < 1 {
		return nil, ErrInvalidSnapshot
	}
	for lvl := 0; lvl < numLevels; lvl++ {
		ndim := int(ru32())
		shape := make([]int, ndim)
		size := 1
		for i := range shape {
			shape[i] = int(ru64())
			size *= shape[i]
		}
		fk.shapes = append(fk.shapes, shape)
		fk.sizes = append(fk.sizes, size)
	}

	n0 := int(ru32())
	if readErr != nil || n0 != fk.sizes[0] {
		return nil, ErrInvalidSnapshot
	}
	fk.base = mat.NewTriDense(n0, mat.Lower, nil)
	for i := 0; i < n0; i++ {
		for j := 0; j <= i; j++ {
			fk.base.SetTri(i, j, rf64())
		}
	}

	numMats := int(ru32())
	if readErr != nil {
		return nil, ErrInvalidSnapshot
	}
	uniq := make([]*refMatrices, numMats)
	for id := range uniq {
		rows, cols := int(ru32()), int(ru32())
		if readErr != nil || rows < 1 || cols < 1 {
			return nil, ErrInvalidSnapshot
		}
		olf := mat.NewDense(rows, cols, nil)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				olf.Set(i, j, rf64())
			}
		}
		fks := mat.NewTriDense(rows, mat.Lower, nil)
		for i := 0; i < rows; i++ {
			for j := 0; j <= i; j++ {
				fks.SetTri(i, j, rf64())
			}
		}
		uniq[id] = &refMatrices{olf: olf, fks: fks}
	}

	fk.entries = make([][]refEntry, numLevels-1)
	for lvl := range fk.entries {
		numEntries := int(ru32())
		if readErr != nil {
			return nil, ErrInvalidSnapshot
		}
		entries := make([]refEntry, numEntries)
		for i := range entries {
			id := int(ru32())
			if readErr != nil || id < 0 || id >= numMats {
				return nil, ErrInvalidSnapshot
			}
			e := refEntry{mats: uniq[id]}
			wlen := int(ru32())
			if readErr != nil || wlen < 0 || wlen > r.Len() {
				return nil, ErrInvalidSnapshot
			}
			e.window = make([]int, wlen)
			for j := range e.window {
				e.window[j] = int(ru64())
			}
			clen := int(ru32())
			if readErr != nil || clen < 0 || clen > r.Len() {
				return nil, ErrInvalidSnapshot
			}
			e.children = make([]int, clen)
			for j := range e.children {
				e.children[j] = int(ru64())
			}
			entries[i] = e
		}
		fk.entries[lvl] = entries
	}
	if readErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, readErr)
	}
	return fk, nil
}

// lowerPacked returns the lower triangle of a triangular matrix, row by
// row including the diagonal.
func lowerPacked(t *mat.TriDense) []float64 {
	n, _ := t.Dims()
	out := make([]float64, 0, n*(n+1)/2)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			out = append(out, t.At(i, j))
		}
	}
	return out
}
