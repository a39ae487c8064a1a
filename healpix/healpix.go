// Package healpix implements the arithmetic of the HEALPix spherical
// pixelization in the nested indexing scheme: pixel/face coordinate
// conversions, the eight-pixel adjacency topology, and pixel center
// vectors on the unit sphere.
//
// Only nested ordering is provided, since hierarchical grids rely on the
// property that the four children of pixel p are 4p..4p+3. Resolutions
// are restricted to power-of-two Nside accordingly.
package healpix

import (
	"fmt"
	"math"
	"math/bits"
)

// NumNeighbors is the size of the adjacency stencil: every pixel has at
// most eight edge- or corner-adjacent pixels.
const NumNeighbors = 8

// Face layout constants of the HEALPix sphere: ring offsets (jrll) and
// longitude offsets (jpll) of the twelve base faces.
var (
	jrll = [12]int{2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4}
	jpll = [12]int{1, 3, 5, 7, 0, 2, 4, 6, 1, 3, 5, 7}
)

// Neighbor offsets in face coordinates, in the order SW, W, NW, N, NE, E,
// SE, S.
var (
	nbXOffset = [8]int{-1, -1, 0, 1, 1, 1, 0, -1}
	nbYOffset = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

// Face transition tables: nbFace[d][f] is the face reached by leaving
// face f in direction d (3*dy+dx+4); -1 marks the cut corners of the
// polar faces. nbSwap[d][r] encodes the coordinate fixup (bit 0: flip x,
// bit 1: flip y, bit 2: swap x/y) per face row r = f>>2.
var (
	nbFace = [9][12]int{
		{8, 9, 10, 11, -1, -1, -1, -1, 10, 11, 8, 9},
		{5, 6, 7, 4, 8, 9, 10, 11, 9, 10, 11, 8},
		{-1, -1, -1, -1, 5, 6, 7, 4, -1, -1, -1, -1},
		{4, 5, 6, 7, 11, 8, 9, 10, 11, 8, 9, 10},
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
		{1, 2, 3, 0, 0, 1, 2, 3, 5, 6, 7, 4},
		{-1, -1, -1, -1, 7, 4, 5, 6, -1, -1, -1, -1},
		{3, 0, 1, 2, 3, 0, 1, 2, 4, 5, 6, 7},
		{2, 3, 0, 1, -1, -1, -1, -1, 0, 1, 2, 3},
	}
	nbSwap = [9][3]int{
		{0, 0, 3},
		{0, 0, 6},
		{0, 0, 0},
		{0, 0, 5},
		{0, 0, 0},
		{5, 0, 0},
		{0, 0, 0},
		{6, 0, 0},
		{3, 0, 0},
	}
)

// ValidNside reports whether nside is a usable nested-scheme resolution.
func ValidNside(nside int) bool {
	return nside > 0 && nside&(nside-1) == 0
}

// NPix returns the number of pixels at resolution nside.
func NPix(nside int) int {
	return 12 * nside * nside
}

// Order returns log2(nside).
func Order(nside int) int {
	return bits.TrailingZeros(uint(nside))
}

// CheckPix validates a nested pixel index for resolution nside.
func CheckPix(nside, pix int) error {
	if !ValidNside(nside) {
		return fmt.Errorf("nside %d is not a power of two", nside)
	}
	if pix < 0 || pix >= NPix(nside) {
		return fmt.Errorf("pixel %d outside [0, %d) at nside %d", pix, NPix(nside), nside)
	}
	return nil
}

// spreadBits interleaves zero bits between the bits of v.
func spreadBits(v int) int {
	x := uint64(uint32(v))
	x = (x | x<<16) & 0x0000ffff0000ffff
	x = (x | x<<8) & 0x00ff00ff00ff00ff
	x = (x | x<<4) & 0x0f0f0f0f0f0f0f0f
	x = (x | x<<2) & 0x3333333333333333
	x = (x | x<<1) & 0x5555555555555555
	return int(x)
}

// compressBits drops the odd bits of v and packs the even ones.
func compressBits(v int) int {
	x := uint64(v) & 0x5555555555555555
	x = (x | x>>1) & 0x3333333333333333
	x = (x | x>>2) & 0x0f0f0f0f0f0f0f0f
	x = (x | x>>4) & 0x00ff00ff00ff00ff
	x = (x | x>>8) & 0x0000ffff0000ffff
	x = (x | x>>16) & 0x00000000ffffffff
	return int(x)
}

// NestToXYF decomposes a nested pixel index into face coordinates
// (x, y in [0, nside)) and the face number.
func NestToXYF(nside, pix int) (x, y, face int) {
	order := Order(nside)
	face = pix >> (2 * order)
	p := pix & (nside*nside - 1)
	return compressBits(p), compressBits(p >> 1), face
}

// XYFToNest composes a nested pixel index from face coordinates.
func XYFToNest(nside, x, y, face int) int {
	order := Order(nside)
	return face<<(2*order) | spreadBits(x) | spreadBits(y)<<1
}

// Neighbors returns the nested indices of the eight adjacent pixels of
// pix in the order SW, W, NW, N, NE, E, SE, S. Slots without a neighbor
// (the cut corners of the eight polar faces) hold -1.
func Neighbors(nside, pix int) ([NumNeighbors]int, error) {
	var out [NumNeighbors]int
	if err := CheckPix(nside, pix); err != nil {
		return out, err
	}
	ix, iy, face := NestToXYF(nside, pix)
	for d := 0; d < NumNeighbors; d++ {
		x := ix + nbXOffset[d]
		y := iy + nbYOffset[d]
		nbnum := 4
		if x < 0 {
			x += nside
			nbnum--
		} else if x >= nside {
			x -= nside
			nbnum++
		}
		if y < 0 {
			y += nside
			nbnum -= 3
		} else if y >= nside {
			y -= nside
			nbnum += 3
		}
		f := nbFace[nbnum][face]
		if f < 0 {
			out[d] = -1
			continue
		}
		if s := nbSwap[nbnum][face>>2]; s != 0 {
			if s&1 != 0 {
				x = nside - x - 1
			}
			if s&2 != 0 {
				y = nside - y - 1
			}
			if s&4 != 0 {
				x, y = y, x
			}
		}
		out[d] = XYFToNest(nside, x, y, f)
	}
	return out, nil
}

// PixToVec returns the unit vector of the center of a nested pixel.
func PixToVec(nside, pix int) ([3]float64, error) {
	var v [3]float64
	if err := CheckPix(nside, pix); err != nil {
		return v, err
	}
	ix, iy, face := NestToXYF(nside, pix)

	jr := jrll[face]*nside - ix - iy - 1
	var nr, kshift int
	var z float64
	switch {
	case jr < nside: // north polar cap
		nr = jr
		z = 1 - float64(nr*nr)/(3*float64(nside*nside))
		kshift = 0
	case jr > 3*nside: // south polar cap
		nr = 4*nside - jr
		z = float64(nr*nr)/(3*float64(nside*nside)) - 1
		kshift = 0
	default: // equatorial belt
		nr = nside
		z = float64(2*nside-jr) * 2 / (3 * float64(nside))
		kshift = (jr - nside) & 1
	}

	jp := (jpll[face]*nr + ix - iy + 1 + kshift) / 2
	if jp > 4*nr {
		jp -= 4 * nr
	}
	if jp < 1 {
		jp += 4 * nr
	}
	phi := (float64(jp) - float64(kshift+1)*0.5) * (math.Pi / 2) / float64(nr)

	st := math.Sqrt((1 - z) * (1 + z))
	v[0] = st * math.Cos(phi)
	v[1] = st * math.Sin(phi)
	v[2] = z
	return v, nil
}
