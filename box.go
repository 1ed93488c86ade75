package densebins

import (
	"math"
	"math/bits"
)

// IntVect is a 3-D integer coordinate. Lower-dimensional callers leave the
// unused components at zero.
type IntVect [3]int

// Box is an inclusive rectangular index range [Lo, Hi] that defines a dense
// bin space of one bin per cell.
type Box struct {
	Lo IntVect
	Hi IntVect
}

// BoxOfSize returns the box with its low corner at the origin and n cells
// along each axis.
func BoxOfSize(n IntVect) Box {
	return Box{Hi: IntVect{n[0] - 1, n[1] - 1, n[2] - 1}}
}

// Length returns the number of cells along each axis. Components wrap for
// boxes whose extent does not fit in an int; use NumCells to size a box.
func (bx Box) Length() IntVect {
	return IntVect{
		bx.Hi[0] - bx.Lo[0] + 1,
		bx.Hi[1] - bx.Lo[1] + 1,
		bx.Hi[2] - bx.Lo[2] + 1,
	}
}

// Ok reports whether the box has at least one cell.
func (bx Box) Ok() bool {
	return bx.Hi[0] >= bx.Lo[0] && bx.Hi[1] >= bx.Lo[1] && bx.Hi[2] >= bx.Lo[2]
}

// NumCells returns the number of cells in the box. ok is false when the box
// is empty or the count does not fit in a uint64.
func (bx Box) NumCells() (n uint64, ok bool) {
	if !bx.Ok() {
		return 0, false
	}
	n = 1
	for d := range 3 {
		// Hi >= Lo, so the unsigned difference is exact even when Hi-Lo
		// overflows int.
		ext := uint64(bx.Hi[d]) - uint64(bx.Lo[d])
		if ext == math.MaxUint64 {
			return 0, false
		}
		hi, lo := bits.Mul64(n, ext+1)
		if hi != 0 {
			return 0, false
		}
		n = lo
	}
	return n, true
}

// NumPts returns the number of cells in the box, or 0 for an empty box.
// It saturates at math.MaxInt.
func (bx Box) NumPts() int {
	if !bx.Ok() {
		return 0
	}
	n, ok := bx.NumCells()
	if !ok || n > math.MaxInt {
		return math.MaxInt
	}
	return int(n)
}

// ClampedIndex returns the linear bin of iv, a coordinate relative to the
// box's low corner.
//
// Each component is clamped into [0, length-1] before the row-major flatten
// ((x*ny)+y)*nz+z. A coordinate outside the box lands in the nearest edge
// bin rather than being rejected, which hides items that have drifted out of
// the domain. Callers that need to detect them should check Contains first.
//
// The flatten is exact for boxes of at most math.MaxUint32 cells, which
// BuildBox enforces.
func (bx Box) ClampedIndex(iv IntVect) uint32 {
	l := bx.Length()
	x := uint32(min(l[0]-1, max(0, iv[0])))
	y := uint32(min(l[1]-1, max(0, iv[1])))
	z := uint32(min(l[2]-1, max(0, iv[2])))
	return (x*uint32(l[1])+y)*uint32(l[2]) + z
}

// Contains reports whether the box-relative coordinate iv lies inside the box.
func (bx Box) Contains(iv IntVect) bool {
	l := bx.Length()
	for d := range iv {
		if iv[d] < 0 || iv[d] >= l[d] {
			return false
		}
	}
	return true
}

// Cell is the inverse of ClampedIndex for in-range bins: it returns the
// box-relative coordinate of a linear bin.
func (bx Box) Cell(bin int) IntVect {
	l := bx.Length()
	z := bin % l[2]
	bin /= l[2]
	y := bin % l[1]
	return IntVect{bin / l[1], y, z}
}
