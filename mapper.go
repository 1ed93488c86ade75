package densebins

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/xxh3"

	intbits "github.com/tamirms/densebins/internal/bits"
)

// Mapper assigns an item to a bin.
//
// A Mapper must be pure and total: it is called concurrently from many
// goroutines, once per item, and must return an id in [0, M) for the bin
// count M of the build. There is no error channel; an out-of-range id is a
// caller bug and panics inside Build.
type Mapper[T any] func(T) uint32

// BoxMapper adapts a coordinate function to a Mapper over the cells of bx.
//
// f returns coordinates relative to bx.Lo. They are clamped into the box and
// flattened row-major, see Box.ClampedIndex. Out-of-domain items are folded
// into edge bins, not reported.
func BoxMapper[T any](bx Box, f func(T) IntVect) Mapper[T] {
	return func(t T) uint32 {
		return bx.ClampedIndex(f(t))
	}
}

// HashMapper routes items to nbins bins by the xxHash3 of a byte key.
//
// Use it when items have no spatial structure but must be grouped by key:
// equal keys always share a bin, and distinct keys spread uniformly.
// nbins must be in [1, math.MaxUint32] and match the bin count passed to
// Build; HashMapper panics on an out-of-range nbins.
func HashMapper[T any](nbins int, key func(T) []byte) Mapper[T] {
	n := hashBinCount(nbins)
	return func(t T) uint32 {
		return intbits.FastRange32(xxh3.Hash(key(t)), n)
	}
}

// StringMapper is HashMapper for string keys, hashed with xxHash64.
// It panics on an nbins outside [1, math.MaxUint32].
func StringMapper[T any](nbins int, key func(T) string) Mapper[T] {
	n := hashBinCount(nbins)
	return func(t T) uint32 {
		return intbits.FastRange32(xxhash.Sum64String(key(t)), n)
	}
}

func hashBinCount(nbins int) uint32 {
	if nbins < 1 || uint64(nbins) > maxBins {
		panic(fmt.Sprintf("densebins: hash mapper bin count %d outside [1, %d]", nbins, uint64(maxBins)))
	}
	return uint32(nbins)
}
