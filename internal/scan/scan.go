// Package scan implements exclusive prefix sums over uint32 counts.
package scan

import "github.com/tamirms/densebins/internal/partition"

// Exclusive writes the exclusive prefix sum of src into dst:
// dst[0] = 0 and dst[i] = src[0] + ... + src[i-1].
// dst and src must have the same length and may alias.
func Exclusive(dst, src []uint32) {
	var sum uint32
	for i, v := range src {
		dst[i] = sum
		sum += v
	}
}

// ExclusiveParallel computes the same result as Exclusive using w goroutines.
//
// Two-level scan: each block sums its slice of src, the block totals are
// scanned serially, then each block writes its own exclusive scan starting
// from its block offset. dst and src must not alias.
func ExclusiveParallel(dst, src []uint32, w int) {
	n := len(src)
	w = partition.Workers(w, n)
	if w == 1 {
		Exclusive(dst, src)
		return
	}

	totals := make([]uint32, w)
	partition.Run(n, w, func(j, lo, hi int) {
		var sum uint32
		for _, v := range src[lo:hi] {
			sum += v
		}
		totals[j] = sum
	})

	Exclusive(totals, totals)

	partition.Run(n, w, func(j, lo, hi int) {
		sum := totals[j]
		for i := lo; i < hi; i++ {
			dst[i] = sum
			sum += src[i]
		}
	})
}
