// Package partition splits index ranges into contiguous chunks and runs
// per-chunk work on a fixed pool of goroutines.
package partition

import "golang.org/x/sync/errgroup"

// Chunk returns the half-open range [lo, hi) owned by chunk j when n items
// are split into w chunks. Every chunk but the last holds n/w items; the last
// chunk absorbs the remainder. Chunks are ordered: chunk j precedes chunk j+1.
func Chunk(n, w, j int) (lo, hi int) {
	size := n / w
	lo = j * size
	if j == w-1 {
		return lo, n
	}
	return lo, lo + size
}

// Workers clamps a requested worker count to [1, max(n, 1)].
func Workers(requested, n int) int {
	if requested < 1 {
		requested = 1
	}
	if n < 1 {
		n = 1
	}
	return min(requested, n)
}

// Run calls fn(j, lo, hi) for each of the w chunks of [0, n) on its own
// goroutine and returns once every call has finished. With w == 1 fn runs
// on the calling goroutine.
func Run(n, w int, fn func(j, lo, hi int)) {
	if w <= 1 {
		fn(0, 0, n)
		return
	}
	var g errgroup.Group
	for j := range w {
		lo, hi := Chunk(n, w, j)
		g.Go(func() error {
			fn(j, lo, hi)
			return nil
		})
	}
	_ = g.Wait() // fn cannot fail
}
