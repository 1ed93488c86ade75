package densebins

import (
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/tamirms/densebins/internal/scan"
)

// parallelScanThreshold is the counts length from which the atomic backend
// switches to the two-level parallel prefix sum.
const parallelScanThreshold = 1 << 16

// atomicBinner launches one goroutine per grain of items and coordinates them
// only through atomic adds on the shared counts array.
//
// Histogram pass: counts[b] += 1 per item, atomically.
// Scan: offsets = exclusive prefix sum of counts.
// Cursor seed: counts = offsets.
// Scatter pass: slot = counts[b]++ (atomic fetch-and-add), perm[slot] = i.
//
// Slots within a bin are granted in arrival order, which depends on
// scheduling, so the order of indices within a bin varies between runs.
type atomicBinner struct {
	grain       int
	taskLimit   int
	scanWorkers int
}

func (a *atomicBinner) bin(s *scratch, n, m int, assign func(i int) uint32) {
	bins, counts := s.bins, s.counts
	hist := counts[:m]

	a.forEachGrain(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			b := assign(i)
			bins[i] = b
			atomic.AddUint32(&hist[b], 1)
		}
	})

	if len(counts) >= parallelScanThreshold {
		scan.ExclusiveParallel(s.offsets, counts, a.scanWorkers)
	} else {
		scan.Exclusive(s.offsets, counts)
	}

	copy(counts, s.offsets)

	perm := s.perm
	a.forEachGrain(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			slot := atomic.AddUint32(&counts[bins[i]], 1) - 1
			perm[slot] = uint32(i)
		}
	})
}

// forEachGrain runs fn over [0, n) in grains of a.grain items, one task per
// grain, and waits for all tasks. Wait establishes happens-before between
// every task and the caller.
func (a *atomicBinner) forEachGrain(n int, fn func(lo, hi int)) {
	var g errgroup.Group
	g.SetLimit(a.taskLimit)
	for lo := 0; lo < n; lo += a.grain {
		hi := min(lo+a.grain, n)
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	_ = g.Wait() // tasks cannot fail
}
