package densebins

// scratch holds the four arrays owned by a Bins.
//
// counts changes role during a build. In the serial and atomic backends it is
// first the per-bin histogram, then the input of the exclusive scan, then a
// copy of offsets used as per-bin write cursors. The workers backend keeps its
// cursors in worker-local rows and uses counts only for per-bin totals.
type scratch struct {
	bins    []uint32 // len n: bin of each item
	counts  []uint32 // len m+1: histogram, then cursors
	offsets []uint32 // len m+1: exclusive prefix sum of counts
	perm    []uint32 // len n: item indices in bin order
}

// reset sizes the arrays for n items and m bins, discarding prior contents.
// counts and offsets are zeroed; bins and perm are fully overwritten by every
// backend and are only resized.
func (s *scratch) reset(n, m int) {
	s.bins = resize(s.bins, n)
	s.perm = resize(s.perm, n)
	s.counts = resize(s.counts, m+1)
	s.offsets = resize(s.offsets, m+1)
	clear(s.counts)
	clear(s.offsets)
}

// resize returns a slice of length n, reusing buf's storage when it is large
// enough.
func resize(buf []uint32, n int) []uint32 {
	if cap(buf) < n {
		return make([]uint32, n)
	}
	return buf[:n]
}
