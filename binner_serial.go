package densebins

import "github.com/tamirms/densebins/internal/scan"

// serialBinner is the reference counting sort. Items are scattered in
// ascending index order, so every bin lists its items in original order.
type serialBinner struct{}

func (serialBinner) bin(s *scratch, n, m int, assign func(i int) uint32) {
	hist := s.counts[:m]
	for i := range n {
		b := assign(i)
		s.bins[i] = b
		hist[b]++
	}

	scan.Exclusive(s.offsets, s.counts)

	// counts becomes the per-bin write cursor.
	copy(s.counts, s.offsets)

	for i := range n {
		b := s.bins[i]
		s.perm[s.counts[b]] = uint32(i)
		s.counts[b]++
	}
}
