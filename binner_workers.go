package densebins

import (
	"unsafe"

	"golang.org/x/sys/cpu"

	intbits "github.com/tamirms/densebins/internal/bits"
	"github.com/tamirms/densebins/internal/partition"
	"github.com/tamirms/densebins/internal/scan"
)

const (
	cacheLineBytes = int(unsafe.Sizeof(cpu.CacheLinePad{}))

	// cacheLineWords is the number of uint32 counters in one cache line.
	cacheLineWords = cacheLineBytes / 4
)

// workerBinner runs the counting sort on a fixed pool of workers without
// atomics on the hot path.
//
// Worker j owns the contiguous item chunk partition.Chunk(n, w, j) and the
// row rows[j*stride : j*stride+m]. The row first holds the worker's local
// histogram, then its starting slot for every bin. The matrix starts on a
// cache line boundary and stride is a whole number of lines, so no two
// workers write to the same line.
//
// Because chunks are index-ordered and per-bin starting slots are assigned in
// worker order, items land in each bin in original index order.
type workerBinner struct {
	workers int
	buf     []uint32 // backing store for rows, reused across builds
	rows    []uint32 // w rows of stride counters, cache line aligned
}

func (wb *workerBinner) bin(s *scratch, n, m int, assign func(i int) uint32) {
	w := partition.Workers(wb.workers, n)
	stride := intbits.RoundUp(m, cacheLineWords)
	wb.buf, wb.rows = alignedRows(wb.buf, w*stride)
	clear(wb.rows)
	hist := wb.rows

	// Local histograms, one worker per chunk.
	partition.Run(n, w, func(j, lo, hi int) {
		row := hist[j*stride : j*stride+m]
		for i := lo; i < hi; i++ {
			b := assign(i)
			s.bins[i] = b
			row[b]++
		}
	})

	// Per bin, turn each worker's count into its offset within the bin's run
	// and record the bin total. Parallel over bins, serial over workers.
	binWorkers := partition.Workers(wb.workers, m)
	partition.Run(m, binWorkers, func(_, lo, hi int) {
		for b := lo; b < hi; b++ {
			var total uint32
			for j := range w {
				c := hist[j*stride+b]
				hist[j*stride+b] = total
				total += c
			}
			s.counts[b] = total
		}
	})

	// m is small next to n; the serial scan is not worth splitting.
	scan.Exclusive(s.offsets, s.counts)

	partition.Run(m, binWorkers, func(_, lo, hi int) {
		for b := lo; b < hi; b++ {
			base := s.offsets[b]
			for j := range w {
				hist[j*stride+b] += base
			}
		}
	})

	// Scatter, each worker rescanning its own chunk in order.
	partition.Run(n, w, func(j, lo, hi int) {
		row := hist[j*stride : j*stride+m]
		for i := lo; i < hi; i++ {
			b := s.bins[i]
			s.perm[row[b]] = uint32(i)
			row[b]++
		}
	})
}

// alignedRows returns n counters starting on a cache line boundary, carved
// from buf (grown as needed) with up to one line of slack. Heap objects do
// not move, so the alignment holds for the life of buf.
func alignedRows(buf []uint32, n int) (backing, rows []uint32) {
	buf = resize(buf, n+cacheLineWords)
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	skip := 0
	if rem := int(addr % uintptr(cacheLineBytes)); rem != 0 {
		skip = (cacheLineBytes - rem) / 4
	}
	return buf, buf[skip : skip+n]
}
