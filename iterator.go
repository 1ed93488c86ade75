package densebins

import (
	"iter"
	"unsafe"

	"github.com/tamirms/densebins/internal/partition"
)

// IteratorFactory creates iterators over the items of individual bins.
//
// It is a small value holding the offsets, permutation and item slices of
// one build. Copying it allocates nothing, so it can be handed to any number
// of goroutines. It borrows the arrays of the Bins that produced it: it is
// valid until that Bins is rebuilt, and using it afterwards is undefined.
// Bins.Current reports whether a factory is still valid.
type IteratorFactory[T any] struct {
	offsets []uint32
	perm    []uint32
	items   []T
	gen     uint64
}

// IteratorFactory returns a factory for the current build.
func (b *Bins[T]) IteratorFactory() IteratorFactory[T] {
	return IteratorFactory[T]{
		offsets: b.s.offsets,
		perm:    b.s.perm,
		items:   b.items,
		gen:     b.gen,
	}
}

// Current reports whether f was produced by b's latest build.
func (b *Bins[T]) Current(f IteratorFactory[T]) bool {
	return f.gen == b.gen && unsafe.SliceData(f.offsets) == unsafe.SliceData(b.s.offsets)
}

// NumBins returns the number of bins the factory covers.
func (f IteratorFactory[T]) NumBins() int {
	if len(f.offsets) == 0 {
		return 0
	}
	return len(f.offsets) - 1
}

// Count returns the number of items in bin.
func (f IteratorFactory[T]) Count(bin int) int {
	return int(f.offsets[bin+1] - f.offsets[bin])
}

// Iterator returns a forward-only cursor over the items in bin.
func (f IteratorFactory[T]) Iterator(bin int) BinIterator[T] {
	lo, hi := f.offsets[bin], f.offsets[bin+1]
	return BinIterator[T]{idx: f.perm[lo:hi], items: f.items}
}

// BinIterator walks the items of one bin. It shares the lifetime rules of
// the IteratorFactory it came from.
type BinIterator[T any] struct {
	idx   []uint32
	items []T
	pos   int
}

// Len returns the number of items in the bin.
func (it *BinIterator[T]) Len() int { return len(it.idx) }

// Remaining returns the number of items Next has yet to return.
func (it *BinIterator[T]) Remaining() int { return len(it.idx) - it.pos }

// Next returns the original index and value of the next item in the bin.
// ok is false once the bin is exhausted.
func (it *BinIterator[T]) Next() (index uint32, item T, ok bool) {
	if it.pos >= len(it.idx) {
		return 0, item, false
	}
	index = it.idx[it.pos]
	it.pos++
	return index, it.items[index], true
}

// Indices returns the original indices of the bin's items, in bin order.
// The slice aliases the permutation array and must not be modified.
func (it *BinIterator[T]) Indices() []uint32 { return it.idx }

// All yields every (index, item) pair of the bin from the start, without
// moving the cursor.
func (it *BinIterator[T]) All() iter.Seq2[uint32, T] {
	idx, items := it.idx, it.items
	return func(yield func(uint32, T) bool) {
		for _, i := range idx {
			if !yield(i, items[i]) {
				return
			}
		}
	}
}

// ForEachBin calls fn once for every bin of the current build and returns
// when all calls have finished. Under PolicySerial the calls run in bin order
// on the calling goroutine; otherwise bins are split across the worker pool
// and fn must be safe for concurrent use.
func (b *Bins[T]) ForEachBin(fn func(bin int, it *BinIterator[T])) {
	f := b.IteratorFactory()
	m := f.NumBins()
	w := 1
	if b.policy != PolicySerial {
		w = partition.Workers(b.cfg.workers, m)
	}
	partition.Run(m, w, func(_, lo, hi int) {
		for bin := lo; bin < hi; bin++ {
			it := f.Iterator(bin)
			fn(bin, &it)
		}
	})
}
