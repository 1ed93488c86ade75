// Package densebins implements dense spatial binning: a counting sort that
// groups N borrowed items into M bins and exposes each bin as a contiguous
// run of item indices.
//
// A build produces three arrays: the bin of every item, a permutation of the
// item indices in bin order, and M+1 offsets into that permutation. Iterating
// a bin then walks a contiguous slice instead of scanning the whole item set.
//
// # Basic Usage
//
// Binning particles into the cells of a grid:
//
//	bins, err := densebins.New[Particle]()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	box := densebins.BoxOfSize(densebins.IntVect{64, 64, 64})
//	err = bins.BuildBox(particles, box, func(p Particle) densebins.IntVect {
//	    return densebins.IntVect{int(p.X / dx), int(p.Y / dx), int(p.Z / dx)}
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Walking one cell:
//
//	it := bins.IteratorFactory().Iterator(cell)
//	for i, p := range it.All() {
//	    fmt.Println(i, p)
//	}
//
// # Policies
//
// The backend is chosen once, with WithPolicy:
//
//   - PolicySerial: single goroutine, stable.
//   - PolicyWorkers (default): fixed worker pool with worker-local
//     histograms, stable and identical to PolicySerial.
//   - PolicyAtomic: many small tasks sharing atomic per-bin counters; bin
//     membership is exact but order within a bin varies between runs.
//
// # Package Structure
//
//   - Public API: bins.go (New, Build, BuildBox, raw array access), iterator.go
//     (IteratorFactory, BinIterator, ForEachBin)
//   - Configuration: options.go (Option, With* functions)
//   - Mapping: box.go (Box, IntVect, clamping), mapper.go (BoxMapper, HashMapper)
//   - Backend dispatch: policy.go (Policy, binner interface)
//   - Backends: binner_serial.go, binner_workers.go, binner_atomic.go
//   - Prefix sums and chunking: internal/scan, internal/partition
//   - Error sentinels: errors/
//   - Tools: cmd/gen writes position datasets, cmd/bench times builds over them
package densebins
