package densebins

import (
	"fmt"
	"math"
	"time"

	binerrors "github.com/tamirms/densebins/errors"
)

const (
	// maxItems is the largest item count; item indices are stored as uint32.
	maxItems = math.MaxUint32

	// maxBins is the largest bin count; bin ids are stored as uint32.
	maxBins = math.MaxUint32
)

// Bins groups a borrowed slice of items into a dense set of bins.
//
// After Build, item indices are stored in bin order in a permutation array,
// and an offsets array of length NumBins()+1 gives where each bin's run
// starts. Empty bins take no permutation space but still own an offsets entry.
//
// Usage:
//
//	bins, err := densebins.New[Particle](densebins.WithPolicy(densebins.PolicyWorkers))
//	if err != nil { return err }
//
//	err = bins.BuildBox(particles, box, func(p Particle) densebins.IntVect {
//	    return cellOf(p.Pos)
//	})
//	if err != nil { return err }
//
//	f := bins.IteratorFactory()
//	for i, p := range f.Iterator(cell).All() {
//	    ...
//	}
//
// # Thread Safety
//
// A Bins is not safe for concurrent use while Build runs. At most one Build
// may run at a time, and no reader may run alongside it. Between builds the
// arrays are immutable and any number of goroutines may read them.
type Bins[T any] struct {
	cfg    *config
	policy Policy // resolved, never PolicyDefault
	binner binner

	items []T
	s     scratch
	gen   uint64 // incremented by every successful Build
}

// New creates an empty Bins. The backend policy is resolved here; an unknown
// policy or a negative tuning value is rejected.
func New[T any](opts ...Option) (*Bins[T], error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.workers < 0 {
		return nil, binerrors.ErrInvalidWorkers
	}
	if cfg.grainSize < 0 {
		return nil, binerrors.ErrInvalidGrainSize
	}
	if cfg.taskLimit < 0 {
		return nil, binerrors.ErrInvalidTaskLimit
	}
	cfg.normalize()

	bn, err := newBinner(cfg.policy, cfg)
	if err != nil {
		return nil, err
	}

	return &Bins[T]{
		cfg:    cfg,
		policy: cfg.policy.resolve(),
		binner: bn,
	}, nil
}

// Build bins items into nbins bins using f.
//
// The counting sort runs on the configured policy and Build returns only after
// all of its goroutines have finished, so the results are visible to any
// goroutine that reads them afterwards. All prior contents are discarded.
//
// The only errors are argument checks made before any state changes:
// nbins < 1, nbins or len(items) beyond the uint32 index range. An id from f
// outside [0, nbins) panics.
func (b *Bins[T]) Build(items []T, nbins int, f Mapper[T]) error {
	if nbins < 1 {
		return fmt.Errorf("%w: got %d", binerrors.ErrInvalidBinCount, nbins)
	}
	if uint64(nbins) > maxBins {
		return fmt.Errorf("%w: got %d", binerrors.ErrTooManyBins, nbins)
	}
	if uint64(len(items)) > maxItems {
		return fmt.Errorf("%w: got %d", binerrors.ErrTooManyItems, len(items))
	}

	start := time.Now()
	n, m := len(items), nbins

	b.items = items
	b.s.reset(n, m)
	b.gen++
	b.binner.bin(&b.s, n, m, func(i int) uint32 {
		return f(items[i])
	})

	b.cfg.logger.Debug("densebins: build complete",
		"policy", b.policy,
		"items", n,
		"bins", m,
		"generation", b.gen,
		"elapsed", time.Since(start),
	)
	return nil
}

// BuildBox bins items into the cells of bx. f returns each item's coordinate
// relative to bx.Lo; coordinates outside the box are clamped to the nearest
// edge cell (see Box.ClampedIndex). Bin ids are row-major cell indices.
// An empty box returns ErrEmptyBox; a box of more than math.MaxUint32 cells,
// including one whose cell count overflows, returns ErrTooManyBins.
func (b *Bins[T]) BuildBox(items []T, bx Box, f func(T) IntVect) error {
	if !bx.Ok() {
		return fmt.Errorf("%w: lo=%v hi=%v", binerrors.ErrEmptyBox, bx.Lo, bx.Hi)
	}
	n, ok := bx.NumCells()
	if !ok || n > maxBins || n > math.MaxInt {
		return fmt.Errorf("%w: box lo=%v hi=%v", binerrors.ErrTooManyBins, bx.Lo, bx.Hi)
	}
	return b.Build(items, int(n), BoxMapper(bx, f))
}

// Policy returns the resolved backend policy.
func (b *Bins[T]) Policy() Policy { return b.policy }

// Generation returns the number of successful builds so far.
func (b *Bins[T]) Generation() uint64 { return b.gen }

// NumItems returns the number of items in the last build.
func (b *Bins[T]) NumItems() int { return len(b.s.perm) }

// NumBins returns the number of bins in the last build, or 0 before the first.
func (b *Bins[T]) NumBins() int {
	if len(b.s.offsets) == 0 {
		return 0
	}
	return len(b.s.offsets) - 1
}

// Items returns the borrowed item slice of the last build.
func (b *Bins[T]) Items() []T { return b.items }

// BinIDs returns the bin of every item, indexed by item.
// The slice aliases internal storage and is overwritten by the next Build.
func (b *Bins[T]) BinIDs() []uint32 { return b.s.bins }

// Offsets returns the NumBins()+1 run boundaries into Permutation.
// Bin k occupies Permutation()[Offsets()[k]:Offsets()[k+1]].
// The slice aliases internal storage; writing to it breaks iteration.
func (b *Bins[T]) Offsets() []uint32 { return b.s.offsets }

// Permutation returns item indices in bin order.
// The slice aliases internal storage; writing to it breaks iteration.
func (b *Bins[T]) Permutation() []uint32 { return b.s.perm }
