package densebins

import (
	"fmt"

	binerrors "github.com/tamirms/densebins/errors"
)

// Policy selects the concurrency backend used by Build.
// It is fixed when the Bins is created and never inferred from the data.
type Policy uint8

const (
	// PolicyDefault resolves to PolicyWorkers.
	PolicyDefault Policy = iota

	// PolicyAtomic is the massively-parallel backend: one lightweight task per
	// grain of items, coordinated by atomic fetch-and-add on per-bin counters.
	// Bin membership is deterministic; the order of items within a bin is not.
	PolicyAtomic

	// PolicyWorkers is the shared-memory backend: a fixed pool of workers with
	// worker-local histograms and a two-level prefix sum. The result is stable
	// and identical to PolicySerial.
	PolicyWorkers

	// PolicySerial is the single-goroutine reference counting sort.
	PolicySerial
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case PolicyDefault:
		return "default"
	case PolicyAtomic:
		return "atomic"
	case PolicyWorkers:
		return "workers"
	case PolicySerial:
		return "serial"
	default:
		return "unknown"
	}
}

// Stable reports whether the policy preserves original index order within
// each bin.
func (p Policy) Stable() bool {
	return p.resolve() != PolicyAtomic
}

// ParsePolicy maps a policy name, as returned by String, back to its Policy.
func ParsePolicy(name string) (Policy, error) {
	for _, p := range []Policy{PolicyDefault, PolicyAtomic, PolicyWorkers, PolicySerial} {
		if p.String() == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", binerrors.ErrUnknownPolicy, name)
}

func (p Policy) resolve() Policy {
	if p == PolicyDefault {
		return PolicyWorkers
	}
	return p
}

// binner is a counting-sort backend.
//
// # Contract
//
// On entry s has been reset for n items and m bins: counts and offsets are
// zeroed with length m+1, bins and perm have length n. assign(i) returns the
// bin of item i and is safe to call concurrently.
//
// On return bins, offsets and perm satisfy the build invariants, and every
// goroutine the binner started has finished.
//
// # Thread Safety
//
// A binner holds configuration and, for the workers backend, a histogram
// buffer reused across builds. It is never called concurrently with itself.
type binner interface {
	bin(s *scratch, n, m int, assign func(i int) uint32)
}

// newBinner returns the backend for a resolved policy.
func newBinner(p Policy, cfg *config) (binner, error) {
	switch p.resolve() {
	case PolicyAtomic:
		return &atomicBinner{grain: cfg.grainSize, taskLimit: cfg.taskLimit, scanWorkers: cfg.workers}, nil
	case PolicyWorkers:
		return &workerBinner{workers: cfg.workers}, nil
	case PolicySerial:
		return serialBinner{}, nil
	}
	return nil, fmt.Errorf("%w: policy ID %d", binerrors.ErrUnknownPolicy, p)
}
