package densebins

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"
	"slices"
	"testing"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

// particle is the item type used throughout the tests.
type particle struct {
	X, Y, Z float64
	Key     uint32
}

// allPolicies lists every concrete policy with its name.
var allPolicies = []struct {
	name   string
	policy Policy
}{
	{"serial", PolicySerial},
	{"workers", PolicyWorkers},
	{"atomic", PolicyAtomic},
}

// generateParticles creates n particles uniformly distributed in [0, l)^3,
// with Key drawn from [0, keys).
func generateParticles(rng *rand.Rand, n int, l float64, keys uint32) []particle {
	ps := make([]particle, n)
	for i := range ps {
		ps[i] = particle{
			X:   rng.Float64() * l,
			Y:   rng.Float64() * l,
			Z:   rng.Float64() * l,
			Key: rng.Uint32N(keys),
		}
	}
	return ps
}

// keyMapper bins particles by Key.
func keyMapper(p particle) uint32 { return p.Key }

// newTestBins creates a Bins or fails the test.
func newTestBins[T any](t testing.TB, opts ...Option) *Bins[T] {
	t.Helper()
	b, err := New[T](opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

// verifyInvariants checks conservation, offsets shape, permutation bijection
// and bin consistency against the mapper-produced bins array.
func verifyInvariants[T any](t *testing.T, b *Bins[T], n, m int) {
	t.Helper()

	offsets, perm, bins := b.Offsets(), b.Permutation(), b.BinIDs()
	if b.NumItems() != n || len(perm) != n || len(bins) != n {
		t.Fatalf("NumItems=%d len(perm)=%d len(bins)=%d, want %d", b.NumItems(), len(perm), len(bins), n)
	}
	if b.NumBins() != m || len(offsets) != m+1 {
		t.Fatalf("NumBins=%d len(offsets)=%d, want %d bins", b.NumBins(), len(offsets), m)
	}
	if offsets[0] != 0 || offsets[m] != uint32(n) {
		t.Fatalf("offsets[0]=%d offsets[m]=%d, want 0 and %d", offsets[0], offsets[m], n)
	}

	var total int
	for k := range m {
		if offsets[k+1] < offsets[k] {
			t.Fatalf("offsets decrease at bin %d: %d > %d", k, offsets[k], offsets[k+1])
		}
		total += int(offsets[k+1] - offsets[k])
	}
	if total != n {
		t.Fatalf("sum of bin sizes = %d, want %d", total, n)
	}

	seen := make([]bool, n)
	for _, i := range perm {
		if int(i) >= n || seen[i] {
			t.Fatalf("permutation is not a bijection: index %d repeated or out of range", i)
		}
		seen[i] = true
	}

	counts := make([]int, m)
	for _, id := range bins {
		counts[id]++
	}
	for k := range m {
		if got := int(offsets[k+1] - offsets[k]); got != counts[k] {
			t.Fatalf("bin %d: run length %d, but %d items map to it", k, got, counts[k])
		}
		for p := offsets[k]; p < offsets[k+1]; p++ {
			if bins[perm[p]] != uint32(k) {
				t.Fatalf("bin %d: position %d holds item %d of bin %d", k, p, perm[p], bins[perm[p]])
			}
		}
	}
}

// verifyStable checks that each bin lists its items in increasing index order.
func verifyStable[T any](t *testing.T, b *Bins[T]) {
	t.Helper()
	offsets, perm := b.Offsets(), b.Permutation()
	for k := range b.NumBins() {
		run := perm[offsets[k]:offsets[k+1]]
		for p := 1; p < len(run); p++ {
			if run[p-1] >= run[p] {
				t.Fatalf("bin %d not stable: %d before %d", k, run[p-1], run[p])
			}
		}
	}
}

// binSets returns every bin's indices sorted, for order-insensitive comparison.
func binSets[T any](b *Bins[T]) [][]uint32 {
	offsets, perm := b.Offsets(), b.Permutation()
	sets := make([][]uint32, b.NumBins())
	for k := range sets {
		sets[k] = slices.Sorted(slices.Values(perm[offsets[k]:offsets[k+1]]))
	}
	return sets
}
