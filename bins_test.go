package densebins

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"testing"

	binerrors "github.com/tamirms/densebins/errors"
)

// ============================================================================
// Concrete scenario
// ============================================================================

// TestBuildSmallScenario bins keys [0, 5, 2, 9] with key<5 -> bin 0, else bin 1.
func TestBuildSmallScenario(t *testing.T) {
	keys := []int{0, 5, 2, 9}
	split := func(k int) uint32 {
		if k < 5 {
			return 0
		}
		return 1
	}

	for _, p := range allPolicies {
		t.Run(p.name, func(t *testing.T) {
			b := newTestBins[int](t, WithPolicy(p.policy), WithWorkers(2), WithGrainSize(1))
			if err := b.Build(keys, 2, split); err != nil {
				t.Fatal(err)
			}

			if got, want := b.BinIDs(), []uint32{0, 1, 0, 1}; !slices.Equal(got, want) {
				t.Errorf("bins = %v, want %v", got, want)
			}
			if got, want := b.Offsets(), []uint32{0, 2, 4}; !slices.Equal(got, want) {
				t.Errorf("offsets = %v, want %v", got, want)
			}

			perm := b.Permutation()
			if p.policy.Stable() {
				if want := []uint32{0, 2, 1, 3}; !slices.Equal(perm, want) {
					t.Errorf("permutation = %v, want %v", perm, want)
				}
				return
			}
			first := slices.Sorted(slices.Values(perm[:2]))
			second := slices.Sorted(slices.Values(perm[2:]))
			if !slices.Equal(first, []uint32{0, 2}) || !slices.Equal(second, []uint32{1, 3}) {
				t.Errorf("permutation = %v, want {0,2} then {1,3}", perm)
			}
		})
	}
}

// ============================================================================
// Invariants across policies and sizes
// ============================================================================

func TestBuildInvariants(t *testing.T) {
	sizes := []struct {
		n, m int
	}{
		{0, 1},
		{0, 17},
		{1, 1},
		{1, 5},
		{3, 8},
		{100, 1},
		{1000, 7},
		{1000, 1000},
		{5000, 100},
		{20000, 4096},
	}

	for _, p := range allPolicies {
		for _, sz := range sizes {
			t.Run(fmt.Sprintf("%s/n=%d/m=%d", p.name, sz.n, sz.m), func(t *testing.T) {
				rng := newTestRNG(t)
				ps := generateParticles(rng, sz.n, 1, uint32(sz.m))

				b := newTestBins[particle](t, WithPolicy(p.policy), WithWorkers(4), WithGrainSize(64))
				if err := b.Build(ps, sz.m, keyMapper); err != nil {
					t.Fatal(err)
				}
				verifyInvariants(t, b, sz.n, sz.m)
				if p.policy.Stable() {
					verifyStable(t, b)
				}
				for i, id := range b.BinIDs() {
					if id != ps[i].Key {
						t.Fatalf("bins[%d] = %d, want %d", i, id, ps[i].Key)
					}
				}
			})
		}
	}
}

func TestBuildEmpty(t *testing.T) {
	for _, p := range allPolicies {
		t.Run(p.name, func(t *testing.T) {
			b := newTestBins[particle](t, WithPolicy(p.policy))
			if err := b.Build(nil, 6, keyMapper); err != nil {
				t.Fatal(err)
			}
			if b.NumItems() != 0 || len(b.Permutation()) != 0 {
				t.Errorf("NumItems = %d, want 0", b.NumItems())
			}
			if got, want := b.Offsets(), make([]uint32, 7); !slices.Equal(got, want) {
				t.Errorf("offsets = %v, want all zero", got)
			}
		})
	}
}

func TestBuildSingleBin(t *testing.T) {
	const n = 777
	rng := newTestRNG(t)
	ps := generateParticles(rng, n, 1, 1)

	for _, p := range allPolicies {
		t.Run(p.name, func(t *testing.T) {
			b := newTestBins[particle](t, WithPolicy(p.policy), WithGrainSize(10))
			if err := b.Build(ps, 1, func(particle) uint32 { return 0 }); err != nil {
				t.Fatal(err)
			}
			if got := b.Offsets(); !slices.Equal(got, []uint32{0, n}) {
				t.Errorf("offsets = %v, want [0 %d]", got, n)
			}
			verifyInvariants(t, b, n, 1)
		})
	}
}

// ============================================================================
// Cross-policy agreement
// ============================================================================

// TestStablePoliciesIdentical checks that workers and serial produce the same
// permutation bit for bit, across several worker counts.
func TestStablePoliciesIdentical(t *testing.T) {
	rng := newTestRNG(t)
	ps := generateParticles(rng, 30000, 1, 513)

	serial := newTestBins[particle](t, WithPolicy(PolicySerial))
	if err := serial.Build(ps, 513, keyMapper); err != nil {
		t.Fatal(err)
	}

	for _, w := range []int{1, 2, 3, 7, 16, 64} {
		t.Run(fmt.Sprintf("w=%d", w), func(t *testing.T) {
			b := newTestBins[particle](t, WithPolicy(PolicyWorkers), WithWorkers(w))
			if err := b.Build(ps, 513, keyMapper); err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(b.Permutation(), serial.Permutation()) {
				t.Error("workers permutation differs from serial")
			}
			if !slices.Equal(b.Offsets(), serial.Offsets()) {
				t.Error("workers offsets differ from serial")
			}
		})
	}
}

// TestAtomicSetEquivalence checks that the atomic policy puts the same set of
// items in each bin as the serial policy.
func TestAtomicSetEquivalence(t *testing.T) {
	rng := newTestRNG(t)
	ps := generateParticles(rng, 50000, 1, 97)

	serial := newTestBins[particle](t, WithPolicy(PolicySerial))
	if err := serial.Build(ps, 97, keyMapper); err != nil {
		t.Fatal(err)
	}
	want := binSets(serial)

	for _, grain := range []int{1, 33, 256, 100000} {
		t.Run(fmt.Sprintf("grain=%d", grain), func(t *testing.T) {
			b := newTestBins[particle](t, WithPolicy(PolicyAtomic), WithGrainSize(grain), WithTaskLimit(8))
			if err := b.Build(ps, 97, keyMapper); err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(b.Offsets(), serial.Offsets()) {
				t.Fatal("atomic offsets differ from serial")
			}
			got := binSets(b)
			for k := range want {
				if !slices.Equal(got[k], want[k]) {
					t.Fatalf("bin %d: atomic members differ from serial", k)
				}
			}
		})
	}
}

// TestAtomicParallelScan covers the two-level prefix sum used once the bin
// count reaches the parallel scan threshold.
func TestAtomicParallelScan(t *testing.T) {
	const m = parallelScanThreshold + 3
	rng := newTestRNG(t)
	ps := generateParticles(rng, 40000, 1, m)

	b := newTestBins[particle](t, WithPolicy(PolicyAtomic), WithWorkers(4))
	if err := b.Build(ps, m, keyMapper); err != nil {
		t.Fatal(err)
	}
	verifyInvariants(t, b, len(ps), m)
}

// ============================================================================
// Lifecycle
// ============================================================================

// TestRebuildResets builds large, then small, then large again on the same
// Bins and checks nothing leaks from the previous build.
func TestRebuildResets(t *testing.T) {
	rng := newTestRNG(t)
	big := generateParticles(rng, 5000, 1, 300)
	small := generateParticles(rng, 40, 1, 3)

	for _, p := range allPolicies {
		t.Run(p.name, func(t *testing.T) {
			b := newTestBins[particle](t, WithPolicy(p.policy), WithWorkers(3))

			steps := []struct {
				items []particle
				m     int
			}{
				{big, 300},
				{small, 3},
				{nil, 9},
				{big, 300},
			}
			for i, s := range steps {
				if err := b.Build(s.items, s.m, keyMapper); err != nil {
					t.Fatal(err)
				}
				verifyInvariants(t, b, len(s.items), s.m)
				if got := b.Generation(); got != uint64(i+1) {
					t.Errorf("step %d: Generation = %d, want %d", i, got, i+1)
				}
			}
		})
	}
}

func TestBuildErrorsLeaveStateUntouched(t *testing.T) {
	b := newTestBins[int](t, WithPolicy(PolicySerial))
	if err := b.Build([]int{0, 1, 1}, 2, func(v int) uint32 { return uint32(v) }); err != nil {
		t.Fatal(err)
	}

	for _, nbins := range []int{0, -4} {
		err := b.Build([]int{7}, nbins, func(int) uint32 { return 0 })
		if !errors.Is(err, binerrors.ErrInvalidBinCount) {
			t.Errorf("nbins=%d: err = %v, want ErrInvalidBinCount", nbins, err)
		}
	}

	err := b.BuildBox([]int{7}, Box{Lo: IntVect{0, 0, 0}, Hi: IntVect{3, -1, 3}}, func(int) IntVect { return IntVect{} })
	if !errors.Is(err, binerrors.ErrEmptyBox) {
		t.Errorf("inverted box: err = %v, want ErrEmptyBox", err)
	}

	oversized := []Box{
		BoxOfSize(IntVect{1 << 22, 1 << 22, 1 << 22}),
		BoxOfSize(IntVect{1 << 16, 1 << 16, 1}),
		{Lo: IntVect{math.MinInt, 0, 0}, Hi: IntVect{math.MaxInt, 0, 0}},
	}
	for _, bx := range oversized {
		err := b.BuildBox([]int{0, 1}, bx, func(v int) IntVect { return IntVect{0, 0, v} })
		if !errors.Is(err, binerrors.ErrTooManyBins) {
			t.Errorf("box %v..%v: err = %v, want ErrTooManyBins", bx.Lo, bx.Hi, err)
		}
	}

	if strconv.IntSize == 64 {
		tooMany := uint64(math.MaxUint32) + 1
		err = b.Build([]int{7}, int(tooMany), func(int) uint32 { return 0 })
		if !errors.Is(err, binerrors.ErrTooManyBins) {
			t.Errorf("nbins=MaxUint32+1: err = %v, want ErrTooManyBins", err)
		}
	}

	if b.Generation() != 1 || b.NumItems() != 3 || b.NumBins() != 2 {
		t.Errorf("failed builds changed state: gen=%d items=%d bins=%d", b.Generation(), b.NumItems(), b.NumBins())
	}
}

// TestBuildMapperOutOfRangePanics documents that a mapper id outside
// [0, nbins) is a caller bug that panics rather than returning an error.
func TestBuildMapperOutOfRangePanics(t *testing.T) {
	b := newTestBins[int](t, WithPolicy(PolicySerial))
	defer func() {
		if recover() == nil {
			t.Error("expected panic for out-of-range bin id")
		}
	}()
	_ = b.Build([]int{0, 1, 2}, 2, func(v int) uint32 { return uint32(v) })
}

// ============================================================================
// Construction
// ============================================================================

func TestNewRejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		want error
	}{
		{"policy", WithPolicy(Policy(42)), binerrors.ErrUnknownPolicy},
		{"workers", WithWorkers(-1), binerrors.ErrInvalidWorkers},
		{"grain", WithGrainSize(-8), binerrors.ErrInvalidGrainSize},
		{"tasks", WithTaskLimit(-2), binerrors.ErrInvalidTaskLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New[int](tt.opt); !errors.Is(err, tt.want) {
				t.Errorf("New: err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	b := newTestBins[int](t)
	if b.Policy() != PolicyWorkers {
		t.Errorf("default policy = %v, want workers", b.Policy())
	}
	if b.NumBins() != 0 || b.NumItems() != 0 || b.Generation() != 0 {
		t.Errorf("fresh Bins not empty: bins=%d items=%d gen=%d", b.NumBins(), b.NumItems(), b.Generation())
	}
}

func TestParsePolicy(t *testing.T) {
	for _, p := range []Policy{PolicyDefault, PolicyAtomic, PolicyWorkers, PolicySerial} {
		got, err := ParsePolicy(p.String())
		if err != nil || got != p {
			t.Errorf("ParsePolicy(%q) = %v, %v", p.String(), got, err)
		}
	}
	if _, err := ParsePolicy("gpu"); !errors.Is(err, binerrors.ErrUnknownPolicy) {
		t.Errorf("ParsePolicy(gpu): err = %v, want ErrUnknownPolicy", err)
	}
	if Policy(9).String() != "unknown" {
		t.Errorf("Policy(9).String() = %q", Policy(9).String())
	}
}

func TestBuildLogsDebugRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	b := newTestBins[int](t, WithPolicy(PolicySerial), WithLogger(logger))
	if err := b.Build([]int{1, 0}, 2, func(v int) uint32 { return uint32(v) }); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"build complete", "policy=serial", "items=2", "bins=2", "generation=1"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}
