// Bench measures densebins build throughput and memory for each policy.
//
// Usage:
//
//	go run ./cmd/bench -items 10000000 -cells 64 -policy workers
//	go run ./cmd/bench -input positions.bin -policy atomic
//
// Flags:
//
//	-items       Number of generated particles, ignored with -input (default: 10,000,000)
//	-input       Position dataset written by cmd/gen (default: generate in memory)
//	-domain      Edge length of the cubic domain (default: 1.0)
//	-cells       Grid cells per axis (default: 64)
//	-policy      Backend: default, serial, workers or atomic (default: default)
//	-workers     Worker count, 0 for GOMAXPROCS (default: 0)
//	-grain       Items per atomic task, 0 for the library default (default: 0)
//	-tasks       In-flight atomic task limit, 0 for the library default (default: 0)
//	-iterations  Timed builds after one warm-up build (default: 5)
//
// The permutation checksum printed at the end is identical across the serial
// and workers policies for the same input.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"runtime"
	"runtime/metrics"
	"runtime/pprof"
	"slices"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"

	"github.com/tamirms/densebins"
	"github.com/tamirms/densebins/internal/encoding"
)

// particle is the benchmark item: a position in [0, domain)^3.
type particle struct {
	X, Y, Z float64
}

type benchConfig struct {
	items      int
	input      string
	domain     float64
	cells      int
	policy     string
	workers    int
	grain      int
	tasks      int
	iterations int
	cpuprofile string
	memprofile string
}

// getMaxRSS returns the peak resident set size of the process in bytes.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// Linux reports kilobytes, macOS bytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024
	}
	return maxRSS
}

func main() {
	var cfg benchConfig
	flag.IntVar(&cfg.items, "items", 10_000_000, "number of generated particles (ignored with -input)")
	flag.StringVar(&cfg.input, "input", "", "position dataset written by cmd/gen")
	flag.Float64Var(&cfg.domain, "domain", 1.0, "edge length of the cubic domain")
	flag.IntVar(&cfg.cells, "cells", 64, "grid cells per axis")
	flag.StringVar(&cfg.policy, "policy", "default", "backend: default, serial, workers or atomic")
	flag.IntVar(&cfg.workers, "workers", 0, "worker count (0 = GOMAXPROCS)")
	flag.IntVar(&cfg.grain, "grain", 0, "items per atomic task (0 = library default)")
	flag.IntVar(&cfg.tasks, "tasks", 0, "in-flight atomic task limit (0 = library default)")
	flag.IntVar(&cfg.iterations, "iterations", 5, "timed builds after one warm-up build")
	flag.StringVar(&cfg.cpuprofile, "cpuprofile", "", "write cpu profile to file (build phase only)")
	flag.StringVar(&cfg.memprofile, "memprofile", "", "write memory profile to file (build phase only)")
	verbose := flag.Bool("v", false, "log every build")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(cfg, logger); err != nil {
		logger.Error("bench failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg benchConfig, logger *slog.Logger) error {
	if cfg.cells <= 0 || cfg.domain <= 0 || cfg.iterations <= 0 {
		return fmt.Errorf("invalid flags: cells=%d domain=%g iterations=%d", cfg.cells, cfg.domain, cfg.iterations)
	}
	policy, err := densebins.ParsePolicy(cfg.policy)
	if err != nil {
		return err
	}

	var ps []particle
	loadStart := time.Now()
	if cfg.input != "" {
		fmt.Printf("Loading %s...\n", cfg.input)
		ps, err = loadParticles(cfg.input)
		if err != nil {
			return err
		}
	} else {
		fmt.Println("Generating particles...")
		ps = generateParticles(cfg.items, cfg.domain)
	}
	loadDuration := time.Since(loadStart)

	opts := []densebins.Option{
		densebins.WithPolicy(policy),
		densebins.WithLogger(logger),
	}
	if cfg.workers > 0 {
		opts = append(opts, densebins.WithWorkers(cfg.workers))
	}
	if cfg.grain > 0 {
		opts = append(opts, densebins.WithGrainSize(cfg.grain))
	}
	if cfg.tasks > 0 {
		opts = append(opts, densebins.WithTaskLimit(cfg.tasks))
	}
	bins, err := densebins.New[particle](opts...)
	if err != nil {
		return err
	}

	box := densebins.BoxOfSize(densebins.IntVect{cfg.cells, cfg.cells, cfg.cells})
	inv := float64(cfg.cells) / cfg.domain
	cellOf := func(p particle) densebins.IntVect {
		return densebins.IntVect{int(p.X * inv), int(p.Y * inv), int(p.Z * inv)}
	}

	fmt.Println("Warming up...")
	if err := bins.BuildBox(ps, box, cellOf); err != nil {
		return err
	}

	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	var baseline runtime.MemStats
	runtime.ReadMemStats(&baseline)
	baselineRSS := getMaxRSS()

	sampler := startSampler(baseline.Alloc, baselineRSS)

	if cfg.cpuprofile != "" {
		f, err := os.Create(cfg.cpuprofile)
		if err != nil {
			return fmt.Errorf("create CPU profile: %w", err)
		}
		defer func() { _ = f.Close() }()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("start CPU profile: %w", err)
		}
	}

	fmt.Printf("Building %d times...\n", cfg.iterations)
	durations := make([]time.Duration, cfg.iterations)
	for i := range durations {
		start := time.Now()
		if err := bins.BuildBox(ps, box, cellOf); err != nil {
			return err
		}
		durations[i] = time.Since(start)
	}

	if cfg.cpuprofile != "" {
		pprof.StopCPUProfile()
	}
	if cfg.memprofile != "" {
		if err := writeHeapProfile(cfg.memprofile); err != nil {
			logger.Warn("memory profile not written", "error", err)
		}
	}

	peakHeap, peakRSS := sampler.stop()
	peakHeapMem := peakHeap - baseline.Alloc
	peakRSSMem := peakRSS - baselineRSS

	if err := verify(bins, len(ps)); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	stats := occupancy(bins.IteratorFactory())
	slices.Sort(durations)
	best := durations[0]
	median := durations[len(durations)/2]
	n := float64(len(ps))

	fmt.Printf("\n")
	fmt.Printf("╔═════════════════════╦══════════════════════╗\n")
	fmt.Printf("║ Policy: %-12s║ Cells: %-14d║\n", bins.Policy(), box.NumPts())
	fmt.Printf("╠═════════════════════╬══════════════════════╣\n")
	fmt.Printf("║ Particles           ║ %-20d ║\n", len(ps))
	fmt.Printf("║ Load time           ║ %6.2f sec           ║\n", loadDuration.Seconds())
	fmt.Printf("║ Build time (best)   ║ %8.2f ms          ║\n", float64(best.Microseconds())/1000)
	fmt.Printf("║ Build time (median) ║ %8.2f ms          ║\n", float64(median.Microseconds())/1000)
	fmt.Printf("║ Throughput (best)   ║ %8.2f M/sec       ║\n", n/best.Seconds()/1_000_000)
	fmt.Printf("║ Empty cells         ║ %-20d ║\n", stats.empty)
	fmt.Printf("║ Max per cell        ║ %-20d ║\n", stats.max)
	fmt.Printf("║ Mean per cell       ║ %8.2f             ║\n", stats.mean)
	fmt.Printf("║ Peak heap memory    ║ %8.1f MB          ║\n", float64(peakHeapMem)/1_000_000)
	fmt.Printf("║ Peak RSS memory     ║ %8.1f MB          ║\n", float64(peakRSSMem)/1_000_000)
	fmt.Printf("║ Permutation xxh64   ║ %016x     ║\n", checksum(bins.Permutation()))
	fmt.Printf("╚═════════════════════╩══════════════════════╝\n")
	return nil
}

// loadParticles reads a cmd/gen dataset through a read-only mapping.
func loadParticles(path string) ([]particle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("map dataset: %w", err)
	}
	defer func() { _ = data.Unmap() }()
	adviseSequential(data)

	n, err := encoding.ReadHeader(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ps := make([]particle, n)
	for i := range ps {
		p := encoding.Position(data, i)
		ps[i] = particle{X: p[0], Y: p[1], Z: p[2]}
	}
	return ps, nil
}

// generateParticles creates n uniformly distributed particles from a fixed
// seed, so repeated runs bin the same input.
func generateParticles(n int, domain float64) []particle {
	rng := rand.New(rand.NewPCG(0x1234, 0x5678))
	ps := make([]particle, n)
	for i := range ps {
		ps[i] = particle{
			X: rng.Float64() * domain,
			Y: rng.Float64() * domain,
			Z: rng.Float64() * domain,
		}
	}
	return ps
}

// verify checks conservation and that every permutation run matches the
// recorded bin ids.
func verify(bins *densebins.Bins[particle], n int) error {
	offsets, perm, ids := bins.Offsets(), bins.Permutation(), bins.BinIDs()
	m := bins.NumBins()
	if len(perm) != n || offsets[0] != 0 || offsets[m] != uint32(n) {
		return fmt.Errorf("conservation: %d items, offsets [%d, %d]", len(perm), offsets[0], offsets[m])
	}
	seen := make([]bool, n)
	for k := range m {
		for p := offsets[k]; p < offsets[k+1]; p++ {
			i := perm[p]
			if seen[i] {
				return fmt.Errorf("item %d listed twice", i)
			}
			seen[i] = true
			if ids[i] != uint32(k) {
				return fmt.Errorf("item %d of bin %d listed under bin %d", i, ids[i], k)
			}
		}
	}
	return nil
}

type occupancyStats struct {
	empty int
	max   int
	mean  float64
}

func occupancy(f densebins.IteratorFactory[particle]) occupancyStats {
	var s occupancyStats
	var total int
	for bin := range f.NumBins() {
		c := f.Count(bin)
		total += c
		s.max = max(s.max, c)
		if c == 0 {
			s.empty++
		}
	}
	if f.NumBins() > 0 {
		s.mean = float64(total) / float64(f.NumBins())
	}
	return s
}

// checksum hashes the permutation so runs can be compared across policies.
func checksum(perm []uint32) uint64 {
	d := xxhash.New()
	var buf [4]byte
	for _, i := range perm {
		binary.LittleEndian.PutUint32(buf[:], i)
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	runtime.GC()
	return pprof.WriteHeapProfile(f)
}

// sampler tracks peak heap and RSS every 10ms. It reads runtime/metrics
// rather than ReadMemStats to avoid stop-the-world pauses during builds.
type sampler struct {
	peakAlloc atomic.Uint64
	peakRSS   atomic.Uint64
	done      chan struct{}
	exited    chan struct{}
}

func startSampler(alloc, rss uint64) *sampler {
	s := &sampler{done: make(chan struct{}), exited: make(chan struct{})}
	s.peakAlloc.Store(alloc)
	s.peakRSS.Store(rss)
	go func() {
		defer close(s.exited)
		samples := []metrics.Sample{{Name: "/memory/classes/heap/objects:bytes"}}
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				metrics.Read(samples)
				storeMax(&s.peakAlloc, samples[0].Value.Uint64())
				storeMax(&s.peakRSS, getMaxRSS())
			}
		}
	}()
	return s
}

// stop ends sampling and returns the peaks, including one final reading.
func (s *sampler) stop() (heap, rss uint64) {
	close(s.done)
	<-s.exited
	var final runtime.MemStats
	runtime.ReadMemStats(&final)
	storeMax(&s.peakAlloc, final.Alloc)
	storeMax(&s.peakRSS, getMaxRSS())
	return s.peakAlloc.Load(), s.peakRSS.Load()
}

func storeMax(v *atomic.Uint64, x uint64) {
	for {
		old := v.Load()
		if x <= old || v.CompareAndSwap(old, x) {
			return
		}
	}
}
