package densebins

import (
	"log/slog"
	"runtime"
)

const (
	// defaultGrainSize is the number of items handled by one atomic-policy task.
	// It matches the thread-block width a GPU launch would use.
	defaultGrainSize = 256

	// defaultTasksPerProc bounds in-flight atomic-policy tasks per GOMAXPROCS.
	defaultTasksPerProc = 64
)

// Option is a functional option for configuring a Bins.
type Option func(*config)

type config struct {
	policy    Policy
	workers   int // 0 = GOMAXPROCS
	grainSize int // 0 = defaultGrainSize
	taskLimit int // 0 = defaultTasksPerProc * GOMAXPROCS
	logger    *slog.Logger
}

func defaultConfig() *config {
	return &config{
		policy: PolicyDefault,
	}
}

// normalize fills zero-valued fields with their defaults.
func (c *config) normalize() {
	procs := runtime.GOMAXPROCS(0)
	if c.workers == 0 {
		c.workers = procs
	}
	if c.grainSize == 0 {
		c.grainSize = defaultGrainSize
	}
	if c.taskLimit == 0 {
		c.taskLimit = defaultTasksPerProc * procs
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
}

// WithPolicy selects the concurrency backend. Default is PolicyDefault.
func WithPolicy(p Policy) Option {
	return func(c *config) {
		c.policy = p
	}
}

// WithWorkers sets the worker pool size for PolicyWorkers, for ForEachBin,
// and for the parallel prefix sum of PolicyAtomic.
// Zero selects runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithGrainSize sets how many consecutive items one PolicyAtomic task handles.
// Zero selects 256.
func WithGrainSize(n int) Option {
	return func(c *config) {
		c.grainSize = n
	}
}

// WithTaskLimit caps the number of PolicyAtomic tasks running at once.
// Zero selects 64 × GOMAXPROCS.
func WithTaskLimit(n int) Option {
	return func(c *config) {
		c.taskLimit = n
	}
}

// WithLogger sets the logger used for per-build debug records.
// A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}
