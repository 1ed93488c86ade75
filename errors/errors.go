// Package errors defines all exported error sentinels for the densebins library.
//
// This is the single source of truth for error values. Both the top-level
// densebins package and its internal packages import from here, so
// errors.Is checks work across package boundaries.
package errors

import "errors"

// Construction errors
var (
	ErrUnknownPolicy    = errors.New("densebins: unknown bin policy")
	ErrInvalidWorkers   = errors.New("densebins: worker count must not be negative")
	ErrInvalidGrainSize = errors.New("densebins: grain size must not be negative")
	ErrInvalidTaskLimit = errors.New("densebins: task limit must not be negative")
)

// Build errors
var (
	ErrInvalidBinCount = errors.New("densebins: bin count must be at least 1")
	ErrTooManyBins     = errors.New("densebins: bin count exceeds index range")
	ErrTooManyItems    = errors.New("densebins: item count exceeds index range (2^32-1)")
	ErrEmptyBox        = errors.New("densebins: box has no cells")
)

// Dataset errors (position files read and written by the cmd tools)
var (
	ErrInvalidMagic  = errors.New("densebins: invalid dataset magic")
	ErrTruncatedFile = errors.New("densebins: dataset file is truncated")
)
