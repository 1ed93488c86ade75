//go:build !linux && !darwin

package main

import "os"

// reserve sets the dataset length. Blocks are not reserved, so a full disk
// surfaces as a fault while writing the mapping.
func reserve(f *os.File, size int64) error {
	return f.Truncate(size)
}

// populate is a no-op; pages fault in on first write.
func populate([]byte) {}
