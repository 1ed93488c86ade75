//go:build linux

package main

import (
	"os"

	"golang.org/x/sys/unix"
)

// reserve sizes the dataset file to size bytes with its blocks allocated, so
// writes through the mapping cannot fault on a full disk. Filesystems without
// fallocate support only get their length set.
func reserve(f *os.File, size int64) error {
	fd := int(f.Fd())
	// Mode 0 allocates and extends the file length in one call.
	if err := unix.Fallocate(fd, 0, 0, size); err == nil {
		return nil
	}
	return unix.Ftruncate(fd, size)
}

// madvPopulateWrite is MADV_POPULATE_WRITE from linux/mman.h.
const madvPopulateWrite = 0x17

// populate pre-faults the output mapping for writing. Kernels before 5.14
// reject MADV_POPULATE_WRITE and the pages fault in lazily instead.
func populate(data []byte) {
	if len(data) > 0 {
		_ = unix.Madvise(data, madvPopulateWrite)
	}
}
