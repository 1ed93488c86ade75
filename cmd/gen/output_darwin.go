//go:build darwin

package main

import (
	"os"

	"golang.org/x/sys/unix"
)

// reserve preallocates size bytes, contiguous if the volume allows, and sets
// the file length, which F_PREALLOCATE leaves untouched.
func reserve(f *os.File, size int64) error {
	fst := unix.Fstore_t{
		Flags:   unix.F_ALLOCATECONTIG | unix.F_ALLOCATEALL,
		Posmode: unix.F_PEOFPOSMODE,
		Length:  size,
	}
	if err := unix.FcntlFstore(f.Fd(), unix.F_PREALLOCATE, &fst); err != nil {
		fst.Flags = unix.F_ALLOCATEALL
		_ = unix.FcntlFstore(f.Fd(), unix.F_PREALLOCATE, &fst)
	}
	return unix.Ftruncate(int(f.Fd()), size)
}

// populate asks for the output pages to be brought in ahead of the writers.
func populate(data []byte) {
	if len(data) > 0 {
		_ = unix.Madvise(data, unix.MADV_WILLNEED)
	}
}
