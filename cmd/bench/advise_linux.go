//go:build linux

package main

import "golang.org/x/sys/unix"

// adviseSequential hints that the dataset mapping will be read front to back.
// Errors are ignored; the hint only affects readahead.
func adviseSequential(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
}
