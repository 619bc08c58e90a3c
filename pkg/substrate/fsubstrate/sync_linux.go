//go:build linux
// +build linux

package fsubstrate

import (
	"os"

	"golang.org/x/sys/unix"
)

// datasync durably flushes f's data (and only the data it strictly
// needs to, skipping the metadata-only fsync cost) to disk on Linux.
func datasync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
