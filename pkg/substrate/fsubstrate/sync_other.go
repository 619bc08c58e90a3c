//go:build !linux
// +build !linux

package fsubstrate

import "os"

// datasync falls back to a full fsync on platforms without a
// data-only sync primitive wired up.
func datasync(f *os.File) error {
	return f.Sync()
}
