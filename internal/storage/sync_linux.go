//go:build linux

package storage

import (
	"os"

	"golang.org/x/sys/unix"
)

// syncFile persists page data and the file length.
func syncFile(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
