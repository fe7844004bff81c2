//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package storage

import "os"

// Advisory locking is only implemented for unix builds.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
