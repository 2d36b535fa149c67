//go:build !windows

package watch

import (
	"errors"
	"syscall"
)

// isFatalWatchError reports whether a watcher error means the kernel can no
// longer deliver events, so continuing to watch would silently miss changes.
// ENOSPC is inotify's "watch limit reached"; EMFILE and ENFILE are descriptor
// exhaustion.
func isFatalWatchError(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}
