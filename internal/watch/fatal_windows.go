//go:build windows

package watch

import (
	"errors"
	"syscall"
)

// isFatalWatchError reports whether a watcher error means the ReadDirectoryChangesW
// loop can no longer deliver events. Errno 4 is ERROR_TOO_MANY_OPEN_FILES,
// 6 is ERROR_INVALID_HANDLE, 8 is ERROR_NOT_ENOUGH_MEMORY.
func isFatalWatchError(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case 4, 6, 8:
		return true
	}
	return false
}
