//go:build !windows

package watch

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestIsFatalWatchError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"watch limit reached", syscall.ENOSPC, true},
		{"process fd limit", syscall.EMFILE, true},
		{"system fd limit", syscall.ENFILE, true},
		{"wrapped fatal", fmt.Errorf("adding watch: %w", syscall.ENOSPC), true},
		{"permission denied", syscall.EACCES, false},
		{"plain error", errors.New("transient hiccup"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isFatalWatchError(tt.err); got != tt.want {
				t.Errorf("isFatalWatchError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
