// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"time"
)

// transientFragments are engine error strings that typically succeed on a
// second attempt: rootless Podman races, resolver hiccups during image
// pulls, and overlay storage mount races.
var transientFragments = []string{
	"ping_group_range",
	"OCI runtime error",
	"Temporary failure resolving",
	"Could not resolve host",
	"connection timed out",
	"connection refused",
	"error creating overlay mount",
	"error mounting layer",
}

// RetryTransient runs op up to maxAttempts times, sleeping with exponential
// backoff between attempts. Only errors classified transient by
// IsTransientError are retried; any other error is returned immediately.
// Cancelling ctx ends the loop before the next attempt.
func RetryTransient(
	ctx context.Context,
	maxAttempts int,
	baseBackoff time.Duration,
	op func() error,
) error {
	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("retry aborted: %w", err)
			}
			time.Sleep(baseBackoff * time.Duration(1<<(attempt-1)))
		}

		err := op()
		if err == nil {
			return nil
		}
		if !IsTransientError(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// IsTransientError reports whether err is a container engine error that may
// succeed on retry. Context cancellation and deadline errors are never
// transient: the caller explicitly stopped the operation.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Exit code 125 is the engines' own failure code (as opposed to the
	// containerized command failing). Usually a storage or cgroup glitch.
	if exitErr, ok := errors.AsType[*exec.ExitError](err); ok && exitErr.ExitCode() == 125 {
		return true
	}

	msg := err.Error()
	return slices.ContainsFunc(transientFragments, func(fragment string) bool {
		return strings.Contains(msg, fragment)
	})
}
