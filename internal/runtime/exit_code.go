// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"os/exec"

	"github.com/gauntlet-run/gauntlet/pkg/types"
)

// Exit statuses reported for commands that did not finish on their own.
const (
	// exitCodeTimedOut mirrors the GNU timeout convention for commands
	// killed by a deadline.
	exitCodeTimedOut types.ExitCode = 124
	// exitCodeInterrupted mirrors the conventional 128+SIGINT status for
	// commands cancelled by the run context.
	exitCodeInterrupted types.ExitCode = 130
)

// ExitStatusFromExec extracts the process exit status from an os/exec run
// error. The second return is false when err does not represent a process
// that ran and exited (e.g. the binary was never found).
func ExitStatusFromExec(err error) (types.ExitCode, bool) {
	exitErr, ok := errors.AsType[*exec.ExitError](err)
	if !ok {
		return 0, false
	}
	code := exitErr.ExitCode()
	if code < 0 {
		// Killed by a signal; exec reports -1. Surface the conventional
		// interrupted status so reports stay in the 0-255 range.
		return exitCodeInterrupted, true
	}
	return types.ExitCode(code), true
}

// contextExitCode maps a done context to the exit status its command should
// report: 124 for a deadline, 130 for cancellation. Returns false when the
// context is still live.
func contextExitCode(ctx context.Context) (types.ExitCode, bool) {
	switch {
	case ctx == nil:
		return 0, false
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return exitCodeTimedOut, true
	case errors.Is(ctx.Err(), context.Canceled):
		return exitCodeInterrupted, true
	default:
		return 0, false
	}
}
