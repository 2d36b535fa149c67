// SPDX-License-Identifier: MPL-2.0

package runtime

import "github.com/gauntlet-run/gauntlet/pkg/types"

// Result is the outcome of running one command line.
type Result struct {
	// ExitCode is the command's exit status.
	ExitCode types.ExitCode
	// Error is set for infrastructure failures (shell missing, engine gone),
	// never for an ordinary non-zero exit.
	Error error
}

// Success reports whether the command exited zero with no infrastructure error.
func (r *Result) Success() bool {
	return r.ExitCode.IsSuccess() && r.Error == nil
}

// NewErrorResult creates a Result with the given exit code and error.
func NewErrorResult(code types.ExitCode, err error) *Result {
	return &Result{ExitCode: code, Error: err}
}

// NewSuccessResult creates a Result with exit code 0 and no error.
func NewSuccessResult() *Result {
	return &Result{}
}

// NewExitCodeResult creates a Result with the given exit code and no error.
// Use this for non-zero exits that represent normal process termination
// rather than infrastructure failures.
func NewExitCodeResult(code types.ExitCode) *Result {
	return &Result{ExitCode: code}
}
