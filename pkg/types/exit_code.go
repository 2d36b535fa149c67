// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

type (
	// ExitCode is a process exit status in the POSIX range 0-255.
	// The zero value means success.
	ExitCode int

	// InvalidExitCodeError is returned when an ExitCode falls outside 0-255.
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Well-known exit codes used by the CLI layer.
const (
	// ExitOK means every selected environment passed (or was skipped/ignored).
	ExitOK ExitCode = 0
	// ExitEnvFailure means at least one environment failed, or a lint run
	// found errors.
	ExitEnvFailure ExitCode = 1
	// ExitInternalError means the tool itself failed before or during a run
	// (unreadable suite file, runtime unavailable, and so on).
	ExitInternalError ExitCode = 2
	// ExitUsageError means the invocation was malformed (unknown env name,
	// bad flag value).
	ExitUsageError ExitCode = 3
	// ExitInterrupted mirrors the conventional 128+SIGINT shell status.
	ExitInterrupted ExitCode = 130
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode so callers can detect the failure class
// with errors.Is.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate returns an error if the ExitCode is outside the valid range (0-255).
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// IsSuccess reports whether the exit code indicates success.
func (c ExitCode) IsSuccess() bool { return c == 0 }

// IsTransient reports whether the exit code is one that container engines
// emit for retryable internal failures (125, 126).
func (c ExitCode) IsTransient() bool { return c == 125 || c == 126 }

// String returns the decimal representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }
