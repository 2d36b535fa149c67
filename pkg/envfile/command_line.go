// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCommandLine is the sentinel error wrapped by InvalidCommandLineError.
var ErrInvalidCommandLine = errors.New("invalid command line")

type (
	// CommandLine is one entry of an environment's command list. A leading
	// '-' marks the command's exit status as ignorable: the environment
	// carries on even if it fails (matching the convention test runners in
	// this space use for cleanup steps).
	CommandLine string

	// InvalidCommandLineError is returned when a CommandLine is blank, or
	// blank once the ignore marker is stripped.
	InvalidCommandLineError struct {
		Value CommandLine
	}
)

// Error implements the error interface.
func (e *InvalidCommandLineError) Error() string {
	return fmt.Sprintf("invalid command line %q: must contain a command", e.Value)
}

// Unwrap returns ErrInvalidCommandLine for errors.Is() compatibility.
func (e *InvalidCommandLineError) Unwrap() error { return ErrInvalidCommandLine }

// IsValid reports whether the CommandLine contains an actual command.
func (c CommandLine) IsValid() (bool, []error) {
	if strings.TrimSpace(c.Script()) == "" {
		return false, []error{&InvalidCommandLineError{Value: c}}
	}
	return true, nil
}

// IgnoresFailure reports whether the line carries the leading '-' marker.
func (c CommandLine) IgnoresFailure() bool {
	return strings.HasPrefix(strings.TrimSpace(string(c)), "-")
}

// Script returns the command text with any ignore marker stripped.
func (c CommandLine) Script() string {
	s := strings.TrimSpace(string(c))
	if strings.HasPrefix(s, "-") {
		return strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}
	return s
}

// String returns the raw representation including any ignore marker.
func (c CommandLine) String() string { return string(c) }
