// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidWorkDir is the sentinel error wrapped by InvalidWorkDirError.
var ErrInvalidWorkDir = errors.New("invalid workdir")

type (
	// WorkDir overrides the directory an environment's commands run in.
	// The zero value ("") means "run in the suite file's directory".
	// Relative values resolve against the suite directory.
	WorkDir string

	// InvalidWorkDirError is returned when a WorkDir is whitespace-only.
	// It wraps ErrInvalidWorkDir for errors.Is() compatibility.
	InvalidWorkDirError struct {
		Value WorkDir
	}
)

// Error implements the error interface.
func (e *InvalidWorkDirError) Error() string {
	return fmt.Sprintf("invalid workdir %q (must not be whitespace-only)", e.Value)
}

// Unwrap returns ErrInvalidWorkDir for errors.Is() compatibility.
func (e *InvalidWorkDirError) Unwrap() error { return ErrInvalidWorkDir }

// IsValid reports whether the WorkDir is usable. The zero value is valid
// and means "suite directory".
func (w WorkDir) IsValid() (bool, []error) {
	if w == "" {
		return true, nil
	}
	if strings.TrimSpace(string(w)) == "" {
		return false, []error{&InvalidWorkDirError{Value: w}}
	}
	return true, nil
}

// IsSet reports whether the WorkDir overrides the default.
func (w WorkDir) IsSet() bool { return w != "" }

// String returns the string representation of the WorkDir.
func (w WorkDir) String() string { return string(w) }
