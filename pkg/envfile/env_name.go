// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidEnvName is the sentinel error wrapped by InvalidEnvNameError.
var ErrInvalidEnvName = errors.New("invalid environment name")

// envNameRegex keeps names shell- and filesystem-safe: they become
// directory names under the run area and arguments on the command line.
var envNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

type (
	// EnvName is the handle of a test environment, unique within a suite.
	// Valid names start with a lowercase letter or digit followed by
	// lowercase letters, digits, dots, underscores, or hyphens.
	EnvName string

	// InvalidEnvNameError is returned when an EnvName does not match the
	// naming convention. It wraps ErrInvalidEnvName for errors.Is().
	InvalidEnvNameError struct {
		Value EnvName
	}
)

// Error implements the error interface.
func (e *InvalidEnvNameError) Error() string {
	return fmt.Sprintf("invalid environment name %q (must match [a-z0-9][a-z0-9._-]*)", e.Value)
}

// Unwrap returns ErrInvalidEnvName for errors.Is() compatibility.
func (e *InvalidEnvNameError) Unwrap() error { return ErrInvalidEnvName }

// IsValid reports whether the EnvName matches the naming convention.
func (n EnvName) IsValid() (bool, []error) {
	if !envNameRegex.MatchString(string(n)) {
		return false, []error{&InvalidEnvNameError{Value: n}}
	}
	return true, nil
}

// String returns the string representation of the EnvName.
func (n EnvName) String() string { return string(n) }
