// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"errors"
	"fmt"
)

const (
	// InheritNone passes no host variables: the environment sees only its
	// own files, vars, and the injected GAUNTLET_* set.
	InheritNone InheritMode = "none"
	// InheritAllow passes the base set (PATH, HOME, locale, ...) plus
	// whatever matches the suite and environment pass_env patterns. This is
	// the default.
	InheritAllow InheritMode = "allow"
	// InheritAll passes the entire host environment minus deny_env matches.
	InheritAll InheritMode = "all"
)

// ErrInvalidInheritMode is the sentinel error wrapped by InvalidInheritModeError.
var ErrInvalidInheritMode = errors.New("invalid inherit mode")

type (
	// InheritMode controls how much of the host environment flows into an
	// environment's processes. The zero value ("") resolves to InheritAllow.
	InheritMode string

	// InvalidInheritModeError is returned when an InheritMode is not one of
	// the recognized values. It wraps ErrInvalidInheritMode for errors.Is().
	InvalidInheritModeError struct {
		Value InheritMode
	}
)

// Error implements the error interface.
func (e *InvalidInheritModeError) Error() string {
	return fmt.Sprintf("invalid inherit mode %q (valid: none, allow, all)", e.Value)
}

// Unwrap returns ErrInvalidInheritMode for errors.Is() compatibility.
func (e *InvalidInheritModeError) Unwrap() error { return ErrInvalidInheritMode }

// IsValid reports whether the InheritMode is recognized. The zero value is
// valid and resolves to InheritAllow.
func (m InheritMode) IsValid() (bool, []error) {
	switch m {
	case "", InheritNone, InheritAllow, InheritAll:
		return true, nil
	default:
		return false, []error{&InvalidInheritModeError{Value: m}}
	}
}

// OrDefault resolves the zero value to InheritAllow.
func (m InheritMode) OrDefault() InheritMode {
	if m == "" {
		return InheritAllow
	}
	return m
}

// String returns the string representation of the InheritMode.
func (m InheritMode) String() string { return string(m) }
