// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"errors"
	"fmt"
	"path"
	"regexp"
)

// ErrInvalidEnvPattern is the sentinel error wrapped by InvalidEnvPatternError.
var ErrInvalidEnvPattern = errors.New("invalid pass-through pattern")

// envPatternRegex limits patterns to variable-name characters plus the two
// wildcards, so "TEAMCITY_*" works but shell metacharacters cannot sneak in.
var envPatternRegex = regexp.MustCompile(`^[A-Za-z0-9_*?]+$`)

type (
	// EnvPattern selects host environment variables for pass-through (or
	// denial): a literal name like "CI" or a glob like "TEAMCITY_*" where
	// '*' matches any run of characters and '?' exactly one.
	EnvPattern string

	// InvalidEnvPatternError is returned when an EnvPattern contains
	// characters outside [A-Za-z0-9_*?]. It wraps ErrInvalidEnvPattern.
	InvalidEnvPatternError struct {
		Value EnvPattern
	}
)

// Error implements the error interface.
func (e *InvalidEnvPatternError) Error() string {
	return fmt.Sprintf("invalid pass-through pattern %q (allowed: letters, digits, underscore, '*', '?')", e.Value)
}

// Unwrap returns ErrInvalidEnvPattern for errors.Is() compatibility.
func (e *InvalidEnvPatternError) Unwrap() error { return ErrInvalidEnvPattern }

// IsValid reports whether the pattern uses only the allowed characters.
func (p EnvPattern) IsValid() (bool, []error) {
	if !envPatternRegex.MatchString(string(p)) {
		return false, []error{&InvalidEnvPatternError{Value: p}}
	}
	return true, nil
}

// Match reports whether the variable name matches the pattern.
func (p EnvPattern) Match(name string) bool {
	// The allowed character set cannot produce a malformed pattern, so the
	// error path of path.Match is unreachable for validated patterns.
	ok, err := path.Match(string(p), name)
	return err == nil && ok
}

// String returns the string representation of the EnvPattern.
func (p EnvPattern) String() string { return string(p) }

// MatchAny reports whether any pattern in the list matches the name.
func MatchAny(patterns []EnvPattern, name string) bool {
	for _, p := range patterns {
		if p.Match(name) {
			return true
		}
	}
	return false
}
