// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidEnvVarName is the sentinel error wrapped by InvalidEnvVarNameError.
	ErrInvalidEnvVarName = errors.New("invalid environment variable name")

	// ErrInvalidDotenvFilePath is the sentinel error wrapped by InvalidDotenvFilePathError.
	ErrInvalidDotenvFilePath = errors.New("invalid dotenv file path")

	// envVarNameRegex enforces POSIX naming for variables set in suite files.
	envVarNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

type (
	// EnvVarName is an environment variable name following the POSIX
	// convention: a letter or underscore followed by letters, digits, or
	// underscores.
	EnvVarName string

	// InvalidEnvVarNameError is returned when an EnvVarName is empty or
	// breaks the POSIX naming convention.
	InvalidEnvVarNameError struct {
		Value EnvVarName
	}

	// DotenvFilePath points to a dotenv file loaded into an environment.
	// Paths are relative to the suite file's directory. A trailing '?'
	// marks the file optional: missing optional files are skipped silently.
	DotenvFilePath string

	// InvalidDotenvFilePathError is returned when a DotenvFilePath is empty
	// or whitespace-only. It wraps ErrInvalidDotenvFilePath for errors.Is().
	InvalidDotenvFilePathError struct {
		Value DotenvFilePath
	}

	// EnvSettings holds the explicit environment configuration of a suite
	// or a single environment: dotenv files loaded in order (later files
	// override earlier ones) and literal variables overriding both.
	EnvSettings struct {
		Files []DotenvFilePath      `json:"files,omitempty" toml:"files,omitempty"`
		Vars  map[EnvVarName]string `json:"vars,omitempty" toml:"vars,omitempty"`
	}
)

// Error implements the error interface.
func (e *InvalidEnvVarNameError) Error() string {
	return fmt.Sprintf("invalid environment variable name %q (must match [A-Za-z_][A-Za-z0-9_]*)", e.Value)
}

// Unwrap returns ErrInvalidEnvVarName for errors.Is() compatibility.
func (e *InvalidEnvVarNameError) Unwrap() error { return ErrInvalidEnvVarName }

// Validate returns nil if the EnvVarName is a valid POSIX variable name.
func (n EnvVarName) Validate() error {
	if !envVarNameRegex.MatchString(string(n)) {
		return &InvalidEnvVarNameError{Value: n}
	}
	return nil
}

// String returns the string representation of the EnvVarName.
func (n EnvVarName) String() string { return string(n) }

// Error implements the error interface.
func (e *InvalidDotenvFilePathError) Error() string {
	return fmt.Sprintf("invalid dotenv file path %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidDotenvFilePath for errors.Is() compatibility.
func (e *InvalidDotenvFilePathError) Unwrap() error { return ErrInvalidDotenvFilePath }

// IsValid reports whether the path is non-empty and not whitespace-only.
// The bare optional marker "?" is also invalid.
func (p DotenvFilePath) IsValid() (bool, []error) {
	if strings.TrimSpace(p.Path()) == "" {
		return false, []error{&InvalidDotenvFilePathError{Value: p}}
	}
	return true, nil
}

// IsOptional reports whether the path carries the trailing '?' marker.
func (p DotenvFilePath) IsOptional() bool {
	return strings.HasSuffix(string(p), "?")
}

// Path returns the filesystem path with the optional marker stripped.
func (p DotenvFilePath) Path() string {
	return strings.TrimSuffix(string(p), "?")
}

// String returns the raw representation including any optional marker.
func (p DotenvFilePath) String() string { return string(p) }

// GetFiles returns the files list, or nil for a nil receiver.
func (e *EnvSettings) GetFiles() []DotenvFilePath {
	if e == nil {
		return nil
	}
	return e.Files
}

// GetVars returns the vars with raw string keys for consumers that merge
// into process environments. Returns nil for a nil receiver or empty map.
func (e *EnvSettings) GetVars() map[string]string {
	if e == nil || len(e.Vars) == 0 {
		return nil
	}
	result := make(map[string]string, len(e.Vars))
	for k, v := range e.Vars {
		result[string(k)] = v
	}
	return result
}
