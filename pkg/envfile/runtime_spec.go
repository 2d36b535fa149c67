// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"errors"
	"fmt"
)

const (
	// RuntimeNative runs commands through the host shell.
	RuntimeNative RuntimeKind = "native"
	// RuntimeVirtual runs commands through the built-in POSIX interpreter,
	// hermetic from whatever shells the host has installed.
	RuntimeVirtual RuntimeKind = "virtual"
	// RuntimeContainer runs commands inside a container built from an image
	// or containerfile.
	RuntimeContainer RuntimeKind = "container"
)

// ErrInvalidRuntimeKind is the sentinel error wrapped by InvalidRuntimeKindError.
var ErrInvalidRuntimeKind = errors.New("invalid runtime kind")

type (
	// RuntimeKind selects where an environment's commands execute.
	// The zero value ("") means "no preference": the app config default
	// applies.
	RuntimeKind string

	// InvalidRuntimeKindError is returned when a RuntimeKind is not one of
	// the recognized values. It wraps ErrInvalidRuntimeKind for errors.Is().
	InvalidRuntimeKindError struct {
		Value RuntimeKind
	}

	// RuntimeSpec describes an environment's runtime. Only container
	// runtimes use the fields beyond Kind: exactly one of Image and
	// Containerfile may be set (with neither, a Containerfile or Dockerfile
	// next to the suite file is picked up). Volumes use the engine's
	// "host:container[:ro]" syntax and Ports "host:container[/proto]".
	RuntimeSpec struct {
		Kind          RuntimeKind `json:"kind" toml:"kind"`
		Image         string      `json:"image,omitempty" toml:"image,omitempty"`
		Containerfile string      `json:"containerfile,omitempty" toml:"containerfile,omitempty"`
		Volumes       []string    `json:"volumes,omitempty" toml:"volumes,omitempty"`
		Ports         []string    `json:"ports,omitempty" toml:"ports,omitempty"`
		HostAccess    bool        `json:"host_access,omitempty" toml:"host_access,omitempty"`
	}
)

// Error implements the error interface.
func (e *InvalidRuntimeKindError) Error() string {
	return fmt.Sprintf("invalid runtime kind %q (valid: native, virtual, container)", e.Value)
}

// Unwrap returns ErrInvalidRuntimeKind for errors.Is() compatibility.
func (e *InvalidRuntimeKindError) Unwrap() error { return ErrInvalidRuntimeKind }

// IsValid reports whether the RuntimeKind is recognized. The zero value is
// valid and defers to the configured default.
func (k RuntimeKind) IsValid() (bool, []error) {
	switch k {
	case "", RuntimeNative, RuntimeVirtual, RuntimeContainer:
		return true, nil
	default:
		return false, []error{&InvalidRuntimeKindError{Value: k}}
	}
}

// String returns the string representation of the RuntimeKind.
func (k RuntimeKind) String() string { return string(k) }

// ParseRuntimeKind parses a string into a RuntimeKind. Empty input returns
// the zero value, which serves as the "no override" sentinel.
func ParseRuntimeKind(value string) (RuntimeKind, error) {
	kind := RuntimeKind(value)
	if valid, errs := kind.IsValid(); !valid {
		return "", errs[0]
	}
	return kind, nil
}

// KindOrDefault returns the spec's kind, or def when the spec is nil or
// carries no kind.
func (r *RuntimeSpec) KindOrDefault(def RuntimeKind) RuntimeKind {
	if r == nil || r.Kind == "" {
		return def
	}
	return r.Kind
}

// IsContainer reports whether the spec selects the container runtime.
func (r *RuntimeSpec) IsContainer() bool {
	return r != nil && r.Kind == RuntimeContainer
}
