// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"errors"
	"fmt"
	"runtime"
)

const (
	// PlatformLinux matches Linux hosts (and other unixes gauntlet has no
	// dedicated name for).
	PlatformLinux Platform = "linux"
	// PlatformMacOS matches Darwin hosts.
	PlatformMacOS Platform = "macos"
	// PlatformWindows matches Windows hosts.
	PlatformWindows Platform = "windows"
)

// ErrInvalidPlatform is the sentinel error wrapped by InvalidPlatformError.
var ErrInvalidPlatform = errors.New("invalid platform")

type (
	// Platform identifies a host operating-system family for environment
	// filtering. An environment listing no platforms runs everywhere;
	// otherwise it is skipped on hosts outside the list.
	Platform string

	// InvalidPlatformError is returned when a Platform is not one of the
	// recognized values. It wraps ErrInvalidPlatform for errors.Is().
	InvalidPlatformError struct {
		Value Platform
	}
)

// Error implements the error interface.
func (e *InvalidPlatformError) Error() string {
	return fmt.Sprintf("invalid platform %q (valid: linux, macos, windows)", e.Value)
}

// Unwrap returns ErrInvalidPlatform for errors.Is() compatibility.
func (e *InvalidPlatformError) Unwrap() error { return ErrInvalidPlatform }

// IsValid reports whether the Platform is a recognized value.
func (p Platform) IsValid() (bool, []error) {
	switch p {
	case PlatformLinux, PlatformMacOS, PlatformWindows:
		return true, nil
	default:
		return false, []error{&InvalidPlatformError{Value: p}}
	}
}

// String returns the string representation of the Platform.
func (p Platform) String() string { return string(p) }

// CurrentPlatform returns the Platform of the running host. Unixes other
// than Darwin report as linux, which is where their toolchains behave alike.
func CurrentPlatform() Platform {
	switch runtime.GOOS {
	case "darwin":
		return PlatformMacOS
	case "windows":
		return PlatformWindows
	default:
		return PlatformLinux
	}
}
