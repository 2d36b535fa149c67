// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidListenPort is the sentinel error wrapped by InvalidListenPortError.
var ErrInvalidListenPort = errors.New("invalid listen port")

type (
	// ListenPort is a TCP port a local server binds to.
	// The zero value means "pick any free port".
	ListenPort int

	// InvalidListenPortError is returned when a ListenPort falls outside 0-65535.
	InvalidListenPortError struct {
		Value ListenPort
	}
)

// Error implements the error interface.
func (e *InvalidListenPortError) Error() string {
	return fmt.Sprintf("invalid listen port %d (must be in range 0-65535)", e.Value)
}

// Unwrap returns ErrInvalidListenPort for errors.Is() compatibility.
func (e *InvalidListenPortError) Unwrap() error { return ErrInvalidListenPort }

// IsValid reports whether the port is within the TCP range. Zero is valid
// and means the listener chooses a free port.
func (p ListenPort) IsValid() (bool, []error) {
	if p < 0 || p > 65535 {
		return false, []error{&InvalidListenPortError{Value: p}}
	}
	return true, nil
}

// IsAuto reports whether the port requests automatic selection.
func (p ListenPort) IsAuto() bool { return p == 0 }

// String returns the decimal representation of the ListenPort.
func (p ListenPort) String() string { return strconv.Itoa(int(p)) }
