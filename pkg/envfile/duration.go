// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"fmt"
	"time"
)

// parseDuration parses a Go duration string, rejecting zero and negative
// values. Empty input returns (0, nil) so callers can apply their default.
// fieldName shows up in error messages ("timeout", "token_ttl").
func parseDuration(fieldName, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", fieldName, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", fieldName, value)
	}
	return d, nil
}
