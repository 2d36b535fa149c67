// SPDX-License-Identifier: MPL-2.0

// Package platform holds Windows filename rules the work-area layout must
// respect.
package platform

import "strings"

// windowsReservedNames are DOS device names Windows refuses as file or
// directory names regardless of extension. An environment named after one
// could never get a work area created on Windows.
var windowsReservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true,
	"COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true,
	"LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// IsWindowsReservedName reports whether name (with any extension stripped)
// is a reserved Windows device name. The check is case-insensitive, as
// Windows is.
func IsWindowsReservedName(name string) bool {
	base, _, _ := strings.Cut(strings.ToUpper(name), ".")
	return windowsReservedNames[base]
}
