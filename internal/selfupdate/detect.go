// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"path/filepath"
	"runtime/debug"
	"strings"
)

// modulePath confirms go-install origin in build info.
const modulePath = "github.com/gauntlet-run/gauntlet"

// Homebrew prefixes checked against the resolved executable path.
var homebrewPrefixes = []string{
	"/opt/homebrew/",
	"/usr/local/Cellar/",
	"/home/linuxbrew/.linuxbrew/",
}

// InstallMethod identifies how the running binary was installed. Managed
// installs (Homebrew, go install) are never overwritten in place; the
// updater defers to the owning package manager instead.
type InstallMethod int

const (
	// InstallMethodUnknown covers manual downloads and custom layouts.
	// Self-update applies.
	InstallMethodUnknown InstallMethod = iota
	// InstallMethodScript is the shell install script (~/.local/bin).
	// Self-update applies.
	InstallMethodScript
	// InstallMethodHomebrew defers to `brew upgrade`.
	InstallMethodHomebrew
	// InstallMethodGoInstall defers to `go install`.
	InstallMethodGoInstall
)

// String returns a human-readable name for the install method.
func (m InstallMethod) String() string {
	switch m {
	case InstallMethodScript:
		return "script"
	case InstallMethodHomebrew:
		return "homebrew"
	case InstallMethodGoInstall:
		return "go install"
	default:
		return "unknown"
	}
}

// Managed reports whether a package manager owns the binary.
func (m InstallMethod) Managed() bool {
	return m == InstallMethodHomebrew || m == InstallMethodGoInstall
}

// readBuildInfo is a test seam for debug.ReadBuildInfo.
var readBuildInfo = debug.ReadBuildInfo

// DetectInstallMethod classifies the install from the resolved executable
// path and, for go install, the embedded build info. GOPATH/bin placement
// alone is not conclusive: the build info must name this module.
func DetectInstallMethod(execPath string) InstallMethod {
	for _, prefix := range homebrewPrefixes {
		if strings.HasPrefix(execPath, prefix) {
			return InstallMethodHomebrew
		}
	}

	if isGoBin(execPath) {
		if info, ok := readBuildInfo(); ok && strings.HasPrefix(info.Main.Path, modulePath) {
			return InstallMethodGoInstall
		}
	}

	if strings.Contains(filepath.ToSlash(execPath), "/.local/bin/") {
		return InstallMethodScript
	}
	return InstallMethodUnknown
}

// isGoBin reports whether the path sits in a conventional go install target
// ($GOPATH/bin, $GOBIN, ~/go/bin).
func isGoBin(execPath string) bool {
	slashed := filepath.ToSlash(execPath)
	return strings.Contains(slashed, "/go/bin/") || strings.HasSuffix(filepath.Dir(slashed), "/gobin")
}
