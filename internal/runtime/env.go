// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"os"
	"runtime"
	"strings"

	"github.com/gauntlet-run/gauntlet/pkg/envfile"
)

// EnvVarPrefix marks the variables gauntlet injects into every command. The
// inherited host environment is stripped of them so a nested run never sees a
// parent run's identity.
const EnvVarPrefix = "GAUNTLET_"

// baseInheritedVars are the host variables that always pass through in allow
// mode, before any pass_env additions.
var baseInheritedVars = []string{
	"PATH", "HOME", "TMPDIR", "TEMP", "TMP",
	"LANG", "LANGUAGE", "LC_ALL", "TERM",
	"USER", "LOGNAME", "SHELL",
}

// windowsInheritedVars extend the base set on Windows hosts, where processes
// misbehave without the system locations.
var windowsInheritedVars = []string{
	"SYSTEMROOT", "SYSTEMDRIVE", "COMSPEC", "PATHEXT",
	"USERPROFILE", "APPDATA", "HOMEDRIVE", "HOMEPATH",
	"NUMBER_OF_PROCESSORS", "PROCESSOR_ARCHITECTURE",
}

// hostEnvConfig drives one buildHostEnv call.
type hostEnvConfig struct {
	mode envfile.InheritMode
	pass []envfile.EnvPattern
	deny []envfile.EnvPattern
	// environ overrides os.Environ for tests.
	environ func() []string
}

// buildHostEnv returns the host variables an environment inherits under the
// given mode: nothing for none, the base set plus pass matches for allow,
// everything for all. Deny patterns strip matches from allow and all alike.
func buildHostEnv(cfg hostEnvConfig) map[string]string {
	env := make(map[string]string)
	if cfg.mode.OrDefault() == envfile.InheritNone {
		return env
	}

	baseSet := make(map[string]struct{}, len(baseInheritedVars)+len(windowsInheritedVars))
	for _, name := range baseInheritedVars {
		baseSet[name] = struct{}{}
	}
	if runtime.GOOS == "windows" {
		for _, name := range windowsInheritedVars {
			baseSet[name] = struct{}{}
		}
	}

	environ := cfg.environ
	if environ == nil {
		environ = os.Environ
	}

	for _, entry := range FilterGauntletEnvVars(environ()) {
		idx := findEnvSeparator(entry)
		if idx == -1 {
			continue
		}
		name := entry[:idx]
		value := entry[idx+1:]

		if cfg.mode.OrDefault() == envfile.InheritAllow {
			if _, base := baseSet[name]; !base && !envfile.MatchAny(cfg.pass, name) {
				continue
			}
		}
		if envfile.MatchAny(cfg.deny, name) {
			continue
		}

		env[name] = value
	}

	return env
}

// FilterGauntletEnvVars removes GAUNTLET_* entries from a "KEY=VALUE" slice.
func FilterGauntletEnvVars(environ []string) []string {
	filtered := make([]string, 0, len(environ))
	for _, entry := range environ {
		if strings.HasPrefix(entry, EnvVarPrefix) {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered
}

// findEnvSeparator locates the first '=' in a "KEY=VALUE" entry, skipping a
// leading '=' (Windows drive-state entries such as "=C:=C:\\" carry one).
func findEnvSeparator(entry string) int {
	if entry == "" {
		return -1
	}
	if idx := strings.IndexByte(entry[1:], '='); idx >= 0 {
		return idx + 1
	}
	return -1
}
