// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"slices"
	"time"
)

// Environment is one named test environment of a suite: the unit `gauntlet
// run` selects, prepares, and executes.
type Environment struct {
	// Name is the unique handle used for selection and for the work area
	// directory under the run root.
	Name EnvName `json:"name" toml:"name"`

	// Description is free text shown by `gauntlet list`.
	Description string `json:"description,omitempty" toml:"description,omitempty"`

	// Tags group environments for bulk selection (--tag).
	Tags []string `json:"tags,omitempty" toml:"tags,omitempty"`

	// Platforms restricts the environment to the listed host families.
	// Empty means all platforms; a mismatch skips the environment instead
	// of failing it.
	Platforms []Platform `json:"platforms,omitempty" toml:"platforms,omitempty"`

	// Runtime selects where commands execute. Nil defers to the configured
	// default (native unless overridden).
	Runtime *RuntimeSpec `json:"runtime,omitempty" toml:"runtime,omitempty"`

	// Deps install before commands run: package specs or local bootstrap
	// paths, handed to the installer template in declaration order.
	Deps []DepSpec `json:"deps,omitempty" toml:"deps,omitempty"`

	// PassEnv adds pass-through patterns on top of the suite-level ones.
	PassEnv []EnvPattern `json:"pass_env,omitempty" toml:"pass_env,omitempty"`

	// DenyEnv strips matching variables even in permissive inherit modes.
	DenyEnv []EnvPattern `json:"deny_env,omitempty" toml:"deny_env,omitempty"`

	// Inherit picks the pass-through mode; zero value means InheritAllow.
	Inherit InheritMode `json:"inherit,omitempty" toml:"inherit,omitempty"`

	// Env sets dotenv files and literal variables for this environment,
	// layered over the suite-level settings.
	Env *EnvSettings `json:"env,omitempty" toml:"env,omitempty"`

	// WorkDir overrides where commands run; relative to the suite
	// directory. Empty means the suite directory itself.
	WorkDir WorkDir `json:"workdir,omitempty" toml:"workdir,omitempty"`

	// InstallCommand overrides the installer template for this environment.
	InstallCommand string `json:"install_command,omitempty" toml:"install_command,omitempty"`

	// SkipInstall runs commands without an install phase even when Deps is
	// non-empty.
	SkipInstall bool `json:"skip_install,omitempty" toml:"skip_install,omitempty"`

	// DependsOn lists environments that must finish first when running in
	// parallel. Edges only order environments that are both selected.
	DependsOn []EnvName `json:"depends_on,omitempty" toml:"depends_on,omitempty"`

	// Timeout caps the whole environment run (install included), as a Go
	// duration string. Empty means no limit.
	Timeout string `json:"timeout,omitempty" toml:"timeout,omitempty"`

	// AllowFailure reports the environment's failure without failing the
	// overall run.
	AllowFailure bool `json:"allow_failure,omitempty" toml:"allow_failure,omitempty"`

	// Commands run in order; the first non-ignored failure stops the
	// environment.
	Commands []CommandLine `json:"commands" toml:"commands"`
}

// MatchesPlatform reports whether the environment runs on the given
// platform. An empty Platforms list matches everything.
func (e *Environment) MatchesPlatform(p Platform) bool {
	if len(e.Platforms) == 0 {
		return true
	}
	return slices.Contains(e.Platforms, p)
}

// HasTag reports whether the environment carries the tag.
func (e *Environment) HasTag(tag string) bool {
	return slices.Contains(e.Tags, tag)
}

// RuntimeKindOrDefault resolves the environment's runtime kind, falling
// back to def when the environment states no preference.
func (e *Environment) RuntimeKindOrDefault(def RuntimeKind) RuntimeKind {
	return e.Runtime.KindOrDefault(def)
}

// ParsedTimeout returns the environment timeout, or zero when unset.
func (e *Environment) ParsedTimeout() (time.Duration, error) {
	return parseDuration("timeout", e.Timeout)
}

// HasInstallPhase reports whether the environment wants dependencies
// installed before its commands run.
func (e *Environment) HasInstallPhase() bool {
	return !e.SkipInstall && len(e.Deps) > 0
}
