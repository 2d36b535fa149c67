// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/gauntlet-run/gauntlet/pkg/types"
)

// Suite file names looked up during discovery, in preference order.
const (
	// SuiteFileCUE is the canonical suite file name.
	SuiteFileCUE = "gauntlet.cue"
	// SuiteFileTOML is the TOML alternative.
	SuiteFileTOML = "gauntlet.toml"
)

// Suite is a parsed suite file: the full set of environments a project
// declares, plus the suite-wide settings they inherit.
type Suite struct {
	// Name labels the suite in reports. Optional.
	Name string `json:"name,omitempty" toml:"name,omitempty"`

	// Defaults lists the environments `gauntlet run` executes when no
	// names are given, in execution order. Empty means "all, in file
	// order".
	Defaults []EnvName `json:"defaults,omitempty" toml:"defaults,omitempty"`

	// InstallCommand is the suite-wide installer template; environments
	// may override it, and the app config supplies the final fallback.
	InstallCommand string `json:"install_command,omitempty" toml:"install_command,omitempty"`

	// PassEnv and DenyEnv apply to every environment, before the
	// per-environment patterns.
	PassEnv []EnvPattern `json:"pass_env,omitempty" toml:"pass_env,omitempty"`
	DenyEnv []EnvPattern `json:"deny_env,omitempty" toml:"deny_env,omitempty"`

	// Env sets suite-wide dotenv files and variables, layered under each
	// environment's own settings.
	Env *EnvSettings `json:"env,omitempty" toml:"env,omitempty"`

	// Envs holds the environments in file order.
	Envs []Environment `json:"envs" toml:"envs"`

	// FilePath is where the suite was parsed from. Set by Parse, never by
	// the file itself.
	FilePath types.FilesystemPath `json:"-" toml:"-"`
}

// Dir returns the directory containing the suite file. Relative paths in
// the suite (workdir, dotenv files, local deps) resolve against it.
func (s *Suite) Dir() string {
	return filepath.Dir(string(s.FilePath))
}

// FindEnv returns the environment with the given name, or nil.
func (s *Suite) FindEnv(name EnvName) *Environment {
	for i := range s.Envs {
		if s.Envs[i].Name == name {
			return &s.Envs[i]
		}
	}
	return nil
}

// EnvNames returns all environment names in file order.
func (s *Suite) EnvNames() []EnvName {
	names := make([]EnvName, len(s.Envs))
	for i := range s.Envs {
		names[i] = s.Envs[i].Name
	}
	return names
}

// DefaultSelection returns the environments a bare `gauntlet run` targets:
// Defaults when declared, otherwise every environment in file order.
func (s *Suite) DefaultSelection() []EnvName {
	if len(s.Defaults) > 0 {
		return slices.Clone(s.Defaults)
	}
	return s.EnvNames()
}

// EffectiveInstallCommand resolves the installer template for an
// environment: its own, else the suite's, else the supplied config default.
// Empty means nothing is configured anywhere.
func (s *Suite) EffectiveInstallCommand(env *Environment, configDefault string) string {
	if env != nil && env.InstallCommand != "" {
		return env.InstallCommand
	}
	if s.InstallCommand != "" {
		return s.InstallCommand
	}
	return configDefault
}

// EffectivePassEnv returns the suite-level patterns followed by the
// environment's own.
func (s *Suite) EffectivePassEnv(env *Environment) []EnvPattern {
	out := make([]EnvPattern, 0, len(s.PassEnv)+len(env.PassEnv))
	out = append(out, s.PassEnv...)
	return append(out, env.PassEnv...)
}

// EffectiveDenyEnv returns the suite-level deny patterns followed by the
// environment's own.
func (s *Suite) EffectiveDenyEnv(env *Environment) []EnvPattern {
	out := make([]EnvPattern, 0, len(s.DenyEnv)+len(env.DenyEnv))
	out = append(out, s.DenyEnv...)
	return append(out, env.DenyEnv...)
}

// Validate runs the structure validator with a context derived from the
// suite's own file path and returns every issue found. Callers that know
// the app configuration should build their own ValidationContext instead.
func (s *Suite) Validate() ValidationErrors {
	ctx := &ValidationContext{
		FilePath:                  s.FilePath,
		SuiteDir:                  s.Dir(),
		Platform:                  CurrentPlatform(),
		AssumeInstallerConfigured: true,
	}
	return RunValidators(ctx, s, NewStructureValidator())
}

// ResolveEnvNames maps names to environments, erroring on the first
// unknown one. Selection code uses it to turn CLI arguments into work.
func (s *Suite) ResolveEnvNames(names []EnvName) ([]*Environment, error) {
	out := make([]*Environment, 0, len(names))
	for _, name := range names {
		env := s.FindEnv(name)
		if env == nil {
			return nil, fmt.Errorf("unknown environment %q (have: %v)", name, s.EnvNames())
		}
		out = append(out, env)
	}
	return out, nil
}
