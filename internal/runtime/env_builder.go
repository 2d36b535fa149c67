// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"maps"

	"github.com/gauntlet-run/gauntlet/pkg/envfile"
)

// Variables injected into every command of an environment run.
const (
	// EnvVarEnvName carries the running environment's name.
	EnvVarEnvName = "GAUNTLET_ENV"
	// EnvVarEnvDir carries the environment's work area path.
	EnvVarEnvDir = "GAUNTLET_ENV_DIR"
	// EnvVarSuiteDir carries the suite file's directory.
	EnvVarSuiteDir = "GAUNTLET_SUITE_DIR"
)

type (
	// EnvBuilder resolves the full process environment for one environment
	// run. It applies an 8-level precedence (higher wins):
	//
	//  1. Host environment per the inherit mode, deny_env-stripped
	//  2. Suite-level env.files (loaded in array order)
	//  3. Suite-level env.vars
	//  4. Environment-level env.files
	//  5. Environment-level env.vars
	//  6. Injected GAUNTLET_* variables (identity plus Extra)
	//  7. --env-file flag files (loaded in flag order)
	//  8. --env-var flag values, the highest layer
	//
	// The session builds the map once per environment; runtimes receive it
	// through ExecutionContext.EnvVars and pass it through verbatim.
	EnvBuilder interface {
		Build(in BuildInput) (map[string]string, error)
	}

	// BuildInput collects everything that feeds an environment's variables.
	BuildInput struct {
		// Suite and Env supply inherit mode, patterns, files, and vars.
		Suite *envfile.Suite
		Env   *envfile.Environment
		// EnvDir is the environment's work area, injected as GAUNTLET_ENV_DIR.
		EnvDir string
		// Extra holds infrastructure variables injected alongside the
		// identity set (the container runtime's callback coordinates).
		Extra map[string]string
		// CLIEnvFiles are --env-file paths, resolved against Cwd.
		CLIEnvFiles []string
		// CLIEnvVars are --env-var pairs. They override everything else.
		CLIEnvVars map[string]string
		// Cwd anchors CLIEnvFiles; empty means the process working directory.
		Cwd string
	}

	// DefaultEnvBuilder implements the standard precedence.
	DefaultEnvBuilder struct {
		// Environ returns the host environment as "KEY=VALUE" strings.
		// When nil, os.Environ() is used.
		Environ func() []string
	}

	// MockEnvBuilder is a test helper that returns a fixed environment map.
	MockEnvBuilder struct {
		// Env is the environment map to return from Build.
		Env map[string]string
		// Err is the error to return from Build (if non-nil).
		Err error
	}
)

// NewDefaultEnvBuilder creates a DefaultEnvBuilder reading the real host
// environment.
func NewDefaultEnvBuilder() *DefaultEnvBuilder {
	return &DefaultEnvBuilder{}
}

// Build constructs the environment map following the documented precedence.
func (b *DefaultEnvBuilder) Build(in BuildInput) (map[string]string, error) {
	// 1. Host environment per the inherit mode.
	env := buildHostEnv(hostEnvConfig{
		mode:    in.Env.Inherit,
		pass:    in.Suite.EffectivePassEnv(in.Env),
		deny:    in.Suite.EffectiveDenyEnv(in.Env),
		environ: b.Environ,
	})

	suiteDir := in.Suite.Dir()

	// 2. Suite-level env.files.
	if in.Suite.Env != nil {
		for _, path := range in.Suite.Env.Files {
			if err := LoadEnvFile(env, path, suiteDir); err != nil {
				return nil, err
			}
		}
	}

	// 3. Suite-level env.vars.
	copyVars(env, in.Suite.Env)

	// 4. Environment-level env.files.
	if in.Env.Env != nil {
		for _, path := range in.Env.Env.Files {
			if err := LoadEnvFile(env, path, suiteDir); err != nil {
				return nil, err
			}
		}
	}

	// 5. Environment-level env.vars.
	copyVars(env, in.Env.Env)

	// 6. Injected identity and infrastructure variables.
	env[EnvVarEnvName] = in.Env.Name.String()
	env[EnvVarEnvDir] = in.EnvDir
	env[EnvVarSuiteDir] = suiteDir
	maps.Copy(env, in.Extra)

	// 7. --env-file flag files.
	for _, path := range in.CLIEnvFiles {
		if err := LoadEnvFileFromCwd(env, envfile.DotenvFilePath(path), in.Cwd); err != nil {
			return nil, err
		}
	}

	// 8. --env-var flag values (highest priority).
	maps.Copy(env, in.CLIEnvVars)

	return env, nil
}

// Build returns the mock environment or error.
func (m *MockEnvBuilder) Build(BuildInput) (map[string]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Env == nil {
		return make(map[string]string), nil
	}
	// Return a copy to prevent mutations.
	result := make(map[string]string, len(m.Env))
	maps.Copy(result, m.Env)
	return result, nil
}

func copyVars(env map[string]string, settings *envfile.EnvSettings) {
	if settings == nil {
		return
	}
	for name, value := range settings.Vars {
		env[name.String()] = value
	}
}
