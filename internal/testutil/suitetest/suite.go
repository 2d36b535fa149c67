// SPDX-License-Identifier: MPL-2.0

// Package suitetest provides test helpers for building envfile.Suite and
// envfile.Environment values. It is separate from testutil so packages that
// cannot import pkg/envfile can still use the base helpers.
//
// Usage:
//
//	env := suitetest.NewTestEnv("unit", suitetest.WithCommands("echo hi"))
//	suite := suitetest.NewTestSuite(t.TempDir(), env)
package suitetest

import (
	"path/filepath"

	"github.com/gauntlet-run/gauntlet/pkg/envfile"
	"github.com/gauntlet-run/gauntlet/pkg/types"
)

// EnvOption configures a test environment beyond the minimal defaults.
type EnvOption func(*envfile.Environment)

// NewTestEnv creates a test environment with the given name. By default it
// carries a single trivially-true command and no other settings; use options
// to customize.
func NewTestEnv(name string, opts ...EnvOption) envfile.Environment {
	env := envfile.Environment{
		Name:     envfile.EnvName(name),
		Commands: []envfile.CommandLine{"true"},
	}
	for _, opt := range opts {
		opt(&env)
	}
	return env
}

// NewTestSuite creates a suite rooted at dir containing the given
// environments. The suite file path points at a gauntlet.cue inside dir; the
// file does not have to exist for most tests.
func NewTestSuite(dir string, envs ...envfile.Environment) *envfile.Suite {
	return &envfile.Suite{
		Envs:     envs,
		FilePath: types.FilesystemPath(filepath.Join(dir, envfile.SuiteFileCUE)),
	}
}

// WithCommands replaces the environment's command list.
func WithCommands(commands ...string) EnvOption {
	return func(env *envfile.Environment) {
		env.Commands = make([]envfile.CommandLine, len(commands))
		for i, c := range commands {
			env.Commands[i] = envfile.CommandLine(c)
		}
	}
}

// WithDeps sets the environment's dependency specs.
func WithDeps(deps ...string) EnvOption {
	return func(env *envfile.Environment) {
		env.Deps = make([]envfile.DepSpec, len(deps))
		for i, d := range deps {
			env.Deps[i] = envfile.DepSpec(d)
		}
	}
}

// WithTags sets the environment's selection tags.
func WithTags(tags ...string) EnvOption {
	return func(env *envfile.Environment) {
		env.Tags = tags
	}
}

// WithPlatforms restricts the environment to the given platforms.
func WithPlatforms(platforms ...envfile.Platform) EnvOption {
	return func(env *envfile.Environment) {
		env.Platforms = platforms
	}
}

// WithRuntime sets the environment's runtime kind.
func WithRuntime(kind envfile.RuntimeKind) EnvOption {
	return func(env *envfile.Environment) {
		env.Runtime = &envfile.RuntimeSpec{Kind: kind}
	}
}

// WithHostAccess marks the environment as needing the host callback server,
// implying a container runtime when none is set.
func WithHostAccess() EnvOption {
	return func(env *envfile.Environment) {
		if env.Runtime == nil {
			env.Runtime = &envfile.RuntimeSpec{Kind: envfile.RuntimeContainer}
		}
		env.Runtime.HostAccess = true
	}
}

// WithDependsOn adds ordering edges to other environments.
func WithDependsOn(names ...string) EnvOption {
	return func(env *envfile.Environment) {
		env.DependsOn = make([]envfile.EnvName, len(names))
		for i, n := range names {
			env.DependsOn[i] = envfile.EnvName(n)
		}
	}
}

// WithVars sets literal environment variables.
func WithVars(pairs map[string]string) EnvOption {
	return func(env *envfile.Environment) {
		if env.Env == nil {
			env.Env = &envfile.EnvSettings{}
		}
		if env.Env.Vars == nil {
			env.Env.Vars = make(map[envfile.EnvVarName]string, len(pairs))
		}
		for k, v := range pairs {
			env.Env.Vars[envfile.EnvVarName(k)] = v
		}
	}
}

// WithAllowFailure marks the environment's failures as ignorable.
func WithAllowFailure() EnvOption {
	return func(env *envfile.Environment) {
		env.AllowFailure = true
	}
}

// WithTimeout caps the environment run.
func WithTimeout(timeout string) EnvOption {
	return func(env *envfile.Environment) {
		env.Timeout = timeout
	}
}

// WithSkipInstall disables the install phase.
func WithSkipInstall() EnvOption {
	return func(env *envfile.Environment) {
		env.SkipInstall = true
	}
}
