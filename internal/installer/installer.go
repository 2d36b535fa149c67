// SPDX-License-Identifier: MPL-2.0

// Package installer renders the install-phase command of an environment: the
// effective installer template with {packages} replaced by the environment's
// shell-quoted dependency specs. The session runs the rendered command
// through the environment's runtime like any other command line.
package installer

import (
	"fmt"
	"maps"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/gauntlet-run/gauntlet/pkg/envfile"
)

// Input collects what rendering an install command needs.
type Input struct {
	// Suite and Env supply the deps and the install_command overrides.
	Suite *envfile.Suite
	Env   *envfile.Environment
	// ConfigDefault is the app config's installer template, the final
	// fallback after the environment's and the suite's.
	ConfigDefault string
	// Vars are the placeholder values the session resolved for this
	// environment (env_name, env_dir, suite_dir, posargs). {packages} is
	// added here.
	Vars map[string]string
	// ResolveLocal maps a local dep path to the path the runtime should
	// see; container environments pass their workspace mapping. Nil
	// resolves against the suite directory.
	ResolveLocal func(path string) string
}

// Render produces the install command for the environment. ok is false when
// the environment has no install phase (no deps, or skip_install set).
func Render(in Input) (cmd string, ok bool, err error) {
	if !in.Env.HasInstallPhase() {
		return "", false, nil
	}

	tmpl := in.Suite.EffectiveInstallCommand(in.Env, in.ConfigDefault)
	if tmpl == "" {
		return "", false, fmt.Errorf("environment %q has deps but no install_command is configured", in.Env.Name)
	}

	packages, err := Packages(in.Env.Deps, in.localResolver())
	if err != nil {
		return "", false, fmt.Errorf("deps of environment %q: %w", in.Env.Name, err)
	}

	vars := make(map[string]string, len(in.Vars)+1)
	maps.Copy(vars, in.Vars)
	vars[envfile.PlaceholderPackages] = packages

	rendered, err := envfile.Expand(tmpl, vars)
	if err != nil {
		return "", false, fmt.Errorf("install command of environment %q: %w", in.Env.Name, err)
	}
	return rendered, true, nil
}

// Packages renders the {packages} value: every dep shell-quoted, package
// specs in declaration order followed by the local bootstrap paths in
// declaration order. Local paths go last so installers resolve registry
// packages before path installs that may depend on them.
func Packages(deps []envfile.DepSpec, resolveLocal func(string) string) (string, error) {
	var remote, local []string
	for _, dep := range deps {
		ref, err := dep.Parse()
		if err != nil {
			return "", err
		}

		if ref.LocalPath != "" {
			quoted, err := quoteForShell(resolveLocal(ref.LocalPath))
			if err != nil {
				return "", err
			}
			local = append(local, quoted)
			continue
		}

		// Quote the raw spec: constraint operators like ">=" are shell
		// metacharacters.
		quoted, err := quoteForShell(strings.TrimSpace(dep.String()))
		if err != nil {
			return "", err
		}
		remote = append(remote, quoted)
	}
	return strings.Join(append(remote, local...), " "), nil
}

// localResolver returns the configured local-path mapping, defaulting to
// resolution against the suite directory.
func (in Input) localResolver() func(string) string {
	if in.ResolveLocal != nil {
		return in.ResolveLocal
	}
	suiteDir := in.Suite.Dir()
	return func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(suiteDir, filepath.FromSlash(p))
	}
}

func quoteForShell(s string) (string, error) {
	quoted, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		return "", fmt.Errorf("cannot quote %q for the shell: %w", s, err)
	}
	return quoted, nil
}
