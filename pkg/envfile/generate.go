// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// GenerateCUE renders a Suite as CUE text that Parse reads back.
// `gauntlet init` uses it to write starter suite files programmatically.
func GenerateCUE(s *Suite) string {
	var sb strings.Builder

	sb.WriteString("// Gauntlet suite - test environment definitions\n")
	sb.WriteString("// See https://github.com/gauntlet-run/gauntlet for documentation\n\n")

	if s.Name != "" {
		fmt.Fprintf(&sb, "name: %q\n", s.Name)
	}
	if len(s.Defaults) > 0 {
		sb.WriteString("defaults: [")
		for i, name := range s.Defaults {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%q", name)
		}
		sb.WriteString("]\n")
	}
	if s.InstallCommand != "" {
		fmt.Fprintf(&sb, "install_command: %q\n", s.InstallCommand)
	}
	generatePatternList(&sb, "pass_env", s.PassEnv, "")
	generatePatternList(&sb, "deny_env", s.DenyEnv, "")
	generateEnvSettings(&sb, s.Env, "")

	sb.WriteString("\nenvs: [\n")
	for i := range s.Envs {
		generateEnvironment(&sb, &s.Envs[i])
	}
	sb.WriteString("]\n")

	return sb.String()
}

// GenerateTOML renders a Suite as TOML text via the same encoder family the
// parser reads with, prefixed with the standard file header.
func GenerateTOML(s *Suite) (string, error) {
	data, err := toml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode suite as TOML: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# Gauntlet suite - test environment definitions\n")
	sb.WriteString("# See https://github.com/gauntlet-run/gauntlet for documentation\n\n")
	sb.Write(data)
	return sb.String(), nil
}

// generateEnvironment generates CUE for a single environment
func generateEnvironment(sb *strings.Builder, env *Environment) {
	sb.WriteString("\t{\n")
	fmt.Fprintf(sb, "\t\tname: %q\n", env.Name)
	if env.Description != "" {
		fmt.Fprintf(sb, "\t\tdescription: %q\n", env.Description)
	}

	if len(env.Tags) > 0 {
		sb.WriteString("\t\ttags: [")
		for i, tag := range env.Tags {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "%q", tag)
		}
		sb.WriteString("]\n")
	}
	if len(env.Platforms) > 0 {
		sb.WriteString("\t\tplatforms: [")
		for i, p := range env.Platforms {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "%q", p)
		}
		sb.WriteString("]\n")
	}

	generateRuntime(sb, env.Runtime)

	if len(env.Deps) > 0 {
		sb.WriteString("\t\tdeps: [\n")
		for _, dep := range env.Deps {
			fmt.Fprintf(sb, "\t\t\t%q,\n", dep)
		}
		sb.WriteString("\t\t]\n")
	}

	generatePatternList(sb, "pass_env", env.PassEnv, "\t\t")
	generatePatternList(sb, "deny_env", env.DenyEnv, "\t\t")
	if env.Inherit != "" {
		fmt.Fprintf(sb, "\t\tinherit: %q\n", env.Inherit)
	}
	generateEnvSettings(sb, env.Env, "\t\t")

	if env.WorkDir != "" {
		fmt.Fprintf(sb, "\t\tworkdir: %q\n", env.WorkDir)
	}
	if env.InstallCommand != "" {
		fmt.Fprintf(sb, "\t\tinstall_command: %q\n", env.InstallCommand)
	}
	if env.SkipInstall {
		sb.WriteString("\t\tskip_install: true\n")
	}
	if len(env.DependsOn) > 0 {
		sb.WriteString("\t\tdepends_on: [")
		for i, dep := range env.DependsOn {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "%q", dep)
		}
		sb.WriteString("]\n")
	}
	if env.Timeout != "" {
		fmt.Fprintf(sb, "\t\ttimeout: %q\n", env.Timeout)
	}
	if env.AllowFailure {
		sb.WriteString("\t\tallow_failure: true\n")
	}

	sb.WriteString("\t\tcommands: [\n")
	for _, c := range env.Commands {
		fmt.Fprintf(sb, "\t\t\t%q,\n", c)
	}
	sb.WriteString("\t\t]\n")

	sb.WriteString("\t},\n")
}

// generateRuntime generates CUE for a runtime block
func generateRuntime(sb *strings.Builder, r *RuntimeSpec) {
	if r == nil {
		return
	}
	sb.WriteString("\t\truntime: {")
	fmt.Fprintf(sb, "kind: %q", r.Kind)
	if r.Image != "" {
		fmt.Fprintf(sb, ", image: %q", r.Image)
	}
	if r.Containerfile != "" {
		fmt.Fprintf(sb, ", containerfile: %q", r.Containerfile)
	}
	if len(r.Volumes) > 0 {
		sb.WriteString(", volumes: [")
		for i, v := range r.Volumes {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "%q", v)
		}
		sb.WriteString("]")
	}
	if len(r.Ports) > 0 {
		sb.WriteString(", ports: [")
		for i, p := range r.Ports {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "%q", p)
		}
		sb.WriteString("]")
	}
	if r.HostAccess {
		sb.WriteString(", host_access: true")
	}
	sb.WriteString("}\n")
}

// generatePatternList generates CUE for a pass_env/deny_env list
func generatePatternList(sb *strings.Builder, field string, patterns []EnvPattern, indent string) {
	if len(patterns) == 0 {
		return
	}
	sb.WriteString(indent + field + ": [")
	for i, p := range patterns {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "%q", p)
	}
	sb.WriteString("]\n")
}

// generateEnvSettings generates CUE for an env block. Vars emit in sorted
// key order so repeated generation is byte-stable.
func generateEnvSettings(sb *strings.Builder, env *EnvSettings, indent string) {
	if env == nil || (len(env.Files) == 0 && len(env.Vars) == 0) {
		return
	}
	sb.WriteString(indent + "env: {\n")
	if len(env.Files) > 0 {
		sb.WriteString(indent + "\tfiles: [")
		for i, ef := range env.Files {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "%q", ef)
		}
		sb.WriteString("]\n")
	}
	if len(env.Vars) > 0 {
		sb.WriteString(indent + "\tvars: {\n")
		for _, k := range slices.Sorted(maps.Keys(env.Vars)) {
			fmt.Fprintf(sb, "%s\t\t%s: %q\n", indent, k, env.Vars[k])
		}
		sb.WriteString(indent + "\t}\n")
	}
	sb.WriteString(indent + "}\n")
}
