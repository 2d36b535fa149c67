// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/gauntlet-run/gauntlet/pkg/types"
)

const fullCUESuite = `
name: "full"
defaults: ["unit"]
install_command: "pip install {packages}"
pass_env: ["CI", "GITHUB_*"]
deny_env: ["SECRET_*"]
env: {
	files: [".env?"]
	vars: {PIP_NO_INPUT: "1"}
}
envs: [
	{
		name:        "unit"
		description: "Unit tests"
		tags: ["ci"]
		platforms: ["linux", "macos"]
		deps: ["pytest", "./packages/helper"]
		pass_env: ["UNIT_*"]
		inherit: "none"
		env: {vars: {COVERAGE_FILE: ".coverage"}}
		workdir: "src"
		timeout: "10m"
		commands: ["pytest {posargs}"]
	},
	{
		name: "release"
		runtime: {
			kind:  "container"
			image: "python:3.12-slim"
			volumes: ["./dist:/dist"]
			ports: ["8080:80"]
			host_access: true
		}
		depends_on: ["unit"]
		install_command: "uv pip install {packages}"
		deps: ["build"]
		allow_failure: true
		commands: ["python -m build"]
	},
]
`

func TestParseBytes_FullSuite(t *testing.T) {
	t.Parallel()

	suite, err := ParseBytes([]byte(fullCUESuite), "gauntlet.cue")
	if err != nil {
		t.Fatalf("ParseBytes() failed: %v", err)
	}

	if suite.Name != "full" {
		t.Errorf("Name = %q, want %q", suite.Name, "full")
	}
	if !slices.Equal(suite.Defaults, []EnvName{"unit"}) {
		t.Errorf("Defaults = %v", suite.Defaults)
	}
	if suite.InstallCommand != "pip install {packages}" {
		t.Errorf("InstallCommand = %q", suite.InstallCommand)
	}
	if !slices.Equal(suite.PassEnv, []EnvPattern{"CI", "GITHUB_*"}) {
		t.Errorf("PassEnv = %v", suite.PassEnv)
	}
	if suite.Env == nil || suite.Env.Vars["PIP_NO_INPUT"] != "1" {
		t.Errorf("suite Env = %+v", suite.Env)
	}
	if len(suite.Env.Files) != 1 || !suite.Env.Files[0].IsOptional() {
		t.Errorf("suite Env.Files = %v, want one optional file", suite.Env.Files)
	}

	if len(suite.Envs) != 2 {
		t.Fatalf("len(Envs) = %d, want 2", len(suite.Envs))
	}

	unit := suite.FindEnv("unit")
	if unit == nil {
		t.Fatal("unit environment missing")
	}
	if unit.Description != "Unit tests" {
		t.Errorf("Description = %q", unit.Description)
	}
	if !slices.Equal(unit.Platforms, []Platform{PlatformLinux, PlatformMacOS}) {
		t.Errorf("Platforms = %v", unit.Platforms)
	}
	if !slices.Equal(unit.Deps, []DepSpec{"pytest", "./packages/helper"}) {
		t.Errorf("Deps = %v", unit.Deps)
	}
	if unit.Inherit != InheritNone {
		t.Errorf("Inherit = %q", unit.Inherit)
	}
	if unit.WorkDir != "src" {
		t.Errorf("WorkDir = %q", unit.WorkDir)
	}
	if unit.Timeout != "10m" {
		t.Errorf("Timeout = %q", unit.Timeout)
	}

	release := suite.FindEnv("release")
	if release == nil {
		t.Fatal("release environment missing")
	}
	if !release.Runtime.IsContainer() {
		t.Errorf("Runtime = %+v, want container", release.Runtime)
	}
	if release.Runtime.Image != "python:3.12-slim" {
		t.Errorf("Image = %q", release.Runtime.Image)
	}
	if !release.Runtime.HostAccess {
		t.Error("HostAccess = false")
	}
	if !slices.Equal(release.DependsOn, []EnvName{"unit"}) {
		t.Errorf("DependsOn = %v", release.DependsOn)
	}
	if !release.AllowFailure {
		t.Error("AllowFailure = false")
	}
}

func TestParseBytes_SchemaRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
	}{
		{
			name: "unknown suite field",
			src:  `author: "me"` + "\n" + `envs: [{name: "a", commands: ["echo hi"]}]`,
		},
		{
			name: "unknown env field",
			src:  `envs: [{name: "a", shell: "zsh", commands: ["echo hi"]}]`,
		},
		{
			name: "invalid platform value",
			src:  `envs: [{name: "a", platforms: ["freebsd"], commands: ["echo hi"]}]`,
		},
		{
			name: "empty commands list",
			src:  `envs: [{name: "a", commands: []}]`,
		},
		{
			name: "missing envs",
			src:  `name: "empty"`,
		},
		{
			name: "uppercase env name",
			src:  `envs: [{name: "Test", commands: ["echo hi"]}]`,
		},
		{
			name: "numeric dep",
			src:  `envs: [{name: "a", deps: [42], commands: ["echo hi"]}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := ParseBytes([]byte(tt.src), "gauntlet.cue"); err == nil {
				t.Errorf("ParseBytes() accepted:\n%s", tt.src)
			}
		})
	}
}

func TestParseBytes_ValidatorFindingsFailParse(t *testing.T) {
	t.Parallel()

	// Schema-valid but semantically broken: duplicate names.
	src := `envs: [
	{name: "twin", commands: ["echo one"]},
	{name: "twin", commands: ["echo two"]},
]`

	_, err := ParseBytes([]byte(src), "gauntlet.cue")
	if err == nil {
		t.Fatal("ParseBytes() accepted duplicate environment names")
	}

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("error = %T, want ValidationErrors", err)
	}
	if !verrs.HasErrors() {
		t.Error("ValidationErrors carries no error-severity finding")
	}
}

func TestParseBytes_WarningsDoNotFailParse(t *testing.T) {
	t.Parallel()

	// An unknown program is only a warning; the suite must still load.
	src := `envs: [{name: "a", commands: ["frobnicate-zz1 --all"]}]`

	suite, err := ParseBytes([]byte(src), "gauntlet.cue")
	if err != nil {
		t.Fatalf("ParseBytes() failed on a warning-only suite: %v", err)
	}
	if len(suite.Envs) != 1 {
		t.Errorf("len(Envs) = %d, want 1", len(suite.Envs))
	}
}

func TestParseTOMLBytes(t *testing.T) {
	t.Parallel()

	src := `
name = "demo"
defaults = ["test"]
install_command = "pip install {packages}"

[[envs]]
name = "test"
deps = ["pytest"]
commands = ["pytest {posargs}"]

[[envs]]
name = "release"
depends_on = ["test"]
commands = ["python -m build"]

[envs.runtime]
kind = "container"
image = "python:3.12-slim"
`

	suite, err := ParseTOMLBytes([]byte(src), "gauntlet.toml")
	if err != nil {
		t.Fatalf("ParseTOMLBytes() failed: %v", err)
	}
	if suite.Name != "demo" {
		t.Errorf("Name = %q", suite.Name)
	}
	if len(suite.Envs) != 2 {
		t.Fatalf("len(Envs) = %d, want 2", len(suite.Envs))
	}
	release := suite.FindEnv("release")
	if release == nil || !release.Runtime.IsContainer() {
		t.Errorf("release runtime not decoded: %+v", release)
	}
}

func TestParseTOMLBytes_UnknownField(t *testing.T) {
	t.Parallel()

	src := `
author = "me"

[[envs]]
name = "test"
commands = ["echo hi"]
`

	_, err := ParseTOMLBytes([]byte(src), "gauntlet.toml")
	if err == nil {
		t.Fatal("ParseTOMLBytes() accepted an unknown field")
	}
	if !strings.Contains(err.Error(), "unknown fields") {
		t.Errorf("error = %q, want unknown-fields message", err)
	}
}

func TestParseTOMLBytes_NoEnvs(t *testing.T) {
	t.Parallel()

	_, err := ParseTOMLBytes([]byte(`name = "empty"`), "gauntlet.toml")
	if err == nil {
		t.Fatal("ParseTOMLBytes() accepted a suite without environments")
	}
	if !strings.Contains(err.Error(), "declares no environments") {
		t.Errorf("error = %q", err)
	}
}

func TestParse_Files(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cuePath := filepath.Join(dir, "gauntlet.cue")
	if err := os.WriteFile(cuePath, []byte(`envs: [{name: "a", commands: ["echo hi"]}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	suite, err := Parse(types.FilesystemPath(cuePath))
	if err != nil {
		t.Fatalf("Parse(cue) failed: %v", err)
	}
	if suite.FilePath != types.FilesystemPath(cuePath) {
		t.Errorf("FilePath = %q, want %q", suite.FilePath, cuePath)
	}

	tomlPath := filepath.Join(dir, "gauntlet.toml")
	tomlSrc := "[[envs]]\nname = \"a\"\ncommands = [\"echo hi\"]\n"
	if err := os.WriteFile(tomlPath, []byte(tomlSrc), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(types.FilesystemPath(tomlPath)); err != nil {
		t.Fatalf("Parse(toml) failed: %v", err)
	}

	yamlPath := filepath.Join(dir, "suite.yaml")
	if err := os.WriteFile(yamlPath, []byte("envs: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = Parse(types.FilesystemPath(yamlPath))
	if err == nil || !strings.Contains(err.Error(), "unsupported suite file extension") {
		t.Errorf("Parse(yaml) error = %v, want unsupported-extension", err)
	}
}

func TestParseInheritMode_Values(t *testing.T) {
	t.Parallel()

	for _, v := range []string{"", "none", "allow", "all"} {
		if _, err := ParseInheritMode(v); err != nil {
			t.Errorf("ParseInheritMode(%q) failed: %v", v, err)
		}
	}
	if _, err := ParseInheritMode("some"); err == nil {
		t.Error(`ParseInheritMode("some") succeeded, want error`)
	}
}
