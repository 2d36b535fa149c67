// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"slices"
	"strings"
	"testing"
)

func generatorFixture() *Suite {
	return &Suite{
		Name:           "demo",
		Defaults:       []EnvName{"test", "lint"},
		InstallCommand: "pip install {packages}",
		PassEnv:        []EnvPattern{"CI", "TERM"},
		Env: &EnvSettings{
			Files: []DotenvFilePath{".env?"},
			Vars: map[EnvVarName]string{
				"ZEBRA":  "last",
				"ALPHA":  "first",
				"MIDDLE": "between",
			},
		},
		Envs: []Environment{
			{
				Name:        "test",
				Description: "Run unit tests",
				Tags:        []string{"ci"},
				Deps:        []DepSpec{"pytest"},
				Commands:    []CommandLine{"pytest {posargs}"},
			},
			{
				Name:      "lint",
				Deps:      []DepSpec{"flake8"},
				DependsOn: []EnvName{"test"},
				Timeout:   "5m",
				Commands:  []CommandLine{"flake8 .", "- rm -rf .lintcache"},
			},
			{
				Name:      "integration",
				Platforms: []Platform{PlatformLinux},
				Runtime: &RuntimeSpec{
					Kind:       RuntimeContainer,
					Image:      "python:3.12-slim",
					Volumes:    []string{"./data:/data:ro"},
					Ports:      []string{"8080:80"},
					HostAccess: true,
				},
				Deps:         []DepSpec{"pytest"},
				AllowFailure: true,
				Commands:     []CommandLine{"pytest tests/integration"},
			},
		},
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	t.Parallel()

	want := generatorFixture()
	text := GenerateCUE(want)

	got, err := ParseBytes([]byte(text), "gauntlet.cue")
	if err != nil {
		t.Fatalf("generated CUE does not parse: %v\n%s", err, text)
	}

	if got.Name != want.Name {
		t.Errorf("Name = %q, want %q", got.Name, want.Name)
	}
	if !slices.Equal(got.Defaults, want.Defaults) {
		t.Errorf("Defaults = %v, want %v", got.Defaults, want.Defaults)
	}
	if len(got.Envs) != len(want.Envs) {
		t.Fatalf("len(Envs) = %d, want %d", len(got.Envs), len(want.Envs))
	}
	if got.Env == nil || got.Env.Vars["ALPHA"] != "first" {
		t.Errorf("suite env vars lost: %+v", got.Env)
	}

	lint := got.FindEnv("lint")
	if lint == nil {
		t.Fatal("lint environment missing after round trip")
	}
	if !slices.Equal(lint.DependsOn, want.Envs[1].DependsOn) {
		t.Errorf("DependsOn = %v", lint.DependsOn)
	}
	if len(lint.Commands) != 2 || !lint.Commands[1].IgnoresFailure() {
		t.Errorf("Commands = %v, want the ignore marker preserved", lint.Commands)
	}

	integ := got.FindEnv("integration")
	if integ == nil {
		t.Fatal("integration environment missing after round trip")
	}
	if !integ.Runtime.IsContainer() || integ.Runtime.Image != "python:3.12-slim" {
		t.Errorf("Runtime = %+v", integ.Runtime)
	}
	if !integ.Runtime.HostAccess {
		t.Error("HostAccess lost in round trip")
	}
	if !integ.AllowFailure {
		t.Error("AllowFailure lost in round trip")
	}
}

func TestGenerateCUE_Content(t *testing.T) {
	t.Parallel()

	text := GenerateCUE(generatorFixture())

	for _, want := range []string{
		"// Gauntlet suite",
		`name: "demo"`,
		`defaults: ["test", "lint"]`,
		`install_command: "pip install {packages}"`,
		`kind: "container"`,
		`host_access: true`,
		`timeout: "5m"`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("generated CUE missing %q:\n%s", want, text)
		}
	}
}

// Var blocks emit in sorted key order, so generating twice yields identical
// bytes.
func TestGenerateCUE_Deterministic(t *testing.T) {
	t.Parallel()

	first := GenerateCUE(generatorFixture())
	for range 10 {
		if again := GenerateCUE(generatorFixture()); again != first {
			t.Fatal("GenerateCUE() output varies between calls")
		}
	}

	alpha := strings.Index(first, "ALPHA")
	middle := strings.Index(first, "MIDDLE")
	zebra := strings.Index(first, "ZEBRA")
	if alpha < 0 || middle < 0 || zebra < 0 {
		t.Fatalf("vars missing from output:\n%s", first)
	}
	if !(alpha < middle && middle < zebra) {
		t.Errorf("vars not in sorted order: ALPHA@%d MIDDLE@%d ZEBRA@%d", alpha, middle, zebra)
	}
}

func TestGenerateTOML_RoundTrip(t *testing.T) {
	t.Parallel()

	want := generatorFixture()
	text, err := GenerateTOML(want)
	if err != nil {
		t.Fatalf("GenerateTOML() failed: %v", err)
	}

	got, err := ParseTOMLBytes([]byte(text), "gauntlet.toml")
	if err != nil {
		t.Fatalf("generated TOML does not parse: %v\n%s", err, text)
	}

	if got.Name != want.Name {
		t.Errorf("Name = %q, want %q", got.Name, want.Name)
	}
	if len(got.Envs) != len(want.Envs) {
		t.Fatalf("len(Envs) = %d, want %d", len(got.Envs), len(want.Envs))
	}
	integ := got.FindEnv("integration")
	if integ == nil || !integ.Runtime.IsContainer() {
		t.Errorf("integration runtime lost: %+v", integ)
	}
	if !strings.HasPrefix(text, "# Gauntlet suite") {
		t.Errorf("TOML header missing:\n%s", text)
	}
}
