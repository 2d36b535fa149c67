// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/gauntlet-run/gauntlet/pkg/envfile"
	"github.com/gauntlet-run/gauntlet/pkg/types"
)

func TestScaffoldSuite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		template string
		wantEnvs int
	}{
		{"default", 2},
		{"minimal", 1},
		{"full", 4},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			t.Parallel()

			suite, err := scaffoldSuite(tt.template)
			if err != nil {
				t.Fatalf("scaffoldSuite(%q) failed: %v", tt.template, err)
			}
			if len(suite.Envs) != tt.wantEnvs {
				t.Errorf("len(Envs) = %d, want %d", len(suite.Envs), tt.wantEnvs)
			}
			for i := range suite.Envs {
				if len(suite.Envs[i].Commands) == 0 {
					t.Errorf("env %q has no commands", suite.Envs[i].Name)
				}
			}
		})
	}
}

func TestScaffoldSuite_UnknownTemplate(t *testing.T) {
	t.Parallel()

	_, err := scaffoldSuite("bogus")

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("scaffoldSuite() = %v, want *ExitError", err)
	}
	if exitErr.Code != types.ExitUsageError {
		t.Errorf("Code = %d, want %d", exitErr.Code, types.ExitUsageError)
	}
}

// TestGenerateSuiteFile_RoundTrips feeds every generated scaffold back
// through the real parser: whatever init writes must parse and validate.
func TestGenerateSuiteFile_RoundTrips(t *testing.T) {
	t.Parallel()

	for _, template := range []string{"default", "minimal", "full"} {
		t.Run(template, func(t *testing.T) {
			t.Parallel()

			want, err := scaffoldSuite(template)
			if err != nil {
				t.Fatalf("scaffoldSuite(%q) failed: %v", template, err)
			}

			cueText, err := generateSuiteFile(template, "cue")
			if err != nil {
				t.Fatalf("generateSuiteFile(cue) failed: %v", err)
			}
			fromCUE, err := envfile.ParseBytes([]byte(cueText), "gauntlet.cue")
			if err != nil {
				t.Fatalf("generated CUE does not parse: %v\n%s", err, cueText)
			}
			if len(fromCUE.Envs) != len(want.Envs) {
				t.Errorf("CUE round trip env count = %d, want %d", len(fromCUE.Envs), len(want.Envs))
			}

			tomlText, err := generateSuiteFile(template, "toml")
			if err != nil {
				t.Fatalf("generateSuiteFile(toml) failed: %v", err)
			}
			fromTOML, err := envfile.ParseTOMLBytes([]byte(tomlText), "gauntlet.toml")
			if err != nil {
				t.Fatalf("generated TOML does not parse: %v\n%s", err, tomlText)
			}
			if len(fromTOML.Envs) != len(want.Envs) {
				t.Errorf("TOML round trip env count = %d, want %d", len(fromTOML.Envs), len(want.Envs))
			}
		})
	}
}

func resetInitFlags(t *testing.T) {
	t.Helper()

	origForce, origTemplate, origFormat := initForce, initTemplate, initFormat
	t.Cleanup(func() {
		initForce, initTemplate, initFormat = origForce, origTemplate, origFormat
	})
}

func TestRunInit_CreatesFile(t *testing.T) {
	resetInitFlags(t)

	path := filepath.Join(t.TempDir(), "gauntlet.cue")
	if err := runInit(&cobra.Command{}, []string{path}); err != nil {
		t.Fatalf("runInit() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading created file: %v", err)
	}
	if !strings.HasPrefix(string(data), "// Gauntlet suite") {
		t.Errorf("file does not start with the CUE header:\n%s", data)
	}
}

func TestRunInit_RefusesOverwrite(t *testing.T) {
	resetInitFlags(t)

	path := filepath.Join(t.TempDir(), "gauntlet.cue")
	if err := os.WriteFile(path, []byte("envs: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := runInit(&cobra.Command{}, []string{path})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("runInit() = %v, want *ExitError", err)
	}
	if exitErr.Code != types.ExitUsageError {
		t.Errorf("Code = %d, want %d", exitErr.Code, types.ExitUsageError)
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("error = %q, want overwrite refusal", err)
	}

	// --force replaces the file.
	initForce = true
	if err := runInit(&cobra.Command{}, []string{path}); err != nil {
		t.Fatalf("runInit() with force failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "envs:") || len(data) < 40 {
		t.Errorf("forced init did not replace content:\n%s", data)
	}
}

func TestRunInit_FormatFromExtension(t *testing.T) {
	resetInitFlags(t)

	path := filepath.Join(t.TempDir(), "suite.toml")
	if err := runInit(&cobra.Command{}, []string{path}); err != nil {
		t.Fatalf("runInit() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading created file: %v", err)
	}
	if !strings.HasPrefix(string(data), "# Gauntlet suite") {
		t.Errorf("file does not start with the TOML header:\n%s", data)
	}
}

func TestRunInit_InvalidFormat(t *testing.T) {
	resetInitFlags(t)
	initFormat = "yaml"

	err := runInit(&cobra.Command{}, nil)
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("runInit() = %v, want *ExitError", err)
	}
	if exitErr.Code != types.ExitUsageError {
		t.Errorf("Code = %d, want %d", exitErr.Code, types.ExitUsageError)
	}
}
