// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gauntlet-run/gauntlet/pkg/envfile"
	"github.com/gauntlet-run/gauntlet/pkg/types"
)

// writeDotenv creates a dotenv file under dir and returns its name.
func writeDotenv(t *testing.T, dir, name, content string) string {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file %s: %v", name, err)
	}
	return name
}

// builderSuite creates a one-environment suite rooted in a temp dir.
func builderSuite(t *testing.T) (*envfile.Suite, *envfile.Environment, string) {
	t.Helper()
	dir := t.TempDir()
	suite := &envfile.Suite{
		Envs: []envfile.Environment{{
			Name:     "py311",
			Commands: []envfile.CommandLine{"true"},
		}},
		FilePath: types.FilesystemPath(filepath.Join(dir, envfile.SuiteFileCUE)),
	}
	return suite, &suite.Envs[0], dir
}

func TestEnvBuilder_Precedence(t *testing.T) {
	t.Parallel()

	suite, env, dir := builderSuite(t)

	// Each layer sets LAYER to its own level plus one variable of its own,
	// so the final map shows both the winner and every layer's contribution.
	writeDotenv(t, dir, "suite.env", "LAYER=suite_file\nFROM_SUITE_FILE=1\n")
	writeDotenv(t, dir, "env.env", "LAYER=env_file\nFROM_ENV_FILE=1\n")
	writeDotenv(t, dir, "cli.env", "LAYER=cli_file\nFROM_CLI_FILE=1\n")

	suite.Env = &envfile.EnvSettings{
		Files: []envfile.DotenvFilePath{"suite.env"},
		Vars:  map[envfile.EnvVarName]string{"LAYER": "suite_vars", "FROM_SUITE_VARS": "1"},
	}
	env.Inherit = envfile.InheritAll
	env.Env = &envfile.EnvSettings{
		Files: []envfile.DotenvFilePath{"env.env"},
		Vars:  map[envfile.EnvVarName]string{"LAYER": "env_vars", "FROM_ENV_VARS": "1"},
	}

	b := &DefaultEnvBuilder{Environ: fakeEnviron("LAYER=host", "FROM_HOST=1")}
	got, err := b.Build(BuildInput{
		Suite:       suite,
		Env:         env,
		EnvDir:      filepath.Join(dir, ".gauntlet", "py311"),
		CLIEnvFiles: []string{"cli.env"},
		CLIEnvVars:  map[string]string{"LAYER": "cli_vars", "FROM_CLI_VARS": "1"},
		Cwd:         dir,
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if got["LAYER"] != "cli_vars" {
		t.Errorf("Build() LAYER = %q, want %q (--env-var must win)", got["LAYER"], "cli_vars")
	}
	for _, name := range []string{
		"FROM_HOST", "FROM_SUITE_FILE", "FROM_SUITE_VARS",
		"FROM_ENV_FILE", "FROM_ENV_VARS", "FROM_CLI_FILE", "FROM_CLI_VARS",
	} {
		if got[name] != "1" {
			t.Errorf("Build() %s = %q, want %q", name, got[name], "1")
		}
	}
}

func TestEnvBuilder_LayerOrderWithoutCLI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(suite *envfile.Suite, env *envfile.Environment, dir string, t *testing.T)
		want  string
	}{
		{
			name: "suite file beats host",
			setup: func(suite *envfile.Suite, env *envfile.Environment, dir string, t *testing.T) {
				writeDotenv(t, dir, "a.env", "LAYER=suite_file\n")
				suite.Env = &envfile.EnvSettings{Files: []envfile.DotenvFilePath{"a.env"}}
			},
			want: "suite_file",
		},
		{
			name: "suite vars beat suite file",
			setup: func(suite *envfile.Suite, env *envfile.Environment, dir string, t *testing.T) {
				writeDotenv(t, dir, "a.env", "LAYER=suite_file\n")
				suite.Env = &envfile.EnvSettings{
					Files: []envfile.DotenvFilePath{"a.env"},
					Vars:  map[envfile.EnvVarName]string{"LAYER": "suite_vars"},
				}
			},
			want: "suite_vars",
		},
		{
			name: "env file beats suite vars",
			setup: func(suite *envfile.Suite, env *envfile.Environment, dir string, t *testing.T) {
				writeDotenv(t, dir, "a.env", "LAYER=env_file\n")
				suite.Env = &envfile.EnvSettings{Vars: map[envfile.EnvVarName]string{"LAYER": "suite_vars"}}
				env.Env = &envfile.EnvSettings{Files: []envfile.DotenvFilePath{"a.env"}}
			},
			want: "env_file",
		},
		{
			name: "env vars beat env file",
			setup: func(suite *envfile.Suite, env *envfile.Environment, dir string, t *testing.T) {
				writeDotenv(t, dir, "a.env", "LAYER=env_file\n")
				env.Env = &envfile.EnvSettings{
					Files: []envfile.DotenvFilePath{"a.env"},
					Vars:  map[envfile.EnvVarName]string{"LAYER": "env_vars"},
				}
			},
			want: "env_vars",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			suite, env, dir := builderSuite(t)
			env.Inherit = envfile.InheritAll
			tt.setup(suite, env, dir, t)

			b := &DefaultEnvBuilder{Environ: fakeEnviron("LAYER=host")}
			got, err := b.Build(BuildInput{Suite: suite, Env: env, EnvDir: dir, Cwd: dir})
			if err != nil {
				t.Fatalf("Build() error: %v", err)
			}
			if got["LAYER"] != tt.want {
				t.Errorf("Build() LAYER = %q, want %q", got["LAYER"], tt.want)
			}
		})
	}
}

func TestEnvBuilder_InjectsIdentityVars(t *testing.T) {
	t.Parallel()

	suite, env, dir := builderSuite(t)
	envDir := filepath.Join(dir, ".gauntlet", "py311")

	b := &DefaultEnvBuilder{Environ: fakeEnviron()}
	got, err := b.Build(BuildInput{Suite: suite, Env: env, EnvDir: envDir})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if got[EnvVarEnvName] != "py311" {
		t.Errorf("Build() %s = %q, want %q", EnvVarEnvName, got[EnvVarEnvName], "py311")
	}
	if got[EnvVarEnvDir] != envDir {
		t.Errorf("Build() %s = %q, want %q", EnvVarEnvDir, got[EnvVarEnvDir], envDir)
	}
	if got[EnvVarSuiteDir] != dir {
		t.Errorf("Build() %s = %q, want %q", EnvVarSuiteDir, got[EnvVarSuiteDir], dir)
	}
}

func TestEnvBuilder_ExtraVarsOverrideSuiteButNotCLI(t *testing.T) {
	t.Parallel()

	suite, env, dir := builderSuite(t)
	env.Env = &envfile.EnvSettings{Vars: map[envfile.EnvVarName]string{"SHARED": "env_vars"}}

	b := &DefaultEnvBuilder{Environ: fakeEnviron()}
	got, err := b.Build(BuildInput{
		Suite:      suite,
		Env:        env,
		EnvDir:     dir,
		Extra:      map[string]string{"SHARED": "extra", EnvVarCallbackHost: "127.0.0.1"},
		CLIEnvVars: map[string]string{EnvVarCallbackHost: "10.0.0.7"},
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if got["SHARED"] != "extra" {
		t.Errorf("Build() SHARED = %q, want %q (Extra layers over env vars)", got["SHARED"], "extra")
	}
	if got[EnvVarCallbackHost] != "10.0.0.7" {
		t.Errorf("Build() %s = %q, want %q (--env-var layers over Extra)",
			EnvVarCallbackHost, got[EnvVarCallbackHost], "10.0.0.7")
	}
}

func TestEnvBuilder_MissingRequiredFileFails(t *testing.T) {
	t.Parallel()

	suite, env, dir := builderSuite(t)
	suite.Env = &envfile.EnvSettings{Files: []envfile.DotenvFilePath{"nope.env"}}

	b := &DefaultEnvBuilder{Environ: fakeEnviron()}
	if _, err := b.Build(BuildInput{Suite: suite, Env: env, EnvDir: dir}); err == nil {
		t.Fatal("Build() expected error for missing required env file")
	}
}

func TestEnvBuilder_MissingOptionalFileSkipped(t *testing.T) {
	t.Parallel()

	suite, env, dir := builderSuite(t)
	suite.Env = &envfile.EnvSettings{Files: []envfile.DotenvFilePath{"nope.env?"}}

	b := &DefaultEnvBuilder{Environ: fakeEnviron()}
	if _, err := b.Build(BuildInput{Suite: suite, Env: env, EnvDir: dir}); err != nil {
		t.Fatalf("Build() error for optional missing file: %v", err)
	}
}

func TestMockEnvBuilder(t *testing.T) {
	t.Parallel()

	mock := &MockEnvBuilder{Env: map[string]string{"A": "1"}}
	got, err := mock.Build(BuildInput{})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	got["A"] = "mutated"
	if mock.Env["A"] != "1" {
		t.Error("MockEnvBuilder.Build() must return a copy, not the backing map")
	}

	wantErr := errors.New("boom")
	mock = &MockEnvBuilder{Err: wantErr}
	if _, err := mock.Build(BuildInput{}); !errors.Is(err, wantErr) {
		t.Errorf("Build() error = %v, want %v", err, wantErr)
	}
}
