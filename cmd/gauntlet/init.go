// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gauntlet-run/gauntlet/pkg/envfile"
	"github.com/gauntlet-run/gauntlet/pkg/types"

	"github.com/spf13/cobra"
)

var (
	initForce    bool
	initTemplate string
	initFormat   string

	// initCmd creates a new suite file
	initCmd = &cobra.Command{
		Use:   "init [filename]",
		Short: "Create a new suite file in the current directory",
		Long: `Create a new suite file in the current directory with example environments.

This command generates a starter suite file with sample environments to
help you get started quickly.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInit,
	}
)

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing suite file")
	initCmd.Flags().StringVarP(&initTemplate, "template", "t", "default", "template to use (default, minimal, full)")
	initCmd.Flags().StringVar(&initFormat, "format", "cue", "file format to generate (cue, toml)")
}

func runInit(cmd *cobra.Command, args []string) error {
	format := initFormat
	filename := ""
	if len(args) > 0 {
		// An explicit filename's extension picks the format unless --format
		// was given.
		filename = args[0]
		if !cmd.Flags().Changed("format") {
			switch filepath.Ext(filename) {
			case ".toml":
				format = "toml"
			case ".cue":
				format = "cue"
			}
		}
	}

	if format != "cue" && format != "toml" {
		return &ExitError{
			Code: types.ExitUsageError,
			Err:  fmt.Errorf("invalid format %q (valid: cue, toml)", format),
		}
	}
	if filename == "" {
		filename = envfile.SuiteFileCUE
		if format == "toml" {
			filename = envfile.SuiteFileTOML
		}
	}

	// Check if file exists
	if _, err := os.Stat(filename); err == nil && !initForce {
		return &ExitError{
			Code: types.ExitUsageError,
			Err:  fmt.Errorf("file '%s' already exists. Use --force to overwrite", filename),
		}
	}

	// Generate content based on template
	content, err := generateSuiteFile(initTemplate, format)
	if err != nil {
		return err
	}

	// Write file
	if err := os.WriteFile(filename, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	absPath, _ := filepath.Abs(filename)
	fmt.Printf("%s Created %s\n", SuccessStyle.Render("✓"), absPath)
	fmt.Println()
	fmt.Println(SubtitleStyle.Render("Next steps:"))
	fmt.Println("  1. Edit the suite file to describe your test environments")
	fmt.Println("  2. Run 'gauntlet list' to see available environments")
	fmt.Println("  3. Run 'gauntlet run' to execute them")

	return nil
}

func generateSuiteFile(template, format string) (string, error) {
	suite, err := scaffoldSuite(template)
	if err != nil {
		return "", err
	}
	if format == "toml" {
		return envfile.GenerateTOML(suite)
	}
	return envfile.GenerateCUE(suite), nil
}

func scaffoldSuite(template string) (*envfile.Suite, error) {
	switch template {
	case "minimal":
		return &envfile.Suite{
			Envs: []envfile.Environment{
				{
					Name:        "test",
					Description: "Run the test suite",
					Commands: []envfile.CommandLine{
						"echo 'Hello from gauntlet!'",
					},
				},
			},
		}, nil

	case "full":
		return &envfile.Suite{
			Name:     "myproject",
			Defaults: []envfile.EnvName{"test", "lint"},
			PassEnv:  []envfile.EnvPattern{"CI", "TERM"},
			Env: &envfile.EnvSettings{
				Vars: map[envfile.EnvVarName]string{
					"PIP_DISABLE_PIP_VERSION_CHECK": "1",
				},
			},
			Envs: []envfile.Environment{
				{
					Name:        "test",
					Description: "Run unit tests",
					Tags:        []string{"ci"},
					Deps:        []envfile.DepSpec{"pytest", "pytest-cov"},
					Commands: []envfile.CommandLine{
						"pytest --cov=src {posargs}",
					},
				},
				{
					Name:        "lint",
					Description: "Static checks",
					Tags:        []string{"ci"},
					Deps:        []envfile.DepSpec{"flake8"},
					Commands: []envfile.CommandLine{
						"flake8 src tests",
					},
				},
				{
					Name:         "docs",
					Description:  "Build the documentation",
					Platforms:    []envfile.Platform{envfile.PlatformLinux, envfile.PlatformMacOS},
					Deps:         []envfile.DepSpec{"sphinx"},
					AllowFailure: true,
					Commands: []envfile.CommandLine{
						"python -m sphinx -W docs docs/_build",
					},
				},
				{
					Name:        "integration",
					Description: "Integration tests in a clean container",
					Tags:        []string{"slow"},
					Runtime: &envfile.RuntimeSpec{
						Kind:  envfile.RuntimeContainer,
						Image: "python:3.12-slim",
					},
					Deps:      []envfile.DepSpec{"pytest"},
					DependsOn: []envfile.EnvName{"test"},
					Timeout:   "30m",
					Commands: []envfile.CommandLine{
						"pytest tests/integration {posargs}",
						"- rm -rf .pytest_cache",
					},
				},
			},
		}, nil

	case "default":
		return &envfile.Suite{
			Defaults: []envfile.EnvName{"test", "lint"},
			Envs: []envfile.Environment{
				{
					Name:        "test",
					Description: "Run unit tests",
					Deps:        []envfile.DepSpec{"pytest"},
					Commands: []envfile.CommandLine{
						"pytest {posargs}",
					},
				},
				{
					Name:        "lint",
					Description: "Static checks",
					Deps:        []envfile.DepSpec{"flake8"},
					Commands: []envfile.CommandLine{
						"flake8 .",
					},
				},
			},
		}, nil

	default:
		return nil, &ExitError{
			Code: types.ExitUsageError,
			Err:  fmt.Errorf("unknown template %q (valid: default, minimal, full)", template),
		}
	}
}
