// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gauntlet-run/gauntlet/internal/config"
	"github.com/gauntlet-run/gauntlet/internal/issue"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `gauntlet config` command tree.
// Subcommands that read configuration use the App's ConfigProvider.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage gauntlet configuration",
		Long: `Manage gauntlet configuration.

Configuration is stored in:
  - Linux: ~/.config/gauntlet/config.cue
  - macOS: ~/Library/Application Support/gauntlet/config.cue
  - Windows: %APPDATA%\gauntlet\config.cue`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfigFile()
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath()
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setConfigValue(cmd.Context(), app, args[0], args[1])
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output raw configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config.Load(cmd.Context(), config.LoadOptions{})
			if err != nil {
				return err
			}

			fmt.Print(config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App) error {
	cfg, err := app.Config.Load(ctx, config.LoadOptions{})
	if err != nil {
		rendered, _ := issue.Get(issue.ConfigLoadFailedId).Render("dark")
		fmt.Fprint(os.Stderr, rendered)
		return err
	}

	// Style definitions using shared color palette
	headerStyle := TitleStyle
	keyStyle := EnvStyle
	valueStyle := SuccessStyle

	fmt.Println(headerStyle.Render("Current Configuration"))
	fmt.Println()

	// The provider does not cache resolved paths; derive the file location
	// from the standard config directory.
	cfgDir, dirErr := config.ConfigDir()
	if dirErr == nil {
		cfgPath := cfgDir + "/config.cue"
		if fileExistsCheck(cfgPath) {
			fmt.Printf("%s: %s\n", keyStyle.Render("Config file"), cfgPath)
		} else {
			fmt.Printf("%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
		}
	} else {
		fmt.Printf("%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Println()

	// Show values
	fmt.Printf("%s: %s\n", keyStyle.Render("default_runtime"), valueStyle.Render(string(cfg.DefaultRuntime)))
	fmt.Printf("%s: %s\n", keyStyle.Render("container_engine"), valueStyle.Render(string(cfg.ContainerEngine)))
	fmt.Printf("%s: %s\n", keyStyle.Render("install_command"), valueStyle.Render(cfg.InstallCommand))
	fmt.Printf("%s: %s\n", keyStyle.Render("parallel"), valueStyle.Render(strconv.Itoa(cfg.Parallel)))
	fmt.Printf("%s: %s\n", keyStyle.Render("env_dir_root"), valueStyle.Render(cfg.EnvDirRoot))

	fmt.Println()
	fmt.Printf("%s:\n", keyStyle.Render("ui"))
	fmt.Printf("  color: %s\n", valueStyle.Render(string(cfg.UI.Color)))
	fmt.Printf("  verbose: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.UI.Verbose)))

	fmt.Println()
	fmt.Printf("%s:\n", keyStyle.Render("callback"))
	fmt.Printf("  host: %s\n", valueStyle.Render(cfg.Callback.Host))
	fmt.Printf("  port: %s\n", valueStyle.Render(strconv.Itoa(cfg.Callback.Port)))
	fmt.Printf("  token_ttl: %s\n", valueStyle.Render(cfg.Callback.TokenTTL))
	fmt.Printf("  shutdown_timeout: %s\n", valueStyle.Render(cfg.Callback.ShutdownTimeout))

	return nil
}

func initConfigFile() error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}

	if err = config.CreateDefaultConfig(); err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}

	fmt.Printf("%s Created default configuration at %s/config.cue\n", SuccessStyle.Render("✓"), cfgDir)
	return nil
}

func showConfigPath() error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}

	fmt.Printf("Config directory: %s\n", cfgDir)
	fmt.Printf("Config file: %s/config.cue\n", cfgDir)

	return nil
}

func setConfigValue(ctx context.Context, app *App, key, value string) error {
	cfg, err := app.Config.Load(ctx, config.LoadOptions{})
	if err != nil {
		return err
	}

	switch key {
	case "default_runtime":
		mode := config.RuntimeMode(value)
		if valid, errs := mode.IsValid(); !valid {
			return errs[0]
		}
		cfg.DefaultRuntime = mode

	case "container_engine":
		engine := config.ContainerEngine(value)
		if valid, errs := engine.IsValid(); !valid {
			return errs[0]
		}
		cfg.ContainerEngine = engine

	case "install_command":
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("invalid install_command: must not be empty")
		}
		cfg.InstallCommand = value

	case "parallel":
		n, convErr := strconv.Atoi(value)
		if convErr != nil || n < 0 {
			return fmt.Errorf("invalid parallel: must be a non-negative integer")
		}
		cfg.Parallel = n

	case "env_dir_root":
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("invalid env_dir_root: must not be empty")
		}
		cfg.EnvDirRoot = value

	case "ui.color":
		mode := config.ColorMode(value)
		if valid, errs := mode.IsValid(); !valid {
			return errs[0]
		}
		cfg.UI.Color = mode

	case "ui.verbose":
		cfg.UI.Verbose = value == "true" || value == "1"

	default:
		return fmt.Errorf("unknown configuration key: %s\nValid keys: default_runtime, container_engine, install_command, parallel, env_dir_root, ui.color, ui.verbose", key)
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("%s Set %s = %s\n", SuccessStyle.Render("✓"), key, value)
	return nil
}

// fileExistsCheck checks if a file exists and is not a directory.
func fileExistsCheck(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
