// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/gauntlet/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/gauntlet/config.cue on macOS, %APPDATA%\gauntlet\config.cue
// on Windows). The package provides type-safe configuration access and covers runtime
// selection, container engine selection, the default install command, parallelism, work
// area placement, UI settings, and the host callback server.
//
// Configuration validation is performed against a CUE schema (config_schema.cue) to ensure
// type safety and provide clear error messages for invalid configurations.
package config
