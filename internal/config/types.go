// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	// ContainerEngineAuto probes for podman first, then docker.
	ContainerEngineAuto ContainerEngine = "auto"
	// ContainerEngineDocker uses Docker as the container runtime.
	ContainerEngineDocker ContainerEngine = "docker"
	// ContainerEnginePodman uses Podman as the container runtime.
	ContainerEnginePodman ContainerEngine = "podman"

	// RuntimeNative runs environment commands in the host system shell.
	// Defined locally to avoid coupling config to pkg/envfile.
	RuntimeNative RuntimeMode = "native"
	// RuntimeVirtual runs environment commands in the embedded mvdan/sh interpreter.
	RuntimeVirtual RuntimeMode = "virtual"
	// RuntimeContainer runs environment commands inside a container (Docker/Podman).
	RuntimeContainer RuntimeMode = "container"

	// ColorAuto enables color when stdout is a terminal.
	ColorAuto ColorMode = "auto"
	// ColorAlways forces colored output.
	ColorAlways ColorMode = "always"
	// ColorNever disables colored output.
	ColorNever ColorMode = "never"
)

var (
	// ErrInvalidContainerEngine is returned when a ContainerEngine value is not recognized.
	ErrInvalidContainerEngine = errors.New("invalid container engine")
	// ErrInvalidConfigRuntimeMode is returned when a config RuntimeMode value is not recognized.
	ErrInvalidConfigRuntimeMode = errors.New("invalid runtime mode")
	// ErrInvalidColorMode is returned when a ColorMode value is not recognized.
	ErrInvalidColorMode = errors.New("invalid color mode")
	// ErrInvalidCallbackConfig is the sentinel error wrapped by InvalidCallbackConfigError.
	ErrInvalidCallbackConfig = errors.New("invalid callback config")
	// ErrInvalidUIConfig is the sentinel error wrapped by InvalidUIConfigError.
	ErrInvalidUIConfig = errors.New("invalid UI config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ContainerEngine specifies which container runtime to use.
	ContainerEngine string

	// InvalidContainerEngineError is returned when a ContainerEngine value is not recognized.
	// It wraps ErrInvalidContainerEngine for errors.Is() compatibility.
	InvalidContainerEngineError struct {
		Value ContainerEngine
	}

	// RuntimeMode specifies the execution runtime for environment commands.
	// Defined locally to avoid coupling config to pkg/envfile;
	// the session layer casts to envfile.RuntimeKind at the boundary.
	RuntimeMode string

	// InvalidConfigRuntimeModeError is returned when a config RuntimeMode value is not recognized.
	// It wraps ErrInvalidConfigRuntimeMode for errors.Is() compatibility.
	InvalidConfigRuntimeModeError struct {
		Value RuntimeMode
	}

	// ColorMode specifies the terminal color preference.
	ColorMode string

	// InvalidColorModeError is returned when a ColorMode value is not recognized.
	// It wraps ErrInvalidColorMode for errors.Is() compatibility.
	InvalidColorModeError struct {
		Value ColorMode
	}

	// InvalidCallbackConfigError is returned when a CallbackConfig has invalid fields.
	// It wraps ErrInvalidCallbackConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidCallbackConfigError struct {
		FieldErrors []error
	}

	// InvalidUIConfigError is returned when a UIConfig has invalid fields.
	// It wraps ErrInvalidUIConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidUIConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// DefaultRuntime sets the runtime used when an environment declares none.
		DefaultRuntime RuntimeMode `json:"default_runtime" mapstructure:"default_runtime"`
		// ContainerEngine selects "docker", "podman", or "auto" (probe).
		ContainerEngine ContainerEngine `json:"container_engine" mapstructure:"container_engine"`
		// InstallCommand is the fallback install template; suite- and
		// env-level install_command fields override it.
		InstallCommand string `json:"install_command" mapstructure:"install_command"`
		// Parallel is the worker count for parallel runs (0 = serial).
		Parallel int `json:"parallel" mapstructure:"parallel"`
		// EnvDirRoot is the per-suite work area directory name.
		EnvDirRoot string `json:"env_dir_root" mapstructure:"env_dir_root"`
		// UI configures the user interface.
		UI UIConfig `json:"ui" mapstructure:"ui"`
		// Callback configures the host callback server for container runs.
		Callback CallbackConfig `json:"callback" mapstructure:"callback"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Color sets the terminal color preference.
		Color ColorMode `json:"color" mapstructure:"color"`
		// Verbose enables verbose output
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}

	// CallbackConfig configures the host callback server that container
	// commands use to reach back into the host.
	CallbackConfig struct {
		// Host is the address the callback server binds to.
		Host string `json:"host" mapstructure:"host"`
		// Port is the listening port (0 = auto-select).
		Port int `json:"port" mapstructure:"port"`
		// TokenTTL is how long callback tokens stay valid (Go duration syntax).
		TokenTTL string `json:"token_ttl" mapstructure:"token_ttl"`
		// ShutdownTimeout bounds graceful shutdown (Go duration syntax).
		ShutdownTimeout string `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	}
)

// Error implements the error interface for InvalidContainerEngineError.
func (e *InvalidContainerEngineError) Error() string {
	return fmt.Sprintf("invalid container engine %q (valid: auto, docker, podman)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidContainerEngineError) Unwrap() error {
	return ErrInvalidContainerEngine
}

// String returns the string representation of the ContainerEngine.
func (ce ContainerEngine) String() string { return string(ce) }

// IsValid returns whether the ContainerEngine is one of the defined engine types,
// and a list of validation errors if it is not.
func (ce ContainerEngine) IsValid() (bool, []error) {
	switch ce {
	case ContainerEngineAuto, ContainerEngineDocker, ContainerEnginePodman:
		return true, nil
	default:
		return false, []error{&InvalidContainerEngineError{Value: ce}}
	}
}

// Error implements the error interface for InvalidConfigRuntimeModeError.
func (e *InvalidConfigRuntimeModeError) Error() string {
	return fmt.Sprintf("invalid runtime mode %q (valid: native, virtual, container)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidConfigRuntimeModeError) Unwrap() error {
	return ErrInvalidConfigRuntimeMode
}

// String returns the string representation of the config RuntimeMode.
func (m RuntimeMode) String() string { return string(m) }

// IsValid returns whether the config RuntimeMode is one of the defined runtime modes,
// and a list of validation errors if it is not.
func (m RuntimeMode) IsValid() (bool, []error) {
	switch m {
	case RuntimeNative, RuntimeVirtual, RuntimeContainer:
		return true, nil
	default:
		return false, []error{&InvalidConfigRuntimeModeError{Value: m}}
	}
}

// Error implements the error interface for InvalidColorModeError.
func (e *InvalidColorModeError) Error() string {
	return fmt.Sprintf("invalid color mode %q (valid: auto, always, never)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidColorModeError) Unwrap() error {
	return ErrInvalidColorMode
}

// String returns the string representation of the ColorMode.
func (cm ColorMode) String() string { return string(cm) }

// IsValid returns whether the ColorMode is one of the defined color modes,
// and a list of validation errors if it is not.
func (cm ColorMode) IsValid() (bool, []error) {
	switch cm {
	case ColorAuto, ColorAlways, ColorNever:
		return true, nil
	default:
		return false, []error{&InvalidColorModeError{Value: cm}}
	}
}

// IsValid returns whether the UIConfig has valid fields.
// It delegates to Color.IsValid(); bool fields need no validation.
func (c UIConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Color.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidUIConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidUIConfigError.
func (e *InvalidUIConfigError) Error() string {
	return fmt.Sprintf("invalid UI config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidUIConfig for errors.Is() compatibility.
func (e *InvalidUIConfigError) Unwrap() error { return ErrInvalidUIConfig }

// IsValid returns whether the CallbackConfig has valid fields.
// Host must be non-empty, Port must fall inside the TCP range, and the two
// duration fields must parse with time.ParseDuration.
func (c CallbackConfig) IsValid() (bool, []error) {
	var errs []error
	if c.Host == "" {
		errs = append(errs, fmt.Errorf("callback host must not be empty"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("callback port %d out of range 0-65535", c.Port))
	}
	if _, err := c.ParsedTokenTTL(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.ParsedShutdownTimeout(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidCallbackConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// ParsedTokenTTL parses the TokenTTL duration string.
func (c CallbackConfig) ParsedTokenTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.TokenTTL)
	if err != nil {
		return 0, fmt.Errorf("callback token_ttl %q: %w", c.TokenTTL, err)
	}
	return d, nil
}

// ParsedShutdownTimeout parses the ShutdownTimeout duration string.
func (c CallbackConfig) ParsedShutdownTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("callback shutdown_timeout %q: %w", c.ShutdownTimeout, err)
	}
	return d, nil
}

// Error implements the error interface for InvalidCallbackConfigError.
func (e *InvalidCallbackConfigError) Error() string {
	return fmt.Sprintf("invalid callback config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidCallbackConfig for errors.Is() compatibility.
func (e *InvalidCallbackConfigError) Unwrap() error { return ErrInvalidCallbackConfig }

// IsValid returns whether the Config has valid fields.
// It delegates to DefaultRuntime.IsValid(), ContainerEngine.IsValid(),
// UI.IsValid(), and Callback.IsValid(), and checks the scalar fields
// that the CUE schema cannot fully express.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.DefaultRuntime.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.ContainerEngine.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.InstallCommand == "" {
		errs = append(errs, fmt.Errorf("install_command must not be empty"))
	}
	if c.Parallel < 0 {
		errs = append(errs, fmt.Errorf("parallel must not be negative (got %d)", c.Parallel))
	}
	if c.EnvDirRoot == "" {
		errs = append(errs, fmt.Errorf("env_dir_root must not be empty"))
	}
	if valid, fieldErrs := c.UI.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Callback.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DefaultRuntime:  RuntimeNative,
		ContainerEngine: ContainerEngineAuto,
		InstallCommand:  "pip install {packages}",
		Parallel:        0,
		EnvDirRoot:      ".gauntlet",
		UI: UIConfig{
			Color:   ColorAuto,
			Verbose: false,
		},
		Callback: CallbackConfig{
			Host:            "127.0.0.1",
			Port:            0,
			TokenTTL:        "1h",
			ShutdownTimeout: "10s",
		},
	}
}
