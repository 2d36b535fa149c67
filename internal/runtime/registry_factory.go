// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gauntlet-run/gauntlet/internal/config"
	"github.com/gauntlet-run/gauntlet/internal/container"
	"github.com/gauntlet-run/gauntlet/pkg/envfile"
)

const (
	// CodeContainerRuntimeInitFailed indicates the container runtime could not be initialized.
	CodeContainerRuntimeInitFailed InitDiagnosticCode = "container_runtime_init_failed"
)

// ErrInvalidInitDiagnosticCode is the sentinel error wrapped by InvalidInitDiagnosticCodeError.
var ErrInvalidInitDiagnosticCode = errors.New("invalid init diagnostic code")

type (
	// BuildRegistryOptions configures runtime registry construction.
	BuildRegistryOptions struct {
		// Config supplies the container engine preference.
		Config *config.Config
	}

	// InitDiagnosticCode categorizes non-fatal runtime initialization diagnostics.
	InitDiagnosticCode string

	// InvalidInitDiagnosticCodeError is returned when an InitDiagnosticCode value
	// is not one of the defined diagnostic codes.
	InvalidInitDiagnosticCodeError struct {
		Value InitDiagnosticCode
	}

	// InitDiagnostic reports non-fatal runtime initialization details.
	InitDiagnostic struct {
		Code    InitDiagnosticCode
		Message string
		Cause   error
	}

	// RegistryBuildResult contains the built registry, cleanup hook,
	// diagnostics, and any container-runtime initialization error. Registry
	// and Cleanup are always non-nil after BuildRegistry returns; callers
	// should defer Cleanup(). A missing container engine is not fatal here —
	// it only matters once a container environment is actually selected,
	// which is when ContainerInitErr gets surfaced.
	RegistryBuildResult struct {
		Registry         *Registry
		Cleanup          func()
		Diagnostics      []InitDiagnostic
		ContainerInitErr error
	}
)

// Error implements the error interface.
func (e *InvalidInitDiagnosticCodeError) Error() string {
	return fmt.Sprintf("invalid init diagnostic code %q (valid: %s)",
		e.Value, CodeContainerRuntimeInitFailed)
}

// Unwrap returns ErrInvalidInitDiagnosticCode so callers can use errors.Is for programmatic detection.
func (e *InvalidInitDiagnosticCodeError) Unwrap() error { return ErrInvalidInitDiagnosticCode }

// String returns the string representation of the InitDiagnosticCode.
func (c InitDiagnosticCode) String() string { return string(c) }

// Validate returns nil if the InitDiagnosticCode is one of the defined
// diagnostic codes, or a validation error if it is not.
func (c InitDiagnosticCode) Validate() error {
	switch c {
	case CodeContainerRuntimeInitFailed:
		return nil
	default:
		return &InvalidInitDiagnosticCodeError{Value: c}
	}
}

// BuildRegistry creates and populates the runtime registry. Native and
// virtual runtimes are always registered. Container runtime registration is
// best-effort and reported via Diagnostics/ContainerInitErr.
func BuildRegistry(opts BuildRegistryOptions) RegistryBuildResult {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	result := RegistryBuildResult{
		Registry: NewRegistry(),
		Cleanup:  func() {},
	}

	result.Registry.Register(envfile.RuntimeNative, NewNativeRuntime())
	result.Registry.Register(envfile.RuntimeVirtual, NewVirtualRuntime())

	engine, err := newEngineForConfig(cfg.ContainerEngine)
	if err != nil {
		result.ContainerInitErr = err
		result.Diagnostics = append(result.Diagnostics, InitDiagnostic{
			Code:    CodeContainerRuntimeInitFailed,
			Message: fmt.Sprintf("container runtime unavailable: %v", err),
			Cause:   err,
		})
		return result
	}

	result.Registry.Register(envfile.RuntimeContainer, NewContainerRuntime(engine))
	result.Cleanup = func() {
		if closer, ok := engine.(container.EngineCloser); ok {
			if closeErr := closer.Close(); closeErr != nil {
				slog.Warn("container engine cleanup failed", "error", closeErr)
			}
		}
	}
	return result
}

func newEngineForConfig(pref config.ContainerEngine) (container.Engine, error) {
	switch pref {
	case config.ContainerEngineDocker:
		return container.NewEngine(container.EngineTypeDocker)
	case config.ContainerEnginePodman:
		return container.NewEngine(container.EngineTypePodman)
	default:
		return container.AutoDetectEngine()
	}
}
