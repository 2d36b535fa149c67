// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
)

const (
	// EngineTypePodman selects the Podman CLI.
	EngineTypePodman EngineType = "podman"
	// EngineTypeDocker selects the Docker CLI.
	EngineTypeDocker EngineType = "docker"
)

// ErrNoEngineAvailable is the sentinel error wrapped by EngineNotAvailableError.
var ErrNoEngineAvailable = errors.New("no container engine available")

type (
	// EngineType identifies the container engine type.
	EngineType string

	// Engine defines the interface for container operations.
	Engine interface {
		// Name returns the engine name (docker or podman).
		Name() string
		// Available checks if the engine is available on the system.
		Available() bool
		// Version returns the engine version.
		Version(ctx context.Context) (string, error)

		// Build builds an image from a Containerfile.
		Build(ctx context.Context, opts BuildOptions) error
		// Run runs a command in a container and waits for it to exit.
		Run(ctx context.Context, opts RunOptions) (*RunResult, error)
		// RunDetached starts a container in the background and returns its ID.
		RunDetached(ctx context.Context, opts RunOptions) (ContainerID, error)
		// Exec runs a command in a running container.
		Exec(ctx context.Context, containerID ContainerID, command []string, opts RunOptions) (*RunResult, error)
		// Remove removes a container.
		Remove(ctx context.Context, containerID ContainerID, force bool) error
		// ImageExists checks if an image exists.
		ImageExists(ctx context.Context, image ImageTag) (bool, error)
		// RemoveImage removes an image.
		RemoveImage(ctx context.Context, image ImageTag, force bool) error
	}

	// EngineNotAvailableError is returned when a container engine (or any
	// fallback) is not installed or not responding.
	EngineNotAvailableError struct {
		Engine string
		Reason string
	}
)

// String returns the string representation of the EngineType.
func (t EngineType) String() string { return string(t) }

// Error implements the error interface.
func (e *EngineNotAvailableError) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// Unwrap returns ErrNoEngineAvailable for errors.Is() compatibility.
func (e *EngineNotAvailableError) Unwrap() error { return ErrNoEngineAvailable }

// NewEngine creates a container engine of the preferred type, falling back to
// the other engine when the preferred one is not available.
func NewEngine(preferredType EngineType) (Engine, error) {
	switch preferredType {
	case EngineTypePodman:
		engine := NewPodmanEngine()
		if engine.Available() {
			return engine, nil
		}
		_ = engine.Close() // discard the sysctl override temp file
		dockerEngine := NewDockerEngine()
		if dockerEngine.Available() {
			return dockerEngine, nil
		}
		return nil, &EngineNotAvailableError{
			Engine: "podman",
			Reason: "podman is not installed or not accessible, and docker fallback is also not available",
		}

	case EngineTypeDocker:
		engine := NewDockerEngine()
		if engine.Available() {
			return engine, nil
		}
		podmanEngine := NewPodmanEngine()
		if podmanEngine.Available() {
			return podmanEngine, nil
		}
		_ = podmanEngine.Close()
		return nil, &EngineNotAvailableError{
			Engine: "docker",
			Reason: "docker is not installed or not accessible, and podman fallback is also not available",
		}

	default:
		return nil, fmt.Errorf("unknown container engine type: %s", preferredType)
	}
}

// AutoDetectEngine tries to find an available container engine.
// Podman is tried first (more commonly available in rootless setups).
func AutoDetectEngine() (Engine, error) {
	podman := NewPodmanEngine()
	if podman.Available() {
		return podman, nil
	}
	_ = podman.Close() // discard the sysctl override temp file

	docker := NewDockerEngine()
	if docker.Available() {
		return docker, nil
	}

	return nil, &EngineNotAvailableError{
		Engine: "any",
		Reason: "no container engine (podman or docker) is available on this system",
	}
}
