// SPDX-License-Identifier: MPL-2.0

package container

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gauntlet-run/gauntlet/pkg/types"
)

var (
	// ErrInvalidContainerID is the sentinel error wrapped by InvalidContainerIDError.
	ErrInvalidContainerID = errors.New("invalid container id")

	// ErrInvalidImageTag is the sentinel error wrapped by InvalidImageTagError.
	ErrInvalidImageTag = errors.New("invalid image tag")

	// ErrInvalidBuildOptions is the sentinel error wrapped by InvalidBuildOptionsError.
	ErrInvalidBuildOptions = errors.New("invalid build options")

	// ErrInvalidRunOptions is the sentinel error wrapped by InvalidRunOptionsError.
	ErrInvalidRunOptions = errors.New("invalid run options")
)

type (
	// ContainerID identifies a container instance known to the engine.
	// A valid ID must be non-empty and not whitespace-only.
	ContainerID string

	// InvalidContainerIDError is returned when a ContainerID is empty or whitespace-only.
	InvalidContainerIDError struct {
		Value ContainerID
	}

	// ImageTag names a container image in the engine's repo[:tag] syntax.
	// A valid tag must be non-empty and not whitespace-only.
	ImageTag string

	// InvalidImageTagError is returned when an ImageTag is empty or whitespace-only.
	InvalidImageTagError struct {
		Value ImageTag
	}

	// ContainerName is the engine-visible name assigned to a container.
	// The zero value ("") is valid and lets the engine pick a name.
	ContainerName string

	// BuildOptions contains options for building an image.
	BuildOptions struct {
		// ContextDir is the build context directory.
		ContextDir HostFilesystemPath
		// Containerfile is the path to the Containerfile (relative to ContextDir
		// unless absolute).
		Containerfile HostFilesystemPath
		// Tag is the image tag applied to the build result.
		Tag ImageTag
		// BuildArgs are build-time variables.
		BuildArgs map[string]string
		// NoCache disables the build cache.
		NoCache bool
		// Stdout is where to write build output.
		Stdout io.Writer
		// Stderr is where to write build errors.
		Stderr io.Writer
	}

	// RunOptions contains options for running a container.
	RunOptions struct {
		// Image is the image to run.
		Image ImageTag
		// Command is the command to run.
		Command []string
		// WorkDir is the working directory inside the container.
		WorkDir MountTargetPath
		// Env contains environment variables.
		Env map[string]string
		// Volumes are volume mounts in "host:container[:options]" format.
		Volumes []string
		// Ports are port mappings in "host:container[/protocol]" format.
		Ports []string
		// Remove automatically removes the container after exit.
		Remove bool
		// Detach runs the container in the background. Used to start the
		// long-lived per-environment container that commands are exec'd into.
		Detach bool
		// Name is the container name.
		Name ContainerName
		// Stdin is the standard input.
		Stdin io.Reader
		// Stdout is where to write standard output.
		Stdout io.Writer
		// Stderr is where to write standard error.
		Stderr io.Writer
		// Interactive enables interactive mode.
		Interactive bool
		// TTY allocates a pseudo-TTY.
		TTY bool
		// ExtraHosts are additional host-to-IP mappings (e.g., "host.containers.internal:host-gateway").
		ExtraHosts []string
	}

	// RunResult contains the result of running a container.
	RunResult struct {
		// ContainerID is the container ID (set by Exec; empty for one-shot runs).
		ContainerID ContainerID
		// ExitCode is the command's exit code.
		ExitCode types.ExitCode
		// Error contains any infrastructure error (engine missing, etc.).
		Error error
	}

	// InvalidBuildOptionsError is returned when a BuildOptions has one or more
	// invalid fields. It wraps the individual field validation errors.
	InvalidBuildOptionsError struct {
		FieldErrs []error
	}

	// InvalidRunOptionsError is returned when a RunOptions has one or more
	// invalid fields. It wraps the individual field validation errors.
	InvalidRunOptionsError struct {
		FieldErrs []error
	}
)

// String returns the string representation of the ContainerID.
func (c ContainerID) String() string { return string(c) }

// Validate returns an error if the ContainerID is empty or whitespace-only.
func (c ContainerID) Validate() error {
	if strings.TrimSpace(string(c)) == "" {
		return &InvalidContainerIDError{Value: c}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidContainerIDError) Error() string {
	return fmt.Sprintf("invalid container id %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidContainerID for errors.Is() compatibility.
func (e *InvalidContainerIDError) Unwrap() error { return ErrInvalidContainerID }

// String returns the string representation of the ImageTag.
func (t ImageTag) String() string { return string(t) }

// Validate returns an error if the ImageTag is empty or whitespace-only.
func (t ImageTag) Validate() error {
	if strings.TrimSpace(string(t)) == "" {
		return &InvalidImageTagError{Value: t}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidImageTagError) Error() string {
	return fmt.Sprintf("invalid image tag %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidImageTag for errors.Is() compatibility.
func (e *InvalidImageTagError) Unwrap() error { return ErrInvalidImageTag }

// String returns the string representation of the ContainerName.
func (n ContainerName) String() string { return string(n) }

// Validate returns an error if all typed fields of the BuildOptions are invalid.
// ContextDir and Tag are required; Containerfile is optional (the engine
// defaults to <ContextDir>/Containerfile resolution rules).
func (o BuildOptions) Validate() error {
	var errs []error
	if err := o.ContextDir.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := o.Tag.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return &InvalidBuildOptionsError{FieldErrs: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidBuildOptionsError) Error() string {
	return fmt.Sprintf("invalid build options: %d field error(s): %s",
		len(e.FieldErrs), errors.Join(e.FieldErrs...))
}

// Unwrap returns ErrInvalidBuildOptions for errors.Is() compatibility.
func (e *InvalidBuildOptionsError) Unwrap() error { return ErrInvalidBuildOptions }

// Validate returns an error if any typed field of the RunOptions is invalid.
// Volume and port specs are parsed eagerly so malformed suite entries fail
// before the engine is invoked.
func (o RunOptions) Validate() error {
	var errs []error
	if err := o.Image.Validate(); err != nil {
		errs = append(errs, err)
	}
	for _, v := range o.Volumes {
		if _, err := ParseVolumeMount(v); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range o.Ports {
		if _, err := ParsePortMapping(p); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &InvalidRunOptionsError{FieldErrs: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidRunOptionsError) Error() string {
	return fmt.Sprintf("invalid run options: %d field error(s): %s",
		len(e.FieldErrs), errors.Join(e.FieldErrs...))
}

// Unwrap returns ErrInvalidRunOptions for errors.Is() compatibility.
func (e *InvalidRunOptionsError) Unwrap() error { return ErrInvalidRunOptions }
