// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// podmanBinaryNames lists the Podman binary names in preference order.
// "podman" is preferred; "podman-remote" is the client-only binary found on
// immutable distros (Fedora Silverblue, toolbox) where it talks to the host
// Podman service over a Unix socket.
var podmanBinaryNames = []string{"podman", "podman-remote"}

// runFlagsWithValue lists podman/docker run flags that consume the following
// argument. Needed to find where flags end and the image name begins.
var runFlagsWithValue = map[string]bool{
	"-w":         true,
	"-e":         true,
	"-v":         true,
	"-p":         true,
	"--name":     true,
	"--add-host": true,
}

// PodmanEngine implements the Engine interface using the Podman CLI.
// It embeds BaseCLIEngine for common CLI operations; Podman-specific behavior
// (SELinux volume labels, rootless userns mapping, sysctl override) is wired
// in the constructor.
type PodmanEngine struct {
	*BaseCLIEngine
}

// NewPodmanEngine creates a new Podman engine.
// On hosts where SELinux is present, volume mounts are automatically labeled
// with :z, and rootless runs get --userns=keep-id so bind-mounted files keep
// the invoking user's ownership inside the container.
func NewPodmanEngine(opts ...BaseCLIEngineOption) *PodmanEngine {
	return NewPodmanEngineWithSELinuxCheck(isSELinuxPresent, opts...)
}

// NewPodmanEngineWithSELinuxCheck creates a Podman engine with an injectable
// SELinux check, used by tests to pin the labeling behavior.
func NewPodmanEngineWithSELinuxCheck(check SELinuxCheckFunc, opts ...BaseCLIEngineOption) *PodmanEngine {
	path := findPodmanBinary()

	allOpts := []BaseCLIEngineOption{
		WithName(string(EngineTypePodman)),
		WithVolumeFormatter(makeSELinuxVolumeFormatter(check)),
		WithRunArgsTransformer(makeUsernsKeepIDAdder()),
	}
	// Disable default_sysctls via CONTAINERS_CONF_OVERRIDE where applicable
	// (local podman on Linux) to eliminate the rootless ping_group_range race.
	allOpts = append(allOpts, sysctlOverrideOpts(path)...)
	allOpts = append(allOpts, opts...)

	return &PodmanEngine{
		BaseCLIEngine: NewBaseCLIEngine(HostFilesystemPath(path), allOpts...),
	}
}

// findPodmanBinary returns the path of the first available Podman binary,
// trying names in preference order. Returns "" when none is found.
func findPodmanBinary() string {
	for _, name := range podmanBinaryNames {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// Name returns the engine name.
func (e *PodmanEngine) Name() string {
	return string(EngineTypePodman)
}

// Available checks if Podman is available.
// The binary must answer a version query, not just exist on PATH.
func (e *PodmanEngine) Available() bool {
	if e.BinaryPath() == "" {
		return false
	}
	cmd := e.CreateCommand(context.Background(), "version", "--format", "{{.Version}}")
	return cmd.Run() == nil
}

// Version returns the Podman version.
func (e *PodmanEngine) Version(ctx context.Context) (string, error) {
	out, err := e.RunCommandWithOutput(ctx, "version", "--format", "{{.Version}}")
	if err != nil {
		return "", fmt.Errorf("failed to get podman version: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ImageExists checks if an image exists locally.
// Podman has a dedicated subcommand for this, unlike Docker.
func (e *PodmanEngine) ImageExists(ctx context.Context, image ImageTag) (bool, error) {
	err := e.RunCommandStatus(ctx, "image", "exists", string(image))
	return err == nil, nil
}

// isSELinuxPresent checks whether SELinux is present on the system.
// Presence (not enforce status) is the right signal: :z labels are needed
// even when SELinux is permissive, and they are harmless no-ops otherwise.
func isSELinuxPresent() bool {
	info, err := os.Stat("/sys/fs/selinux")
	return err == nil && info.IsDir()
}

// makeSELinuxVolumeFormatter returns a VolumeFormatFunc that appends the :z
// label to a volume mount when SELinux is present and the volume doesn't
// already carry an SELinux label (:z or :Z).
func makeSELinuxVolumeFormatter(check SELinuxCheckFunc) VolumeFormatFunc {
	return func(volume string) string {
		if !check() {
			return volume
		}

		// Volume format: host_path:container_path[:options]
		// Options can include: ro, rw, z, Z, and others.
		parts := strings.Split(volume, ":")

		// Need at least host:container
		if len(parts) < 2 {
			return volume
		}

		if len(parts) >= 3 {
			options := parts[len(parts)-1]
			for opt := range strings.SplitSeq(options, ",") {
				if opt == "z" || opt == "Z" {
					// Already has SELinux label
					return volume
				}
			}
			// Append z to existing options
			return volume + ",z"
		}

		// No options specified, add :z
		return volume + ":z"
	}
}

// makeUsernsKeepIDAdder returns a RunArgsTransformer that injects
// --userns=keep-id into run commands, right before the image name. Rootless
// Podman maps the container user to the invoking user with keep-id, so files
// written to bind mounts keep the caller's ownership; rootful Podman treats
// it as an identity mapping.
func makeUsernsKeepIDAdder() RunArgsTransformer {
	return func(args []string) []string {
		if len(args) == 0 || args[0] != "run" {
			return args
		}

		// Find the first positional argument (the image name) by skipping
		// flags and the values of flags that take one.
		i := 1
		for i < len(args) {
			arg := args[i]
			if !strings.HasPrefix(arg, "-") {
				break
			}
			if runFlagsWithValue[arg] {
				i += 2
				continue
			}
			i++
		}

		out := make([]string, 0, len(args)+1)
		out = append(out, args[:i]...)
		out = append(out, "--userns=keep-id")
		out = append(out, args[i:]...)
		return out
	}
}
