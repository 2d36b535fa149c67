// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gauntlet-run/gauntlet/internal/container"
	"github.com/gauntlet-run/gauntlet/pkg/envfile"
)

// WorkspaceMount is where the suite directory is mounted inside environment
// containers. Everything an environment touches under the suite dir is
// visible there, including the .gauntlet work areas.
const WorkspaceMount = "/workspace"

// Callback variables injected for container environments with host_access.
// The session sets them from the callback server's connection info; the
// container runtime rewrites the host value to an address reachable from
// inside the container.
const (
	EnvVarCallbackHost  = "GAUNTLET_CALLBACK_HOST"
	EnvVarCallbackPort  = "GAUNTLET_CALLBACK_PORT"
	EnvVarCallbackToken = "GAUNTLET_CALLBACK_TOKEN"
	EnvVarCallbackUser  = "GAUNTLET_CALLBACK_USER"
)

// ContainerRuntime executes commands inside a long-lived per-environment
// container: PrepareEnv builds or pulls the image and starts the container,
// Execute runs each command in it via exec, CleanupEnv removes it.
type ContainerRuntime struct {
	engine container.Engine

	mu sync.Mutex
	// containers maps environment names to their running container.
	containers map[string]container.ContainerID
}

// NewContainerRuntime creates a container runtime on the given engine.
func NewContainerRuntime(engine container.Engine) *ContainerRuntime {
	return &ContainerRuntime{
		engine:     engine,
		containers: make(map[string]container.ContainerID),
	}
}

// Name returns the runtime name.
func (r *ContainerRuntime) Name() string {
	return "container"
}

// Available reports whether the container engine responds.
func (r *ContainerRuntime) Available() bool {
	return r.engine != nil && r.engine.Available()
}

// EngineName returns the underlying engine's name (docker or podman).
func (r *ContainerRuntime) EngineName() string {
	if r.engine == nil {
		return ""
	}
	return r.engine.Name()
}

// Validate checks that the environment's container configuration is
// executable: an engine is present and an image source can be resolved.
func (r *ContainerRuntime) Validate(ctx *ExecutionContext) error {
	if r.engine == nil {
		return fmt.Errorf("no container engine configured")
	}
	if strings.TrimSpace(ctx.Script) == "" {
		return fmt.Errorf("no command to execute")
	}
	_, err := r.imageSource(ctx)
	return err
}

// ContainerPath maps a host path under the suite directory to its location
// inside the environment container. Paths outside the suite directory fall
// back to the workspace root, since nothing else is mounted.
func ContainerPath(suiteDir, hostPath string) string {
	rel, err := filepath.Rel(suiteDir, hostPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return WorkspaceMount
	}
	if rel == "." {
		return WorkspaceMount
	}
	return path.Join(WorkspaceMount, filepath.ToSlash(rel))
}

// imageSource resolves where the environment's image comes from.
func (r *ContainerRuntime) imageSource(ctx *ExecutionContext) (containerImageSource, error) {
	spec := ctx.Env.Runtime
	src := containerImageSource{}
	if spec != nil {
		src.image = spec.Image
		src.containerfile = spec.Containerfile
	}

	if src.image != "" && src.containerfile != "" {
		return src, fmt.Errorf("environment %q declares both image and containerfile", ctx.Env.Name)
	}
	if src.image != "" {
		return src, nil
	}
	if src.containerfile != "" {
		if !filepath.IsAbs(src.containerfile) {
			src.containerfile = filepath.Join(ctx.Suite.Dir(), filepath.FromSlash(src.containerfile))
		}
		return src, nil
	}

	// Neither declared: pick up a Containerfile/Dockerfile next to the suite.
	found, ok := container.FindDefaultContainerfile(ctx.Suite.Dir())
	if !ok {
		return src, fmt.Errorf("environment %q has no image, no containerfile, and no Containerfile next to %s",
			ctx.Env.Name, ctx.Suite.FilePath)
	}
	src.containerfile = found
	return src, nil
}

// imageTag derives the build tag for a containerfile-based environment. The
// tag is stable for a given suite file and environment, so rebuilt suites
// reuse the image until it is removed.
func (r *ContainerRuntime) imageTag(ctx *ExecutionContext) container.ImageTag {
	abs, err := filepath.Abs(ctx.Suite.FilePath.String())
	if err != nil {
		abs = ctx.Suite.FilePath.String()
	}
	sum := sha256.Sum256([]byte(abs + "\x00" + ctx.Env.Name.String()))
	return container.ImageTag("gauntlet-" + hex.EncodeToString(sum[:])[:12] + ":latest")
}

// hostAddressForContainer returns the name in-container processes use to
// reach the host's loopback services.
func (r *ContainerRuntime) hostAddressForContainer() string {
	if r.engine != nil && r.engine.Name() == string(container.EngineTypePodman) {
		return "host.containers.internal"
	}
	return "host.docker.internal"
}

// containerImageSource is the resolved image origin for one environment:
// exactly one of the fields is set.
type containerImageSource struct {
	image         string
	containerfile string
}

// runtimeSpec returns the environment's container spec, never nil.
func runtimeSpec(env *envfile.Environment) *envfile.RuntimeSpec {
	if env.Runtime != nil {
		return env.Runtime
	}
	return &envfile.RuntimeSpec{Kind: envfile.RuntimeContainer}
}
