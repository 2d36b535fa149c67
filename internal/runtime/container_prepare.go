// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gauntlet-run/gauntlet/internal/container"
)

// Transient engine failures (exit 125, OCI races, pull timeouts) are retried
// this many times with exponential backoff before giving up.
const (
	prepareMaxAttempts = 3
	prepareBaseBackoff = 500 * time.Millisecond
)

// containerStartMu serializes container starts within this process; the flock
// in run_lock_linux.go extends the same protection across processes. Both
// exist for rootless Podman's ping_group_range race on concurrent starts.
var containerStartMu sync.Mutex

// PrepareEnv builds or pulls the environment's image and starts its
// long-lived container. It implements EnvLifecycle; the session calls it once
// before the install phase.
func (r *ContainerRuntime) PrepareEnv(ctx *ExecutionContext) error {
	src, err := r.imageSource(ctx)
	if err != nil {
		return err
	}

	image, err := r.ensureImage(ctx, src)
	if err != nil {
		return err
	}

	id, err := r.startEnvContainer(ctx, image)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.containers[ctx.Env.Name.String()] = id
	r.mu.Unlock()
	return nil
}

// CleanupEnv force-removes the environment's container. Safe to call when
// PrepareEnv failed part-way.
func (r *ContainerRuntime) CleanupEnv(ctx *ExecutionContext) error {
	r.mu.Lock()
	id, ok := r.containers[ctx.Env.Name.String()]
	delete(r.containers, ctx.Env.Name.String())
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return r.engine.Remove(ctx.Context, id, true)
}

// RemoveImage drops the image built for a containerfile-based environment.
// Image-based environments keep their image; gauntlet did not create it.
func (r *ContainerRuntime) RemoveImage(ctx *ExecutionContext) error {
	src, err := r.imageSource(ctx)
	if err != nil || src.containerfile == "" {
		return err
	}
	return r.engine.RemoveImage(ctx.Context, r.imageTag(ctx), false)
}

// ensureImage returns the image to run: the declared one as-is, or a local
// build of the environment's containerfile. Builds are skipped when the
// derived tag already exists.
func (r *ContainerRuntime) ensureImage(ctx *ExecutionContext, src containerImageSource) (container.ImageTag, error) {
	if src.image != "" {
		return container.ImageTag(src.image), nil
	}

	if _, err := os.Stat(src.containerfile); err != nil {
		return "", fmt.Errorf("containerfile for environment %q: %w", ctx.Env.Name, err)
	}

	tag := r.imageTag(ctx)
	exists, err := r.engine.ImageExists(ctx.Context, tag)
	if err != nil {
		return "", fmt.Errorf("checking image %s: %w", tag, err)
	}
	if exists {
		return tag, nil
	}

	opts := container.BuildOptions{
		ContextDir:    container.HostFilesystemPath(filepath.Dir(src.containerfile)),
		Containerfile: container.HostFilesystemPath(src.containerfile),
		Tag:           tag,
		Stdout:        ctx.Stderr, // build chatter goes to stderr, like the engines themselves
		Stderr:        ctx.Stderr,
	}

	err = container.RetryTransient(ctx.Context, prepareMaxAttempts, prepareBaseBackoff,
		func() error {
			return r.engine.Build(ctx.Context, opts)
		})
	if err != nil {
		return "", fmt.Errorf("building image for environment %q: %w", ctx.Env.Name, err)
	}
	return tag, nil
}

// startEnvContainer starts the detached container commands are exec'd into.
// It idles on sleep so the environment survives between commands; CleanupEnv
// force-removes it.
func (r *ContainerRuntime) startEnvContainer(ctx *ExecutionContext, image container.ImageTag) (container.ContainerID, error) {
	spec := runtimeSpec(ctx.Env)

	volumes := []string{ctx.Suite.Dir() + ":" + WorkspaceMount}
	volumes = append(volumes, spec.Volumes...)

	opts := container.RunOptions{
		Image:   image,
		Command: []string{"sleep", "infinity"},
		WorkDir: container.MountTargetPath(WorkspaceMount),
		Volumes: volumes,
		Ports:   spec.Ports,
		Detach:  true,
		Name:    container.ContainerName(fmt.Sprintf("gauntlet-%s-%d", ctx.Env.Name, os.Getpid())),
	}
	if spec.HostAccess {
		opts.ExtraHosts = []string{r.hostAddressForContainer() + ":host-gateway"}
	}

	if r.engine.Name() == string(container.EngineTypePodman) {
		containerStartMu.Lock()
		defer containerStartMu.Unlock()
		if lock, lockErr := acquireRunLock(); lockErr == nil {
			defer lock.Release()
		} else if !errors.Is(lockErr, errFlockUnavailable) {
			slog.Debug("podman start lock unavailable", "error", lockErr)
		}
	}

	var id container.ContainerID
	err := container.RetryTransient(ctx.Context, prepareMaxAttempts, prepareBaseBackoff,
		func() error {
			var runErr error
			id, runErr = r.engine.RunDetached(ctx.Context, opts)
			return runErr
		})
	if err != nil {
		return "", fmt.Errorf("starting container for environment %q: %w", ctx.Env.Name, err)
	}
	return id, nil
}
