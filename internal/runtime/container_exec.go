// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"fmt"
	"maps"

	"github.com/gauntlet-run/gauntlet/internal/container"
)

// Execute runs the script inside the environment's prepared container.
// Commands are never retried here: an exec that already ran may have had side
// effects, so only PrepareEnv retries transient engine failures.
func (r *ContainerRuntime) Execute(ctx *ExecutionContext) *Result {
	r.mu.Lock()
	id, ok := r.containers[ctx.Env.Name.String()]
	r.mu.Unlock()
	if !ok {
		return NewErrorResult(1, fmt.Errorf("environment %q has no prepared container", ctx.Env.Name))
	}

	argv := []string{"sh", "-c", ctx.Script}
	if len(ctx.PositionalArgs) > 0 {
		argv = append(argv, "gauntlet") // $0 placeholder
		argv = append(argv, ctx.PositionalArgs...)
	}

	opts := container.RunOptions{
		WorkDir: container.MountTargetPath(ContainerPath(ctx.Suite.Dir(), ctx.WorkDir)),
		Env:     r.containerEnv(ctx),
		Stdin:   ctx.Stdin,
		Stdout:  ctx.Stdout,
		Stderr:  ctx.Stderr,
	}

	result, err := r.engine.Exec(ctx.Context, id, argv, opts)
	if err != nil {
		if code, done := contextExitCode(ctx.Context); done {
			return NewExitCodeResult(code)
		}
		return NewErrorResult(1, fmt.Errorf("exec in environment %q: %w", ctx.Env.Name, err))
	}
	if result.Error != nil {
		return NewErrorResult(result.ExitCode, result.Error)
	}
	return NewExitCodeResult(result.ExitCode)
}

// containerEnv adapts the resolved environment for in-container execution:
// the callback host is rewritten from the host loopback to the address the
// engine exposes the host under.
func (r *ContainerRuntime) containerEnv(ctx *ExecutionContext) map[string]string {
	env := make(map[string]string, len(ctx.EnvVars))
	maps.Copy(env, ctx.EnvVars)

	if host, ok := env[EnvVarCallbackHost]; ok && isLoopbackHost(host) {
		env[EnvVarCallbackHost] = r.hostAddressForContainer()
	}
	return env
}

func isLoopbackHost(host string) bool {
	switch host {
	case "127.0.0.1", "localhost", "::1":
		return true
	}
	return false
}
