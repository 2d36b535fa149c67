// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gauntlet-run/gauntlet/pkg/envfile"
)

type (
	// ExecutionContext carries everything a runtime needs to run one command
	// line of an environment. The session layer expands placeholders before
	// building one of these, so Script is final text.
	ExecutionContext struct {
		// Context cancels the command (SIGINT, env timeout).
		Context context.Context
		// Suite is the parsed suite file the environment belongs to.
		Suite *envfile.Suite
		// Env is the environment being executed.
		Env *envfile.Environment
		// Script is the command text after placeholder expansion.
		Script string
		// EnvDir is the environment's work area on the host
		// (<suite dir>/<env_dir_root>/<env name>).
		EnvDir string
		// WorkDir is the resolved host working directory for the command.
		WorkDir string
		// EnvVars is the fully resolved process environment. Runtimes pass it
		// through verbatim; nothing from the host leaks in beyond it.
		EnvVars map[string]string
		// PositionalArgs are the CLI arguments after "--". Besides the
		// {posargs} placeholder they are exposed as shell positional
		// parameters ($1, $2, ...).
		PositionalArgs []string

		// Stdin is where the command reads standard input.
		Stdin io.Reader
		// Stdout is where the command writes standard output.
		Stdout io.Writer
		// Stderr is where the command writes standard error.
		Stderr io.Writer

		// Verbose enables extra diagnostics from the runtime.
		Verbose bool
	}

	// Runtime runs command lines in one of the supported execution
	// environments.
	Runtime interface {
		// Name returns the runtime name (native, virtual, container).
		Name() string
		// Available reports whether the runtime can execute on this host.
		Available() bool
		// Validate checks that the context can be executed before any work
		// starts (shell present, script parses, image configured).
		Validate(ctx *ExecutionContext) error
		// Execute runs the script and reports its exit status.
		Execute(ctx *ExecutionContext) *Result
	}

	// EnvLifecycle is implemented by runtimes that need per-environment setup
	// before the first command and teardown after the last. The container
	// runtime uses it to start and remove the long-lived environment
	// container that commands are exec'd into.
	EnvLifecycle interface {
		// PrepareEnv readies the runtime for the environment's commands.
		PrepareEnv(ctx *ExecutionContext) error
		// CleanupEnv releases whatever PrepareEnv acquired. It runs even when
		// a command failed, so it must tolerate partial state.
		CleanupEnv(ctx *ExecutionContext) error
	}

	// Registry holds the runtimes available to a run, keyed by the suite
	// file's runtime kind.
	Registry struct {
		runtimes map[envfile.RuntimeKind]Runtime
	}
)

// NewExecutionContext creates an execution context wired to the standard
// streams. Callers fill in Script, EnvDir, WorkDir, and EnvVars.
func NewExecutionContext(suite *envfile.Suite, env *envfile.Environment) *ExecutionContext {
	return &ExecutionContext{
		Context: context.Background(),
		Suite:   suite,
		Env:     env,
		EnvVars: make(map[string]string),
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// NewRegistry creates an empty runtime registry.
func NewRegistry() *Registry {
	return &Registry{
		runtimes: make(map[envfile.RuntimeKind]Runtime),
	}
}

// Register adds a runtime under the given kind, replacing any previous entry.
func (r *Registry) Register(kind envfile.RuntimeKind, rt Runtime) {
	r.runtimes[kind] = rt
}

// Get returns the runtime registered for kind.
func (r *Registry) Get(kind envfile.RuntimeKind) (Runtime, error) {
	rt, ok := r.runtimes[kind]
	if !ok {
		return nil, fmt.Errorf("runtime %q not registered", kind)
	}
	return rt, nil
}

// GetForEnv resolves the runtime for an environment, falling back to def
// when the environment states no preference.
func (r *Registry) GetForEnv(env *envfile.Environment, def envfile.RuntimeKind) (Runtime, error) {
	return r.Get(env.RuntimeKindOrDefault(def))
}

// Kinds returns the registered runtime kinds whose runtime reports itself
// available on this host.
func (r *Registry) Kinds() []envfile.RuntimeKind {
	var kinds []envfile.RuntimeKind
	for kind, rt := range r.runtimes {
		if rt.Available() {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// Execute validates and runs the context on the runtime registered for kind.
func (r *Registry) Execute(kind envfile.RuntimeKind, ctx *ExecutionContext) *Result {
	rt, err := r.Get(kind)
	if err != nil {
		return NewErrorResult(1, err)
	}

	if !rt.Available() {
		return NewErrorResult(1, fmt.Errorf("runtime %q is not available on this system", rt.Name()))
	}

	if err := rt.Validate(ctx); err != nil {
		return NewErrorResult(1, err)
	}

	return rt.Execute(ctx)
}

// EnvToSlice converts an environment map to the "KEY=VALUE" slice form
// expected by os/exec and the shell interpreter.
func EnvToSlice(env map[string]string) []string {
	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, k+"="+v)
	}
	return result
}
