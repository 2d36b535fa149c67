// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/gauntlet-run/gauntlet/internal/hermetic"
	"github.com/gauntlet-run/gauntlet/pkg/types"
)

// VirtualRuntime executes commands with the in-process POSIX interpreter
// (mvdan.cc/sh). It needs no host shell, so environments behave identically
// across machines. Common utilities (cp, mkdir, grep, tar, ...) are served
// by in-process builtins; anything else still resolves from PATH.
type VirtualRuntime struct{}

// NewVirtualRuntime creates a new virtual runtime.
func NewVirtualRuntime() *VirtualRuntime {
	return &VirtualRuntime{}
}

// Name returns the runtime name.
func (r *VirtualRuntime) Name() string {
	return "virtual"
}

// Available always reports true: the interpreter is compiled in.
func (r *VirtualRuntime) Available() bool {
	return true
}

// Validate parses the script to catch syntax errors before execution.
func (r *VirtualRuntime) Validate(ctx *ExecutionContext) error {
	if strings.TrimSpace(ctx.Script) == "" {
		return fmt.Errorf("no command to execute")
	}
	if _, err := parseScript(ctx.Script); err != nil {
		return err
	}
	return nil
}

// Execute runs the script through the embedded interpreter.
func (r *VirtualRuntime) Execute(ctx *ExecutionContext) *Result {
	prog, err := parseScript(ctx.Script)
	if err != nil {
		return NewErrorResult(1, err)
	}

	opts := []interp.RunnerOption{
		interp.Dir(ctx.WorkDir),
		interp.Env(expand.ListEnviron(EnvToSlice(ctx.EnvVars)...)),
		interp.StdIO(ctx.Stdin, ctx.Stdout, ctx.Stderr),
		interp.ExecHandlers(hermetic.Default.ExecHandler),
	}

	// Expose posargs as $1, $2, ... The leading "--" marks the end of
	// options; without it an argument like "-v" would be taken as a shell
	// option by interp.Params.
	if len(ctx.PositionalArgs) > 0 {
		params := append([]string{"--"}, ctx.PositionalArgs...)
		opts = append(opts, interp.Params(params...))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return NewErrorResult(1, fmt.Errorf("failed to create interpreter: %w", err))
	}

	execCtx := ctx.Context
	if execCtx == nil {
		execCtx = context.Background()
	}

	if err := runner.Run(execCtx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return NewExitCodeResult(types.ExitCode(exitStatus))
		}
		if code, done := contextExitCode(ctx.Context); done {
			return NewExitCodeResult(code)
		}
		return NewErrorResult(1, fmt.Errorf("script execution failed: %w", err))
	}

	return NewSuccessResult()
}

func parseScript(script string) (*syntax.File, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(script), "command")
	if err != nil {
		return nil, fmt.Errorf("script syntax error: %w", err)
	}
	return prog, nil
}
