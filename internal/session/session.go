// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gauntlet-run/gauntlet/internal/config"
	"github.com/gauntlet-run/gauntlet/internal/hostcall"
	"github.com/gauntlet-run/gauntlet/internal/runtime"
	"github.com/gauntlet-run/gauntlet/pkg/envfile"
)

type (
	// CallbackServer is the host-callback surface the session needs: lazily
	// started when the first host_access environment prepares, handing out
	// environment-scoped tokens, stopped when the run ends. *hostcall.Server
	// implements it.
	CallbackServer interface {
		Start(ctx context.Context) error
		Stop() error
		GetConnectionInfo(envName string) (*hostcall.ConnectionInfo, error)
		RevokeTokensForEnv(envName string)
	}

	// RunOptions carries the per-invocation knobs of `gauntlet run`.
	RunOptions struct {
		// EnvNames selects environments in execution order. Empty means the
		// suite's defaults, then every environment in file order.
		EnvNames []envfile.EnvName
		// Tags keeps only environments carrying at least one of the tags;
		// the rest are reported skipped.
		Tags []string
		// PosArgs are the CLI arguments after "--", exposed as {posargs}.
		PosArgs []string
		// Parallel caps concurrently running environments. Values below two
		// (and the zero value) mean serial; zero defers to the config.
		Parallel int
		// FailFast cancels everything in flight after the first failure.
		FailFast bool
		// SkipInstall suppresses the install phase for every environment.
		SkipInstall bool
		// RuntimeOverride forces every environment onto one runtime kind.
		// Empty keeps the per-environment declarations.
		RuntimeOverride envfile.RuntimeKind
		// WorkDirOverride runs every command here instead of the declared
		// workdir.
		WorkDirOverride string
		// CLIEnvFiles are --env-file paths, resolved against Cwd.
		CLIEnvFiles []string
		// CLIEnvVars are --env-var pairs; they override everything else.
		CLIEnvVars map[string]string
		// Cwd anchors CLIEnvFiles; empty means the process working
		// directory.
		Cwd string
		// Verbose bubbles into runtimes for extra diagnostics.
		Verbose bool
	}

	// Runner executes suites. A Runner is single-use: create one per run.
	Runner struct {
		// Registry supplies the runtimes environments execute on.
		Registry *runtime.Registry
		// Builder resolves each environment's process variables.
		Builder runtime.EnvBuilder
		// Config supplies defaults: runtime kind, installer template,
		// parallelism, work area root.
		Config *config.Config
		// Callback serves host commands to container environments with
		// host_access. Nil disables the feature.
		Callback CallbackServer

		// Stdin, Stdout, and Stderr are the run's streams. Serial
		// environments write to them directly; parallel environments are
		// captured and replayed onto Stdout.
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer

		// Logger reports conditions that cannot fail the run, like cleanup
		// errors. Defaults to a discarding logger.
		Logger *log.Logger

		// runCtx is the run-scoped context the callback server starts
		// under, so it outlives per-environment timeouts.
		runCtx       context.Context
		callbackOnce sync.Once
		callbackErr  error
		callbackUp   bool
	}
)

// NewRunner creates a Runner with the process streams and a quiet logger.
// Callers adjust the exported fields before Run.
func NewRunner(registry *runtime.Registry, builder runtime.EnvBuilder, cfg *config.Config) *Runner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Runner{
		Registry: registry,
		Builder:  builder,
		Config:   cfg,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Logger:   log.New(io.Discard),
	}
}

// Run executes the selected environments and returns their results. The
// returned error reports planning problems (unknown environment names,
// dependency cycles); execution failures land in the result instead.
func (r *Runner) Run(ctx context.Context, suite *envfile.Suite, opts RunOptions) (*RunResult, error) {
	started := time.Now()

	planned, err := plan(suite, opts.EnvNames, opts.Tags, envfile.CurrentPlatform())
	if err != nil {
		return nil, err
	}

	r.runCtx = ctx
	defer r.stopCallback()

	workers := opts.Parallel
	if workers <= 0 {
		workers = r.Config.Parallel
	}

	var results []EnvResult
	if workers > 1 {
		results, err = r.runParallel(ctx, suite, planned, opts, workers)
		if err != nil {
			return nil, err
		}
	} else {
		results = r.runSerial(ctx, suite, planned, opts)
	}

	return &RunResult{
		Suite:       suite,
		StartedAt:   started,
		Duration:    time.Since(started),
		Envs:        results,
		Interrupted: ctx.Err() != nil,
	}, nil
}

// connectionInfo starts the callback server on first use and mints a token
// scoped to the environment. The server runs under the run context so
// per-environment deadlines cannot tear it down mid-run.
func (r *Runner) connectionInfo(envName envfile.EnvName) (*hostcall.ConnectionInfo, error) {
	if r.Callback == nil {
		return nil, fmt.Errorf("environment %q requires host_access but no callback server is configured", envName)
	}
	r.callbackOnce.Do(func() {
		if err := r.Callback.Start(r.runCtx); err != nil {
			r.callbackErr = fmt.Errorf("start host callback server: %w", err)
			return
		}
		r.callbackUp = true
	})
	if r.callbackErr != nil {
		return nil, r.callbackErr
	}
	return r.Callback.GetConnectionInfo(envName.String())
}

// stopCallback shuts the callback server down if the run started it.
func (r *Runner) stopCallback() {
	if !r.callbackUp {
		return
	}
	if err := r.Callback.Stop(); err != nil {
		r.Logger.Warn("host callback server shutdown failed", "err", err)
	}
}
