// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mvdan.cc/sh/v3/syntax"

	"github.com/gauntlet-run/gauntlet/internal/config"
	"github.com/gauntlet-run/gauntlet/internal/installer"
	"github.com/gauntlet-run/gauntlet/internal/platform"
	"github.com/gauntlet-run/gauntlet/internal/runtime"
	"github.com/gauntlet-run/gauntlet/pkg/envfile"
)

// cleanupTimeout bounds environment teardown after the env context is spent
// (timed out or interrupted), so containers still get removed.
const cleanupTimeout = time.Minute

// runEnv executes one environment's prepare, install, and command phases,
// writing command output to the given streams.
func (r *Runner) runEnv(ctx context.Context, suite *envfile.Suite, env *envfile.Environment, opts RunOptions, stdin io.Reader, stdout, stderr io.Writer) EnvResult {
	started := time.Now()
	res := EnvResult{Name: env.Name, Outcome: OutcomePassed}

	fail := func(err error) EnvResult {
		res.Outcome = OutcomeFailed
		if env.AllowFailure {
			res.Outcome = OutcomeIgnored
		}
		res.Err = err
		res.Reason = err.Error()
		res.Duration = time.Since(started)
		return res
	}

	timeout, err := env.ParsedTimeout()
	if err != nil {
		return fail(err)
	}
	envCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		envCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	kind := resolveRuntimeKind(env, opts.RuntimeOverride, r.Config)
	rt, err := r.Registry.Get(kind)
	if err != nil {
		return fail(err)
	}
	if !rt.Available() {
		return fail(fmt.Errorf("runtime %q is not available on this host", rt.Name()))
	}

	envDir, err := r.prepareWorkArea(suite, env)
	if err != nil {
		return fail(err)
	}

	isContainer := kind == envfile.RuntimeContainer
	extra, revoke, err := r.infraVars(suite, env, envDir, isContainer)
	if err != nil {
		return fail(err)
	}
	if revoke != nil {
		defer revoke()
	}

	envVars, err := r.Builder.Build(runtime.BuildInput{
		Suite:       suite,
		Env:         env,
		EnvDir:      envDir,
		Extra:       extra,
		CLIEnvFiles: opts.CLIEnvFiles,
		CLIEnvVars:  opts.CLIEnvVars,
		Cwd:         opts.Cwd,
	})
	if err != nil {
		return fail(err)
	}

	workDir, err := resolveWorkDir(suite, env, opts.WorkDirOverride)
	if err != nil {
		return fail(err)
	}

	vars, err := placeholderVars(suite, env, envDir, opts.PosArgs, isContainer)
	if err != nil {
		return fail(err)
	}

	ectx := runtime.NewExecutionContext(suite, env)
	ectx.Context = envCtx
	ectx.EnvDir = envDir
	ectx.WorkDir = workDir
	ectx.EnvVars = envVars
	ectx.PositionalArgs = opts.PosArgs
	ectx.Stdin = stdin
	ectx.Stdout = stdout
	ectx.Stderr = stderr
	ectx.Verbose = opts.Verbose

	if lc, ok := rt.(runtime.EnvLifecycle); ok {
		if err := lc.PrepareEnv(ectx); err != nil {
			return fail(fmt.Errorf("prepare environment %q: %w", env.Name, err))
		}
		defer func() {
			// The env context may be past its deadline; teardown gets an
			// independent one so timed-out environments still clean up.
			cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
			defer cancel()
			ectx.Context = cleanupCtx
			if err := lc.CleanupEnv(ectx); err != nil {
				r.Logger.Warn("environment cleanup failed", "env", env.Name, "err", err)
			}
		}()
	}

	if !opts.SkipInstall {
		cmdText, ok, err := installer.Render(installer.Input{
			Suite:         suite,
			Env:           env,
			ConfigDefault: r.Config.InstallCommand,
			Vars:          vars,
			ResolveLocal:  localDepResolver(suite, isContainer),
		})
		if err != nil {
			return fail(err)
		}
		if ok {
			cr := r.execOne(kind, ectx, cmdText, PhaseInstall)
			res.Commands = append(res.Commands, cr)
			if !cr.Succeeded() {
				return fail(commandError(envCtx, cr, timeout))
			}
		}
	}

	for i, line := range env.Commands {
		script, err := envfile.Expand(line.Script(), vars)
		if err != nil {
			return fail(fmt.Errorf("command %d of environment %q: %w", i+1, env.Name, err))
		}

		cr := r.execOne(kind, ectx, script, PhaseCommand)
		if !cr.Succeeded() && line.IgnoresFailure() {
			cr.Ignored = true
		}
		res.Commands = append(res.Commands, cr)

		if !cr.Succeeded() && !cr.Ignored {
			return fail(commandError(envCtx, cr, timeout))
		}
		// An ignored failure may still have burned the env deadline.
		if envCtx.Err() != nil {
			return fail(contextError(envCtx, timeout))
		}
	}

	res.Duration = time.Since(started)
	return res
}

// execOne runs a single substituted command through the registry.
func (r *Runner) execOne(kind envfile.RuntimeKind, ectx *runtime.ExecutionContext, script string, phase Phase) CommandResult {
	started := time.Now()
	ectx.Script = script
	result := r.Registry.Execute(kind, ectx)
	return CommandResult{
		Phase:    phase,
		Script:   script,
		ExitCode: result.ExitCode,
		Duration: time.Since(started),
		Err:      result.Error,
	}
}

// commandError summarizes why a command failed the environment.
func commandError(ctx context.Context, cr CommandResult, timeout time.Duration) error {
	if ctx.Err() != nil {
		return contextError(ctx, timeout)
	}
	if cr.Err != nil {
		return cr.Err
	}
	if cr.Phase == PhaseInstall {
		return fmt.Errorf("install command failed with exit code %d", cr.ExitCode)
	}
	return fmt.Errorf("command failed with exit code %d", cr.ExitCode)
}

// contextError maps a spent context to the environment failure reason.
func contextError(ctx context.Context, timeout time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("timed out after %s", timeout)
	}
	return errors.New("interrupted")
}

// resolveRuntimeKind picks the environment's runtime: the CLI override wins,
// then the environment's declaration, then the configured default.
func resolveRuntimeKind(env *envfile.Environment, override envfile.RuntimeKind, cfg *config.Config) envfile.RuntimeKind {
	if override != "" {
		return override
	}
	def := envfile.RuntimeKind(cfg.DefaultRuntime)
	if def == "" {
		def = envfile.RuntimeNative
	}
	return env.RuntimeKindOrDefault(def)
}

// prepareWorkArea creates the environment's work area under the suite
// directory (.gauntlet/<env> by default).
func (r *Runner) prepareWorkArea(suite *envfile.Suite, env *envfile.Environment) (string, error) {
	name := env.Name.String()
	if platform.IsWindowsReservedName(name) {
		return "", fmt.Errorf("environment name %q is a reserved Windows device name and cannot name a work area", name)
	}
	root := r.Config.EnvDirRoot
	if root == "" {
		root = config.DefaultConfig().EnvDirRoot
	}
	dir := filepath.Join(suite.Dir(), root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create work area for environment %q: %w", env.Name, err)
	}
	return dir, nil
}

// infraVars returns the injected infrastructure variables for the
// environment, plus a token-revocation hook for host_access environments.
// Container environments see their directories through the workspace mount,
// so the identity variables are overridden with container paths.
func (r *Runner) infraVars(suite *envfile.Suite, env *envfile.Environment, envDir string, isContainer bool) (map[string]string, func(), error) {
	extra := map[string]string{}
	if !isContainer {
		return extra, nil, nil
	}

	suiteDir := suite.Dir()
	extra[runtime.EnvVarEnvDir] = runtime.ContainerPath(suiteDir, envDir)
	extra[runtime.EnvVarSuiteDir] = runtime.WorkspaceMount

	if env.Runtime == nil || !env.Runtime.HostAccess {
		return extra, nil, nil
	}

	info, err := r.connectionInfo(env.Name)
	if err != nil {
		return nil, nil, err
	}
	extra[runtime.EnvVarCallbackHost] = info.Host
	extra[runtime.EnvVarCallbackPort] = strconv.Itoa(info.Port)
	extra[runtime.EnvVarCallbackToken] = info.Token.String()
	extra[runtime.EnvVarCallbackUser] = info.User

	name := env.Name.String()
	return extra, func() { r.Callback.RevokeTokensForEnv(name) }, nil
}

// resolveWorkDir resolves where commands run: the CLI override, the
// environment's workdir relative to the suite directory, or the suite
// directory itself.
func resolveWorkDir(suite *envfile.Suite, env *envfile.Environment, override string) (string, error) {
	if override != "" {
		abs, err := filepath.Abs(override)
		if err != nil {
			return "", fmt.Errorf("resolve workdir override: %w", err)
		}
		return abs, nil
	}
	if !env.WorkDir.IsSet() {
		return suite.Dir(), nil
	}
	wd := env.WorkDir.String()
	if filepath.IsAbs(wd) {
		return wd, nil
	}
	return filepath.Join(suite.Dir(), filepath.FromSlash(wd)), nil
}

// placeholderVars resolves the substitution values for the environment's
// command and installer templates. Container environments see their work
// area and suite directory through the workspace mount.
func placeholderVars(suite *envfile.Suite, env *envfile.Environment, envDir string, posArgs []string, isContainer bool) (map[string]string, error) {
	quoted, err := quotePosArgs(posArgs)
	if err != nil {
		return nil, err
	}
	suiteDir, workArea := suite.Dir(), envDir
	if isContainer {
		workArea = runtime.ContainerPath(suiteDir, envDir)
		suiteDir = runtime.WorkspaceMount
	}
	return map[string]string{
		envfile.PlaceholderPosArgs:  quoted,
		envfile.PlaceholderEnvName:  env.Name.String(),
		envfile.PlaceholderEnvDir:   workArea,
		envfile.PlaceholderSuiteDir: suiteDir,
	}, nil
}

// quotePosArgs renders {posargs}: each argument shell-quoted, joined by
// spaces. No arguments produce the empty string.
func quotePosArgs(args []string) (string, error) {
	quoted := make([]string, len(args))
	for i, a := range args {
		q, err := syntax.Quote(a, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("cannot quote positional argument %q for the shell: %w", a, err)
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " "), nil
}

// localDepResolver maps local dependency paths for the installer. Container
// environments must see them under the workspace mount.
func localDepResolver(suite *envfile.Suite, isContainer bool) func(string) string {
	if !isContainer {
		return nil
	}
	suiteDir := suite.Dir()
	return func(p string) string {
		host := p
		if !filepath.IsAbs(host) {
			host = filepath.Join(suiteDir, filepath.FromSlash(p))
		}
		return runtime.ContainerPath(suiteDir, host)
	}
}
