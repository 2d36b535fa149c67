// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/gauntlet-run/gauntlet/internal/config"
	"github.com/gauntlet-run/gauntlet/internal/dag"
	"github.com/gauntlet-run/gauntlet/internal/discovery"
	"github.com/gauntlet-run/gauntlet/internal/hostcall"
	"github.com/gauntlet-run/gauntlet/internal/issue"
	"github.com/gauntlet-run/gauntlet/internal/report"
	"github.com/gauntlet-run/gauntlet/internal/runtime"
	"github.com/gauntlet-run/gauntlet/internal/session"
	"github.com/gauntlet-run/gauntlet/internal/watch"
	"github.com/gauntlet-run/gauntlet/pkg/envfile"
	"github.com/gauntlet-run/gauntlet/pkg/types"
)

var (
	runParallel    int
	runTags        []string
	runFailFast    bool
	runSkipInstall bool
	runReportJSON  string
	runEnvVars     []string
	runEnvFiles    []string
	runWorkdir     string
	runRuntime     string
	runWatch       bool

	// runCmd executes environments from the suite file
	runCmd = &cobra.Command{
		Use:   "run [env...] [flags] [-- posargs]",
		Short: "Run test environments from the suite file",
		Long: `Run test environments from the suite file.

With no names, the suite's 'defaults' run; without 'defaults', every
environment runs in file order. Named environments run in the given
order. Everything after '--' is passed to commands as {posargs}.

Each environment gets a private work area under the run root
(default '.gauntlet/<env>/'), installs its declared deps, and runs
its commands through the declared runtime.`,
		Example: `  gauntlet run
  gauntlet run py311 lint
  gauntlet run --tag unit --parallel 4
  gauntlet run py311 -- -k "not slow"`,
		RunE:              runRun,
		ValidArgsFunction: completeEnvNames,
	}
)

func init() {
	runCmd.Flags().IntVarP(&runParallel, "parallel", "p", 0, "run up to N environments concurrently (0 = config default, 1 = serial)")
	runCmd.Flags().StringSliceVarP(&runTags, "tag", "t", nil, "only run environments carrying one of the tags")
	runCmd.Flags().BoolVar(&runFailFast, "fail-fast", false, "cancel everything in flight after the first failure")
	runCmd.Flags().BoolVar(&runSkipInstall, "skip-install", false, "skip the dependency install phase")
	runCmd.Flags().StringVar(&runReportJSON, "report-json", "", "write a machine-readable run report to this path")
	runCmd.Flags().StringArrayVarP(&runEnvVars, "env-var", "e", nil, "set KEY=VALUE in every environment (repeatable, highest precedence)")
	runCmd.Flags().StringArrayVar(&runEnvFiles, "env-file", nil, "load variables from a dotenv file (repeatable)")
	runCmd.Flags().StringVarP(&runWorkdir, "workdir", "w", "", "run commands in this directory instead of the declared workdir")
	runCmd.Flags().StringVarP(&runRuntime, "runtime", "r", "", "override the runtime for every environment (native, virtual, container)")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "rerun the selected environments whenever files under the suite directory change")
}

func runRun(cmd *cobra.Command, args []string) error {
	envArgs, posArgs := splitArgsAtDash(args, cmd.ArgsLenAtDash())

	cliVars, err := parseEnvVarFlags(runEnvVars)
	if err != nil {
		return &ExitError{Code: types.ExitUsageError, Err: err}
	}

	kind, err := envfile.ParseRuntimeKind(runRuntime)
	if err != nil {
		return &ExitError{Code: types.ExitUsageError, Err: err}
	}

	if runWatch {
		return runWithWatch(cmd, envArgs, posArgs, cliVars, kind)
	}
	return executeRun(cmd, envArgs, posArgs, cliVars, kind)
}

// executeRun performs one full run of the selected environments: load the
// suite, build the runtime registry, execute, summarize, report.
func executeRun(cmd *cobra.Command, envArgs, posArgs []string, cliVars map[string]string, kind envfile.RuntimeKind) error {
	file, err := app.loadSuite(suiteFile)
	if err != nil {
		return suiteLoadError(err)
	}

	cfg := currentConfig()

	build := runtime.BuildRegistry(runtime.BuildRegistryOptions{Config: cfg})
	defer build.Cleanup()
	for _, diag := range build.Diagnostics {
		// Not fatal here: it only matters once a container environment is
		// actually selected, and the registry reports that case itself.
		slog.Debug("runtime registry diagnostic", "code", diag.Code.String(), "message", diag.Message)
	}

	runner := session.NewRunner(build.Registry, runtime.NewDefaultEnvBuilder(), cfg)
	runner.Callback = callbackServer(cfg.Callback)
	if verbose {
		runner.Logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "run"})
	}

	names := make([]envfile.EnvName, len(envArgs))
	for i, arg := range envArgs {
		names[i] = envfile.EnvName(arg)
	}

	cwd, _ := os.Getwd()
	res, err := runner.Run(cmd.Context(), file.Suite, session.RunOptions{
		EnvNames:        names,
		Tags:            runTags,
		PosArgs:         posArgs,
		Parallel:        runParallel,
		FailFast:        runFailFast,
		SkipInstall:     runSkipInstall,
		RuntimeOverride: kind,
		WorkDirOverride: runWorkdir,
		CLIEnvFiles:     runEnvFiles,
		CLIEnvVars:      cliVars,
		Cwd:             cwd,
		Verbose:         verbose,
	})
	if err != nil {
		return planError(err)
	}

	fmt.Fprint(cmd.OutOrStdout(), report.Summary(res))

	if runReportJSON != "" {
		if writeErr := writeJSONReport(runReportJSON, res); writeErr != nil {
			return &ExitError{Code: types.ExitInternalError, Err: writeErr}
		}
	}

	if code := res.ExitCode(); code != types.ExitOK {
		return &ExitError{Code: code}
	}
	return nil
}

// runWithWatch runs the selection once, then reruns it after every debounced
// batch of file changes under the suite directory. Environment failures show
// up in each run's summary and keep the watch alive; only watcher problems
// fail the command.
func runWithWatch(cmd *cobra.Command, envArgs, posArgs []string, cliVars map[string]string, kind envfile.RuntimeKind) error {
	file, err := app.loadSuite(suiteFile)
	if err != nil {
		return suiteLoadError(err)
	}
	root := filepath.Dir(file.Suite.FilePath.String())

	w, err := watch.New(watch.Options{
		Root:   root,
		Stderr: cmd.ErrOrStderr(),
		OnChange: func(context.Context, []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "\nchange detected, rerunning")
			return nonFatalInWatch(executeRun(cmd, envArgs, posArgs, cliVars, kind))
		},
	})
	if err != nil {
		return &ExitError{Code: types.ExitUsageError, Err: err}
	}

	if err := nonFatalInWatch(executeRun(cmd, envArgs, posArgs, cliVars, kind)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "watching %s for changes (ctrl-c to stop)\n", root)
	if err := w.Run(cmd.Context()); err != nil {
		return &ExitError{Code: types.ExitInternalError, Err: err}
	}
	return nil
}

// nonFatalInWatch swallows plain environment failures (the summary already
// reported them) so watch mode keeps running; planning and setup errors
// still propagate.
func nonFatalInWatch(err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return nil
	}
	return err
}

// splitArgsAtDash separates environment names from {posargs}: everything
// after a literal "--" flows to the commands untouched.
func splitArgsAtDash(args []string, lenAtDash int) (envNames, posArgs []string) {
	if lenAtDash < 0 {
		return args, nil
	}
	return args[:lenAtDash], args[lenAtDash:]
}

// parseEnvVarFlags turns --env-var KEY=VALUE pairs into a map, rejecting
// entries without '=' or with an empty key.
func parseEnvVarFlags(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --env-var %q: expected KEY=VALUE", pair)
		}
		vars[key] = value
	}
	return vars, nil
}

// callbackServer builds the host callback server from the callback config
// section. The duration fields were validated at config load, so parse
// errors here just fall back to the server's own defaults.
func callbackServer(cc config.CallbackConfig) *hostcall.Server {
	ttl, _ := cc.ParsedTokenTTL()
	shutdown, _ := cc.ParsedShutdownTimeout()
	return hostcall.New(hostcall.Config{
		Host:            hostcall.HostAddress(cc.Host),
		Port:            types.ListenPort(cc.Port),
		TokenTTL:        ttl,
		ShutdownTimeout: shutdown,
	})
}

// suiteLoadError maps suite loading failures to exit codes: a missing file
// is a usage problem, a file that exists but does not parse is not.
// Both get an actionable card on stderr.
func suiteLoadError(err error) error {
	if errors.Is(err, discovery.ErrNoSuiteFile) {
		rendered, _ := issue.Get(issue.SuiteNotFoundId).Render("dark")
		fmt.Fprint(os.Stderr, rendered)
		return &ExitError{Code: types.ExitUsageError, Err: err}
	}

	var verrs envfile.ValidationErrors
	if errors.As(err, &verrs) {
		rendered, _ := issue.Get(issue.SuiteParseErrorId).Render("dark")
		fmt.Fprint(os.Stderr, rendered)
	}
	return &ExitError{Code: types.ExitInternalError, Err: err}
}

// planError maps run-planning failures to exit codes: unknown environment
// names are usage errors, dependency cycles mean the suite itself is broken.
func planError(err error) error {
	if _, ok := errors.AsType[*dag.CycleError](err); ok {
		rendered, _ := issue.Get(issue.DependencyCycleId).Render("dark")
		fmt.Fprint(os.Stderr, rendered)
		return &ExitError{Code: types.ExitInternalError, Err: err}
	}
	return &ExitError{Code: types.ExitUsageError, Err: err}
}

// writeJSONReport writes the machine-readable run report for --report-json.
func writeJSONReport(path string, res *session.RunResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create JSON report: %w", err)
	}
	if err := report.WriteJSON(f, res, Version); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close JSON report: %w", err)
	}
	return nil
}

// completeEnvNames offers environment names for shell completion.
func completeEnvNames(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	file, err := app.loadSuite(suiteFile)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var names []string
	for _, name := range file.Suite.EnvNames() {
		s := name.String()
		if strings.HasPrefix(s, toComplete) && !slices.Contains(args, s) {
			names = append(names, s)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
