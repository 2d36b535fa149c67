package runtime

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// NativeRuntime executes commands through the host shell.
type NativeRuntime struct {
	// Shell overrides the detected shell.
	Shell string
	// ShellArgs are arguments passed to the shell before the script.
	ShellArgs []string
}

// NewNativeRuntime creates a new native runtime.
func NewNativeRuntime() *NativeRuntime {
	return &NativeRuntime{}
}

// Name returns the runtime name.
func (r *NativeRuntime) Name() string {
	return "native"
}

// Available reports whether a usable shell exists on this host.
func (r *NativeRuntime) Available() bool {
	_, err := r.getShell()
	return err == nil
}

// Validate checks that the context carries an executable script.
func (r *NativeRuntime) Validate(ctx *ExecutionContext) error {
	if strings.TrimSpace(ctx.Script) == "" {
		return fmt.Errorf("no command to execute")
	}
	if _, err := r.getShell(); err != nil {
		return err
	}
	return nil
}

// Execute runs the script through the host shell.
func (r *NativeRuntime) Execute(ctx *ExecutionContext) *Result {
	shell, err := r.getShell()
	if err != nil {
		return NewErrorResult(1, err)
	}

	args := r.getShellArgs(shell)
	args = append(args, ctx.Script)
	args = r.appendPositionalArgs(shell, args, ctx.PositionalArgs)

	cmd := exec.CommandContext(ctx.Context, shell, args...)
	cmd.Dir = ctx.WorkDir
	cmd.Env = EnvToSlice(ctx.EnvVars)
	cmd.Stdout = ctx.Stdout
	cmd.Stderr = ctx.Stderr
	cmd.Stdin = ctx.Stdin

	if err := cmd.Run(); err != nil {
		if code, done := contextExitCode(ctx.Context); done {
			return NewExitCodeResult(code)
		}
		if code, ok := ExitStatusFromExec(err); ok {
			return NewExitCodeResult(code)
		}
		return NewErrorResult(1, fmt.Errorf("failed to execute command: %w", err))
	}

	return NewSuccessResult()
}

// getShell determines which shell to use.
func (r *NativeRuntime) getShell() (string, error) {
	if r.Shell != "" {
		return r.Shell, nil
	}

	switch runtime.GOOS {
	case "windows":
		// Try PowerShell first, then cmd.
		if pwsh, err := exec.LookPath("pwsh"); err == nil {
			return pwsh, nil
		}
		if ps, err := exec.LookPath("powershell"); err == nil {
			return ps, nil
		}
		return exec.LookPath("cmd")
	default:
		// Unix-like: use SHELL env var, or fall back to common shells.
		if shell := os.Getenv("SHELL"); shell != "" {
			return shell, nil
		}
		if bash, err := exec.LookPath("bash"); err == nil {
			return bash, nil
		}
		if sh, err := exec.LookPath("sh"); err == nil {
			return sh, nil
		}
		return "", fmt.Errorf("no shell found")
	}
}

// getShellArgs returns the arguments to pass to the shell before the script.
func (r *NativeRuntime) getShellArgs(shell string) []string {
	if len(r.ShellArgs) > 0 {
		return r.ShellArgs
	}

	switch shellBaseName(shell) {
	case "cmd":
		return []string{"/C"}
	case "powershell", "pwsh":
		return []string{"-NoProfile", "-Command"}
	default:
		// Assume POSIX shell.
		return []string{"-c"}
	}
}

// appendPositionalArgs exposes the posargs to the script as positional
// parameters.
// For POSIX shells: sh -c '<script>' gauntlet $1 $2 ...
// For PowerShell: args land in the $args array.
// For cmd.exe: no inline positional args; scripts use GAUNTLET_* variables.
func (r *NativeRuntime) appendPositionalArgs(shell string, args, positionalArgs []string) []string {
	if len(positionalArgs) == 0 {
		return args
	}

	switch shellBaseName(shell) {
	case "cmd":
		return args
	case "powershell", "pwsh":
		return append(args, positionalArgs...)
	default:
		args = append(args, "gauntlet") // $0 placeholder
		return append(args, positionalArgs...)
	}
}

// shellBaseName extracts the shell's bare name, tolerating Windows paths and
// the .exe suffix on any host.
func shellBaseName(shell string) string {
	base := filepath.Base(shell)
	if lastSlash := strings.LastIndex(base, "\\"); lastSlash >= 0 {
		base = base[lastSlash+1:]
	}
	return strings.TrimSuffix(base, ".exe")
}
