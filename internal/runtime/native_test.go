// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"testing"
	"time"

	"github.com/gauntlet-run/gauntlet/pkg/envfile"
	"github.com/gauntlet-run/gauntlet/pkg/types"
)

// nativeContext builds an execution context running against a real shell,
// capturing stdout and stderr.
func nativeContext(t *testing.T, script string) (*ExecutionContext, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	suite := &envfile.Suite{
		Envs: []envfile.Environment{{
			Name:     "nat",
			Commands: []envfile.CommandLine{envfile.CommandLine(script)},
		}},
		FilePath: types.FilesystemPath(filepath.Join(dir, envfile.SuiteFileCUE)),
	}
	ctx := NewExecutionContext(suite, &suite.Envs[0])
	ctx.Script = script
	ctx.WorkDir = dir
	ctx.EnvDir = dir
	ctx.EnvVars = map[string]string{"PATH": "/usr/local/bin:/usr/bin:/bin"}

	var out bytes.Buffer
	ctx.Stdin = strings.NewReader("")
	ctx.Stdout = &out
	ctx.Stderr = &out
	return ctx, &out
}

func TestNativeRuntime_GetShell(t *testing.T) {
	t.Run("custom shell wins", func(t *testing.T) {
		rt := &NativeRuntime{Shell: "/custom/shell"}
		shell, err := rt.getShell()
		if err != nil {
			t.Fatalf("getShell() error: %v", err)
		}
		if shell != "/custom/shell" {
			t.Errorf("getShell() = %q, want %q", shell, "/custom/shell")
		}
	})

	t.Run("SHELL variable wins over lookup", func(t *testing.T) {
		if goruntime.GOOS == "windows" {
			t.Skip("skipping: $SHELL detection only applies to non-Windows")
		}
		t.Setenv("SHELL", "/bin/detected-sh")
		rt := NewNativeRuntime()
		shell, err := rt.getShell()
		if err != nil {
			t.Fatalf("getShell() error: %v", err)
		}
		if shell != "/bin/detected-sh" {
			t.Errorf("getShell() = %q, want %q", shell, "/bin/detected-sh")
		}
	})
}

func TestNativeRuntime_GetShellArgs(t *testing.T) {
	t.Parallel()

	rt := NewNativeRuntime()

	tests := []struct {
		shell string
		want  []string
	}{
		{"/bin/sh", []string{"-c"}},
		{"/usr/bin/bash", []string{"-c"}},
		{"/usr/local/bin/fish", []string{"-c"}},
		{`C:\Windows\System32\cmd.exe`, []string{"/C"}},
		{"cmd", []string{"/C"}},
		{"pwsh", []string{"-NoProfile", "-Command"}},
		{`C:\Program Files\PowerShell\7\pwsh.exe`, []string{"-NoProfile", "-Command"}},
		{"powershell.exe", []string{"-NoProfile", "-Command"}},
	}

	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			t.Parallel()
			got := rt.getShellArgs(tt.shell)
			if len(got) != len(tt.want) {
				t.Fatalf("getShellArgs(%q) = %v, want %v", tt.shell, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("getShellArgs(%q)[%d] = %q, want %q", tt.shell, i, got[i], tt.want[i])
				}
			}
		})
	}

	t.Run("explicit args override detection", func(t *testing.T) {
		t.Parallel()
		rt := &NativeRuntime{ShellArgs: []string{"-lc"}}
		got := rt.getShellArgs("/bin/sh")
		if len(got) != 1 || got[0] != "-lc" {
			t.Errorf("getShellArgs() = %v, want [-lc]", got)
		}
	})
}

func TestShellBaseName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		shell string
		want  string
	}{
		{"/bin/sh", "sh"},
		{"/usr/bin/bash", "bash"},
		{"sh", "sh"},
		{"pwsh.exe", "pwsh"},
		{`C:\Windows\System32\cmd.exe`, "cmd"},
		{`C:\Program Files\PowerShell\7\pwsh.exe`, "pwsh"},
	}

	for _, tt := range tests {
		if got := shellBaseName(tt.shell); got != tt.want {
			t.Errorf("shellBaseName(%q) = %q, want %q", tt.shell, got, tt.want)
		}
	}
}

func TestNativeRuntime_AppendPositionalArgs(t *testing.T) {
	t.Parallel()

	rt := NewNativeRuntime()
	base := []string{"-c", "echo $1"}

	t.Run("posix inserts argv0", func(t *testing.T) {
		t.Parallel()
		got := rt.appendPositionalArgs("/bin/sh", append([]string(nil), base...), []string{"a", "b"})
		want := []string{"-c", "echo $1", "gauntlet", "a", "b"}
		if strings.Join(got, "|") != strings.Join(want, "|") {
			t.Errorf("appendPositionalArgs() = %v, want %v", got, want)
		}
	})

	t.Run("no posargs leaves args alone", func(t *testing.T) {
		t.Parallel()
		got := rt.appendPositionalArgs("/bin/sh", append([]string(nil), base...), nil)
		if strings.Join(got, "|") != strings.Join(base, "|") {
			t.Errorf("appendPositionalArgs() = %v, want %v", got, base)
		}
	})

	t.Run("cmd gets none", func(t *testing.T) {
		t.Parallel()
		got := rt.appendPositionalArgs("cmd.exe", []string{"/C", "echo hi"}, []string{"a"})
		want := []string{"/C", "echo hi"}
		if strings.Join(got, "|") != strings.Join(want, "|") {
			t.Errorf("appendPositionalArgs() = %v, want %v", got, want)
		}
	})
}

func TestNativeRuntime_Validate(t *testing.T) {
	rt := &NativeRuntime{Shell: "/bin/sh"}

	ctx, _ := nativeContext(t, "echo ok")
	if err := rt.Validate(ctx); err != nil {
		t.Errorf("Validate() error: %v", err)
	}

	ctx, _ = nativeContext(t, "   ")
	if err := rt.Validate(ctx); err == nil {
		t.Error("Validate() expected error for blank script")
	}
}

func TestNativeRuntime_Execute(t *testing.T) {
	if goruntime.GOOS == "windows" {
		t.Skip("skipping: exercises a POSIX shell")
	}

	rt := &NativeRuntime{Shell: "sh"}

	t.Run("echo", func(t *testing.T) {
		ctx, out := nativeContext(t, "echo hello native")
		res := rt.Execute(ctx)
		if !res.Success() {
			t.Fatalf("Execute() = %+v, want success", res)
		}
		if got := strings.TrimSpace(out.String()); got != "hello native" {
			t.Errorf("Execute() output = %q, want %q", got, "hello native")
		}
	})

	t.Run("exit code", func(t *testing.T) {
		ctx, _ := nativeContext(t, "exit 5")
		res := rt.Execute(ctx)
		if res.Error != nil {
			t.Fatalf("Execute() error = %v, want plain exit status", res.Error)
		}
		if res.ExitCode != 5 {
			t.Errorf("Execute() ExitCode = %d, want 5", res.ExitCode)
		}
	})

	t.Run("positional args", func(t *testing.T) {
		ctx, out := nativeContext(t, `echo "$0/$1/$2"`)
		ctx.PositionalArgs = []string{"one", "two"}
		res := rt.Execute(ctx)
		if !res.Success() {
			t.Fatalf("Execute() = %+v, want success", res)
		}
		if got := strings.TrimSpace(out.String()); got != "gauntlet/one/two" {
			t.Errorf("Execute() output = %q, want %q", got, "gauntlet/one/two")
		}
	})

	t.Run("workdir", func(t *testing.T) {
		ctx, out := nativeContext(t, "pwd")
		res := rt.Execute(ctx)
		if !res.Success() {
			t.Fatalf("Execute() = %+v, want success", res)
		}
		got, want := strings.TrimSpace(out.String()), ctx.WorkDir
		if g, err := filepath.EvalSymlinks(got); err == nil {
			got = g
		}
		if w, err := filepath.EvalSymlinks(want); err == nil {
			want = w
		}
		if got != want {
			t.Errorf("Execute() pwd = %q, want %q", got, want)
		}
	})

	t.Run("env passthrough and isolation", func(t *testing.T) {
		t.Setenv("GAUNTLET_NATIVE_LEAK_PROBE", "leaked")
		ctx, out := nativeContext(t, `echo "${INSIDE:-unset}:${GAUNTLET_NATIVE_LEAK_PROBE:-clean}"`)
		ctx.EnvVars["INSIDE"] = "yes"
		res := rt.Execute(ctx)
		if !res.Success() {
			t.Fatalf("Execute() = %+v, want success", res)
		}
		if got := strings.TrimSpace(out.String()); got != "yes:clean" {
			t.Errorf("Execute() output = %q, want %q", got, "yes:clean")
		}
	})

	t.Run("cancellation", func(t *testing.T) {
		ctx, _ := nativeContext(t, "sleep 30")
		cancelCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		ctx.Context = cancelCtx

		start := time.Now()
		res := rt.Execute(ctx)
		if elapsed := time.Since(start); elapsed > 10*time.Second {
			t.Fatalf("Execute() took %v, deadline was not enforced", elapsed)
		}
		if res.ExitCode != 124 {
			t.Errorf("Execute() ExitCode = %d, want 124 for a timed-out run", res.ExitCode)
		}
	})

	t.Run("missing shell", func(t *testing.T) {
		rt := &NativeRuntime{Shell: "/nonexistent/shell-xyz"}
		ctx, _ := nativeContext(t, "echo hi")
		res := rt.Execute(ctx)
		if res.Error == nil {
			t.Error("Execute() expected infrastructure error for missing shell")
		}
	})
}
