// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gauntlet-run/gauntlet/internal/container"
	"github.com/gauntlet-run/gauntlet/pkg/envfile"
	"github.com/gauntlet-run/gauntlet/pkg/types"
)

// fakeEngine is an in-memory container.Engine recording every call.
type fakeEngine struct {
	name      string
	available bool

	buildCalls  []container.BuildOptions
	buildErrs   []error // consumed per call; nil slice means always succeed
	imageExists bool

	runDetachedCalls []container.RunOptions
	runDetachedErrs  []error
	nextContainerID  container.ContainerID

	execCalls   [][]string
	execOpts    []container.RunOptions
	execResult  *container.RunResult
	execErr     error
	removed     []container.ContainerID
	removedImgs []container.ImageTag
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		name:            "docker",
		available:       true,
		nextContainerID: "cid-1234",
	}
}

func (f *fakeEngine) Name() string    { return f.name }
func (f *fakeEngine) Available() bool { return f.available }
func (f *fakeEngine) Version(context.Context) (string, error) {
	return "fake 0.0", nil
}

func (f *fakeEngine) Build(_ context.Context, opts container.BuildOptions) error {
	f.buildCalls = append(f.buildCalls, opts)
	if len(f.buildErrs) > 0 {
		err := f.buildErrs[0]
		f.buildErrs = f.buildErrs[1:]
		return err
	}
	return nil
}

func (f *fakeEngine) Run(context.Context, container.RunOptions) (*container.RunResult, error) {
	return &container.RunResult{}, nil
}

func (f *fakeEngine) RunDetached(_ context.Context, opts container.RunOptions) (container.ContainerID, error) {
	f.runDetachedCalls = append(f.runDetachedCalls, opts)
	if len(f.runDetachedErrs) > 0 {
		err := f.runDetachedErrs[0]
		f.runDetachedErrs = f.runDetachedErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return f.nextContainerID, nil
}

func (f *fakeEngine) Exec(_ context.Context, id container.ContainerID, command []string, opts container.RunOptions) (*container.RunResult, error) {
	f.execCalls = append(f.execCalls, command)
	f.execOpts = append(f.execOpts, opts)
	if f.execErr != nil {
		return nil, f.execErr
	}
	if f.execResult != nil {
		return f.execResult, nil
	}
	return &container.RunResult{ContainerID: id}, nil
}

func (f *fakeEngine) Remove(_ context.Context, id container.ContainerID, force bool) error {
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeEngine) ImageExists(context.Context, container.ImageTag) (bool, error) {
	return f.imageExists, nil
}

func (f *fakeEngine) RemoveImage(_ context.Context, img container.ImageTag, force bool) error {
	f.removedImgs = append(f.removedImgs, img)
	return nil
}

// containerContext builds an execution context for a container environment
// rooted in a temp suite dir.
func containerContext(t *testing.T, spec *envfile.RuntimeSpec) *ExecutionContext {
	t.Helper()
	dir := t.TempDir()
	suite := &envfile.Suite{
		Envs: []envfile.Environment{{
			Name:     "boxed",
			Runtime:  spec,
			Commands: []envfile.CommandLine{"true"},
		}},
		FilePath: types.FilesystemPath(filepath.Join(dir, envfile.SuiteFileCUE)),
	}
	ctx := NewExecutionContext(suite, &suite.Envs[0])
	ctx.Script = "echo boxed"
	ctx.WorkDir = dir
	ctx.EnvDir = filepath.Join(dir, ".gauntlet", "boxed")

	var out bytes.Buffer
	ctx.Stdin = strings.NewReader("")
	ctx.Stdout = &out
	ctx.Stderr = &out
	return ctx
}

func imageSpec(image string) *envfile.RuntimeSpec {
	return &envfile.RuntimeSpec{Kind: envfile.RuntimeContainer, Image: image}
}

func TestContainerPath(t *testing.T) {
	t.Parallel()

	suiteDir := t.TempDir()

	tests := []struct {
		name string
		host string
		want string
	}{
		{"suite dir itself", suiteDir, WorkspaceMount},
		{"direct child", filepath.Join(suiteDir, "src"), WorkspaceMount + "/src"},
		{"nested child", filepath.Join(suiteDir, ".gauntlet", "py311"), WorkspaceMount + "/.gauntlet/py311"},
		{"outside suite dir", filepath.Dir(suiteDir), WorkspaceMount},
		{"unrelated path", string(filepath.Separator) + "somewhere-else", WorkspaceMount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ContainerPath(suiteDir, tt.host); got != tt.want {
				t.Errorf("ContainerPath(%q, %q) = %q, want %q", suiteDir, tt.host, got, tt.want)
			}
		})
	}
}

func TestContainerRuntime_Validate(t *testing.T) {
	t.Parallel()

	t.Run("no engine", func(t *testing.T) {
		t.Parallel()
		rt := NewContainerRuntime(nil)
		ctx := containerContext(t, imageSpec("alpine:3"))
		if err := rt.Validate(ctx); err == nil {
			t.Error("Validate() expected error without an engine")
		}
	})

	t.Run("blank script", func(t *testing.T) {
		t.Parallel()
		rt := NewContainerRuntime(newFakeEngine())
		ctx := containerContext(t, imageSpec("alpine:3"))
		ctx.Script = "  "
		if err := rt.Validate(ctx); err == nil {
			t.Error("Validate() expected error for blank script")
		}
	})

	t.Run("image and containerfile conflict", func(t *testing.T) {
		t.Parallel()
		rt := NewContainerRuntime(newFakeEngine())
		ctx := containerContext(t, &envfile.RuntimeSpec{
			Kind:          envfile.RuntimeContainer,
			Image:         "alpine:3",
			Containerfile: "Containerfile",
		})
		if err := rt.Validate(ctx); err == nil {
			t.Error("Validate() expected error when both image and containerfile are set")
		}
	})

	t.Run("image only", func(t *testing.T) {
		t.Parallel()
		rt := NewContainerRuntime(newFakeEngine())
		ctx := containerContext(t, imageSpec("alpine:3"))
		if err := rt.Validate(ctx); err != nil {
			t.Errorf("Validate() error: %v", err)
		}
	})

	t.Run("default containerfile discovery", func(t *testing.T) {
		t.Parallel()
		rt := NewContainerRuntime(newFakeEngine())
		ctx := containerContext(t, &envfile.RuntimeSpec{Kind: envfile.RuntimeContainer})
		if err := rt.Validate(ctx); err == nil {
			t.Error("Validate() expected error with no image and no Containerfile")
		}

		path := filepath.Join(ctx.Suite.Dir(), "Containerfile")
		if err := os.WriteFile(path, []byte("FROM scratch\n"), 0o644); err != nil {
			t.Fatalf("failed to write Containerfile: %v", err)
		}
		if err := rt.Validate(ctx); err != nil {
			t.Errorf("Validate() error with Containerfile present: %v", err)
		}
	})
}

func TestContainerRuntime_ImageTag(t *testing.T) {
	t.Parallel()

	rt := NewContainerRuntime(newFakeEngine())
	ctx := containerContext(t, &envfile.RuntimeSpec{Kind: envfile.RuntimeContainer})

	tag1 := rt.imageTag(ctx)
	tag2 := rt.imageTag(ctx)
	if tag1 != tag2 {
		t.Errorf("imageTag() not stable: %q vs %q", tag1, tag2)
	}
	if !strings.HasPrefix(tag1.String(), "gauntlet-") || !strings.HasSuffix(tag1.String(), ":latest") {
		t.Errorf("imageTag() = %q, want gauntlet-*:latest", tag1)
	}

	ctx.Env.Name = "other"
	if tag1 == rt.imageTag(ctx) {
		t.Error("imageTag() must differ across environments of the same suite")
	}
}

func TestContainerRuntime_PrepareEnvWithImage(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	rt := NewContainerRuntime(engine)
	ctx := containerContext(t, imageSpec("alpine:3"))

	if err := rt.PrepareEnv(ctx); err != nil {
		t.Fatalf("PrepareEnv() error: %v", err)
	}

	if len(engine.buildCalls) != 0 {
		t.Errorf("PrepareEnv() built %d images for a declared image, want 0", len(engine.buildCalls))
	}
	if len(engine.runDetachedCalls) != 1 {
		t.Fatalf("PrepareEnv() started %d containers, want 1", len(engine.runDetachedCalls))
	}

	opts := engine.runDetachedCalls[0]
	if opts.Image != "alpine:3" {
		t.Errorf("RunDetached image = %q, want %q", opts.Image, "alpine:3")
	}
	if !opts.Detach {
		t.Error("RunDetached must start detached")
	}
	if len(opts.Command) != 2 || opts.Command[0] != "sleep" {
		t.Errorf("RunDetached command = %v, want an idle sleep", opts.Command)
	}
	wantVolume := ctx.Suite.Dir() + ":" + WorkspaceMount
	if len(opts.Volumes) != 1 || opts.Volumes[0] != wantVolume {
		t.Errorf("RunDetached volumes = %v, want [%s]", opts.Volumes, wantVolume)
	}
	if opts.WorkDir.String() != WorkspaceMount {
		t.Errorf("RunDetached workdir = %q, want %q", opts.WorkDir, WorkspaceMount)
	}
	if len(opts.ExtraHosts) != 0 {
		t.Errorf("RunDetached extra hosts = %v, want none without host_access", opts.ExtraHosts)
	}
	if !strings.HasPrefix(opts.Name.String(), "gauntlet-boxed-") {
		t.Errorf("RunDetached name = %q, want gauntlet-boxed-<pid>", opts.Name)
	}
}

func TestContainerRuntime_PrepareEnvHostAccess(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	rt := NewContainerRuntime(engine)
	ctx := containerContext(t, &envfile.RuntimeSpec{
		Kind:       envfile.RuntimeContainer,
		Image:      "alpine:3",
		HostAccess: true,
	})

	if err := rt.PrepareEnv(ctx); err != nil {
		t.Fatalf("PrepareEnv() error: %v", err)
	}

	opts := engine.runDetachedCalls[0]
	want := "host.docker.internal:host-gateway"
	if len(opts.ExtraHosts) != 1 || opts.ExtraHosts[0] != want {
		t.Errorf("RunDetached extra hosts = %v, want [%s]", opts.ExtraHosts, want)
	}
}

func TestContainerRuntime_PrepareEnvBuildsContainerfile(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	rt := NewContainerRuntime(engine)
	ctx := containerContext(t, &envfile.RuntimeSpec{
		Kind:          envfile.RuntimeContainer,
		Containerfile: "env.Containerfile",
	})

	cfPath := filepath.Join(ctx.Suite.Dir(), "env.Containerfile")
	if err := os.WriteFile(cfPath, []byte("FROM scratch\n"), 0o644); err != nil {
		t.Fatalf("failed to write containerfile: %v", err)
	}

	if err := rt.PrepareEnv(ctx); err != nil {
		t.Fatalf("PrepareEnv() error: %v", err)
	}

	if len(engine.buildCalls) != 1 {
		t.Fatalf("PrepareEnv() built %d images, want 1", len(engine.buildCalls))
	}
	build := engine.buildCalls[0]
	if build.Containerfile.String() != cfPath {
		t.Errorf("Build containerfile = %q, want %q", build.Containerfile, cfPath)
	}
	if build.Tag != rt.imageTag(ctx) {
		t.Errorf("Build tag = %q, want %q", build.Tag, rt.imageTag(ctx))
	}
	if engine.runDetachedCalls[0].Image != build.Tag {
		t.Errorf("RunDetached image = %q, want the built tag %q", engine.runDetachedCalls[0].Image, build.Tag)
	}
}

func TestContainerRuntime_PrepareEnvSkipsExistingImage(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.imageExists = true
	rt := NewContainerRuntime(engine)
	ctx := containerContext(t, &envfile.RuntimeSpec{
		Kind:          envfile.RuntimeContainer,
		Containerfile: "env.Containerfile",
	})
	if err := os.WriteFile(filepath.Join(ctx.Suite.Dir(), "env.Containerfile"), []byte("FROM scratch\n"), 0o644); err != nil {
		t.Fatalf("failed to write containerfile: %v", err)
	}

	if err := rt.PrepareEnv(ctx); err != nil {
		t.Fatalf("PrepareEnv() error: %v", err)
	}
	if len(engine.buildCalls) != 0 {
		t.Errorf("PrepareEnv() rebuilt an existing image %d times, want 0", len(engine.buildCalls))
	}
}

func TestContainerRuntime_PrepareEnvMissingContainerfile(t *testing.T) {
	t.Parallel()

	rt := NewContainerRuntime(newFakeEngine())
	ctx := containerContext(t, &envfile.RuntimeSpec{
		Kind:          envfile.RuntimeContainer,
		Containerfile: "absent.Containerfile",
	})

	if err := rt.PrepareEnv(ctx); err == nil {
		t.Error("PrepareEnv() expected error for missing containerfile")
	}
}

func TestContainerRuntime_PrepareEnvRetriesTransientStart(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.runDetachedErrs = []error{errors.New("OCI runtime error: unit test"), nil}
	rt := NewContainerRuntime(engine)
	ctx := containerContext(t, imageSpec("alpine:3"))

	if err := rt.PrepareEnv(ctx); err != nil {
		t.Fatalf("PrepareEnv() error after transient failure: %v", err)
	}
	if len(engine.runDetachedCalls) != 2 {
		t.Errorf("RunDetached called %d times, want 2 (one retry)", len(engine.runDetachedCalls))
	}
}

func TestContainerRuntime_PrepareEnvPermanentStartFailure(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.runDetachedErrs = []error{errors.New("image not found")}
	rt := NewContainerRuntime(engine)
	ctx := containerContext(t, imageSpec("alpine:3"))

	if err := rt.PrepareEnv(ctx); err == nil {
		t.Fatal("PrepareEnv() expected permanent start failure")
	}
	if len(engine.runDetachedCalls) != 1 {
		t.Errorf("RunDetached called %d times, want 1 (no retry on permanent errors)", len(engine.runDetachedCalls))
	}
}

func TestContainerRuntime_ExecuteWithoutPrepare(t *testing.T) {
	t.Parallel()

	rt := NewContainerRuntime(newFakeEngine())
	ctx := containerContext(t, imageSpec("alpine:3"))

	res := rt.Execute(ctx)
	if res.Error == nil {
		t.Error("Execute() expected error before PrepareEnv")
	}
}

func TestContainerRuntime_ExecuteFlow(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	rt := NewContainerRuntime(engine)
	ctx := containerContext(t, imageSpec("alpine:3"))
	ctx.Script = "echo in-container"
	ctx.EnvVars = map[string]string{"GAUNTLET_ENV": "boxed"}
	ctx.PositionalArgs = []string{"p1", "p2"}

	if err := rt.PrepareEnv(ctx); err != nil {
		t.Fatalf("PrepareEnv() error: %v", err)
	}

	res := rt.Execute(ctx)
	if !res.Success() {
		t.Fatalf("Execute() = %+v, want success", res)
	}

	if len(engine.execCalls) != 1 {
		t.Fatalf("Exec called %d times, want 1", len(engine.execCalls))
	}
	argv := engine.execCalls[0]
	want := []string{"sh", "-c", "echo in-container", "gauntlet", "p1", "p2"}
	if strings.Join(argv, "|") != strings.Join(want, "|") {
		t.Errorf("Exec argv = %v, want %v", argv, want)
	}

	opts := engine.execOpts[0]
	if opts.WorkDir.String() != WorkspaceMount {
		t.Errorf("Exec workdir = %q, want %q", opts.WorkDir, WorkspaceMount)
	}
	if opts.Env["GAUNTLET_ENV"] != "boxed" {
		t.Errorf("Exec env GAUNTLET_ENV = %q, want %q", opts.Env["GAUNTLET_ENV"], "boxed")
	}

	// Cleanup removes the prepared container; a second Execute must fail.
	if err := rt.CleanupEnv(ctx); err != nil {
		t.Fatalf("CleanupEnv() error: %v", err)
	}
	if len(engine.removed) != 1 || engine.removed[0] != engine.nextContainerID {
		t.Errorf("CleanupEnv() removed = %v, want [%s]", engine.removed, engine.nextContainerID)
	}
	if res := rt.Execute(ctx); res.Error == nil {
		t.Error("Execute() after CleanupEnv expected error")
	}
}

func TestContainerRuntime_ExecuteExitCode(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.execResult = &container.RunResult{ExitCode: 9}
	rt := NewContainerRuntime(engine)
	ctx := containerContext(t, imageSpec("alpine:3"))

	if err := rt.PrepareEnv(ctx); err != nil {
		t.Fatalf("PrepareEnv() error: %v", err)
	}

	res := rt.Execute(ctx)
	if res.Error != nil {
		t.Fatalf("Execute() error = %v, want plain exit status", res.Error)
	}
	if res.ExitCode != 9 {
		t.Errorf("Execute() ExitCode = %d, want 9", res.ExitCode)
	}
}

func TestContainerRuntime_ExecuteEngineError(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.execResult = &container.RunResult{ExitCode: 125, Error: errors.New("engine exploded")}
	rt := NewContainerRuntime(engine)
	ctx := containerContext(t, imageSpec("alpine:3"))

	if err := rt.PrepareEnv(ctx); err != nil {
		t.Fatalf("PrepareEnv() error: %v", err)
	}

	res := rt.Execute(ctx)
	if res.Error == nil {
		t.Error("Execute() expected infrastructure error from the engine")
	}
}

func TestContainerRuntime_ExecuteCancellation(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.execErr = errors.New("context canceled")
	rt := NewContainerRuntime(engine)
	ctx := containerContext(t, imageSpec("alpine:3"))

	if err := rt.PrepareEnv(ctx); err != nil {
		t.Fatalf("PrepareEnv() error: %v", err)
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()
	ctx.Context = cancelCtx

	res := rt.Execute(ctx)
	if res.ExitCode != 130 {
		t.Errorf("Execute() ExitCode = %d, want 130 for a canceled run", res.ExitCode)
	}
}

func TestContainerRuntime_CallbackHostRewrite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		engine string
		host   string
		want   string
	}{
		{"loopback ip on docker", "docker", "127.0.0.1", "host.docker.internal"},
		{"localhost on docker", "docker", "localhost", "host.docker.internal"},
		{"ipv6 loopback on docker", "docker", "::1", "host.docker.internal"},
		{"loopback on podman", "podman", "127.0.0.1", "host.containers.internal"},
		{"public address untouched", "docker", "192.168.1.50", "192.168.1.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			engine := newFakeEngine()
			engine.name = tt.engine
			rt := NewContainerRuntime(engine)
			ctx := containerContext(t, imageSpec("alpine:3"))
			ctx.EnvVars = map[string]string{
				EnvVarCallbackHost: tt.host,
				EnvVarCallbackPort: "2222",
			}

			env := rt.containerEnv(ctx)
			if env[EnvVarCallbackHost] != tt.want {
				t.Errorf("containerEnv() %s = %q, want %q", EnvVarCallbackHost, env[EnvVarCallbackHost], tt.want)
			}
			if env[EnvVarCallbackPort] != "2222" {
				t.Errorf("containerEnv() %s = %q, want %q", EnvVarCallbackPort, env[EnvVarCallbackPort], "2222")
			}
			if ctx.EnvVars[EnvVarCallbackHost] != tt.host {
				t.Error("containerEnv() must not mutate the caller's map")
			}
		})
	}
}

func TestContainerRuntime_RemoveImage(t *testing.T) {
	t.Parallel()

	t.Run("containerfile image removed", func(t *testing.T) {
		t.Parallel()
		engine := newFakeEngine()
		rt := NewContainerRuntime(engine)
		ctx := containerContext(t, &envfile.RuntimeSpec{
			Kind:          envfile.RuntimeContainer,
			Containerfile: "env.Containerfile",
		})
		if err := rt.RemoveImage(ctx); err != nil {
			t.Fatalf("RemoveImage() error: %v", err)
		}
		if len(engine.removedImgs) != 1 || engine.removedImgs[0] != rt.imageTag(ctx) {
			t.Errorf("RemoveImage() removed %v, want [%s]", engine.removedImgs, rt.imageTag(ctx))
		}
	})

	t.Run("declared image kept", func(t *testing.T) {
		t.Parallel()
		engine := newFakeEngine()
		rt := NewContainerRuntime(engine)
		ctx := containerContext(t, imageSpec("alpine:3"))
		if err := rt.RemoveImage(ctx); err != nil {
			t.Fatalf("RemoveImage() error: %v", err)
		}
		if len(engine.removedImgs) != 0 {
			t.Errorf("RemoveImage() removed %v for a user-owned image, want none", engine.removedImgs)
		}
	})
}

func TestContainerRuntime_ExecWorkDirMapping(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	rt := NewContainerRuntime(engine)
	ctx := containerContext(t, imageSpec("alpine:3"))
	ctx.WorkDir = filepath.Join(ctx.Suite.Dir(), "sub", "dir")

	if err := rt.PrepareEnv(ctx); err != nil {
		t.Fatalf("PrepareEnv() error: %v", err)
	}
	if res := rt.Execute(ctx); !res.Success() {
		t.Fatalf("Execute() = %+v, want success", res)
	}

	want := WorkspaceMount + "/sub/dir"
	if got := engine.execOpts[0].WorkDir.String(); got != want {
		t.Errorf("Exec workdir = %q, want %q", got, want)
	}
}
