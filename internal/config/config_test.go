// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/gauntlet-run/gauntlet/internal/issue"
	"github.com/gauntlet-run/gauntlet/internal/testutil"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DefaultRuntime != RuntimeNative {
		t.Errorf("expected default runtime to be native, got %s", cfg.DefaultRuntime)
	}

	if cfg.ContainerEngine != ContainerEngineAuto {
		t.Errorf("expected default container engine to be auto, got %s", cfg.ContainerEngine)
	}

	if cfg.InstallCommand != "pip install {packages}" {
		t.Errorf("expected default install command to be 'pip install {packages}', got %q", cfg.InstallCommand)
	}

	if cfg.Parallel != 0 {
		t.Errorf("expected default parallel to be 0 (serial), got %d", cfg.Parallel)
	}

	if cfg.EnvDirRoot != ".gauntlet" {
		t.Errorf("expected default env dir root to be .gauntlet, got %q", cfg.EnvDirRoot)
	}

	if cfg.UI.Color != ColorAuto {
		t.Errorf("expected default color mode to be auto, got %s", cfg.UI.Color)
	}

	if cfg.UI.Verbose {
		t.Error("expected default verbose to be false")
	}

	if cfg.Callback.Host != "127.0.0.1" {
		t.Errorf("expected default callback host to be 127.0.0.1, got %q", cfg.Callback.Host)
	}

	if cfg.Callback.Port != 0 {
		t.Errorf("expected default callback port to be 0 (auto), got %d", cfg.Callback.Port)
	}

	if valid, errs := cfg.IsValid(); !valid {
		t.Errorf("expected default config to be valid, got %v", errs)
	}
}

func TestConfigDir(t *testing.T) {
	// Test with XDG_CONFIG_HOME set (on Linux)
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME handling is Linux-only")
	}

	testXDGPath := "/tmp/test-xdg-config"
	restoreXDG := testutil.MustSetenv(t, "XDG_CONFIG_HOME", testXDGPath)

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() returned error: %v", err)
	}

	expected := filepath.Join(testXDGPath, AppName)
	if dir != expected {
		t.Errorf("ConfigDir() = %s, want %s", dir, expected)
	}

	// Test with XDG_CONFIG_HOME unset
	restoreXDG()
	restoreUnset := testutil.MustUnsetenv(t, "XDG_CONFIG_HOME")
	defer restoreUnset()

	dir, err = ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() returned error: %v", err)
	}

	// Should use ~/.config/gauntlet
	home, _ := os.UserHomeDir()
	expected = filepath.Join(home, ".config", AppName)
	if dir != expected {
		t.Errorf("ConfigDir() = %s, want %s", dir, expected)
	}
}

func TestConfigDir_Override(t *testing.T) {
	tmpDir := t.TempDir()
	SetConfigDirOverride(tmpDir)
	defer Reset()

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() returned error: %v", err)
	}
	if dir != tmpDir {
		t.Errorf("ConfigDir() = %s, want override %s", dir, tmpDir)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, AppName)

	// Use direct override instead of env vars (more reliable across platforms)
	SetConfigDirOverride(configDir)
	defer Reset()

	err := EnsureConfigDir()
	if err != nil {
		t.Fatalf("EnsureConfigDir() returned error: %v", err)
	}

	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		t.Errorf("EnsureConfigDir() did not create directory %s", configDir)
	}
}

func TestLoadAndSave(t *testing.T) {
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, AppName)

	SetConfigDirOverride(configDir)
	defer Reset()

	if err := EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir() returned error: %v", err)
	}

	// Create a custom config
	cfg := &Config{
		DefaultRuntime:  RuntimeContainer,
		ContainerEngine: ContainerEngineDocker,
		InstallCommand:  "uv pip install {packages}",
		Parallel:        4,
		EnvDirRoot:      ".work",
		UI: UIConfig{
			Color:   ColorNever,
			Verbose: true,
		},
		Callback: CallbackConfig{
			Host:            "127.0.0.1",
			Port:            2222,
			TokenTTL:        "30m",
			ShutdownTimeout: "5s",
		},
	}

	if err := Save(cfg); err != nil {
		t.Fatalf("Save() returned error: %v", err)
	}

	loaded, err := NewProvider().Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if loaded.DefaultRuntime != RuntimeContainer {
		t.Errorf("DefaultRuntime = %s, want container", loaded.DefaultRuntime)
	}

	if loaded.ContainerEngine != ContainerEngineDocker {
		t.Errorf("ContainerEngine = %s, want docker", loaded.ContainerEngine)
	}

	if loaded.InstallCommand != "uv pip install {packages}" {
		t.Errorf("InstallCommand = %q, want uv pip install {packages}", loaded.InstallCommand)
	}

	if loaded.Parallel != 4 {
		t.Errorf("Parallel = %d, want 4", loaded.Parallel)
	}

	if loaded.EnvDirRoot != ".work" {
		t.Errorf("EnvDirRoot = %q, want .work", loaded.EnvDirRoot)
	}

	if loaded.UI.Color != ColorNever {
		t.Errorf("UI.Color = %s, want never", loaded.UI.Color)
	}

	if !loaded.UI.Verbose {
		t.Error("UI.Verbose = false, want true")
	}

	if loaded.Callback.Port != 2222 {
		t.Errorf("Callback.Port = %d, want 2222", loaded.Callback.Port)
	}

	if loaded.Callback.TokenTTL != "30m" {
		t.Errorf("Callback.TokenTTL = %q, want 30m", loaded.Callback.TokenTTL)
	}
}

func TestLoad_ReturnsDefaultsWhenNoConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, AppName)

	SetConfigDirOverride(configDir)
	defer Reset()

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	defaults := DefaultConfig()
	if cfg.ContainerEngine != defaults.ContainerEngine {
		t.Errorf("ContainerEngine = %s, want %s", cfg.ContainerEngine, defaults.ContainerEngine)
	}

	if cfg.DefaultRuntime != defaults.DefaultRuntime {
		t.Errorf("DefaultRuntime = %s, want %s", cfg.DefaultRuntime, defaults.DefaultRuntime)
	}

	if cfg.InstallCommand != defaults.InstallCommand {
		t.Errorf("InstallCommand = %q, want %q", cfg.InstallCommand, defaults.InstallCommand)
	}
}

func TestLoad_PartialFileMergesWithDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, AppName)
	testutil.MustMkdirAll(t, configDir, 0o755)

	// Only override one field: everything else must come from defaults.
	partial := `container_engine: "podman"` + "\n"
	cfgPath := filepath.Join(configDir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(cfgPath, []byte(partial), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	SetConfigDirOverride(configDir)
	defer Reset()

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.ContainerEngine != ContainerEnginePodman {
		t.Errorf("ContainerEngine = %s, want podman", cfg.ContainerEngine)
	}
	if cfg.DefaultRuntime != RuntimeNative {
		t.Errorf("DefaultRuntime = %s, want native (default)", cfg.DefaultRuntime)
	}
	if cfg.Callback.TokenTTL != "1h" {
		t.Errorf("Callback.TokenTTL = %q, want 1h (default)", cfg.Callback.TokenTTL)
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, AppName)

	SetConfigDirOverride(configDir)
	defer Reset()

	err := CreateDefaultConfig()
	if err != nil {
		t.Fatalf("CreateDefaultConfig() returned error: %v", err)
	}

	// Check that file was created
	expectedPath := filepath.Join(configDir, ConfigFileName+"."+ConfigFileExt)
	if _, statErr := os.Stat(expectedPath); os.IsNotExist(statErr) {
		t.Errorf("CreateDefaultConfig() did not create file at %s", expectedPath)
	}

	// Read the file and verify it has content
	content, err := os.ReadFile(expectedPath)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	if len(content) == 0 {
		t.Error("config file is empty")
	}

	// Calling again should not error (file already exists)
	err = CreateDefaultConfig()
	if err != nil {
		t.Fatalf("CreateDefaultConfig() returned error on second call: %v", err)
	}
}

func TestGenerateCUE_RoundTrips(t *testing.T) {
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, AppName)
	testutil.MustMkdirAll(t, configDir, 0o755)

	cfg := DefaultConfig()
	cfg.Parallel = 8
	cfg.UI.Color = ColorAlways

	content := GenerateCUE(cfg)
	cfgPath := filepath.Join(configDir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write generated config: %v", err)
	}

	SetConfigDirOverride(configDir)
	defer Reset()

	loaded, err := NewProvider().Load(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("Load() of generated config returned error: %v", err)
	}

	if loaded.Parallel != 8 {
		t.Errorf("Parallel = %d, want 8", loaded.Parallel)
	}
	if loaded.UI.Color != ColorAlways {
		t.Errorf("UI.Color = %s, want always", loaded.UI.Color)
	}
}

func TestConstants(t *testing.T) {
	if AppName != "gauntlet" {
		t.Errorf("AppName = %s, want gauntlet", AppName)
	}

	if ConfigFileName != "config" {
		t.Errorf("ConfigFileName = %s, want config", ConfigFileName)
	}

	if ConfigFileExt != "cue" {
		t.Errorf("ConfigFileExt = %s, want cue", ConfigFileExt)
	}
}

func TestLoad_CustomPath_Valid(t *testing.T) {
	tmpDir := t.TempDir()
	customConfigPath := filepath.Join(tmpDir, "custom-config.cue")

	validConfig := `container_engine: "docker"
default_runtime: "virtual"
`
	if err := os.WriteFile(customConfigPath, []byte(validConfig), 0o644); err != nil {
		t.Fatalf("failed to write custom config: %v", err)
	}

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: customConfigPath})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.ContainerEngine != ContainerEngineDocker {
		t.Errorf("ContainerEngine = %s, want docker", cfg.ContainerEngine)
	}
	if cfg.DefaultRuntime != RuntimeVirtual {
		t.Errorf("DefaultRuntime = %s, want virtual", cfg.DefaultRuntime)
	}
}

func TestLoad_CustomPath_NotFound_ReturnsError(t *testing.T) {
	nonExistentPath := "/this/path/does/not/exist/config.cue"

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: nonExistentPath})
	if err == nil {
		t.Fatal("expected Load() to return error for non-existent config file")
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "load configuration") {
		t.Errorf("error should contain 'load configuration', got: %s", errStr)
	}
	if !strings.Contains(errStr, nonExistentPath) {
		t.Errorf("error should contain the path, got: %s", errStr)
	}
	if !strings.Contains(errStr, "config file not found") {
		t.Errorf("error should contain 'config file not found', got: %s", errStr)
	}

	// Verify suggestions are present via ActionableError type
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatal("expected error to be *issue.ActionableError")
	}
	if len(ae.Suggestions) == 0 {
		t.Error("expected ActionableError to have suggestions")
	}
	foundSuggestion := false
	for _, s := range ae.Suggestions {
		if strings.Contains(s, "Verify the file path is correct") {
			foundSuggestion = true
			break
		}
	}
	if !foundSuggestion {
		t.Errorf("expected suggestion 'Verify the file path is correct', got: %v", ae.Suggestions)
	}
}

func TestLoad_CustomPath_InvalidCUE_ReturnsError(t *testing.T) {
	tmpDir := t.TempDir()
	customConfigPath := filepath.Join(tmpDir, "invalid-config.cue")

	invalidConfig := `this is not valid CUE syntax {{{{`
	if err := os.WriteFile(customConfigPath, []byte(invalidConfig), 0o644); err != nil {
		t.Fatalf("failed to write invalid config: %v", err)
	}

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: customConfigPath})
	if err == nil {
		t.Fatal("expected Load() to return error for invalid CUE config file")
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "load configuration") {
		t.Errorf("error should contain 'load configuration', got: %s", errStr)
	}
	if !strings.Contains(errStr, customConfigPath) {
		t.Errorf("error should contain the path, got: %s", errStr)
	}
}

func TestLoad_SchemaViolation_ReturnsError(t *testing.T) {
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, AppName)
	testutil.MustMkdirAll(t, configDir, 0o755)

	// Wrong type for container_engine
	invalidConfig := `container_engine: 123`
	cfgPath := filepath.Join(configDir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(cfgPath, []byte(invalidConfig), 0o644); err != nil {
		t.Fatalf("failed to write invalid config: %v", err)
	}

	SetConfigDirOverride(configDir)
	defer Reset()

	_, err := NewProvider().Load(context.Background(), LoadOptions{})
	if err == nil {
		t.Fatal("expected Load() to return error for schema violation")
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "load configuration") {
		t.Errorf("error should contain operation, got: %s", errStr)
	}
	if !strings.Contains(errStr, cfgPath) {
		t.Errorf("error should contain resource path, got: %s", errStr)
	}
}

func TestLoad_BadDuration_ReturnsError(t *testing.T) {
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, AppName)
	testutil.MustMkdirAll(t, configDir, 0o755)

	// Syntactically valid CUE; the duration only fails Go-side validation.
	badDuration := `callback: token_ttl: "not-a-duration"`
	cfgPath := filepath.Join(configDir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(cfgPath, []byte(badDuration), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	SetConfigDirOverride(configDir)
	defer Reset()

	_, err := NewProvider().Load(context.Background(), LoadOptions{})
	if err == nil {
		t.Fatal("expected Load() to return error for unparseable duration")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected error chain to contain ErrInvalidConfig, got: %v", err)
	}
}

func TestLoad_CanceledContext_ReturnsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewProvider().Load(ctx, LoadOptions{})
	if err == nil {
		t.Fatal("expected Load() to return error for canceled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got: %v", err)
	}
}
