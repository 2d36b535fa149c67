// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"
	"time"
)

func TestContainerEngine_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		engine  ContainerEngine
		want    bool
		wantErr bool
	}{
		{ContainerEngineAuto, true, false},
		{ContainerEngineDocker, true, false},
		{ContainerEnginePodman, true, false},
		{"", false, true},
		{"invalid", false, true},
		{"PODMAN", false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.engine), func(t *testing.T) {
			t.Parallel()
			isValid, errs := tt.engine.IsValid()
			if isValid != tt.want {
				t.Errorf("ContainerEngine(%q).IsValid() = %v, want %v", tt.engine, isValid, tt.want)
			}
			if tt.wantErr {
				if len(errs) == 0 {
					t.Fatalf("ContainerEngine(%q).IsValid() returned no errors, want error", tt.engine)
				}
				if !errors.Is(errs[0], ErrInvalidContainerEngine) {
					t.Errorf("error should wrap ErrInvalidContainerEngine, got: %v", errs[0])
				}
			} else if len(errs) > 0 {
				t.Errorf("ContainerEngine(%q).IsValid() returned unexpected errors: %v", tt.engine, errs)
			}
		})
	}
}

func TestConfigRuntimeMode_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode    RuntimeMode
		want    bool
		wantErr bool
	}{
		{RuntimeNative, true, false},
		{RuntimeVirtual, true, false},
		{RuntimeContainer, true, false},
		{"", false, true},
		{"invalid", false, true},
		{"NATIVE", false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			t.Parallel()
			isValid, errs := tt.mode.IsValid()
			if isValid != tt.want {
				t.Errorf("RuntimeMode(%q).IsValid() = %v, want %v", tt.mode, isValid, tt.want)
			}
			if tt.wantErr {
				if len(errs) == 0 {
					t.Fatalf("RuntimeMode(%q).IsValid() returned no errors, want error", tt.mode)
				}
				if !errors.Is(errs[0], ErrInvalidConfigRuntimeMode) {
					t.Errorf("error should wrap ErrInvalidConfigRuntimeMode, got: %v", errs[0])
				}
			} else if len(errs) > 0 {
				t.Errorf("RuntimeMode(%q).IsValid() returned unexpected errors: %v", tt.mode, errs)
			}
		})
	}
}

func TestColorMode_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode    ColorMode
		want    bool
		wantErr bool
	}{
		{ColorAuto, true, false},
		{ColorAlways, true, false},
		{ColorNever, true, false},
		{"", false, true},
		{"garbage", false, true},
		{"AUTO", false, true},
		{"Always", false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			t.Parallel()
			isValid, errs := tt.mode.IsValid()
			if isValid != tt.want {
				t.Errorf("ColorMode(%q).IsValid() = %v, want %v", tt.mode, isValid, tt.want)
			}
			if tt.wantErr {
				if len(errs) == 0 {
					t.Fatalf("ColorMode(%q).IsValid() returned no errors, want error", tt.mode)
				}
				if !errors.Is(errs[0], ErrInvalidColorMode) {
					t.Errorf("error should wrap ErrInvalidColorMode, got: %v", errs[0])
				}
			} else if len(errs) > 0 {
				t.Errorf("ColorMode(%q).IsValid() returned unexpected errors: %v", tt.mode, errs)
			}
		})
	}
}

func TestCallbackConfig_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cb   CallbackConfig
		want bool
	}{
		{"defaults", CallbackConfig{Host: "127.0.0.1", Port: 0, TokenTTL: "1h", ShutdownTimeout: "10s"}, true},
		{"explicit port", CallbackConfig{Host: "localhost", Port: 2222, TokenTTL: "30m", ShutdownTimeout: "5s"}, true},
		{"empty host", CallbackConfig{Host: "", Port: 0, TokenTTL: "1h", ShutdownTimeout: "10s"}, false},
		{"negative port", CallbackConfig{Host: "127.0.0.1", Port: -1, TokenTTL: "1h", ShutdownTimeout: "10s"}, false},
		{"port too large", CallbackConfig{Host: "127.0.0.1", Port: 70000, TokenTTL: "1h", ShutdownTimeout: "10s"}, false},
		{"bad token ttl", CallbackConfig{Host: "127.0.0.1", Port: 0, TokenTTL: "one hour", ShutdownTimeout: "10s"}, false},
		{"bad shutdown timeout", CallbackConfig{Host: "127.0.0.1", Port: 0, TokenTTL: "1h", ShutdownTimeout: "later"}, false},
		{"negative token ttl", CallbackConfig{Host: "127.0.0.1", Port: 0, TokenTTL: "-1h", ShutdownTimeout: "10s"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			isValid, errs := tt.cb.IsValid()
			if isValid != tt.want {
				t.Errorf("IsValid() = %v, want %v (errs: %v)", isValid, tt.want, errs)
			}
			if !tt.want {
				if len(errs) == 0 {
					t.Fatal("expected validation errors for invalid callback config")
				}
				if !errors.Is(errs[0], ErrInvalidCallbackConfig) {
					t.Errorf("error should wrap ErrInvalidCallbackConfig, got: %v", errs[0])
				}
			}
		})
	}
}

func TestCallbackConfig_ParsedDurations(t *testing.T) {
	t.Parallel()

	cb := CallbackConfig{Host: "127.0.0.1", TokenTTL: "90m", ShutdownTimeout: "15s"}

	ttl, err := cb.ParsedTokenTTL()
	if err != nil {
		t.Fatalf("ParsedTokenTTL() returned error: %v", err)
	}
	if ttl != 90*time.Minute {
		t.Errorf("ParsedTokenTTL() = %s, want 90m", ttl)
	}

	timeout, err := cb.ParsedShutdownTimeout()
	if err != nil {
		t.Fatalf("ParsedShutdownTimeout() returned error: %v", err)
	}
	if timeout != 15*time.Second {
		t.Errorf("ParsedShutdownTimeout() = %s, want 15s", timeout)
	}
}

func TestUIConfig_IsValid(t *testing.T) {
	t.Parallel()

	isValid, errs := (UIConfig{Color: ColorAuto}).IsValid()
	if !isValid {
		t.Errorf("expected valid UI config, got errors: %v", errs)
	}

	isValid, errs = (UIConfig{Color: "neon"}).IsValid()
	if isValid {
		t.Error("expected invalid UI config for unknown color mode")
	}
	if len(errs) == 0 || !errors.Is(errs[0], ErrInvalidUIConfig) {
		t.Errorf("error should wrap ErrInvalidUIConfig, got: %v", errs)
	}
}

func TestConfig_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   bool
	}{
		{"defaults", func(*Config) {}, true},
		{"invalid runtime", func(c *Config) { c.DefaultRuntime = "jail" }, false},
		{"invalid engine", func(c *Config) { c.ContainerEngine = "chroot" }, false},
		{"empty install command", func(c *Config) { c.InstallCommand = "" }, false},
		{"negative parallel", func(c *Config) { c.Parallel = -1 }, false},
		{"empty env dir root", func(c *Config) { c.EnvDirRoot = "" }, false},
		{"invalid color mode", func(c *Config) { c.UI.Color = "rainbow" }, false},
		{"bad callback duration", func(c *Config) { c.Callback.TokenTTL = "soon" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)

			isValid, errs := cfg.IsValid()
			if isValid != tt.want {
				t.Errorf("IsValid() = %v, want %v (errs: %v)", isValid, tt.want, errs)
			}
			if !tt.want {
				if len(errs) == 0 {
					t.Fatal("expected validation errors for invalid config")
				}
				if !errors.Is(errs[0], ErrInvalidConfig) {
					t.Errorf("error should wrap ErrInvalidConfig, got: %v", errs[0])
				}
			}
		})
	}
}

func TestInvalidErrors_Unwrap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"container engine", &InvalidContainerEngineError{Value: "x"}, ErrInvalidContainerEngine},
		{"runtime mode", &InvalidConfigRuntimeModeError{Value: "x"}, ErrInvalidConfigRuntimeMode},
		{"color mode", &InvalidColorModeError{Value: "x"}, ErrInvalidColorMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, sentinel) = false, want true", tt.err)
			}
			if tt.err.Error() == "" {
				t.Error("Error() returned empty string")
			}
		})
	}
}
