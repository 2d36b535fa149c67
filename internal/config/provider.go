// SPDX-License-Identifier: MPL-2.0

package config

import "context"

// LoadOptions narrows where the app config is read from. Zero value means
// the standard lookup: the OS config dir's gauntlet/config.cue merged over
// built-in defaults.
type LoadOptions struct {
	// ConfigFilePath forces a specific config file (`--config` flag).
	ConfigFilePath string
	// ConfigDirPath overrides the config directory lookup when set.
	ConfigDirPath string
}

// Provider hands the CLI its app config. Commands depend on this interface
// rather than the file loader so tests can inject a fixed config.
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (*Config, error)
}

type fileProvider struct{}

// NewProvider returns the file-backed Provider used outside of tests.
func NewProvider() Provider {
	return &fileProvider{}
}

func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg, _, err := loadWithOptions(ctx, opts)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
