// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/gauntlet-run/gauntlet/pkg/envfile"
)

// LoadEnvFile loads a dotenv file and merges its contents into env. The path
// is resolved relative to basePath (the suite file's directory). Files
// suffixed with '?' are optional; a missing optional file is skipped
// silently. Later calls override earlier values for the same keys.
func LoadEnvFile(env map[string]string, path envfile.DotenvFilePath, basePath string) error {
	full := path.Path()
	if !filepath.IsAbs(full) {
		// Suite files use forward slashes regardless of host.
		full = filepath.Join(basePath, filepath.FromSlash(full))
	}
	return mergeEnvFile(env, path, full)
}

// LoadEnvFileFromCwd loads a dotenv file relative to the invocation
// directory. This is the resolution rule for --env-file flags, which name
// files where the user is, not where the suite is. Empty cwd falls back to
// os.Getwd. The '?' optional marker applies here too.
func LoadEnvFileFromCwd(env map[string]string, path envfile.DotenvFilePath, cwd string) error {
	full := path.Path()
	if !filepath.IsAbs(full) {
		if cwd == "" {
			var err error
			cwd, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("resolving env file %q: %w", path, err)
			}
		}
		full = filepath.Join(cwd, filepath.FromSlash(full))
	}
	return mergeEnvFile(env, path, full)
}

func mergeEnvFile(env map[string]string, path envfile.DotenvFilePath, fullPath string) error {
	content, err := os.ReadFile(fullPath)
	if err != nil {
		if path.IsOptional() && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading env file %q: %w", path.Path(), err)
	}

	parsed, err := godotenv.UnmarshalBytes(content)
	if err != nil {
		return fmt.Errorf("parsing env file %q: %w", path.Path(), err)
	}
	for k, v := range parsed {
		env[k] = v
	}
	return nil
}
