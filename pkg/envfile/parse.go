// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/gauntlet-run/gauntlet/pkg/cueparse"
	"github.com/gauntlet-run/gauntlet/pkg/types"
)

//go:embed gauntlet_schema.cue
var suiteSchema string

// Parse reads and parses a suite file, dispatching on its extension:
// .cue files are unified against the embedded schema, .toml files decode
// strictly. Both paths then run the structure validator; a suite with
// error-severity findings does not parse. Warning-severity findings do not
// block parsing and are surfaced by `gauntlet check`.
func Parse(path types.FilesystemPath) (*Suite, error) {
	suite, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return validateParsed(suite)
}

// DecodeFile reads and decodes a suite file without running the validators.
// `gauntlet check` decodes this way and runs the validators itself with the
// app configuration in context; everything else wants Parse.
func DecodeFile(path types.FilesystemPath) (*Suite, error) {
	pathStr := string(path)
	data, err := os.ReadFile(pathStr)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file at %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(pathStr)) {
	case ".cue":
		return decodeCUEBytes(data, pathStr)
	case ".toml":
		return decodeTOMLBytes(data, pathStr)
	default:
		return nil, fmt.Errorf("unsupported suite file extension %q (want .cue or .toml)", filepath.Ext(pathStr))
	}
}

// ParseBytes parses CUE suite file content. The 3-step flow (compile
// schema, compile data, unify/validate/decode) lives in cueparse.
func ParseBytes(data []byte, path string) (*Suite, error) {
	suite, err := decodeCUEBytes(data, path)
	if err != nil {
		return nil, err
	}
	return validateParsed(suite)
}

// ParseTOMLBytes parses TOML suite file content. Unknown fields are
// rejected so typos fail the same way the CUE schema makes them fail.
func ParseTOMLBytes(data []byte, path string) (*Suite, error) {
	suite, err := decodeTOMLBytes(data, path)
	if err != nil {
		return nil, err
	}
	return validateParsed(suite)
}

func decodeCUEBytes(data []byte, path string) (*Suite, error) {
	result, err := cueparse.DecodeString[Suite](
		suiteSchema,
		data,
		"#Suite",
		cueparse.WithFilename(path),
	)
	if err != nil {
		return nil, err
	}

	result.Value.FilePath = types.FilesystemPath(path)
	return result.Value, nil
}

func decodeTOMLBytes(data []byte, path string) (*Suite, error) {
	if err := cueparse.CheckFileSize(data, 1<<20, path); err != nil {
		return nil, err
	}

	var suite Suite
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&suite); err != nil {
		return nil, formatTOMLError(err, path)
	}

	if len(suite.Envs) == 0 {
		return nil, fmt.Errorf("%s: suite declares no environments (missing required 'envs' list)", path)
	}

	suite.FilePath = types.FilesystemPath(path)
	return &suite, nil
}

// validateParsed runs the shared validators on a decoded suite.
func validateParsed(suite *Suite) (*Suite, error) {
	if errs := suite.Validate(); errs.HasErrors() {
		return nil, errs
	}
	return suite, nil
}

// formatTOMLError rewrites go-toml errors with the file position up front,
// matching the shape of the CUE-side messages.
func formatTOMLError(err error, path string) error {
	var strict *toml.StrictMissingError
	if errors.As(err, &strict) {
		return fmt.Errorf("%s: unknown fields:\n%s", path, strict.String())
	}

	var decodeErr *toml.DecodeError
	if errors.As(err, &decodeErr) {
		row, col := decodeErr.Position()
		return fmt.Errorf("%s:%d:%d: %s", path, row, col, decodeErr.Error())
	}

	return fmt.Errorf("%s: %w", path, err)
}

// ParseInheritMode parses a string into an InheritMode. Empty input returns
// the zero value, which serves as the "no override" sentinel.
func ParseInheritMode(value string) (InheritMode, error) {
	mode := InheritMode(value)
	if valid, errs := mode.IsValid(); !valid {
		return "", errs[0]
	}
	return mode, nil
}
