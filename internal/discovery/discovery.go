// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gauntlet-run/gauntlet/pkg/envfile"
	"github.com/gauntlet-run/gauntlet/pkg/types"
)

// ErrNoSuiteFile indicates that no suite file exists anywhere between the
// starting directory and the filesystem root.
var ErrNoSuiteFile = errors.New("no suite file found")

// NotFoundError reports a failed walk-up search.
type NotFoundError struct {
	// StartDir is the directory the search started from.
	StartDir string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s or %s found in %s or any parent directory",
		envfile.SuiteFileCUE, envfile.SuiteFileTOML, e.StartDir)
}

// Unwrap supports errors.Is checks against ErrNoSuiteFile.
func (e *NotFoundError) Unwrap() error { return ErrNoSuiteFile }

// Source represents where a suite file was found.
type Source int

const (
	// SourceCurrentDir indicates the file was found in the starting directory.
	SourceCurrentDir Source = iota
	// SourceAncestorDir indicates the file was found in a parent directory.
	SourceAncestorDir
	// SourceExplicit indicates the file was named on the command line.
	SourceExplicit
)

// String returns a human-readable source name.
func (s Source) String() string {
	switch s {
	case SourceCurrentDir:
		return "current directory"
	case SourceAncestorDir:
		return "ancestor directory"
	case SourceExplicit:
		return "command line"
	default:
		return "unknown"
	}
}

// DiscoveredFile represents a located suite file.
type DiscoveredFile struct {
	// Path is the absolute path to the suite file.
	Path string
	// Source indicates where the file was found.
	Source Source
	// Suite is the parsed content (nil until loaded).
	Suite *envfile.Suite
}

// Dir returns the directory containing the suite file. Relative paths in a
// suite (work areas, dotenv files, workdir overrides) resolve against this
// directory, not against the process working directory.
func (f *DiscoveredFile) Dir() string {
	return filepath.Dir(f.Path)
}

// Discovery handles locating suite files.
type Discovery struct {
	startDir string
}

// New creates a Discovery rooted at the current working directory.
func New() (*Discovery, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return NewAt(cwd), nil
}

// NewAt creates a Discovery rooted at an explicit directory.
func NewAt(dir string) *Discovery {
	return &Discovery{startDir: dir}
}

// Discover walks from the starting directory toward the filesystem root and
// returns the first suite file found. Within a single directory gauntlet.cue
// takes precedence over gauntlet.toml.
func (d *Discovery) Discover() (*DiscoveredFile, error) {
	dir, err := filepath.Abs(d.startDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", d.startDir, err)
	}

	source := SourceCurrentDir
	for {
		for _, name := range []string{envfile.SuiteFileCUE, envfile.SuiteFileTOML} {
			path := filepath.Join(dir, name)
			if info, statErr := os.Stat(path); statErr == nil && !info.IsDir() {
				return &DiscoveredFile{Path: path, Source: source}, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, &NotFoundError{StartDir: d.startDir}
		}
		dir = parent
		source = SourceAncestorDir
	}
}

// DiscoverFile resolves an explicitly named suite file (the --file flag).
// Unlike Discover it fails when the file does not exist.
func (d *Discovery) DiscoverFile(path string) (*DiscoveredFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("suite file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("suite file %s is a directory", path)
	}

	return &DiscoveredFile{Path: abs, Source: SourceExplicit}, nil
}

// Load discovers the governing suite file and parses it.
func (d *Discovery) Load() (*DiscoveredFile, error) {
	file, err := d.Discover()
	if err != nil {
		return nil, err
	}
	return parseInto(file)
}

// LoadFile parses an explicitly named suite file.
func (d *Discovery) LoadFile(path string) (*DiscoveredFile, error) {
	file, err := d.DiscoverFile(path)
	if err != nil {
		return nil, err
	}
	return parseInto(file)
}

func parseInto(file *DiscoveredFile) (*DiscoveredFile, error) {
	suite, err := envfile.Parse(types.FilesystemPath(file.Path))
	if err != nil {
		return nil, err
	}

	file.Suite = suite
	return file, nil
}
