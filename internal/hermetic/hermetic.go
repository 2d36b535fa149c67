// SPDX-License-Identifier: MPL-2.0

// Package hermetic provides in-process implementations of common shell
// utilities for the virtual runtime. Registered builtins run without
// consulting PATH, so a virtual environment's commands behave identically on
// hosts that ship different (or no) coreutils. File-handling utilities are
// backed by the u-root project (github.com/u-root/u-root); small text
// utilities are implemented locally.
//
// A command name not present in the registry falls through to the
// interpreter's default handler, which resolves external programs from PATH
// as usual. A registered builtin that fails never falls back to a system
// binary: the failure surfaces as the command's exit status.
package hermetic

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

type (
	// IO carries the stream and directory context a builtin executes
	// under, extracted from the interpreter's handler context.
	IO struct {
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
		// Dir is the working directory; relative operands resolve here.
		Dir string
		// LookupEnv reads the interpreter's environment, not the process's.
		LookupEnv func(name string) (string, bool)
	}

	// RunFunc executes one builtin. args excludes the command name.
	RunFunc func(ctx context.Context, stdio *IO, args []string) error

	// Registry maps command names to builtin implementations. Safe for
	// concurrent use.
	Registry struct {
		mu       sync.RWMutex
		builtins map[string]RunFunc
	}
)

// Default is the registry the virtual runtime consults. It is populated at
// package initialization and never mutated afterwards.
var Default = defaultRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builtins: make(map[string]RunFunc)}
}

// Register adds a builtin. Registering an empty or duplicate name is a
// programming error and panics.
func (r *Registry) Register(name string, run RunFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == "" {
		panic("hermetic: builtin name must not be empty")
	}
	if _, exists := r.builtins[name]; exists {
		panic(fmt.Sprintf("hermetic: builtin %q registered twice", name))
	}
	r.builtins[name] = run
}

// Lookup retrieves a builtin by command name.
func (r *Registry) Lookup(name string) (RunFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.builtins[name]
	return run, ok
}

// Names lists the registered command names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builtins))
	for name := range r.builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolve anchors a relative operand at the builtin's working directory.
func (s *IO) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.Dir, path)
}

// open opens an operand for reading, with "-" meaning stdin.
func (s *IO) open(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(s.Stdin), nil
	}
	return os.Open(s.resolve(path))
}
