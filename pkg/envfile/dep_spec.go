// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// ErrInvalidDepSpec is the sentinel error wrapped by InvalidDepSpecError.
var ErrInvalidDepSpec = errors.New("invalid dependency spec")

// depNameRegex covers the package names common registries accept.
var depNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// constraintOps is ordered longest-first so "==" wins over "=" prefixes
// and ">=" over ">".
var constraintOps = []string{"==", ">=", "<=", "!=", ">", "<"}

type (
	// DepSpec is one entry of an environment's dependency list: either a
	// package spec ("pytest", "flake8==3.5.0", "requests>=2.0") or a local
	// path ("./packages/bootstrap", "../common"). Local paths are the
	// bootstrap packages: they install before the environment's commands
	// run, resolved relative to the suite directory.
	DepSpec string

	// InvalidDepSpecError is returned when a DepSpec is neither a parsable
	// package spec nor a local path. It wraps ErrInvalidDepSpec.
	InvalidDepSpecError struct {
		Value  DepSpec
		Reason string
	}

	// PackageRef is the parsed form of a DepSpec.
	PackageRef struct {
		// Name is the package name; empty for local paths.
		Name string
		// Constraint is the version operator ("==", ">=", ...); empty when
		// the spec pins nothing.
		Constraint string
		// Version accompanies Constraint.
		Version string
		// LocalPath is set instead of the above for path specs.
		LocalPath string
	}
)

// Error implements the error interface.
func (e *InvalidDepSpecError) Error() string {
	return fmt.Sprintf("invalid dependency spec %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidDepSpec for errors.Is() compatibility.
func (e *InvalidDepSpecError) Unwrap() error { return ErrInvalidDepSpec }

// IsLocal reports whether the spec is a local path rather than a package.
func (d DepSpec) IsLocal() bool {
	s := strings.TrimSpace(string(d))
	return s == "." || s == ".." ||
		strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") ||
		strings.HasPrefix(s, "/")
}

// Parse resolves the spec into its parsed form.
func (d DepSpec) Parse() (PackageRef, error) {
	s := strings.TrimSpace(string(d))
	if s == "" {
		return PackageRef{}, &InvalidDepSpecError{Value: d, Reason: "must be non-empty"}
	}

	if d.IsLocal() {
		return PackageRef{LocalPath: s}, nil
	}

	for _, op := range constraintOps {
		idx := strings.Index(s, op)
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(s[:idx])
		version := strings.TrimSpace(s[idx+len(op):])
		if !depNameRegex.MatchString(name) {
			return PackageRef{}, &InvalidDepSpecError{Value: d, Reason: fmt.Sprintf("bad package name %q", name)}
		}
		if version == "" {
			return PackageRef{}, &InvalidDepSpecError{Value: d, Reason: fmt.Sprintf("constraint %q without a version", op)}
		}
		return PackageRef{Name: name, Constraint: op, Version: version}, nil
	}

	if !depNameRegex.MatchString(s) {
		return PackageRef{}, &InvalidDepSpecError{Value: d, Reason: "not a package name or local path"}
	}
	return PackageRef{Name: s}, nil
}

// IsValid reports whether the spec parses.
func (d DepSpec) IsValid() (bool, []error) {
	if _, err := d.Parse(); err != nil {
		return false, []error{err}
	}
	return true, nil
}

// String returns the raw representation of the DepSpec.
func (d DepSpec) String() string { return string(d) }

// ProvidedName returns the name a spec plausibly puts on PATH: the package
// name, or the final path element for local specs. Used by the consistency
// lint to tie command words back to declared dependencies.
func (d DepSpec) ProvidedName() string {
	ref, err := d.Parse()
	if err != nil {
		return ""
	}
	if ref.LocalPath != "" {
		return path.Base(strings.ReplaceAll(ref.LocalPath, "\\", "/"))
	}
	return ref.Name
}
