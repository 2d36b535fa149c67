// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"errors"
	"fmt"
	"strings"
)

// Placeholder names understood inside command and installer templates.
const (
	// PlaceholderPosArgs expands to the CLI arguments after "--",
	// shell-quoted; empty when none were given.
	PlaceholderPosArgs = "posargs"
	// PlaceholderPackages expands to the quoted dependency specs. Only
	// valid inside installer templates.
	PlaceholderPackages = "packages"
	// PlaceholderEnvName expands to the running environment's name.
	PlaceholderEnvName = "env_name"
	// PlaceholderEnvDir expands to the environment's work area.
	PlaceholderEnvDir = "env_dir"
	// PlaceholderSuiteDir expands to the suite file's directory.
	PlaceholderSuiteDir = "suite_dir"
)

// ErrUnknownPlaceholder is the sentinel error wrapped by UnknownPlaceholderError.
var ErrUnknownPlaceholder = errors.New("unknown placeholder")

// UnknownPlaceholderError is returned when a template references a
// placeholder the expansion context does not define.
type UnknownPlaceholderError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownPlaceholderError) Error() string {
	return fmt.Sprintf("unknown placeholder {%s}", e.Name)
}

// Unwrap returns ErrUnknownPlaceholder for errors.Is() compatibility.
func (e *UnknownPlaceholderError) Unwrap() error { return ErrUnknownPlaceholder }

// Expand substitutes {placeholder} tokens in tmpl with values from vars.
// "{{" and "}}" escape literal braces; an unmatched brace or a name absent
// from vars is an error. Expansion is a single pass: values containing
// braces are not re-expanded, so positional arguments cannot smuggle
// placeholders in.
func Expand(tmpl string, vars map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))

	err := walkTemplate(tmpl, func(literal string) {
		b.WriteString(literal)
	}, func(name string) error {
		val, ok := vars[name]
		if !ok {
			return &UnknownPlaceholderError{Name: name}
		}
		b.WriteString(val)
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// Placeholders returns the distinct placeholder names referenced by tmpl,
// in first-appearance order, or an error for malformed syntax.
func Placeholders(tmpl string) ([]string, error) {
	var names []string
	seen := map[string]bool{}

	err := walkTemplate(tmpl, func(string) {}, func(name string) error {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// walkTemplate tokenizes tmpl, calling emit for literal runs and sub for
// each placeholder name.
func walkTemplate(tmpl string, emit func(string), sub func(string) error) error {
	for i := 0; i < len(tmpl); {
		switch tmpl[i] {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				emit("{")
				i += 2
				continue
			}
			end := strings.IndexByte(tmpl[i:], '}')
			if end < 0 {
				return fmt.Errorf("unterminated placeholder at byte %d in %q", i, tmpl)
			}
			name := tmpl[i+1 : i+end]
			if !validPlaceholderName(name) {
				return fmt.Errorf("malformed placeholder {%s} in %q", name, tmpl)
			}
			if err := sub(name); err != nil {
				return err
			}
			i += end + 1
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				emit("}")
				i += 2
				continue
			}
			return fmt.Errorf("unmatched '}' at byte %d in %q (use \"}}\" for a literal)", i, tmpl)
		default:
			next := strings.IndexAny(tmpl[i:], "{}")
			if next < 0 {
				emit(tmpl[i:])
				return nil
			}
			emit(tmpl[i : i+next])
			i += next
		}
	}
	return nil
}

func validPlaceholderName(name string) bool {
	if name == "" {
		return false
	}
	for _, c := range name {
		if (c < 'a' || c > 'z') && c != '_' {
			return false
		}
	}
	return true
}
