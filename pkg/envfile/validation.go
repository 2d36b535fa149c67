// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gauntlet-run/gauntlet/pkg/types"
)

const (
	// SeverityError marks findings that make a suite unusable.
	SeverityError ValidationSeverity = iota
	// SeverityWarning marks findings worth fixing that do not block runs.
	// `gauntlet check --strict` promotes them to errors.
	SeverityWarning
)

type (
	// ValidationSeverity grades a validation finding.
	ValidationSeverity int

	// ValidatorName identifies the validator a finding came from.
	ValidatorName string

	// ValidationError is a single finding from suite validation.
	ValidationError struct {
		// Validator names the component that produced the finding.
		Validator ValidatorName
		// Field locates the finding ("envs[2].commands[0]", `env "lint"`).
		Field string
		// Message is the human-readable description.
		Message string
		// Severity grades the finding.
		Severity ValidationSeverity
	}

	// ValidationErrors collects every finding of a validation pass. It
	// implements error so parse paths can return all problems at once
	// instead of stopping at the first.
	ValidationErrors []ValidationError

	// ValidationContext carries the surroundings validators need: where
	// the suite lives, which platform is current, and what the app config
	// contributes.
	ValidationContext struct {
		// FilePath is the suite file being validated.
		FilePath types.FilesystemPath
		// SuiteDir anchors relative paths.
		SuiteDir string
		// Platform is the host platform; used for informational findings
		// only, never to hide errors in foreign-platform environments.
		Platform Platform
		// StrictMode promotes warnings to errors.
		StrictMode bool
		// LookPath resolves a program name against PATH. Nil selects
		// exec.LookPath; tests inject their own to stay hermetic.
		LookPath func(file string) (string, error)
		// DefaultInstallCommand is the app config's installer template.
		DefaultInstallCommand string
		// AssumeInstallerConfigured suppresses the "no installer anywhere"
		// finding. Parse uses it because the app config is unknown at
		// parse time; `gauntlet check` passes the real configuration.
		AssumeInstallerConfigured bool
	}

	// Validator checks one aspect of a suite and reports every finding,
	// not just the first. Finding order is unspecified; severity carries
	// the priority.
	Validator interface {
		// Name returns a unique identifier for this validator.
		Name() ValidatorName
		// Validate inspects the suite and returns all findings.
		Validate(ctx *ValidationContext, suite *Suite) []ValidationError
	}

	// FieldPath builds the hierarchical location strings findings carry.
	FieldPath struct {
		parts []string
	}
)

// String returns a human-readable representation of the severity.
func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// String returns the string representation of the ValidatorName.
func (n ValidatorName) String() string { return string(n) }

// Error implements the error interface for a single finding.
func (e ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// IsError reports whether the finding has error severity.
func (e ValidationError) IsError() bool { return e.Severity == SeverityError }

// IsWarning reports whether the finding has warning severity.
func (e ValidationError) IsWarning() bool { return e.Severity == SeverityWarning }

// Error implements the error interface by joining all findings.
func (errs ValidationErrors) Error() string {
	switch len(errs) {
	case 0:
		return ""
	case 1:
		return errs[0].Error()
	}

	var b strings.Builder
	b.WriteString("validation failed with ")
	if n := errs.ErrorCount(); n > 0 {
		b.WriteString(strconv.Itoa(n))
		b.WriteString(pluralize(" error", n))
	}
	if n := errs.WarningCount(); n > 0 {
		if errs.ErrorCount() > 0 {
			b.WriteString(" and ")
		}
		b.WriteString(strconv.Itoa(n))
		b.WriteString(pluralize(" warning", n))
	}
	b.WriteString(":")
	for _, e := range errs {
		b.WriteString("\n  ")
		b.WriteString(e.Severity.String())
		b.WriteString(": ")
		b.WriteString(e.Error())
	}
	return b.String()
}

// HasErrors reports whether any finding has error severity.
func (errs ValidationErrors) HasErrors() bool { return errs.ErrorCount() > 0 }

// ErrorCount returns the number of error-severity findings.
func (errs ValidationErrors) ErrorCount() int {
	n := 0
	for _, e := range errs {
		if e.IsError() {
			n++
		}
	}
	return n
}

// WarningCount returns the number of warning-severity findings.
func (errs ValidationErrors) WarningCount() int {
	return len(errs) - errs.ErrorCount()
}

// Promote raises warnings to errors, implementing strict mode.
func (errs ValidationErrors) Promote() ValidationErrors {
	out := make(ValidationErrors, len(errs))
	for i, e := range errs {
		e.Severity = SeverityError
		out[i] = e
	}
	return out
}

// RunValidators runs each validator and gathers every finding. Strict mode
// is applied here so individual validators never reason about it.
func RunValidators(ctx *ValidationContext, suite *Suite, validators ...Validator) ValidationErrors {
	var all ValidationErrors
	for _, v := range validators {
		all = append(all, v.Validate(ctx, suite)...)
	}
	if ctx.StrictMode {
		return all.Promote()
	}
	return all
}

// NewFieldPath starts an empty location path.
func NewFieldPath() *FieldPath {
	return &FieldPath{}
}

// Suite adds the suite root segment.
func (p *FieldPath) Suite() *FieldPath {
	p.parts = append(p.parts, "suite")
	return p
}

// Env adds an environment segment.
func (p *FieldPath) Env(name EnvName) *FieldPath {
	p.parts = append(p.parts, fmt.Sprintf("env %q", name))
	return p
}

// Command adds a command-index segment.
func (p *FieldPath) Command(i int) *FieldPath {
	p.parts = append(p.parts, fmt.Sprintf("commands[%d]", i))
	return p
}

// Field adds a named field segment.
func (p *FieldPath) Field(name string) *FieldPath {
	p.parts = append(p.parts, name)
	return p
}

// Index adds a list-index suffix to the previous segment.
func (p *FieldPath) Index(i int) *FieldPath {
	if len(p.parts) > 0 {
		p.parts[len(p.parts)-1] += fmt.Sprintf("[%d]", i)
	}
	return p
}

// String renders the path with space-separated segments.
func (p *FieldPath) String() string {
	return strings.Join(p.parts, " ")
}

func pluralize(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
