// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/gauntlet-run/gauntlet/internal/discovery"
	"github.com/gauntlet-run/gauntlet/internal/issue"
	"github.com/gauntlet-run/gauntlet/pkg/envfile"
	"github.com/gauntlet-run/gauntlet/pkg/types"
)

var (
	checkStrict bool

	// checkCmd statically validates a suite file
	checkCmd = &cobra.Command{
		Use:   "check [file]",
		Short: "Validate a suite file without running anything",
		Long: `Validate a suite file without running anything.

Runs the structural lint: schema validity, unique well-formed
environment names, resolvable 'defaults' and 'depends_on' references
(no self-references, no cycles), parseable dep specs and timeouts,
well-formed pass_env/deny_env patterns and placeholders, and commands
whose first word traces back to a declared dependency or a known
shell builtin (a warning otherwise).

Findings are reported all at once, not first-error-only.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCheck,
	}
)

func init() {
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "treat warnings as errors")
}

func runCheck(cmd *cobra.Command, args []string) error {
	path, err := resolveCheckTarget(args)
	if err != nil {
		if errors.Is(err, discovery.ErrNoSuiteFile) {
			rendered, _ := issue.Get(issue.SuiteNotFoundId).Render("dark")
			fmt.Fprint(os.Stderr, rendered)
		}
		return &ExitError{Code: types.ExitUsageError, Err: err}
	}

	// Decode without the parse-time validators: check runs them itself so
	// a broken suite yields the full findings list, not a parse error.
	suite, err := envfile.DecodeFile(types.FilesystemPath(path))
	if err != nil {
		rendered, _ := issue.Get(issue.SuiteParseErrorId).Render("dark")
		fmt.Fprint(os.Stderr, rendered)
		return &ExitError{Code: types.ExitUsageError, Err: err}
	}

	vctx := &envfile.ValidationContext{
		FilePath:              suite.FilePath,
		SuiteDir:              suite.Dir(),
		Platform:              envfile.CurrentPlatform(),
		StrictMode:            checkStrict,
		DefaultInstallCommand: currentConfig().InstallCommand,
	}
	findings := envfile.RunValidators(vctx, suite, envfile.NewStructureValidator())

	fmt.Fprint(cmd.OutOrStdout(), renderFindings(path, findings))

	if findings.HasErrors() {
		return &ExitError{Code: types.ExitEnvFailure, Err: findings}
	}
	return nil
}

// resolveCheckTarget picks the file to lint: the positional argument, the
// --file flag, or walk-up discovery.
func resolveCheckTarget(args []string) (string, error) {
	explicit := suiteFile
	if len(args) > 0 {
		explicit = args[0]
	}

	disc, err := discovery.New()
	if err != nil {
		return "", err
	}

	var file *discovery.DiscoveredFile
	if explicit != "" {
		file, err = disc.DiscoverFile(explicit)
	} else {
		file, err = disc.Discover()
	}
	if err != nil {
		return "", err
	}
	return file.Path, nil
}

// renderFindings builds the human-readable lint report.
func renderFindings(path string, findings envfile.ValidationErrors) string {
	var b strings.Builder

	if len(findings) == 0 {
		fmt.Fprintf(&b, "%s %s is valid\n", SuccessStyle.Render("✓"), path)
		return b.String()
	}

	fieldStyle := lipgloss.NewStyle().Foreground(ColorHighlight)

	for _, f := range findings {
		glyph := WarningStyle.Render("!")
		label := WarningStyle.Render("warning")
		if f.IsError() {
			glyph = ErrorStyle.Render("✗")
			label = ErrorStyle.Render("error")
		}
		if f.Field != "" {
			fmt.Fprintf(&b, "%s %s %s: %s\n", glyph, label, fieldStyle.Render(f.Field), f.Message)
		} else {
			fmt.Fprintf(&b, "%s %s: %s\n", glyph, label, f.Message)
		}
	}

	var parts []string
	if n := findings.ErrorCount(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", n, pluralNoun("error", n)))
	}
	if n := findings.WarningCount(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", n, pluralNoun("warning", n)))
	}
	fmt.Fprintf(&b, "\n%s found in %s\n", strings.Join(parts, ", "), path)

	return b.String()
}

func pluralNoun(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
