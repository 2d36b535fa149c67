// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/gauntlet-run/gauntlet/internal/config"
	"github.com/gauntlet-run/gauntlet/internal/discovery"
	"github.com/gauntlet-run/gauntlet/pkg/envfile"
)

// listCmd shows every environment the suite file declares
var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List environments in the suite file",
	Long: `List environments in the suite file.

Shows each environment's name, description, runtime, platform
restrictions, and tags. Environments the current platform would skip
are marked. Default environments (the ones a bare 'gauntlet run'
executes) carry an asterisk.`,
	RunE: runList,
}

func runList(cmd *cobra.Command, _ []string) error {
	file, err := app.loadSuite(suiteFile)
	if err != nil {
		return suiteLoadError(err)
	}

	fmt.Fprint(cmd.OutOrStdout(), renderEnvList(file, currentConfig(), envfile.CurrentPlatform()))
	return nil
}

// renderEnvList builds the environment listing for one suite file.
func renderEnvList(file *discovery.DiscoveredFile, cfg *config.Config, platform envfile.Platform) string {
	suite := file.Suite

	// Style for output - derived from shared color constants
	nameStyle := lipgloss.NewStyle().Foreground(ColorHighlight).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(ColorVerbose)
	runtimeStyle := lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	platformsStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	tagStyle := lipgloss.NewStyle().Foreground(ColorMuted)
	skipStyle := lipgloss.NewStyle().Foreground(ColorMuted).Italic(true)
	legendStyle := lipgloss.NewStyle().Foreground(ColorVerbose).Italic(true)

	width := 0
	for _, name := range suite.EnvNames() {
		if n := len(name.String()); n > width {
			width = n
		}
	}

	var b strings.Builder
	b.WriteString(SubtitleStyle.Render(fmt.Sprintf("Environments in %s:", file.Path)))
	b.WriteString("\n\n")

	for i := range suite.Envs {
		env := &suite.Envs[i]

		name := env.Name.String()
		if slices.Contains(suite.Defaults, env.Name) {
			name += "*"
		}
		// Pad before styling so the ANSI codes don't skew the columns.
		line := "  " + nameStyle.Render(fmt.Sprintf("%-*s", width+1, name))

		if env.Description != "" {
			line += " - " + descStyle.Render(env.Description)
		}

		kind := env.RuntimeKindOrDefault(envfile.RuntimeKind(cfg.DefaultRuntime))
		line += " [" + runtimeStyle.Render(kind.String()) + "]"

		if len(env.Platforms) > 0 {
			line += fmt.Sprintf(" (%s)", platformsStyle.Render(joinPlatforms(env.Platforms)))
		}
		for _, tag := range env.Tags {
			line += " " + tagStyle.Render("#"+tag)
		}
		if !env.MatchesPlatform(platform) {
			line += " " + skipStyle.Render(fmt.Sprintf("(skipped on %s)", platform))
		}

		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(suite.Defaults) > 0 {
		b.WriteString("\n")
		b.WriteString(legendStyle.Render("* runs by default"))
		b.WriteString("\n")
	}

	return b.String()
}

func joinPlatforms(platforms []envfile.Platform) string {
	parts := make([]string, len(platforms))
	for i, p := range platforms {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}
