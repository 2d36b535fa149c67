// SPDX-License-Identifier: MPL-2.0

// Package report renders run results for people and machines: a styled
// terminal summary, and the JSON document behind `gauntlet run --report-json`.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/gauntlet-run/gauntlet/internal/session"
)

// Outcome styles, aligned with the CLI palette.
var (
	passedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	failedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	ignoredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	durationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	reasonStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	scriptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6"))
)

// Summary renders the end-of-run summary: one line per environment in run
// order, the failing command where one exists, and a totals footer.
func Summary(res *session.RunResult) string {
	var sb strings.Builder

	nameWidth := 0
	for _, env := range res.Envs {
		if n := len(env.Name.String()); n > nameWidth {
			nameWidth = n
		}
	}

	sb.WriteString("\n")
	for _, env := range res.Envs {
		writeEnvLine(&sb, env, nameWidth)
	}
	sb.WriteString("\n")
	sb.WriteString(footerLine(res))
	sb.WriteString("\n")

	return sb.String()
}

func writeEnvLine(sb *strings.Builder, env session.EnvResult, nameWidth int) {
	style := outcomeStyle(env.Outcome)

	sb.WriteString("  ")
	sb.WriteString(style.Render(outcomeGlyph(env.Outcome)))
	sb.WriteString(" ")
	sb.WriteString(fmt.Sprintf("%-*s", nameWidth, env.Name))
	sb.WriteString("  ")
	sb.WriteString(style.Render(fmt.Sprintf("%-7s", env.Outcome)))
	if env.Duration > 0 {
		sb.WriteString("  ")
		sb.WriteString(durationStyle.Render(formatDuration(env.Duration)))
	}
	if env.Reason != "" && env.Outcome != session.OutcomePassed {
		sb.WriteString("  ")
		sb.WriteString(reasonStyle.Render("— " + env.Reason))
	}
	sb.WriteString("\n")

	if script := failingScript(env); script != "" {
		sb.WriteString("      ")
		sb.WriteString(scriptStyle.Render("$ " + script))
		sb.WriteString("\n")
	}
}

// failingScript returns the command that decided a failed or ignored
// environment, empty otherwise.
func failingScript(env session.EnvResult) string {
	if env.Outcome != session.OutcomeFailed && env.Outcome != session.OutcomeIgnored {
		return ""
	}
	for i := len(env.Commands) - 1; i >= 0; i-- {
		if !env.Commands[i].Succeeded() {
			return env.Commands[i].Script
		}
	}
	return ""
}

func footerLine(res *session.RunResult) string {
	t := res.Tally()
	parts := []string{fmt.Sprintf("%d passed", t.Passed)}
	if t.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", t.Failed))
	}
	if t.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", t.Skipped))
	}
	if t.Ignored > 0 {
		parts = append(parts, fmt.Sprintf("%d ignored", t.Ignored))
	}

	line := strings.Join(parts, ", ") + " in " + formatDuration(res.Duration)
	if res.Interrupted {
		line += " (interrupted)"
	}

	if t.Failed > 0 || res.Interrupted {
		return failedStyle.Render("✗ " + line)
	}
	return passedStyle.Render("✓ " + line)
}

func outcomeGlyph(o session.Outcome) string {
	switch o {
	case session.OutcomePassed:
		return "✓"
	case session.OutcomeFailed:
		return "✗"
	case session.OutcomeIgnored:
		return "!"
	default:
		return "•"
	}
}

func outcomeStyle(o session.Outcome) lipgloss.Style {
	switch o {
	case session.OutcomePassed:
		return passedStyle
	case session.OutcomeFailed:
		return failedStyle
	case session.OutcomeIgnored:
		return ignoredStyle
	default:
		return skippedStyle
	}
}

// formatDuration rounds for display; env durations do not need microseconds.
func formatDuration(d time.Duration) string {
	if d >= time.Second {
		return d.Round(100 * time.Millisecond).String()
	}
	return d.Round(time.Millisecond).String()
}
