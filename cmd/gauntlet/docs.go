// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	_ "embed"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gauntlet-run/gauntlet/pkg/types"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var (
	//go:embed docs/suite-file.md
	suiteFileDoc string
	//go:embed docs/runtimes.md
	runtimesDoc string
	//go:embed docs/substitutions.md
	substitutionsDoc string
)

// docTopic is one embedded reference page.
type docTopic struct {
	summary string
	content string
}

var docTopics = map[string]docTopic{
	"suite-file":    {summary: "Suite file schema reference", content: suiteFileDoc},
	"runtimes":      {summary: "Native, virtual, and container runtimes", content: runtimesDoc},
	"substitutions": {summary: "Placeholder syntax in commands", content: substitutionsDoc},
}

// newDocsCommand creates the `gauntlet docs` command. Topics are embedded
// in the binary and rendered for the terminal.
func newDocsCommand() *cobra.Command {
	docsCmd := &cobra.Command{
		Use:   "docs [topic]",
		Short: "Show reference documentation",
		Long: `Show reference documentation for suite files, runtimes, and the
placeholder syntax. Without a topic, lists what is available.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: docTopicNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return listDocTopics(cmd)
			}
			return showDocTopic(cmd, args[0])
		},
	}
	return docsCmd
}

func docTopicNames() []string {
	return slices.Sorted(maps.Keys(docTopics))
}

func listDocTopics(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, SubtitleStyle.Render("Available topics:"))
	fmt.Fprintln(out)
	for _, name := range docTopicNames() {
		fmt.Fprintf(out, "  %s - %s\n", EnvStyle.Render(name), docTopics[name].summary)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Run 'gauntlet docs <topic>' to read one.")
	return nil
}

func showDocTopic(cmd *cobra.Command, name string) error {
	topic, ok := docTopics[name]
	if !ok {
		return &ExitError{
			Code: types.ExitUsageError,
			Err:  fmt.Errorf("unknown topic %q (available: %s)", name, strings.Join(docTopicNames(), ", ")),
		}
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return err
	}

	rendered, err := renderer.Render(topic.content)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), rendered)
	return nil
}
