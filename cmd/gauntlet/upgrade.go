// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gauntlet-run/gauntlet/internal/selfupdate"
	"github.com/gauntlet-run/gauntlet/pkg/types"
)

// upgradeParams bundles what runUpgrade needs so tests can drive it without
// a cobra command or the live GitHub API.
type upgradeParams struct {
	stdin   io.Reader
	stdout  io.Writer
	updater *selfupdate.Updater
	target  string // empty means latest stable
	check   bool   // report availability without installing
	yes     bool   // skip the confirmation prompt
}

func newUpgradeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upgrade [version]",
		Short: "Update gauntlet to the latest release or a specific version",
		Long: `Update gauntlet to the latest stable release or a specific version.

The new binary is downloaded from GitHub Releases, verified against the
release checksums, and swapped in atomically. Homebrew and go-install
binaries are left to their package managers.`,
		Example: `  gauntlet upgrade
  gauntlet upgrade --check
  gauntlet upgrade v1.2.0
  gauntlet upgrade --yes`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			checkFlag, _ := cmd.Flags().GetBool("check")
			yesFlag, _ := cmd.Flags().GetBool("yes")

			var target string
			if len(args) > 0 {
				target = args[0]
			}

			clientOpts := []selfupdate.ClientOption{
				selfupdate.WithUserAgent("gauntlet/" + Version),
			}
			if token := os.Getenv("GITHUB_TOKEN"); token != "" {
				clientOpts = append(clientOpts, selfupdate.WithToken(token))
			}

			p := upgradeParams{
				stdin:  cmd.InOrStdin(),
				stdout: cmd.OutOrStdout(),
				updater: selfupdate.NewUpdater(Version,
					selfupdate.WithGitHubClient(selfupdate.NewGitHubClient(clientOpts...))),
				target: target,
				check:  checkFlag,
				yes:    yesFlag,
			}
			if err := runUpgrade(cmd.Context(), p); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render("Error:"), err)
				return &ExitError{Code: upgradeExitCode(err), Err: err}
			}
			return nil
		},
	}

	cmd.Flags().Bool("check", false, "check for an available upgrade without installing")
	cmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func runUpgrade(ctx context.Context, p upgradeParams) error {
	check, err := p.updater.CheckUpgrade(ctx, p.target)
	if err != nil {
		return err
	}

	if check.Message != "" {
		fmt.Fprintln(p.stdout, check.Message)
	}
	if !check.Available || check.Target == nil {
		return nil
	}
	if p.check {
		return nil
	}

	if !p.yes && !confirmUpgrade(p.stdin, p.stdout, check.Target.TagName) {
		fmt.Fprintln(p.stdout, "Upgrade cancelled.")
		return nil
	}

	if err := p.updater.Apply(ctx, check.Target); err != nil {
		return err
	}
	fmt.Fprintln(p.stdout, SuccessStyle.Render(fmt.Sprintf("Upgraded to %s.", check.Target.TagName)))
	return nil
}

// confirmUpgrade asks for a y/N answer on the command's input stream.
// Anything but an explicit yes declines.
func confirmUpgrade(in io.Reader, out io.Writer, version string) bool {
	fmt.Fprintf(out, "Install %s? [y/N] ", version)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// upgradeExitCode maps upgrade failures onto the CLI exit contract: bad
// version arguments are usage errors, everything else is internal.
func upgradeExitCode(err error) types.ExitCode {
	if errors.Is(err, selfupdate.ErrInvalidVersion) || errors.Is(err, selfupdate.ErrReleaseNotFound) {
		return types.ExitUsageError
	}
	return types.ExitInternalError
}
