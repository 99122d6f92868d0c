package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/polymarket/polymarket-cli/internal/domain/release"
	"github.com/polymarket/polymarket-cli/internal/repository/registry"
	"github.com/polymarket/polymarket-cli/internal/service/upgrader"
	"github.com/polymarket/polymarket-cli/internal/version"
)

// upgradeParams bundles what runUpgrade needs so it can run without Cobra or a live registry.
type upgradeParams struct {
	stdout  *printer
	stderr  *printer
	current string
	options *upgrader.Options
	run     func(context.Context, *upgrader.Options) (*upgrader.Result, error)
}

func newUpgradeCommand() *cobra.Command {
	var (
		checkOnly    bool
		noPrivileged bool
	)

	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade polymarket to the latest release",
		Long: `Upgrade polymarket to the latest release.

The release archive for this platform is downloaded together with its
checksums.txt, verified with SHA-256 and swapped into place. The previous
binary is kept as <path>.bak until the new one is installed and restored if
anything fails. When the binary's directory is not writable the move is
retried through the configured privileged helper (sudo by default).`,
		Example: `  # Install the latest release
  polymarket upgrade

  # Only report whether a newer release exists
  polymarket upgrade --check`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			p := upgradeParams{
				stdout:  newPrinter(cmd.OutOrStdout()),
				stderr:  newPrinter(cmd.ErrOrStderr()),
				current: version.Short(),
				options: &upgrader.Options{
					ConfigPath:   configPath,
					LogLevel:     logLevel,
					CheckOnly:    checkOnly,
					NoPrivileged: noPrivileged,
				},
				run: upgrader.Run,
			}

			if err := runUpgrade(ctx, p); err != nil {
				p.stderr.plain(formatUpgradeError(p.stderr, err))

				return err
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "check for a newer release without installing it")
	cmd.Flags().BoolVar(&noPrivileged, "no-privileged", false, "never retry through the privileged helper")

	return cmd
}

func runUpgrade(ctx context.Context, p upgradeParams) error {
	current := p.current
	if p.options.CurrentVersion != "" {
		current = release.StripVersionPrefix(p.options.CurrentVersion)
	}

	p.stdout.plain("Current version: v" + current)
	p.stdout.line(mutedStyle, "Checking for updates...")

	result, err := p.run(ctx, p.options)
	if err != nil {
		return err
	}

	switch result.Status {
	case upgrader.StatusUpToDate:
		p.stdout.line(successStyle, "Already up to date.")
	case upgrader.StatusAvailable:
		p.stdout.plain("New version available: " + result.Latest.Tag)
		p.stdout.plain("Run " + p.stdout.render(commandStyle, "polymarket upgrade") + " to install it.")
	case upgrader.StatusUpdated:
		p.stdout.plain("New version available: " + result.Latest.Tag)
		p.stdout.plain("Downloaded " + result.Archive)
		p.stdout.plain("Checksum verified.")
		p.stdout.line(successStyle, fmt.Sprintf("Updated to %s (%s)", result.Latest.Tag, result.ExecutablePath))
	}

	return nil
}

// formatUpgradeError adds remediation guidance for the failures a user can act on.
func formatUpgradeError(p *printer, err error) string {
	var rollbackErr *upgrader.RollbackError

	switch {
	case errors.As(err, &rollbackErr):
		return p.render(errorStyle, "Upgrade failed and the previous binary could not be restored.") + "\n" + err.Error()
	case errors.Is(err, upgrader.ErrIntegrity):
		return p.render(errorStyle, "Integrity check failed.") + "\n" + err.Error()
	case errors.Is(err, upgrader.ErrPermissionDenied):
		return p.render(errorStyle, "Error: ") + err.Error() + "\n\n" +
			p.render(warningStyle, "Re-run with elevated privileges, e.g. ") +
			p.render(commandStyle, "sudo polymarket upgrade")
	case errors.Is(err, upgrader.ErrUpgradeInProgress):
		return p.render(errorStyle, "Error: ") + err.Error() + "\n\nWait for the other upgrade to finish and retry."
	case errors.Is(err, release.ErrUnsupportedPlatform):
		return p.render(errorStyle, "Error: ") + err.Error() + "\n\nDownload a build manually from " +
			p.render(commandStyle, "https://github.com/polymarket/polymarket-cli/releases")
	case errors.Is(err, registry.ErrNetwork):
		return p.render(errorStyle, "Error: ") + err.Error() + "\n\n" +
			"Check your network connection. Set " + registryTokenHint(p) + " to raise the API rate limit."
	default:
		return p.render(errorStyle, "Error: ") + err.Error()
	}
}

func registryTokenHint(p *printer) string {
	return p.render(commandStyle, upgrader.TokenEnv)
}
