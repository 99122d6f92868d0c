package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/polymarket/polymarket-cli/internal/config"
	"github.com/polymarket/polymarket-cli/internal/service/packager"
	"github.com/polymarket/polymarket-cli/internal/version"
)

var (
	// binary is the executable name stored in the archives.
	binary string
	// outputDir receives the archives and checksums.txt.
	outputDir string

	// rootCmd represents the base command for preparing release assets.
	rootCmd = &cobra.Command{
		Use:   "polymarket-packager <tag> <triple>=<binary>...",
		Short: "Prepare release archives and checksums.txt for distribution",
		Example: `  polymarket-packager v1.1.0 \
    x86_64-unknown-linux-gnu=target/x86_64-unknown-linux-gnu/polymarket \
    aarch64-apple-darwin=target/aarch64-apple-darwin/polymarket`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &packager.Options{
				Tag:       args[0],
				Binary:    binary,
				OutputDir: outputDir,
				Builds:    args[1:],
			}

			_, err := packager.Run(ctx, options)

			return err
		},
	}
)

// Execute runs the polymarket-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&binary, "binary", "b", config.DefaultBinary, "executable name inside the archives")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "dist", "folder receiving the archives and checksums.txt")
}
