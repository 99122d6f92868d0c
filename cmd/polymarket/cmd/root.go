package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/polymarket/polymarket-cli/internal/config"
	"github.com/polymarket/polymarket-cli/internal/logger"
	"github.com/polymarket/polymarket-cli/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides log_level from the configuration file.
	logLevel string

	// rootCmd is the polymarket command line.
	rootCmd = &cobra.Command{
		Use:   "polymarket",
		Short: "Polymarket command line interface",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if logLevel == "" {
				return nil
			}

			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
	}
)

// Execute runs the polymarket CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(newUpgradeCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		fmt.Sprintf("path to configuration file (default %q if present)", config.DefaultConfigFilename))
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
}
