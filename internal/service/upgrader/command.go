package upgrader

import (
	"context"
	"os"

	"github.com/polymarket/polymarket-cli/internal/config"
	"github.com/polymarket/polymarket-cli/internal/domain/release"
	"github.com/polymarket/polymarket-cli/internal/logger"
	"github.com/polymarket/polymarket-cli/internal/repository/registry"
	"github.com/polymarket/polymarket-cli/internal/version"
)

// TokenEnv names the environment variable holding an optional API token.
const TokenEnv = "GITHUB_TOKEN"

// Options are inputs accepted by the upgrade entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// LogLevel overrides log_level from the configuration file.
	LogLevel string
	// CheckOnly reports availability without installing.
	CheckOnly bool
	// NoPrivileged disables the elevated retry.
	NoPrivileged bool
	// ExecutablePath overrides the binary to replace.
	ExecutablePath string
	// CurrentVersion overrides the build version.
	CurrentVersion string
	// Platform overrides runtime platform detection.
	Platform release.Source
}

// Run loads configuration and performs one upgrade under the configured deadline.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "polymarket-upgrade")

	if opts == nil {
		opts = &Options{}
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}

	if parsed, ok := logger.ParseLogLevel(level); ok {
		logger.SetLevel(parsed)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client := registry.NewClient(cfg.Registry,
		registry.WithToken(os.Getenv(TokenEnv)),
		registry.WithUserAgent("polymarket-cli/"+version.Short()),
		registry.WithScratchParent(cfg.ScratchDir),
	)

	var installerOpts []InstallerOption
	if !opts.NoPrivileged && len(cfg.PrivilegedHelper) > 0 {
		installerOpts = append(installerOpts, WithPrivilegedMover(NewCommandMover(cfg.PrivilegedHelper)))
	}

	upgraderOpts := []Option{
		WithExtractor(NewTarExtractor(cfg.Registry.Binary)),
		WithInstaller(NewInstaller(installerOpts...)),
		WithCheckOnly(opts.CheckOnly),
		WithExecutablePath(opts.ExecutablePath),
	}

	if opts.CurrentVersion != "" {
		upgraderOpts = append(upgraderOpts, WithCurrentVersion(opts.CurrentVersion))
	}

	if opts.Platform != nil {
		upgraderOpts = append(upgraderOpts, WithPlatform(opts.Platform))
	}

	result, err := New(client, upgraderOpts...).Run(ctx)
	if err != nil {
		logger.DebugKV(ctx, "Upgrade failed", "error", err)

		return nil, err
	}

	return result, nil
}
