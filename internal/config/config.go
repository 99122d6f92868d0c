package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/polymarket/polymarket-cli/internal/logger"
)

// Config holds the settings of the upgrade command.
type Config struct {
	// Registry describes where releases are published.
	Registry Registry `yaml:"registry"`
	// Timeout bounds a whole upgrade run, downloads included.
	Timeout time.Duration `yaml:"timeout"`
	// ScratchDir is the parent of the per-run scratch directory; empty means os.TempDir().
	ScratchDir string `yaml:"scratch_dir,omitempty"`
	// PrivilegedHelper is the command prefix used when a rename is denied, e.g. ["sudo"].
	// An empty list disables the elevated retry.
	PrivilegedHelper []string `yaml:"privileged_helper"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Registry locates the release registry and the published artifacts.
type Registry struct {
	// APIBaseURL serves release metadata (…/repos/<owner>/<repo>/releases/latest).
	APIBaseURL string `yaml:"api_base_url"`
	// DownloadBaseURL serves release assets (…/<owner>/<repo>/releases/download/<tag>/…).
	DownloadBaseURL string `yaml:"download_base_url"`
	// Owner is the repository owner.
	Owner string `yaml:"owner"`
	// Repo is the repository name.
	Repo string `yaml:"repo"`
	// Binary is the executable name inside release archives and the archive name prefix.
	Binary string `yaml:"binary"`
}

const (
	// DefaultConfigFilename is looked up in the working directory when no path is given.
	DefaultConfigFilename = "polymarket-upgrade.yaml"

	// DefaultAPIBaseURL is the GitHub REST API.
	DefaultAPIBaseURL = "https://api.github.com"
	// DefaultDownloadBaseURL is where GitHub serves release assets.
	DefaultDownloadBaseURL = "https://github.com"
	// DefaultOwner owns the published repository.
	DefaultOwner = "polymarket"
	// DefaultRepo is the published repository.
	DefaultRepo = "polymarket-cli"
	// DefaultBinary is the executable name.
	DefaultBinary = "polymarket"

	// DefaultTimeout bounds an upgrade run.
	DefaultTimeout = 10 * time.Minute

	// DefaultFilePermissions is used when saving settings.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidName is returned when a registry name cannot be used in a URL path segment.
	errInvalidName = errors.New("must be a single path segment")
	// errInvalidLogLevel is returned for unknown log level names.
	errInvalidLogLevel = errors.New("invalid log level")
)

// DefaultPrivilegedHelper returns the elevated-privilege command prefix used by default.
func DefaultPrivilegedHelper() []string {
	return []string{"sudo"}
}

// Default returns a configuration populated with defaults.
func Default() *Config {
	cfg := new(Config)
	cfg.PrivilegedHelper = DefaultPrivilegedHelper()

	// Defaults never fail validation.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from path and validates it.
// When path is empty the default file is used, and a missing default file
// yields Default() rather than an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := &Config{PrivilegedHelper: DefaultPrivilegedHelper()}
	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults in and checks the formatting of the provided settings.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	reg := &cfg.Registry

	reg.APIBaseURL = defaultString(reg.APIBaseURL, DefaultAPIBaseURL)
	reg.DownloadBaseURL = defaultString(reg.DownloadBaseURL, DefaultDownloadBaseURL)
	reg.Owner = defaultString(reg.Owner, DefaultOwner)
	reg.Repo = defaultString(reg.Repo, DefaultRepo)
	reg.Binary = defaultString(reg.Binary, DefaultBinary)

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	for name, raw := range map[string]string{
		"api_base_url":      reg.APIBaseURL,
		"download_base_url": reg.DownloadBaseURL,
	} {
		u, err := url.ParseRequestURI(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}

		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid %s: unsupported scheme %q", name, u.Scheme)
		}
	}

	for name, value := range map[string]string{
		"owner":  reg.Owner,
		"repo":   reg.Repo,
		"binary": reg.Binary,
	} {
		if strings.ContainsAny(value, `/\ `) {
			return fmt.Errorf("registry %s %q: %w", name, value, errInvalidName)
		}
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errInvalidLogLevel, cfg.LogLevel)
	}

	return nil
}

func defaultString(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}

	return value
}
