package upgrader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/polymarket/polymarket-cli/internal/config"
	"github.com/polymarket/polymarket-cli/internal/domain/release"
	"github.com/polymarket/polymarket-cli/internal/logger"
	"github.com/polymarket/polymarket-cli/internal/version"
)

var errNoRegistry = errors.New("no release registry configured")

// VersionChecker reports the latest published release.
type VersionChecker interface {
	Latest(ctx context.Context) (*release.Info, error)
}

// ArtifactFetcher downloads a release archive and its checksum manifest.
type ArtifactFetcher interface {
	Fetch(ctx context.Context, tag string, target release.Target) (*release.DownloadedArtifact, error)
}

// Registry is a release source able to both check and fetch.
type Registry interface {
	VersionChecker
	ArtifactFetcher
}

// Extractor pulls the executable out of a verified archive.
type Extractor interface {
	Extract(archivePath, destDir string) (string, error)
}

// Status is the outcome of a successful run.
type Status int

const (
	// StatusUpToDate means the running version is the latest release.
	StatusUpToDate Status = iota
	// StatusAvailable means a newer release exists and check-only mode was requested.
	StatusAvailable
	// StatusUpdated means the live binary was replaced.
	StatusUpdated
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusUpToDate:
		return "up-to-date"
	case StatusAvailable:
		return "available"
	case StatusUpdated:
		return "updated"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result describes what a run did.
type Result struct {
	Status         Status
	CurrentVersion string
	Latest         release.Info
	Target         release.Target
	// Archive and ExecutablePath are set when the binary was replaced.
	Archive        string
	ExecutablePath string
}

// Upgrader runs the check, fetch, verify, extract and install sequence.
type Upgrader struct {
	registry       Registry
	currentVersion string
	platform       release.Source
	verifier       *Verifier
	extractor      Extractor
	installer      *Installer
	executablePath string
	checkOnly      bool

	osExecutable func() (string, error)
	evalSymlinks func(string) (string, error)
}

// Option configures an Upgrader.
type Option func(*Upgrader)

// WithCurrentVersion overrides the running version, e.g. "1.0.0" or "v1.0.0".
func WithCurrentVersion(v string) Option {
	return func(u *Upgrader) {
		u.currentVersion = release.StripVersionPrefix(v)
	}
}

// WithPlatform overrides runtime platform detection.
func WithPlatform(source release.Source) Option {
	return func(u *Upgrader) {
		u.platform = source
	}
}

// WithVerifier replaces the SHA-256 verifier.
func WithVerifier(v *Verifier) Option {
	return func(u *Upgrader) {
		u.verifier = v
	}
}

// WithExtractor replaces the tarball extractor.
func WithExtractor(e Extractor) Option {
	return func(u *Upgrader) {
		u.extractor = e
	}
}

// WithInstaller replaces the default installer.
func WithInstaller(i *Installer) Option {
	return func(u *Upgrader) {
		u.installer = i
	}
}

// WithExecutablePath sets the binary to replace instead of the running one.
func WithExecutablePath(path string) Option {
	return func(u *Upgrader) {
		u.executablePath = path
	}
}

// WithCheckOnly stops after the version check.
func WithCheckOnly(checkOnly bool) Option {
	return func(u *Upgrader) {
		u.checkOnly = checkOnly
	}
}

// New creates an Upgrader backed by registry.
func New(registry Registry, opts ...Option) *Upgrader {
	u := &Upgrader{
		registry:       registry,
		currentVersion: version.Short(),
		platform:       release.RuntimeSource{},
		verifier:       NewVerifier(),
		extractor:      NewTarExtractor(config.DefaultBinary),
		installer:      NewInstaller(),
		osExecutable:   os.Executable,
		evalSymlinks:   filepath.EvalSymlinks,
	}

	for _, opt := range opts {
		opt(u)
	}

	return u
}

// Run performs one upgrade attempt. Nothing is downloaded when the latest
// release is the running version, and the live binary is only touched after
// the archive passed verification.
func (u *Upgrader) Run(ctx context.Context) (*Result, error) {
	if u.registry == nil {
		return nil, errNoRegistry
	}

	target, err := release.Resolve(u.platform.Platform())
	if err != nil {
		return nil, err
	}

	ctx = logger.WithKV(ctx, "target", target.Triple)

	logger.InfoKV(ctx, "Checking for updates", "current", "v"+u.currentVersion)

	latest, err := u.registry.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("check latest release: %w", err)
	}

	result := &Result{
		CurrentVersion: u.currentVersion,
		Latest:         *latest,
		Target:         target,
	}

	if latest.IsCurrent(u.currentVersion) {
		logger.InfoKV(ctx, "Already up to date", "version", latest.Tag)
		result.Status = StatusUpToDate

		return result, nil
	}

	if latest.Compare(u.currentVersion) < 0 {
		logger.WarnKV(ctx, "Latest release is older than the running version",
			"current", "v"+u.currentVersion, "latest", latest.Tag)
	}

	logger.InfoKV(ctx, "New version available", "latest", latest.Tag)

	if u.checkOnly {
		result.Status = StatusAvailable

		return result, nil
	}

	livePath, err := u.livePath()
	if err != nil {
		return nil, err
	}

	archive, err := u.apply(ctx, latest, target, livePath)
	if err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Updated", "version", latest.Tag, "path", livePath)

	result.Status = StatusUpdated
	result.Archive = archive
	result.ExecutablePath = livePath

	return result, nil
}

func (u *Upgrader) apply(ctx context.Context, latest *release.Info, target release.Target, livePath string) (string, error) {
	artifact, err := u.registry.Fetch(ctx, latest.Tag, target)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", latest.Tag, err)
	}

	defer artifact.Cleanup()

	logger.InfoKV(ctx, "Downloaded release", "archive", artifact.ArchiveName)

	manifest, err := os.ReadFile(filepath.Clean(artifact.ManifestPath))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", release.ChecksumsFilename, err)
	}

	if err = u.verifier.Verify(artifact.ArchivePath, string(manifest), artifact.ArchiveName); err != nil {
		return "", err
	}

	logger.Info(ctx, "Checksum verified")

	binary, err := u.extractor.Extract(artifact.ArchivePath, artifact.ScratchDir)
	if err != nil {
		return "", err
	}

	lock, err := AcquireLock(ctx, livePath)
	if err != nil {
		return "", err
	}

	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Could not release install lock", "error", releaseErr)
		}
	}()

	if err = u.installer.Install(ctx, binary, livePath); err != nil {
		return "", err
	}

	return artifact.ArchiveName, nil
}

// livePath resolves the binary to replace, following symlinks so the link
// itself is left alone.
func (u *Upgrader) livePath() (string, error) {
	path := u.executablePath
	if path == "" {
		exe, err := u.osExecutable()
		if err != nil {
			return "", fmt.Errorf("locate running executable: %w", err)
		}

		path = exe
	}

	resolved, err := u.evalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("resolve executable path %s: %w", path, err)
	}

	return resolved, nil
}
