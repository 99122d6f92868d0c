package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/polymarket/polymarket-cli/internal/config"
	"github.com/polymarket/polymarket-cli/internal/domain/release"
	"github.com/polymarket/polymarket-cli/internal/logger"
)

const (
	// maxJSONResponseBytes caps the release metadata response.
	maxJSONResponseBytes = 10 << 20

	// scratchPattern names per-run scratch directories.
	scratchPattern = "polymarket-upgrade-*"

	// defaultUserAgent identifies the updater to the registry.
	defaultUserAgent = "polymarket-cli-updater"
)

var (
	// ErrNetwork means a request did not complete or returned a non-success status.
	ErrNetwork = errors.New("network request failed")
	// ErrParse means the registry answered with something that is not a release.
	ErrParse = errors.New("malformed registry response")

	// errInvalidTag rejects tags that would escape a URL segment or the scratch directory.
	errInvalidTag = errors.New("invalid release tag")
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client reads release metadata and assets from a GitHub-style registry.
type Client struct {
	doer       Doer
	registry   config.Registry
	userAgent  string
	token      string
	scratchDir string
}

// Option configures a Client.
type Option func(*Client)

// WithDoer replaces the HTTP transport.
func WithDoer(doer Doer) Option {
	return func(c *Client) {
		c.doer = doer
	}
}

// WithToken attaches a bearer token to metadata requests sent to the API host.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithScratchParent sets where scratch directories are created; empty means os.TempDir().
func WithScratchParent(dir string) Option {
	return func(c *Client) {
		c.scratchDir = dir
	}
}

// NewClient creates a Client for the given registry settings.
func NewClient(registry config.Registry, opts ...Option) *Client {
	c := &Client{
		doer:      http.DefaultClient,
		registry:  registry,
		userAgent: defaultUserAgent,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// latestRelease is the part of the registry's release document we read.
type latestRelease struct {
	TagName *string `json:"tag_name"`
}

// Latest returns the newest published release.
func (c *Client) Latest(ctx context.Context) (*release.Info, error) {
	endpoint, err := joinURL(c.registry.APIBaseURL, "repos", c.registry.Owner, c.registry.Repo, "releases", "latest")
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Requesting latest release", "url", endpoint)

	response, err := c.get(ctx, endpoint, "application/vnd.github+json", true)
	if err != nil {
		return nil, fmt.Errorf("latest release: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	var payload latestRelease
	if err = json.NewDecoder(io.LimitReader(response.Body, maxJSONResponseBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode latest release: %v", ErrParse, err)
	}

	if payload.TagName == nil || strings.TrimSpace(*payload.TagName) == "" {
		return nil, fmt.Errorf("%w: no tag_name in release response", ErrParse)
	}

	if !validTag(strings.TrimSpace(*payload.TagName)) {
		return nil, fmt.Errorf("%w: unusable tag_name %q", ErrParse, *payload.TagName)
	}

	info := release.NewInfo(*payload.TagName)

	return &info, nil
}

// Fetch downloads the archive for target and the release checksums.txt into
// a new scratch directory. On success the caller owns the directory and must
// call Cleanup; on failure it has already been removed.
func (c *Client) Fetch(ctx context.Context, tag string, target release.Target) (*release.DownloadedArtifact, error) {
	if !validTag(tag) {
		return nil, fmt.Errorf("%w: %q", errInvalidTag, tag)
	}

	archiveName := release.ArchiveName(c.registry.Binary, tag, target)

	archiveURL, err := c.assetURL(tag, archiveName)
	if err != nil {
		return nil, err
	}

	manifestURL, err := c.assetURL(tag, release.ChecksumsFilename)
	if err != nil {
		return nil, err
	}

	scratchDir, err := os.MkdirTemp(c.scratchDir, scratchPattern)
	if err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}

	artifact := &release.DownloadedArtifact{
		ArchiveName:  archiveName,
		ArchivePath:  filepath.Join(scratchDir, archiveName),
		ManifestPath: filepath.Join(scratchDir, release.ChecksumsFilename),
		ScratchDir:   scratchDir,
	}

	logger.InfoKV(ctx, "Downloading release archive", "url", archiveURL)

	if err = c.download(ctx, archiveURL, artifact.ArchivePath); err != nil {
		artifact.Cleanup()
		return nil, fmt.Errorf("download %s: %w", archiveName, err)
	}

	logger.InfoKV(ctx, "Downloading checksum manifest", "url", manifestURL)

	if err = c.download(ctx, manifestURL, artifact.ManifestPath); err != nil {
		artifact.Cleanup()
		return nil, fmt.Errorf("download %s (cannot verify integrity without it): %w", release.ChecksumsFilename, err)
	}

	return artifact, nil
}

// assetURL builds <download_base>/<owner>/<repo>/releases/download/<tag>/<name>.
func (c *Client) assetURL(tag, name string) (string, error) {
	return joinURL(c.registry.DownloadBaseURL, c.registry.Owner, c.registry.Repo, "releases", "download", tag, name)
}

// download streams the body at rawURL into destination.
func (c *Client) download(ctx context.Context, rawURL, destination string) (err error) {
	response, err := c.get(ctx, rawURL, "application/octet-stream", false)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	file, err := os.OpenFile(filepath.Clean(destination), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", destination, err)
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", destination, closeErr)
		}
	}()

	written, err := io.Copy(file, response.Body)
	if err != nil {
		return fmt.Errorf("%w: read body of %s: %v", ErrNetwork, redactURL(rawURL), err)
	}

	logger.DebugKV(ctx, "Downloaded file", "path", destination, "bytes", written)

	return nil
}

// get performs a GET and returns the response only for status 200.
func (c *Client) get(ctx context.Context, rawURL, accept string, api bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)

	if api {
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
	}

	response, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	if response.StatusCode == http.StatusOK {
		return response, nil
	}

	_ = response.Body.Close()

	if rateErr := rateLimitError(response); rateErr != nil {
		return nil, rateErr
	}

	return nil, fmt.Errorf("%w: %s: %s", ErrNetwork, redactURL(rawURL), response.Status)
}

// rateLimitError explains an exhausted API quota, or returns nil.
func rateLimitError(response *http.Response) error {
	if response.StatusCode != http.StatusForbidden && response.StatusCode != http.StatusTooManyRequests {
		return nil
	}

	if response.Header.Get("X-RateLimit-Remaining") != "0" {
		return nil
	}

	reset, err := strconv.ParseInt(response.Header.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: registry rate limit exceeded", ErrNetwork)
	}

	return fmt.Errorf("%w: registry rate limit exceeded, resets at %s",
		ErrNetwork, time.Unix(reset, 0).UTC().Format(time.RFC3339))
}

// joinURL appends path-escaped segments to base.
func joinURL(base string, segments ...string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse registry url %q: %w", base, err)
	}

	escaped := make([]string, 0, len(segments))
	for _, segment := range segments {
		escaped = append(escaped, url.PathEscape(segment))
	}

	return u.JoinPath(escaped...).String(), nil
}

// validTag reports whether tag can be used as a URL path segment and inside a filename.
func validTag(tag string) bool {
	if tag == "" || tag == "." || tag == ".." {
		return false
	}

	return !strings.ContainsAny(tag, "/\\ \t\r\n")
}

// redactURL drops query and fragment from URLs that end up in error messages.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}

	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}
