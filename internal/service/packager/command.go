package packager

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/polymarket/polymarket-cli/internal/config"
	"github.com/polymarket/polymarket-cli/internal/domain/release"
	"github.com/polymarket/polymarket-cli/internal/logger"
)

const (
	archiveFileMode  = 0o644
	outputFolderMode = 0o755
	executableMode   = 0o755
)

var (
	errNoBuilds     = errors.New("no builds given")
	errInvalidBuild = errors.New("build must look like <triple>=<path>")
	errInvalidTag   = errors.New("invalid release tag")
	errNotRegular   = errors.New("build is not a regular file")
)

// Options contains inputs for the packager entry point.
type Options struct {
	// Tag is the release tag, e.g. "v1.1.0".
	Tag string
	// Binary is the executable name inside archives (defaults to polymarket).
	Binary string
	// OutputDir receives the archives and checksums.txt.
	OutputDir string
	// Builds are "<triple>=<path to compiled binary>" pairs.
	Builds []string
}

// Asset is one packaged archive.
type Asset struct {
	Name   string
	Path   string
	SHA256 string
}

// build is a parsed Options.Builds entry.
type build struct {
	target release.Target
	path   string
}

// packager writes archives for a single tag.
// It is unexported; callers should use Run.
type packager struct {
	tag       string
	binary    string
	outputDir string
	builds    []build
	modTime   time.Time
}

// Run packages every build and merges their digests into checksums.txt.
func Run(ctx context.Context, opts *Options) ([]Asset, error) {
	ctx = logger.WithName(ctx, "polymarket-packager")

	pkg, err := newPackager(opts)
	if err != nil {
		return nil, fmt.Errorf("initialize packager: %w", err)
	}

	assets, err := pkg.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("packager failed: %w", err)
	}

	logger.Info(ctx, "Packager completed successfully")

	return assets, nil
}

func newPackager(opts *Options) (*packager, error) {
	if opts == nil || len(opts.Builds) == 0 {
		return nil, errNoBuilds
	}

	tag := strings.TrimSpace(opts.Tag)
	if tag == "" || strings.ContainsAny(tag, `/\ `) || tag == "." || tag == ".." {
		return nil, fmt.Errorf("%w: %q", errInvalidTag, opts.Tag)
	}

	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		binary = config.DefaultBinary
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = "."
	}

	pkg := &packager{
		tag:       tag,
		binary:    binary,
		outputDir: outputDir,
		modTime:   time.Now().UTC().Truncate(time.Second),
	}

	for _, raw := range opts.Builds {
		triple, path, ok := strings.Cut(raw, "=")
		if !ok || triple == "" || path == "" {
			return nil, fmt.Errorf("%w: %q", errInvalidBuild, raw)
		}

		target, err := release.ParseTriple(triple)
		if err != nil {
			return nil, err
		}

		pkg.builds = append(pkg.builds, build{target: target, path: path})
	}

	return pkg, nil
}

// Run writes the archives, then the merged manifest.
func (p *packager) Run(ctx context.Context) ([]Asset, error) {
	if err := os.MkdirAll(p.outputDir, outputFolderMode); err != nil {
		return nil, fmt.Errorf("create output folder: %w", err)
	}

	manifestPath := filepath.Join(p.outputDir, release.ChecksumsFilename)

	manifest, err := readManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	assets := make([]Asset, 0, len(p.builds))

	for _, b := range p.builds {
		asset, err := p.pack(ctx, b)
		if err != nil {
			return nil, err
		}

		manifest = manifest.Set(asset.SHA256, asset.Name)
		assets = append(assets, asset)
	}

	logger.InfoKV(ctx, "Saving checksum manifest", "path", manifestPath)

	if err = os.WriteFile(manifestPath, []byte(manifest.String()), archiveFileMode); err != nil {
		return nil, fmt.Errorf("write %s: %w", release.ChecksumsFilename, err)
	}

	p.printNextSteps(ctx, assets)

	return assets, nil
}

// pack writes <binary>-<tag>-<triple>/<binary> into a gzip tarball.
func (p *packager) pack(ctx context.Context, b build) (Asset, error) {
	info, err := os.Stat(b.path)
	if err != nil {
		return Asset{}, fmt.Errorf("stat %s: %w", b.path, err)
	}

	if !info.Mode().IsRegular() {
		return Asset{}, fmt.Errorf("%s: %w", b.path, errNotRegular)
	}

	name := release.ArchiveName(p.binary, p.tag, b.target)
	path := filepath.Join(p.outputDir, name)

	logger.InfoKV(ctx, "Packaging build", "target", b.target.Triple, "archive", name)

	out, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, archiveFileMode)
	if err != nil {
		return Asset{}, fmt.Errorf("create %s: %w", name, err)
	}

	hasher := sha256.New()

	if err = p.writeArchive(io.MultiWriter(out, hasher), b, info.Size()); err != nil {
		_ = out.Close()
		_ = os.Remove(path)

		return Asset{}, fmt.Errorf("write %s: %w", name, err)
	}

	if err = out.Close(); err != nil {
		return Asset{}, fmt.Errorf("close %s: %w", name, err)
	}

	return Asset{
		Name:   name,
		Path:   path,
		SHA256: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

func (p *packager) writeArchive(w io.Writer, b build, size int64) error {
	src, err := os.Open(filepath.Clean(b.path))
	if err != nil {
		return err
	}

	defer func() {
		_ = src.Close()
	}()

	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	header := &tar.Header{
		Name:     strings.TrimSuffix(release.ArchiveName(p.binary, p.tag, b.target), ".tar.gz") + "/" + p.binary,
		Mode:     executableMode,
		Size:     size,
		ModTime:  p.modTime,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatPAX,
	}

	if err = tw.WriteHeader(header); err != nil {
		return err
	}

	if _, err = io.CopyN(tw, src, size); err != nil {
		return err
	}

	if err = tw.Close(); err != nil {
		return err
	}

	return gz.Close()
}

func readManifest(path string) (release.Manifest, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read %s: %w", release.ChecksumsFilename, err)
	}

	return release.ParseManifest(string(contents)), nil
}

// printNextSteps logs which files belong on the release page.
func (p *packager) printNextSteps(ctx context.Context, assets []Asset) {
	files := make([]string, 0, len(assets)+1)
	for _, asset := range assets {
		files = append(files, asset.Name)
	}

	files = append(files, release.ChecksumsFilename)
	sort.Strings(files)

	var builder strings.Builder

	builder.WriteString("Upload the following files from ")
	builder.WriteString(p.outputDir)
	builder.WriteString(" to the ")
	builder.WriteString(p.tag)
	builder.WriteString(" release:\n")
	builder.WriteString(strings.Join(files, ",\n"))

	logger.Info(ctx, builder.String())
}
