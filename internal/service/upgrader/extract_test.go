package upgrader

import (
	"archive/tar"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtract_Formats(t *testing.T) {
	t.Parallel()

	entries := []tarEntry{
		{name: "README.md", body: "docs"},
		{name: "polymarket", body: "#!/bin/sh\necho new\n"},
	}

	cases := map[string][]byte{
		"gzip": tarGz(t, entries...),
		"xz":   tarXz(t, entries...),
	}

	for name, archive := range cases {
		archive := archive
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			path := writeFile(t, filepath.Join(dir, "release.tar"), archive, 0o644)

			binary, err := NewTarExtractor("polymarket").Extract(path, dir)
			require.NoError(t, err)
			require.Equal(t, filepath.Join(dir, "polymarket"), binary)
			require.Equal(t, "#!/bin/sh\necho new\n", readFile(t, binary))

			if runtime.GOOS != "windows" {
				info, err := os.Stat(binary)
				require.NoError(t, err)
				require.Equal(t, ExecutableMode, info.Mode().Perm())
			}
		})
	}
}

func TestExtract_NestedEntry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archive := tarGz(t,
		tarEntry{name: "polymarket-v1.1.0/", typeflag: tar.TypeDir},
		tarEntry{name: "polymarket-v1.1.0/polymarket", typeflag: tar.TypeSymlink, body: "elsewhere"},
		tarEntry{name: "polymarket-v1.1.0/polymarket-helper", body: "helper"},
		tarEntry{name: "polymarket-v1.1.0/bin/polymarket", body: "nested"},
		tarEntry{name: "polymarket", body: "second match"},
	)
	path := writeFile(t, filepath.Join(dir, "release.tar.gz"), archive, 0o644)

	binary, err := NewTarExtractor("polymarket").Extract(path, dir)
	require.NoError(t, err)
	require.Equal(t, "nested", readFile(t, binary))
}

func TestExtract_Failures(t *testing.T) {
	t.Parallel()

	cases := map[string][]byte{
		"not an archive":  []byte("plain text that is not compressed"),
		"empty":           nil,
		"missing binary":  tarGz(t, tarEntry{name: "README.md", body: "docs"}),
		"truncated gzip":  tarGz(t, tarEntry{name: "polymarket", body: strings.Repeat("x", 4096)})[:20],
		"corrupt payload": append([]byte{0x1f, 0x8b}, []byte("definitely not deflate")...),
	}

	for name, archive := range cases {
		archive := archive
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			path := writeFile(t, filepath.Join(dir, "release.tar.gz"), archive, 0o644)

			_, err := NewTarExtractor("polymarket").Extract(path, dir)
			require.ErrorIs(t, err, ErrExtraction)
			requireMissing(t, filepath.Join(dir, "polymarket"))
		})
	}
}

func TestExtract_SizeLimit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "release.tar.gz"),
		tarGz(t, tarEntry{name: "polymarket", body: strings.Repeat("x", 64)}), 0o644)

	extractor := NewTarExtractor("polymarket")
	extractor.maxSize = 16

	_, err := extractor.Extract(path, dir)
	require.ErrorIs(t, err, ErrExtraction)
	require.ErrorIs(t, err, errBinaryTooLarge)
	requireMissing(t, filepath.Join(dir, "polymarket"))
}
