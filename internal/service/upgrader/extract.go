package upgrader

import (
	"archive/tar"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

const (
	// MaxBinarySize caps the extracted executable.
	MaxBinarySize int64 = 512 << 20
	// ExecutableMode is applied to the extracted and installed binary.
	ExecutableMode os.FileMode = 0o755
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}

	errUnknownFormat  = errors.New("unrecognized archive format")
	errBinaryNotFound = errors.New("executable not found in archive")
	errBinaryTooLarge = errors.New("executable exceeds size limit")
)

// TarExtractor pulls a single named executable out of a compressed tarball.
type TarExtractor struct {
	binary  string
	maxSize int64
}

// NewTarExtractor creates an extractor looking for binary.
func NewTarExtractor(binary string) *TarExtractor {
	return &TarExtractor{
		binary:  binary,
		maxSize: MaxBinarySize,
	}
}

// Extract writes the first regular entry named after the binary, at any
// depth, to destDir/<binary> and returns that path.
func (e *TarExtractor) Extract(archivePath, destDir string) (string, error) {
	file, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	defer func() {
		_ = file.Close()
	}()

	stream, err := decompress(bufio.NewReader(file))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	defer func() {
		_ = stream.Close()
	}()

	reader := tar.NewReader(stream)

	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%w: %s: %w", ErrExtraction, e.binary, errBinaryNotFound)
		}

		if err != nil {
			return "", fmt.Errorf("%w: read tar: %v", ErrExtraction, err)
		}

		if header.Typeflag != tar.TypeReg || path.Base(header.Name) != e.binary {
			continue
		}

		destination := filepath.Join(destDir, e.binary)
		if err = e.write(reader, destination); err != nil {
			_ = os.Remove(destination)

			return "", fmt.Errorf("%w: %w", ErrExtraction, err)
		}

		return destination, nil
	}
}

func (e *TarExtractor) write(src io.Reader, destination string) error {
	out, err := os.OpenFile(destination, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, ExecutableMode)
	if err != nil {
		return fmt.Errorf("create %s: %w", destination, err)
	}

	written, err := io.Copy(out, io.LimitReader(src, e.maxSize+1))
	if err != nil {
		_ = out.Close()

		return fmt.Errorf("write %s: %w", destination, err)
	}

	if written > e.maxSize {
		_ = out.Close()

		return fmt.Errorf("%w (%d bytes)", errBinaryTooLarge, e.maxSize)
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", destination, err)
	}

	// The umask may have stripped bits from the create mode.
	return os.Chmod(destination, ExecutableMode)
}

// decompress picks a decoder from the stream's magic bytes.
func decompress(r *bufio.Reader) (io.ReadCloser, error) {
	head, _ := r.Peek(len(xzMagic))

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return gzip.NewReader(r)
	case bytes.HasPrefix(head, xzMagic):
		stream, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}

		return io.NopCloser(stream), nil
	default:
		return nil, errUnknownFormat
	}
}
