package upgrader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/polymarket/polymarket-cli/internal/domain/release"
)

// Verifier checks a downloaded archive against the release checksum manifest.
type Verifier struct {
	newHash func() hash.Hash
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithHashFunc replaces the SHA-256 constructor.
func WithHashFunc(newHash func() hash.Hash) VerifierOption {
	return func(v *Verifier) {
		v.newHash = newHash
	}
}

// NewVerifier creates a SHA-256 Verifier.
func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{newHash: sha256.New}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Verify looks expectedFilename up in manifestText and compares the recorded
// digest with the digest of the file at archivePath, ignoring case.
// Any failure wraps ErrIntegrity; callers must not go on to extraction.
func (v *Verifier) Verify(archivePath, manifestText, expectedFilename string) error {
	expected, ok := release.ParseManifest(manifestText).Lookup(expectedFilename)
	if !ok {
		return &MissingManifestEntryError{Filename: expectedFilename}
	}

	actual, err := v.digest(archivePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIntegrity, err)
	}

	if !strings.EqualFold(actual, expected) {
		return &ChecksumMismatchError{
			Filename: expectedFilename,
			Expected: strings.ToLower(expected),
			Actual:   actual,
		}
	}

	return nil
}

// digest streams the file through the hash and returns lowercase hex.
func (v *Verifier) digest(path string) (string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := v.newHash()
	if _, err = io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hash archive: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
