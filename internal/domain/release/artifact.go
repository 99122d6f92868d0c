package release

import (
	"fmt"
	"os"
)

// ArchiveName returns the archive asset name for a binary, tag and target,
// e.g. "polymarket-v1.1.0-x86_64-unknown-linux-gnu.tar.gz".
func ArchiveName(binary, tag string, target Target) string {
	return fmt.Sprintf("%s-%s-%s.tar.gz", binary, tag, target.Triple)
}

// DownloadedArtifact holds the files fetched for one upgrade run.
// Everything lives under ScratchDir, which the run owns exclusively.
type DownloadedArtifact struct {
	// ArchiveName is the asset name the manifest is expected to list.
	ArchiveName string
	// ArchivePath is the downloaded release archive.
	ArchivePath string
	// ManifestPath is the downloaded checksums.txt.
	ManifestPath string
	// ScratchDir is the per-run temporary directory.
	ScratchDir string
}

// Cleanup removes the scratch directory. Failures are ignored.
func (a *DownloadedArtifact) Cleanup() {
	if a == nil || a.ScratchDir == "" {
		return
	}

	_ = os.RemoveAll(a.ScratchDir)
}
