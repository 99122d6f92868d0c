package release

import (
	"sort"
	"strings"
)

// ChecksumsFilename is the name of the manifest published with every release.
const ChecksumsFilename = "checksums.txt"

// ManifestEntry is one line of a checksum manifest.
type ManifestEntry struct {
	// Hash is the hex digest exactly as written in the manifest.
	Hash string
	// Filename is the artifact name, possibly with a leading "./".
	Filename string
}

// Manifest is a parsed checksum manifest in file order.
type Manifest []ManifestEntry

// ParseManifest reads "<hex-digest> <filename>" records, one per line.
// Any run of whitespace separates the fields; a "*" binary-mode marker before
// the filename is dropped. Lines with fewer than two fields are skipped,
// however long they are.
func ParseManifest(text string) Manifest {
	var manifest Manifest

	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		manifest = append(manifest, ManifestEntry{
			Hash:     fields[0],
			Filename: strings.TrimPrefix(fields[1], "*"),
		})
	}

	return manifest
}

// Lookup returns the hash recorded for filename. Entries match exactly or
// once a leading "./" is stripped. The first matching entry wins.
func (m Manifest) Lookup(filename string) (string, bool) {
	for _, entry := range m {
		if entry.Filename == filename || strings.TrimPrefix(entry.Filename, "./") == filename {
			return entry.Hash, true
		}
	}

	return "", false
}

// Set records hash for filename, replacing any entry for the same file.
func (m Manifest) Set(hash, filename string) Manifest {
	out := make(Manifest, 0, len(m)+1)

	for _, entry := range m {
		if strings.TrimPrefix(entry.Filename, "./") != filename {
			out = append(out, entry)
		}
	}

	return append(out, ManifestEntry{Hash: hash, Filename: filename})
}

// String renders the manifest in sha256sum format, sorted by filename.
func (m Manifest) String() string {
	sorted := append(Manifest(nil), m...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Filename < sorted[j].Filename
	})

	var builder strings.Builder

	for _, entry := range sorted {
		builder.WriteString(entry.Hash)
		builder.WriteString("  ")
		builder.WriteString(entry.Filename)
		builder.WriteString("\n")
	}

	return builder.String()
}
