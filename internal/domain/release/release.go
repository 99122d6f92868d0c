package release

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Info identifies a published release.
type Info struct {
	// Tag is the registry tag, e.g. "v1.4.0".
	Tag string
	// Version is Tag without its leading version marker, e.g. "1.4.0".
	Version string
}

// NewInfo builds an Info from a registry tag.
func NewInfo(tag string) Info {
	tag = strings.TrimSpace(tag)

	return Info{
		Tag:     tag,
		Version: StripVersionPrefix(tag),
	}
}

// StripVersionPrefix removes one leading "v" or "V" from a tag.
func StripVersionPrefix(tag string) string {
	if strings.HasPrefix(tag, "v") || strings.HasPrefix(tag, "V") {
		return tag[1:]
	}

	return tag
}

// IsCurrent reports whether the release is the running version.
// The comparison is plain string equality: a registry that rolls back to an
// older tag still counts as "update available".
func (i Info) IsCurrent(current string) bool {
	return i.Version == StripVersionPrefix(strings.TrimSpace(current))
}

// Compare orders the release against current using semantic versioning.
// It returns -1 when the release is older, +1 when newer, and 0 when equal or
// when either side is not a valid semantic version. It is informational only.
func (i Info) Compare(current string) int {
	latest := "v" + i.Version
	running := "v" + StripVersionPrefix(strings.TrimSpace(current))

	if !semver.IsValid(latest) || !semver.IsValid(running) {
		return 0
	}

	return semver.Compare(latest, running)
}
