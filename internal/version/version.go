package version

import "fmt"

var (
	// Version is the bare dotted release number, e.g. "1.4.0". Set via ldflags.
	Version = "1.0.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns the bare version number compared against release tags.
func Short() string {
	return Version
}

// Tag returns the version in release tag form, e.g. "v1.4.0".
func Tag() string {
	return "v" + Version
}

// Full returns a human-readable version string with commit and build time.
func Full() string {
	return fmt.Sprintf("polymarket %s (commit: %s, built at: %s)", Tag(), Commit, BuildTime)
}
