// Package registry talks to the release registry that publishes polymarket
// builds.
//
// Client.Latest asks the registry API for the newest release tag and
// Client.Fetch downloads a release archive and its checksums.txt into a fresh
// scratch directory. Both are read-only HTTP GETs; nothing here touches the
// installed binary.
package registry
