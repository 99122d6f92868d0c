// Package packager builds the release assets the upgrade command consumes:
// one compressed tarball per target and the checksums.txt manifest listing them.
package packager
