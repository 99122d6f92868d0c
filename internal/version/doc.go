// Package version exposes build metadata for the polymarket binary.
//
// Version holds the bare release number ("1.4.0") that the upgrade command
// compares against registry tags; Commit and BuildTime are informational.
// All three are injected with -ldflags at release time.
package version
