package release

import (
	"errors"
	"fmt"
	"runtime"
)

// OS is an operating system name as used in target triples.
type OS string

// Arch is a CPU architecture name as used in target triples.
type Arch string

// Supported platforms.
const (
	MacOS OS = "macos"
	Linux OS = "linux"

	X86_64  Arch = "x86_64"  //nolint:revive // Matches the triple spelling.
	AArch64 Arch = "aarch64" //nolint:revive // Matches the triple spelling.
)

// ErrUnsupportedPlatform is wrapped by UnsupportedPlatformError.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// UnsupportedPlatformError names an OS/arch pair with no published build.
type UnsupportedPlatformError struct {
	OS   OS
	Arch Arch
}

// Error implements error.
func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform: %s/%s", e.OS, e.Arch)
}

// Unwrap returns ErrUnsupportedPlatform.
func (e *UnsupportedPlatformError) Unwrap() error { return ErrUnsupportedPlatform }

// Target is a resolved platform with the triple used in artifact names.
type Target struct {
	OS     OS
	Arch   Arch
	Triple string
}

// String returns the triple.
func (t Target) String() string {
	return t.Triple
}

type platform struct {
	os   OS
	arch Arch
}

//nolint:gochecknoglobals // Immutable lookup table.
var triples = map[platform]string{
	{MacOS, X86_64}:  "x86_64-apple-darwin",
	{MacOS, AArch64}: "aarch64-apple-darwin",
	{Linux, X86_64}:  "x86_64-unknown-linux-gnu",
	{Linux, AArch64}: "aarch64-unknown-linux-gnu",
}

// Resolve maps an OS/arch pair to its Target.
func Resolve(os OS, arch Arch) (Target, error) {
	triple, ok := triples[platform{os, arch}]
	if !ok {
		return Target{}, &UnsupportedPlatformError{OS: os, Arch: arch}
	}

	return Target{OS: os, Arch: arch, Triple: triple}, nil
}

// ParseTriple is the inverse of Resolve.
func ParseTriple(triple string) (Target, error) {
	for p, known := range triples {
		if known == triple {
			return Target{OS: p.os, Arch: p.arch, Triple: triple}, nil
		}
	}

	return Target{}, fmt.Errorf("%w: unknown target %q", ErrUnsupportedPlatform, triple)
}

// Source reports the platform the upgrade should target.
type Source interface {
	Platform() (OS, Arch)
}

// RuntimeSource reads the platform the binary was compiled for.
type RuntimeSource struct{}

// Platform translates runtime.GOOS and runtime.GOARCH into triple spelling.
// Values without a translation pass through unchanged.
func (RuntimeSource) Platform() (OS, Arch) {
	return FromGo(runtime.GOOS, runtime.GOARCH)
}

// FromGo translates Go's GOOS/GOARCH names into triple spelling.
func FromGo(goos, goarch string) (OS, Arch) {
	os := OS(goos)
	if goos == "darwin" {
		os = MacOS
	}

	arch := Arch(goarch)

	switch goarch {
	case "amd64":
		arch = X86_64
	case "arm64":
		arch = AArch64
	}

	return os, arch
}

// StaticSource always reports the same platform.
type StaticSource struct {
	OS   OS
	Arch Arch
}

// Platform returns the fixed pair.
func (s StaticSource) Platform() (OS, Arch) {
	return s.OS, s.Arch
}
