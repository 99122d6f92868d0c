// Package upgrader replaces the running polymarket binary with the latest
// published release.
//
// The flow is strictly sequential: resolve the target platform, ask the
// registry for the latest tag (stopping early when it is the running
// version), fetch the archive and checksums.txt, verify the SHA-256 digest,
// extract the executable and swap it into place. Verification is a hard gate
// and the swap keeps a ".bak" copy of the previous binary until the new one
// is in place, restoring it if anything goes wrong.
//
// Every external capability (registry, hashing, archive reading, file moves,
// privileged helper, platform detection) is injected through options so the
// flow can be exercised with deterministic fakes.
package upgrader
