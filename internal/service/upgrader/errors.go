package upgrader

import (
	"errors"
	"fmt"
)

// tamperWarning ends every integrity failure message.
const tamperWarning = "The downloaded archive may have been tampered with. Aborting."

var (
	// ErrIntegrity is wrapped by every verification failure.
	ErrIntegrity = errors.New("integrity verification failed")
	// ErrMissingManifestEntry means checksums.txt has no record for the archive.
	ErrMissingManifestEntry = errors.New("no checksum entry for archive")
	// ErrChecksumMismatch means the archive digest differs from its manifest record.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrExtraction means the archive could not be unpacked into an executable.
	ErrExtraction = errors.New("extraction failed")
	// ErrPermissionDenied means the live binary could not be moved aside, even with elevated privileges.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInstallFailed means the swap failed and the previous binary is in place.
	ErrInstallFailed = errors.New("install failed")
	// ErrRollbackFailed means the swap failed and restoring the previous binary failed too.
	ErrRollbackFailed = errors.New("rollback failed")
	// ErrUpgradeInProgress means another process holds the install lock for the same binary.
	ErrUpgradeInProgress = errors.New("another upgrade is in progress")
)

// MissingManifestEntryError reports an archive absent from checksums.txt.
type MissingManifestEntryError struct {
	Filename string
}

// Error implements error.
func (e *MissingManifestEntryError) Error() string {
	return fmt.Sprintf("no checksum found for %s in checksums.txt\n\n%s", e.Filename, tamperWarning)
}

// Unwrap returns ErrMissingManifestEntry and ErrIntegrity.
func (e *MissingManifestEntryError) Unwrap() []error {
	return []error{ErrMissingManifestEntry, ErrIntegrity}
}

// ChecksumMismatchError reports a digest that differs from the manifest.
type ChecksumMismatchError struct {
	Filename string
	Expected string
	Actual   string
}

// Error implements error.
func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s\n  Expected: %s\n  Got:      %s\n\n%s",
		e.Filename, e.Expected, e.Actual, tamperWarning)
}

// Unwrap returns ErrChecksumMismatch and ErrIntegrity.
func (e *ChecksumMismatchError) Unwrap() []error {
	return []error{ErrChecksumMismatch, ErrIntegrity}
}

// RollbackError is the one unrecoverable outcome: the new binary could not be
// installed and the previous one could not be moved back.
type RollbackError struct {
	LivePath    string
	BackupPath  string
	InstallErr  error
	RollbackErr error
}

// Error implements error and tells the operator how to recover.
func (e *RollbackError) Error() string {
	return fmt.Sprintf(
		"failed to install the new binary (%v) and failed to restore the previous one (%v).\n"+
			"The previous binary is saved at %s. Restore it manually:\n  mv %q %q",
		e.InstallErr, e.RollbackErr, e.BackupPath, e.BackupPath, e.LivePath)
}

// Unwrap returns ErrRollbackFailed and both underlying errors.
func (e *RollbackError) Unwrap() []error {
	return []error{ErrRollbackFailed, e.InstallErr, e.RollbackErr}
}
