//go:build windows

package upgrader

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

// The locked byte sits far past the owner record so other runs can still read it.
const lockOffsetHigh = 1

func lockFile(file *os.File) error {
	overlapped := &windows.Overlapped{OffsetHigh: lockOffsetHigh}

	err := windows.LockFileEx(windows.Handle(file.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY, 0, 1, 0, overlapped)
	if errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
		return errLockHeld
	}

	return err
}

func unlockFile(file *os.File) error {
	overlapped := &windows.Overlapped{OffsetHigh: lockOffsetHigh}

	return windows.UnlockFileEx(windows.Handle(file.Fd()), 0, 1, 0, overlapped)
}
