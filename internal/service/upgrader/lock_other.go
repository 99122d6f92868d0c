//go:build !unix && !windows

package upgrader

import (
	"errors"
	"os"
)

var errLockUnsupported = errors.New("file locking is not supported on this platform")

func lockFile(*os.File) error {
	return errLockUnsupported
}

func unlockFile(*os.File) error {
	return nil
}
