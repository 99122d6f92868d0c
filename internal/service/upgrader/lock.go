package upgrader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/polymarket/polymarket-cli/internal/logger"
)

const (
	lockFilePrefix = "polymarket-upgrade-"
	lockFileSuffix = ".lock"
)

var errLockHeld = errors.New("lock is held by another process")

// Lock is an exclusive claim on installing over one live path.
//
// The claim is an advisory lock on the lock file. The kernel drops it when
// the holder exits, so a crashed run never leaves a stale claim behind. The
// file itself stays on disk; removing it would let a later run lock a new
// file while an older one still holds the unlinked one.
type Lock struct {
	path string
	file *os.File
}

// LockPath returns the lock file guarding livePath.
func LockPath(livePath string) string {
	sum := sha256.Sum256([]byte(livePath))

	return filepath.Join(os.TempDir(), lockFilePrefix+hex.EncodeToString(sum[:])[:16]+lockFileSuffix)
}

// AcquireLock claims the install lock for livePath without waiting.
// ErrUpgradeInProgress is returned while another process holds it.
func AcquireLock(ctx context.Context, livePath string) (*Lock, error) {
	path := LockPath(livePath)

	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock %s: %w", path, err)
	}

	if err = lockFile(file); err != nil {
		_ = file.Close()

		if errors.Is(err, errLockHeld) {
			return nil, fmt.Errorf("%w: lock %s is held%s", ErrUpgradeInProgress, path, describeOwner(ctx, path))
		}

		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	if err = recordOwner(file); err != nil {
		logger.DebugKV(ctx, "Could not record lock owner", "lock", path, "error", err)
	}

	logger.DebugKV(ctx, "Install lock acquired", "lock", path)

	return &Lock{path: path, file: file}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release gives the lock up. Calling it again is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	unlockErr := unlockFile(l.file)
	closeErr := l.file.Close()
	l.file = nil

	if err := errors.Join(unlockErr, closeErr); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}

	return nil
}

// recordOwner stores "<pid>\n<executable>" for the error shown to a waiting run.
func recordOwner(file *os.File) error {
	if err := file.Truncate(0); err != nil {
		return err
	}

	_, err := file.WriteAt([]byte(fmt.Sprintf("%d\n%s\n", os.Getpid(), executableName())), 0)

	return err
}

// describeOwner names the holding process when the lock file says who it is.
func describeOwner(ctx context.Context, path string) string {
	pid, ok := readLockPID(path)
	if !ok {
		return ""
	}

	process, err := ps.FindProcess(pid)
	if err != nil || process == nil {
		logger.DebugKV(ctx, "Cannot inspect lock owner", "pid", pid, "error", err)

		return fmt.Sprintf(" by pid %d", pid)
	}

	return fmt.Sprintf(" by pid %d (%s)", pid, process.Executable())
}

func readLockPID(path string) (int, bool) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, false
	}

	first, _, _ := strings.Cut(string(data), "\n")

	pid, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil || pid <= 0 {
		return 0, false
	}

	return pid, true
}

func executableName() string {
	if exe, err := os.Executable(); err == nil {
		return filepath.Base(exe)
	}

	return filepath.Base(os.Args[0])
}
