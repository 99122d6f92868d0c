package upgrader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"

	"github.com/polymarket/polymarket-cli/internal/logger"
)

// BackupSuffix is appended to the live path while the swap is in flight.
const BackupSuffix = ".bak"

// InstallTransaction names the three paths involved in one swap.
type InstallTransaction struct {
	NewBinaryPath string
	LivePath      string
	BackupPath    string
}

// NewInstallTransaction derives the backup path from livePath.
func NewInstallTransaction(newBinary, livePath string) InstallTransaction {
	return InstallTransaction{
		NewBinaryPath: newBinary,
		LivePath:      livePath,
		BackupPath:    livePath + BackupSuffix,
	}
}

// Installer swaps a verified binary into the live path, keeping a backup
// until the new file is in place.
type Installer struct {
	direct     Mover
	privileged Mover
	chmod      func(string, os.FileMode) error
	goos       string
}

// InstallerOption configures an Installer.
type InstallerOption func(*Installer)

// WithDirectMover replaces the unprivileged mover.
func WithDirectMover(m Mover) InstallerOption {
	return func(i *Installer) {
		i.direct = m
	}
}

// WithPrivilegedMover enables the elevated retry on permission errors.
func WithPrivilegedMover(m Mover) InstallerOption {
	return func(i *Installer) {
		i.privileged = m
	}
}

// NewInstaller creates an Installer with a DirectMover and no privileged retry.
func NewInstaller(opts ...InstallerOption) *Installer {
	i := &Installer{
		direct: DirectMover{},
		chmod:  os.Chmod,
		goos:   runtime.GOOS,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Install replaces livePath with newBinary.
//
// On success livePath holds the new binary with mode 0755 and no backup is
// left behind. On ErrPermissionDenied or ErrInstallFailed livePath holds the
// previous binary. Only a *RollbackError leaves the previous binary at the
// backup path.
func (i *Installer) Install(ctx context.Context, newBinary, livePath string) error {
	tx := NewInstallTransaction(newBinary, livePath)
	ctx = logger.WithKV(ctx, "live", tx.LivePath)

	if _, err := os.Lstat(tx.BackupPath); err == nil {
		logger.WarnKV(ctx, "Overwriting leftover backup", "backup", tx.BackupPath)
	}

	if err := i.move(ctx, tx.LivePath, tx.BackupPath); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: cannot move %s aside: %v", ErrPermissionDenied, tx.LivePath, err)
		}

		return fmt.Errorf("%w: cannot move %s aside: %v", ErrInstallFailed, tx.LivePath, err)
	}

	logger.DebugKV(ctx, "Previous binary backed up", "backup", tx.BackupPath)

	// Once the live binary is moved aside, putting something back must not
	// be cut short by a deadline or an interrupt.
	restoreCtx := context.WithoutCancel(ctx)

	if err := i.move(ctx, tx.NewBinaryPath, tx.LivePath); err != nil {
		logger.WarnKV(ctx, "Install failed, restoring previous binary", "error", err)

		if rollbackErr := i.move(restoreCtx, tx.BackupPath, tx.LivePath); rollbackErr != nil {
			return &RollbackError{
				LivePath:    tx.LivePath,
				BackupPath:  tx.BackupPath,
				InstallErr:  err,
				RollbackErr: rollbackErr,
			}
		}

		return fmt.Errorf("%w: previous binary restored: %v", ErrInstallFailed, err)
	}

	if i.goos != "windows" {
		if err := i.chmod(tx.LivePath, ExecutableMode); err != nil {
			logger.WarnKV(ctx, "Could not set executable mode", "error", err)
		}
	}

	if err := i.remove(restoreCtx, tx.BackupPath); err != nil {
		logger.WarnKV(ctx, "Could not remove backup, delete it manually", "backup", tx.BackupPath, "error", err)
	}

	return nil
}

// move tries the direct mover and, on a permission error, the privileged one once.
func (i *Installer) move(ctx context.Context, from, to string) error {
	err := i.direct.Move(ctx, from, to)
	if err == nil || !errors.Is(err, fs.ErrPermission) || i.privileged == nil {
		return err
	}

	logger.InfoKV(ctx, "Permission denied, retrying with elevated privileges", "from", from, "to", to)

	if privErr := i.privileged.Move(ctx, from, to); privErr != nil {
		return fmt.Errorf("%w (elevated retry: %v)", err, privErr)
	}

	return nil
}

func (i *Installer) remove(ctx context.Context, path string) error {
	err := i.direct.Remove(ctx, path)
	if err == nil || !errors.Is(err, fs.ErrPermission) || i.privileged == nil {
		return err
	}

	return i.privileged.Remove(ctx, path)
}
