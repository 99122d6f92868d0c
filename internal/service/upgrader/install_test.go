package upgrader

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// scriptedMover performs real moves unless a hook rejects the call.
type scriptedMover struct {
	DirectMover

	failMove   func(from, to string) error
	failRemove func(path string) error
	moves      [][2]string
}

func (m *scriptedMover) Move(ctx context.Context, from, to string) error {
	m.moves = append(m.moves, [2]string{from, to})

	if m.failMove != nil {
		if err := m.failMove(from, to); err != nil {
			return err
		}
	}

	return m.DirectMover.Move(ctx, from, to)
}

func (m *scriptedMover) Remove(ctx context.Context, path string) error {
	if m.failRemove != nil {
		if err := m.failRemove(path); err != nil {
			return err
		}
	}

	return m.DirectMover.Remove(ctx, path)
}

func denied(path string) error {
	return &fs.PathError{Op: "rename", Path: path, Err: fs.ErrPermission}
}

var errDiskFull = errors.New("no space left on device")

type installFixture struct {
	tx  InstallTransaction
	old string
	new string
}

func newInstallFixture(t *testing.T) installFixture {
	t.Helper()

	dir := t.TempDir()
	live := writeFile(t, filepath.Join(dir, "bin", "polymarket"), []byte("old binary"), 0o755)
	fresh := writeFile(t, filepath.Join(dir, "scratch", "polymarket"), []byte("new binary"), 0o755)

	return installFixture{
		tx:  NewInstallTransaction(fresh, live),
		old: "old binary",
		new: "new binary",
	}
}

func (f installFixture) install(t *testing.T, opts ...InstallerOption) error {
	t.Helper()

	return NewInstaller(opts...).Install(context.Background(), f.tx.NewBinaryPath, f.tx.LivePath)
}

func TestNewInstallTransaction(t *testing.T) {
	t.Parallel()

	tx := NewInstallTransaction("/tmp/x/polymarket", "/usr/local/bin/polymarket")
	require.Equal(t, "/usr/local/bin/polymarket.bak", tx.BackupPath)
}

func TestInstall_Success(t *testing.T) {
	t.Parallel()

	f := newInstallFixture(t)
	require.NoError(t, os.Chmod(f.tx.NewBinaryPath, 0o600))

	require.NoError(t, f.install(t))
	require.Equal(t, f.new, readFile(t, f.tx.LivePath))
	requireMissing(t, f.tx.BackupPath)
	requireMissing(t, f.tx.NewBinaryPath)

	info, err := os.Stat(f.tx.LivePath)
	require.NoError(t, err)
	require.Equal(t, ExecutableMode, info.Mode().Perm())
}

func TestInstall_OverwritesLeftoverBackup(t *testing.T) {
	t.Parallel()

	f := newInstallFixture(t)
	writeFile(t, f.tx.BackupPath, []byte("ancient"), 0o755)

	require.NoError(t, f.install(t))
	require.Equal(t, f.new, readFile(t, f.tx.LivePath))
	requireMissing(t, f.tx.BackupPath)
}

func TestInstall_PermissionDenied(t *testing.T) {
	t.Parallel()

	backupDenied := func(t *testing.T, f installFixture) *scriptedMover {
		t.Helper()

		return &scriptedMover{failMove: func(from, to string) error {
			if to == f.tx.BackupPath {
				return denied(from)
			}

			return nil
		}}
	}

	t.Run("no privileged mover", func(t *testing.T) {
		t.Parallel()

		f := newInstallFixture(t)

		err := f.install(t, WithDirectMover(backupDenied(t, f)))
		require.ErrorIs(t, err, ErrPermissionDenied)
		require.Equal(t, f.old, readFile(t, f.tx.LivePath))
		require.Equal(t, f.new, readFile(t, f.tx.NewBinaryPath))
		requireMissing(t, f.tx.BackupPath)
	})

	t.Run("privileged mover also denied", func(t *testing.T) {
		t.Parallel()

		f := newInstallFixture(t)
		privileged := &scriptedMover{failMove: func(string, string) error {
			return errors.New("sudo: a password is required")
		}}

		err := f.install(t, WithDirectMover(backupDenied(t, f)), WithPrivilegedMover(privileged))
		require.ErrorIs(t, err, ErrPermissionDenied)
		require.Len(t, privileged.moves, 1)
		require.Equal(t, f.old, readFile(t, f.tx.LivePath))
		requireMissing(t, f.tx.BackupPath)
	})

	t.Run("privileged retry succeeds", func(t *testing.T) {
		t.Parallel()

		f := newInstallFixture(t)
		privileged := &scriptedMover{}

		require.NoError(t, f.install(t, WithDirectMover(backupDenied(t, f)), WithPrivilegedMover(privileged)))
		require.Equal(t, [][2]string{{f.tx.LivePath, f.tx.BackupPath}}, privileged.moves)
		require.Equal(t, f.new, readFile(t, f.tx.LivePath))
		requireMissing(t, f.tx.BackupPath)
	})
}

func TestInstall_BackupFailsWithoutPermissionError(t *testing.T) {
	t.Parallel()

	f := newInstallFixture(t)
	privileged := &scriptedMover{}
	direct := &scriptedMover{failMove: func(string, string) error { return errDiskFull }}

	err := f.install(t, WithDirectMover(direct), WithPrivilegedMover(privileged))
	require.ErrorIs(t, err, ErrInstallFailed)
	require.NotErrorIs(t, err, ErrPermissionDenied)
	require.Empty(t, privileged.moves)
	require.Equal(t, f.old, readFile(t, f.tx.LivePath))
}

// TestInstall_RestoresOnEveryFailure injects a failure at each step after the
// backup exists and checks the live file ends up byte-identical.
func TestInstall_RestoresOnEveryFailure(t *testing.T) {
	t.Parallel()

	cases := map[string]func(f installFixture) (direct, privileged *scriptedMover){
		"new binary move fails": func(f installFixture) (*scriptedMover, *scriptedMover) {
			return &scriptedMover{failMove: func(from, _ string) error {
				if from == f.tx.NewBinaryPath {
					return errDiskFull
				}

				return nil
			}}, nil
		},
		"new binary move denied everywhere": func(f installFixture) (*scriptedMover, *scriptedMover) {
			fail := func(from, _ string) error {
				if from == f.tx.NewBinaryPath {
					return denied(from)
				}

				return nil
			}

			return &scriptedMover{failMove: fail}, &scriptedMover{failMove: fail}
		},
		"rollback needs privileges": func(f installFixture) (*scriptedMover, *scriptedMover) {
			return &scriptedMover{failMove: func(from, _ string) error {
				switch from {
				case f.tx.NewBinaryPath:
					return errDiskFull
				case f.tx.BackupPath:
					return denied(from)
				}

				return nil
			}}, &scriptedMover{}
		},
	}

	for name, setup := range cases {
		setup := setup
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f := newInstallFixture(t)
			direct, privileged := setup(f)

			opts := []InstallerOption{WithDirectMover(direct)}
			if privileged != nil {
				opts = append(opts, WithPrivilegedMover(privileged))
			}

			err := f.install(t, opts...)
			require.ErrorIs(t, err, ErrInstallFailed)
			require.NotErrorIs(t, err, ErrRollbackFailed)
			require.Equal(t, f.old, readFile(t, f.tx.LivePath))
			requireMissing(t, f.tx.BackupPath)
		})
	}
}

func TestInstall_RollbackFails(t *testing.T) {
	t.Parallel()

	f := newInstallFixture(t)
	direct := &scriptedMover{failMove: func(from, _ string) error {
		if from == f.tx.LivePath {
			return nil
		}

		return errDiskFull
	}}

	err := f.install(t, WithDirectMover(direct))
	require.ErrorIs(t, err, ErrRollbackFailed)
	require.NotErrorIs(t, err, ErrInstallFailed)

	var rollbackErr *RollbackError
	require.ErrorAs(t, err, &rollbackErr)
	require.Equal(t, f.tx.BackupPath, rollbackErr.BackupPath)
	require.Contains(t, err.Error(), "mv")
	require.Contains(t, err.Error(), f.tx.BackupPath)
	require.Contains(t, err.Error(), f.tx.LivePath)

	require.Equal(t, f.old, readFile(t, f.tx.BackupPath))
	requireMissing(t, f.tx.LivePath)
}

func TestInstall_CleanupFailuresAreWarnings(t *testing.T) {
	t.Parallel()

	t.Run("backup removal", func(t *testing.T) {
		t.Parallel()

		f := newInstallFixture(t)
		direct := &scriptedMover{failRemove: func(path string) error { return denied(path) }}

		require.NoError(t, f.install(t, WithDirectMover(direct)))
		require.Equal(t, f.new, readFile(t, f.tx.LivePath))
		require.Equal(t, f.old, readFile(t, f.tx.BackupPath))
	})

	t.Run("privileged backup removal", func(t *testing.T) {
		t.Parallel()

		f := newInstallFixture(t)
		direct := &scriptedMover{failRemove: func(path string) error { return denied(path) }}

		require.NoError(t, f.install(t, WithDirectMover(direct), WithPrivilegedMover(&scriptedMover{})))
		requireMissing(t, f.tx.BackupPath)
	})

	t.Run("chmod", func(t *testing.T) {
		t.Parallel()

		f := newInstallFixture(t)
		installer := NewInstaller()
		installer.goos = "linux"
		installer.chmod = func(string, os.FileMode) error { return errors.New("operation not permitted") }

		require.NoError(t, installer.Install(context.Background(), f.tx.NewBinaryPath, f.tx.LivePath))
		require.Equal(t, f.new, readFile(t, f.tx.LivePath))
		requireMissing(t, f.tx.BackupPath)
	})
}

// TestInstall_RollbackSurvivesCancellation cancels the run while the new
// binary is being moved in; the privileged restore must still happen.
func TestInstall_RollbackSurvivesCancellation(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("env"); err != nil {
		t.Skip("env is not available")
	}

	f := newInstallFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	t.Cleanup(cancel)

	direct := &scriptedMover{failMove: func(from, _ string) error {
		switch from {
		case f.tx.NewBinaryPath:
			cancel()

			return denied(from)
		case f.tx.BackupPath:
			return denied(from)
		}

		return nil
	}}

	// env runs its arguments unchanged, standing in for sudo.
	installer := NewInstaller(WithDirectMover(direct), WithPrivilegedMover(NewCommandMover([]string{"env"})))

	err := installer.Install(ctx, f.tx.NewBinaryPath, f.tx.LivePath)
	require.ErrorIs(t, err, ErrInstallFailed)
	require.NotErrorIs(t, err, ErrRollbackFailed)
	require.Equal(t, f.old, readFile(t, f.tx.LivePath))
	requireMissing(t, f.tx.BackupPath)
}
