package upgrader

import (
	"bytes"
	"context"
	"crypto"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/polymarket/polymarket-cli/internal/logger"
)

// Mover relocates and deletes files on behalf of the Installer.
type Mover interface {
	Move(ctx context.Context, from, to string) error
	Remove(ctx context.Context, path string) error
}

// DirectMover moves files with the current process's permissions.
type DirectMover struct{}

// Move renames from to to. When the two live on different filesystems the
// bytes are copied into place and the source is removed.
func (DirectMover) Move(ctx context.Context, from, to string) error {
	err := os.Rename(from, to)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}

	logger.DebugKV(ctx, "Rename crosses filesystems, copying instead", "from", from, "to", to)

	return applyAcrossDevices(from, to)
}

// Remove deletes path; a missing file is not an error.
func (DirectMover) Remove(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

func applyAcrossDevices(from, to string) error {
	info, err := os.Stat(from)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Clean(from))
	if err != nil {
		return err
	}

	checksum := sha256.Sum256(data)

	// go-update swaps an existing target, so one has to be there.
	placeholder := false
	if _, err = os.Stat(to); errors.Is(err, fs.ErrNotExist) {
		created, err := os.OpenFile(to, os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
		if err != nil {
			return err
		}

		_ = created.Close()
		placeholder = true
	}

	options := goupdate.Options{
		TargetPath: to,
		TargetMode: info.Mode().Perm(),
		Checksum:   checksum[:],
		Hash:       crypto.SHA256,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		if placeholder {
			_ = os.Remove(to)
		}

		return err
	}

	return os.Remove(from)
}

// CommandMover moves files through an external elevation helper such as sudo.
type CommandMover struct {
	helper []string
}

// NewCommandMover creates a mover running helper as the command prefix.
func NewCommandMover(helper []string) *CommandMover {
	return &CommandMover{helper: append([]string(nil), helper...)}
}

// Move runs "<helper> mv -- from to".
func (c *CommandMover) Move(ctx context.Context, from, to string) error {
	return c.run(ctx, "mv", "--", from, to)
}

// Remove runs "<helper> rm -f -- path".
func (c *CommandMover) Remove(ctx context.Context, path string) error {
	return c.run(ctx, "rm", "-f", "--", path)
}

func (c *CommandMover) run(ctx context.Context, args ...string) error {
	if len(c.helper) == 0 {
		return errors.New("no privileged helper configured")
	}

	argv := make([]string, 0, len(c.helper)-1+len(args))
	argv = append(argv, c.helper[1:]...)
	argv = append(argv, args...)

	//nolint:gosec // The helper comes from the operator's own configuration.
	cmd := exec.CommandContext(ctx, c.helper[0], argv...)
	// The helper may prompt for a password.
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	logger.DebugKV(ctx, "Running privileged helper", "command", strings.Join(cmd.Args, " "))

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", strings.Join(cmd.Args, " "), err)
	}

	return nil
}
