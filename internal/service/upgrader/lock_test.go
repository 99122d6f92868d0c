package upgrader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// livePathForLock returns a unique live path and removes its lock file afterwards.
func livePathForLock(t *testing.T) string {
	t.Helper()

	live := filepath.Join(t.TempDir(), "polymarket")
	t.Cleanup(func() {
		_ = os.Remove(LockPath(live))
	})

	return live
}

// requireLockFree fails unless the lock for live can be taken right now.
func requireLockFree(t *testing.T, live string) {
	t.Helper()

	lock, err := AcquireLock(context.Background(), live)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

func TestLockPath(t *testing.T) {
	t.Parallel()

	a := LockPath("/usr/local/bin/polymarket")
	b := LockPath("/home/me/.local/bin/polymarket")

	require.NotEqual(t, a, b)
	require.Equal(t, a, LockPath("/usr/local/bin/polymarket"))
	require.Equal(t, os.TempDir(), filepath.Dir(a))
	require.True(t, strings.HasPrefix(filepath.Base(a), "polymarket-upgrade-"))
	require.True(t, strings.HasSuffix(a, ".lock"))
}

func TestAcquireLock_Exclusive(t *testing.T) {
	t.Parallel()

	live := livePathForLock(t)

	lock, err := AcquireLock(context.Background(), live)
	require.NoError(t, err)
	require.Contains(t, readFile(t, lock.Path()), fmt.Sprintf("%d\n", os.Getpid()))

	_, err = AcquireLock(context.Background(), live)
	require.ErrorIs(t, err, ErrUpgradeInProgress)
	require.Contains(t, err.Error(), fmt.Sprintf("by pid %d", os.Getpid()))

	require.NoError(t, lock.Release())
	require.NoError(t, lock.Release(), "releasing twice is harmless")

	requireLockFree(t, live)
}

// TestAcquireLock_LeftoverFile reuses a lock file nobody holds, whatever it contains.
func TestAcquireLock_LeftoverFile(t *testing.T) {
	t.Parallel()

	for name, contents := range map[string]string{
		"exited owner": "999999999\npolymarket\n",
		"garbage":      "garbage",
		"empty":        "",
	} {
		contents := contents
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			live := livePathForLock(t)
			require.NoError(t, os.WriteFile(LockPath(live), []byte(contents), 0o600))

			lock, err := AcquireLock(context.Background(), live)
			require.NoError(t, err)
			require.Equal(t, fmt.Sprintf("%d\n%s\n", os.Getpid(), executableName()), readFile(t, lock.Path()))
			require.NoError(t, lock.Release())
		})
	}
}

// TestAcquireLock_Concurrent lets many claimants race; exactly one may win.
func TestAcquireLock_Concurrent(t *testing.T) {
	t.Parallel()

	live := livePathForLock(t)

	// A leftover file from a crashed run is the setup where takeovers used to race.
	require.NoError(t, os.WriteFile(LockPath(live), []byte("999999999\npolymarket\n"), 0o600))

	const claimants = 16

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		held  []*Lock
		other []error
		start = make(chan struct{})
	)

	for i := 0; i < claimants; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			<-start

			lock, err := AcquireLock(context.Background(), live)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				held = append(held, lock)
			case !errors.Is(err, ErrUpgradeInProgress):
				other = append(other, err)
			}
		}()
	}

	close(start)
	wg.Wait()

	require.Empty(t, other)
	require.Len(t, held, 1)
	require.NoError(t, held[0].Release())

	requireLockFree(t, live)
}
