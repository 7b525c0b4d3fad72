package singleton

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
)

// maxLockRaces bounds how often a holder may vanish between the lock attempt
// and the holder query before TryLock gives up.
const maxLockRaces = 100

// LockFileName returns the working-directory lock file name for app.
func LockFileName(app string) string {
	return "." + app + ".lock"
}

// FcntlLock is an exclusive POSIX record lock over a whole file.
//
// Record locks belong to the process and are dropped when ANY descriptor of
// the file is closed, so nothing else in the process may open this path while
// the lock is held.
type FcntlLock struct {
	f    *os.File
	path string
}

// OpenFcntlLock creates or opens the lock file at path.
func OpenFcntlLock(path string) (*FcntlLock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, fmt.Errorf("can't create lockfile %s: %w", path, err)
	}
	return &FcntlLock{f: f, path: path}, nil
}

// OpenInDir opens the lock file for app inside dir.
func OpenInDir(dir, app string) (*FcntlLock, error) {
	return OpenFcntlLock(filepath.Join(dir, LockFileName(app)))
}

// Path returns the lock file path.
func (l *FcntlLock) Path() string {
	return l.path
}

// TryLock attempts F_SETLK and, when the file is held elsewhere, reports the
// holder found by F_GETLK. It returns 0 once this process owns the lock.
func (l *FcntlLock) TryLock() (int, error) {
	fd := l.f.Fd()
	for range maxLockRaces {
		want := unix.Flock_t{Type: unix.F_WRLCK, Whence: io.SeekStart}
		err := unix.FcntlFlock(fd, unix.F_SETLK, &want)
		if err == nil {
			return 0, nil
		}
		if !errors.Is(err, unix.EAGAIN) && !errors.Is(err, unix.EACCES) {
			return -1, err
		}

		held := unix.Flock_t{Type: unix.F_WRLCK, Whence: io.SeekStart}
		if err := unix.FcntlFlock(fd, unix.F_GETLK, &held); err != nil {
			return -1, err
		}
		if held.Type != unix.F_UNLCK && held.Pid > 0 {
			return int(held.Pid), nil
		}
		// Released between the two calls; try again.
	}
	return -1, errors.New("lock owner keeps changing")
}

// WritePID replaces the file contents with pid as decimal text.
func (l *FcntlLock) WritePID(pid int) error {
	if err := l.f.Truncate(0); err != nil {
		return err
	}
	_, err := l.f.WriteAt([]byte(strconv.Itoa(pid)+"\n"), 0)
	return err
}

// Close releases the lock.
func (l *FcntlLock) Close() error {
	return l.f.Close()
}

// Ensure FcntlLock implements LockProbe.
var _ domain.LockProbe = (*FcntlLock)(nil)
