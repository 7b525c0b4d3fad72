package singleton

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
)

// legacyPIDMax is the read size for a legacy pid; a full read means the
// content is not a pid.
const legacyPIDMax = 13

// Legacy evicts a predecessor that only knows the old lock file format: a pid
// text file guarded by lockf.
type Legacy struct {
	Path      string
	Signaller domain.ProcessSignaller
	Report    domain.StartupReporter
	Sleep     domain.Sleeper
	Timeout   time.Duration
	Interval  time.Duration

	// Held reports whether another process locks f. Defaults to a
	// non-blocking fcntl attempt.
	Held func(f *os.File) (bool, error)
}

// Check terminates the owner of a locked legacy file (unless mode is start)
// and removes the file. A missing file is not an error.
func (l *Legacy) Check(mode domain.RunMode) error {
	f, err := os.OpenFile(l.Path, os.O_RDWR, 0)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		l.Report.Errorf("open %s error: %v", l.Path, err)
		return fmt.Errorf("open old lockfile: %w", err)
	}
	defer f.Close()

	held := l.Held
	if held == nil {
		held = heldByOther
	}

	locked, err := held(f)
	if err != nil {
		l.Report.Errorf("lock %s error: %v", l.Path, err)
		return fmt.Errorf("%w: %w", ErrLockQuery, err)
	}
	if !locked {
		l.Report.Infof("found unlocked old lockfile")
	} else {
		if mode == domain.RunModeStart {
			l.Report.Errorf("old lockfile is locked - can't start")
			return ErrAlreadyLocked
		}
		if err := l.evict(f, held); err != nil {
			return err
		}
	}

	l.Report.Infof("removing old lockfile")
	if err := os.Remove(l.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove old lockfile: %w", err)
	}
	return nil
}

func (l *Legacy) evict(f *os.File, held func(*os.File) (bool, error)) error {
	pid, err := readLegacyPID(f)
	if err != nil {
		l.Report.Errorf("wrong pid in old lockfile %s", l.Path)
		return err
	}

	l.Report.Infof("sending SIGTERM to previous instance (pid:%d)", pid)
	if err := l.Signaller.Terminate(pid); err != nil && l.Signaller.IsRunning(pid) {
		l.Report.Errorf("kill error: %v", err)
		return fmt.Errorf("%w (pid:%d): %w", ErrSignalFailed, pid, err)
	}

	sleep := l.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	probe := &Takeover{Timeout: l.Timeout, Interval: l.Interval}
	limit := probe.maxPolls()

	l.Report.Infof("waiting for termination ...")
	for polls := 1; ; polls++ {
		locked, err := held(f)
		if err != nil {
			l.Report.Errorf("lock %s error: %v", l.Path, err)
			return fmt.Errorf("%w: %w", ErrLockQuery, err)
		}
		if !locked {
			l.Report.Infof("terminated")
			return nil
		}
		sleep(probe.interval())
		seconds := int(time.Duration(polls) * probe.interval() / time.Second)
		if polls >= limit {
			l.Report.Errorf("about %d seconds passed and old lockfile is still locked - giving up", seconds)
			return fmt.Errorf("%w (old lockfile, pid:%d)", ErrLockTimeout, pid)
		}
		if polls%progressEvery == 0 {
			l.Report.Infof("about %d seconds passed and old lockfile still exists", seconds)
		}
	}
}

func readLegacyPID(f *os.File) (int, error) {
	buf := make([]byte, legacyPIDMax)
	n, err := f.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("%w: %w", ErrMalformedLegacyPID, err)
	}
	if n == 0 || n >= legacyPIDMax {
		return 0, ErrMalformedLegacyPID
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil || pid <= 0 {
		return 0, ErrMalformedLegacyPID
	}
	return pid, nil
}

// heldByOther takes and keeps a test lock; closing f releases it. On Linux and
// the BSDs lockf(F_TLOCK) is an fcntl write lock over the same range, so this
// sees the old owner's lock.
func heldByOther(f *os.File) (bool, error) {
	lk := unix.Flock_t{Type: unix.F_WRLCK, Whence: io.SeekStart}
	err := unix.FcntlFlock(f.Fd(), unix.F_SETLK, &lk)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EACCES):
		return true, nil
	default:
		return false, err
	}
}

// RemoveMarker deletes the oldest lock format, a bare ".lock_<app>" file in
// dir.
func RemoveMarker(dir, app string) error {
	err := os.Remove(filepath.Join(dir, ".lock_"+app))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
