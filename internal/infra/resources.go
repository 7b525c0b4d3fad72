package infra

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// RaiseOpenFiles sets both open-file limits to n.
func RaiseOpenFiles(n uint64) error {
	lim := unix.Rlimit{Cur: n, Max: n}
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		return fmt.Errorf("can't change open files limit to %d: %w", n, err)
	}
	return nil
}

// UnlimitMemoryLock removes the locked-memory limit.
func UnlimitMemoryLock() error {
	lim := unix.Rlimit{Cur: unix.RLIM_INFINITY, Max: unix.RLIM_INFINITY}
	if err := unix.Setrlimit(unix.RLIMIT_MEMLOCK, &lim); err != nil {
		return fmt.Errorf("can't unlock memory: %w", err)
	}
	return nil
}

// LockAllMemory pins current and future pages.
func LockAllMemory() error {
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		return fmt.Errorf("memory lock error: %w", err)
	}
	return nil
}

// SetNice sets the scheduling priority of the process.
func SetNice(level int) error {
	if err := unix.Setpriority(unix.PRIO_PROCESS, 0, level); err != nil {
		return fmt.Errorf("can't change nice level to %d: %w", level, err)
	}
	return nil
}

// SetUmask installs mask and returns the previous one.
func SetUmask(mask int) int {
	return unix.Umask(mask)
}
