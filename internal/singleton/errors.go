package singleton

import "errors"

var (
	// ErrAlreadyLocked is returned in start mode when another instance holds
	// the lock. No signal is sent in that case.
	ErrAlreadyLocked = errors.New("lockfile is already locked by another process")

	// ErrLockTimeout means the previous holder did not release the lock
	// within the timeout budget.
	ErrLockTimeout = errors.New("timed out waiting for lock owner to terminate")

	// ErrMalformedLegacyPID means a locked legacy lock file did not contain a
	// usable pid.
	ErrMalformedLegacyPID = errors.New("wrong pid in old lockfile")

	// ErrSignalFailed means the termination signal could not be delivered to
	// a live holder. A failed delivery to a holder that has already exited is
	// not an error; the next lock query sees the lock free.
	ErrSignalFailed = errors.New("can't send termination signal to lock owner")

	// ErrLockQuery wraps failures of the lock call itself.
	ErrLockQuery = errors.New("lock query failed")
)
