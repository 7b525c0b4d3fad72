package infra

import "os"

// OSHost applies process-wide settings to the real operating system.
type OSHost struct{}

// NewOSHost returns the live host.
func NewOSHost() *OSHost {
	return &OSHost{}
}

func (OSHost) RaiseOpenFiles(n uint64) error { return RaiseOpenFiles(n) }

func (OSHost) UnlimitMemoryLock() error { return UnlimitMemoryLock() }

func (OSHost) LockAllMemory() error { return LockAllMemory() }

func (OSHost) SetNice(level int) error { return SetNice(level) }

func (OSHost) SetUmask(mask int) int { return SetUmask(mask) }

func (OSHost) IsRoot() bool { return os.Geteuid() == 0 }

func (OSHost) EnterDataPath(path string) (string, error) { return EnterDataPath(path) }

// ChangeIdentity resolves and switches to the working user and group.
func (OSHost) ChangeIdentity(user, group string) (Identity, error) {
	id, err := ResolveIdentity(user, group)
	if err != nil {
		return Identity{}, err
	}
	return id, DropPrivileges(id)
}
