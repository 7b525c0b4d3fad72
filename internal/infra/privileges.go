package infra

import (
	"errors"
	"fmt"
	"os/user"
	"strconv"
	"strings"
	"syscall"
)

var (
	// ErrUnknownUser means the configured working user does not exist.
	ErrUnknownUser = errors.New("unknown user")
	// ErrUnknownGroup means the configured working group does not exist.
	ErrUnknownGroup = errors.New("unknown group")
)

// Identity is the resolved working user and group.
type Identity struct {
	UID   int
	GID   int
	User  string
	Group string
}

// ResolveIdentity turns the configured user and group into ids. Both accept a
// name or "#<id>". An empty group means the user's primary group.
func ResolveIdentity(userSpec, groupSpec string) (Identity, error) {
	var id Identity

	if uid, ok := numericSpec(userSpec); ok {
		id.UID, id.GID, id.User = uid, -1, userSpec
		if u, err := user.LookupId(strconv.Itoa(uid)); err == nil {
			id.GID, _ = strconv.Atoi(u.Gid)
		}
	} else {
		u, err := user.Lookup(userSpec)
		if err != nil {
			return Identity{}, fmt.Errorf("%w %q: %w", ErrUnknownUser, userSpec, err)
		}
		id.UID, _ = strconv.Atoi(u.Uid)
		id.GID, _ = strconv.Atoi(u.Gid)
		id.User = u.Username
	}

	switch {
	case groupSpec == "":
		if id.GID < 0 {
			return Identity{}, fmt.Errorf("%w: no primary group for user %q", ErrUnknownGroup, userSpec)
		}
		id.Group = "#" + strconv.Itoa(id.GID)
	default:
		if gid, ok := numericSpec(groupSpec); ok {
			id.GID, id.Group = gid, groupSpec
			break
		}
		g, err := user.LookupGroup(groupSpec)
		if err != nil {
			return Identity{}, fmt.Errorf("%w %q: %w", ErrUnknownGroup, groupSpec, err)
		}
		id.GID, _ = strconv.Atoi(g.Gid)
		id.Group = g.Name
	}
	return id, nil
}

func numericSpec(s string) (int, bool) {
	if !strings.HasPrefix(s, "#") {
		return 0, false
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// DropPrivileges switches the whole process to id. Group first, since a
// non-root user can no longer change it.
func DropPrivileges(id Identity) error {
	if err := syscall.Setgroups([]int{id.GID}); err != nil {
		return fmt.Errorf("can't set supplementary groups to %d: %w", id.GID, err)
	}
	if err := syscall.Setgid(id.GID); err != nil {
		return fmt.Errorf("can't set gid to %d: %w", id.GID, err)
	}
	if err := syscall.Setuid(id.UID); err != nil {
		return fmt.Errorf("can't set uid to %d: %w", id.UID, err)
	}
	return nil
}
