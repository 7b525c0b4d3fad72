package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading ~ to home.
func ExpandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		return home
	}
	return path
}

// EnterDataPath changes the working directory to path. The lock file and any
// module state live there.
func EnterDataPath(path string) (string, error) {
	home, _ := os.UserHomeDir()
	expanded := ExpandHome(path, home)
	if err := os.Chdir(expanded); err != nil {
		return "", fmt.Errorf("can't set working directory to %s: %w", expanded, err)
	}
	return expanded, nil
}
