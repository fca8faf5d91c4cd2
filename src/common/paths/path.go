// Package paths provides common path manipulation utilities for photarium applications.
package paths

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

func homeDir() (string, bool) {
	usr, err := user.Current()
	if err != nil {
		return "", false
	}
	return usr.HomeDir, true
}

// Expand expands environment variables and a leading ~ in path.
func Expand(path string) string {
	return ExpandHome(os.ExpandEnv(path))
}

// ExpandHome expands only the ~ prefix to the user's home directory
func ExpandHome(path string) string {
	if path == "~" {
		if home, ok := homeDir(); ok {
			return home
		}
	}
	if strings.HasPrefix(path, "~/") {
		if home, ok := homeDir(); ok {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
