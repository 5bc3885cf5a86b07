// Package xdg resolves XDG base directories for the sqlquest learner CLI.
// Directories are created with private permissions when missing.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "sqlquest"

// ConfigDir returns $XDG_CONFIG_HOME/sqlquest, falling back to
// ~/.config/sqlquest.
func ConfigDir() (string, error) {
	return appDir("XDG_CONFIG_HOME", ".config")
}

// StateDir returns $XDG_STATE_HOME/sqlquest, falling back to
// ~/.local/state/sqlquest. Learner progress lives here.
func StateDir() (string, error) {
	return appDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func appDir(envKey, homeFallback string) (string, error) {
	base := os.Getenv(envKey)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, homeFallback)
	}
	dir := filepath.Join(base, appName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}
