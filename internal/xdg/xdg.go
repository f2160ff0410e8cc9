// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

// Package xdg resolves XDG Base Directory paths for enroll.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "enroll"

// ConfigDir returns $XDG_CONFIG_HOME/enroll, falling back to ~/.config/enroll.
func ConfigDir() (string, error) {
	return resolve("XDG_CONFIG_HOME", ".config")
}

// DataDir returns $XDG_DATA_HOME/enroll, falling back to ~/.local/share/enroll.
func DataDir() (string, error) {
	return resolve("XDG_DATA_HOME", ".local", "share")
}

// ConfigFile returns the default config file path.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// SQLitePath returns the default SQLite database path.
func SQLitePath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "accounts.db"), nil
}

// EnsureDir creates path and its parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.Code("XDG_MKDIR_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

func resolve(env string, fallback ...string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", oops.Code("XDG_HOME_UNKNOWN").With("env", env).Wrap(err)
	}
	return filepath.Join(append(append([]string{home}, fallback...), appName)...), nil
}
