// Package config provides configuration utilities for the application.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands ~ and environment variables in a file path. It handles
// both ~ for the home directory and $VAR style environment variables.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	switch {
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}

// DefaultConfigDir is where the config file and database live unless
// overridden.
func DefaultConfigDir() string {
	return ExpandPath("~/.config/needledrop")
}

// DefaultDatabasePath is the sqlite database location unless overridden.
func DefaultDatabasePath() string {
	return filepath.Join(DefaultConfigDir(), "needledrop.db")
}

// DefaultLogPath is the rotating log file location used when file logging
// is enabled without an explicit path.
func DefaultLogPath() string {
	return filepath.Join(DefaultConfigDir(), "needledrop.log")
}
