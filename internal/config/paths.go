package config

import (
	"os"
	"path/filepath"

	"github.com/shuntaka9576/agentoast/internal/profile"
)

// Dir returns the agentoast config directory, honoring XDG_CONFIG_HOME
// and the active profile.
func Dir() (string, error) {
	name := profile.Qualify("agentoast")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, name), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", name), nil
}

// DataDir returns the agentoast data directory, honoring XDG_DATA_HOME
// and the active profile.
func DataDir() (string, error) {
	name := profile.Qualify("agentoast")
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, name), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", name), nil
}

// DBPath returns the notification database path, creating the data dir.
func DBPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "agentoast.db"), nil
}

// LogDir returns the log directory, creating it if needed.
func LogDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	logDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return "", err
	}
	return logDir, nil
}
