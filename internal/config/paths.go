package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath names a config file that overrides the search
	EnvConfigPath = "NETINV_CONFIG"
	// ConfigFileName is looked up in the working directory
	ConfigFileName = "netinventory.yaml"
	// ConfigDirName is the per-user and system config directory
	ConfigDirName = "netinventory"
)

// SearchPaths lists where netinv looks for its config, first match wins:
// the NETINV_CONFIG file, netinventory.yaml in the working directory, then
// netinventory/config.yaml under the user config dir and under /etc.
// Locations whose base variable is unset are left out.
func SearchPaths() []string {
	var paths []string
	if p := os.Getenv(EnvConfigPath); p != "" {
		paths = append(paths, p)
	}
	paths = append(paths, ConfigFileName)

	switch {
	case os.Getenv("XDG_CONFIG_HOME") != "":
		paths = append(paths, filepath.Join(os.Getenv("XDG_CONFIG_HOME"), ConfigDirName, "config.yaml"))
	case os.Getenv("HOME") != "":
		paths = append(paths, filepath.Join(os.Getenv("HOME"), ".config", ConfigDirName, "config.yaml"))
	}
	return append(paths, filepath.Join("/etc", ConfigDirName, "config.yaml"))
}

// FindConfigPath returns the first existing file from SearchPaths, made
// absolute when it is relative, or "" when there is none. A NETINV_CONFIG
// pointing at a missing file does not stop the search.
func FindConfigPath() string {
	for _, p := range SearchPaths() {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return p
	}
	return ""
}

// EnsureConfigDir creates the directory that will hold configPath
func EnsureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0o755)
}
