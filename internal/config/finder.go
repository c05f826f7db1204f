package config

import (
	"os"
	"path/filepath"
)

var configExtensions = []string{"yml", "yaml", "json", "toml"}

// firstExisting returns the first <dir>/<base>.<ext> that exists
func firstExisting(dir, base string) string {
	for _, ext := range configExtensions {
		path := filepath.Join(dir, base+"."+ext)

		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}

	return ""
}

// FindGlobalConfig returns lakefetch/config.* under the user config directory
func FindGlobalConfig(configDir string) string {
	if configDir == "" {
		return ""
	}

	return firstExisting(filepath.Join(configDir, "lakefetch"), "config")
}

// FindLocalConfig returns the nearest .lakefetch.* at or above dir
func FindLocalConfig(dir string) string {
	for {
		if path := firstExisting(dir, DefaultConfigPrefix); path != "" {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}

		dir = parent
	}
}
