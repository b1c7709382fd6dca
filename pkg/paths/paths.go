package paths

import (
	"os"
	"path/filepath"
)

// GetConfigDir returns the user's config directory for docflow.
//
// If the home directory cannot be determined, it falls back to a directory
// under the system temporary directory. This is a best-effort fallback and
// not intended to be a security boundary.
func GetConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Clean(filepath.Join(os.TempDir(), ".docflow-config"))
	}
	return filepath.Clean(filepath.Join(homeDir, ".config", "docflow"))
}

// GetDataDir returns the user's data directory for docflow (local result
// stores, metadata sinks, logs).
//
// If the home directory cannot be determined, it falls back to a directory
// under the system temporary directory.
func GetDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Clean(filepath.Join(os.TempDir(), ".docflow"))
	}
	return filepath.Clean(filepath.Join(homeDir, ".docflow"))
}
