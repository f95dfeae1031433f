package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.mindual/logs, or a directory under the system
// temp dir when the home directory is unknown.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".mindual", "logs")
	}
	return filepath.Join(home, ".mindual", "logs")
}

// DefaultLogPath returns the log file shared by the CLI and the server.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "mindual.log")
}

// FindLogFile returns explicit when it exists, otherwise the default log
// file if any command has written it yet.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("log file not found: %s", explicit)
		}
		return explicit, nil
	}

	path := DefaultLogPath()
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no log file found at %s; run any mindual command first (add --debug for detail)", path)
	}
	return path, nil
}
