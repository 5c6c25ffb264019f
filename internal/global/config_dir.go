package global

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigDir returns ~/.ghostsync.
func DefaultConfigDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv("GHOSTSYNC_CONFIG_DIR")); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ghostsync"), nil
}

func LogsDir(configDir string) string {
	return filepath.Join(configDir, "logs")
}

func ScreenshotsDir(configDir string) string {
	return filepath.Join(configDir, "screenshots")
}

func BinDir(configDir string) string {
	return filepath.Join(configDir, "bin")
}

func DBPath(configDir string) string {
	return filepath.Join(configDir, "ghostsync.db")
}
