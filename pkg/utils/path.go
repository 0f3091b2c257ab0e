package utils

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/PhiFever/idbadge-scanner/pkg/version"
)

// GetAppDataDir returns the per-user application data directory, creating it if needed
func GetAppDataDir() (string, error) {
	var appDataDir string

	if appData := os.Getenv("APPDATA"); appData != "" {
		// Windows
		appDataDir = filepath.Join(appData, version.AppName)
	} else if home := os.Getenv("HOME"); home != "" {
		// Linux/macOS
		appDataDir = filepath.Join(home, ".local", "share", version.AppName)
	} else {
		// Fallback
		appDataDir = version.AppName
	}

	if err := os.MkdirAll(appDataDir, 0755); err != nil {
		return "", err
	}

	return appDataDir, nil
}

// GetAppDataPath returns the path of a file or directory inside the application data directory
func GetAppDataPath(name string) (string, error) {
	dir, err := GetAppDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// EnsureDir creates dir (and parents) and returns it
func EnsureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// IsImageFile reports whether name has an extension the scanner can decode
func IsImageFile(name string) bool {
	// temp files written while a scan is in flight
	if strings.HasPrefix(filepath.Base(name), ".") || strings.HasSuffix(name, ".tmp") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".webp", ".gif", ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}
