package util

import (
	"os"
	"path/filepath"
	"strings"
)

// VideoExtensions lists the extensions collected when a directory is
// checked. Matroska and WebM are included so they show up as skipped
// rather than silently missing from a batch.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".mov":  true,
	".3gp":  true,
	".3g2":  true,
	".mkv":  true,
	".webm": true,
	".avi":  true,
	".flv":  true,
	".ts":   true,
	".m2ts": true,
	".mts":  true,
	".mpg":  true,
	".mpeg": true,
	".ogv":  true,
	".wmv":  true,
	".gif":  true,
}

// IsVideoFile reports whether path is a regular file with a video
// extension.
func IsVideoFile(path string) bool {
	if !VideoExtensions[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// GetFilename returns the last element of path.
func GetFilename(path string) string {
	return filepath.Base(path)
}

// DirectoryExists reports whether path is an existing directory.
func DirectoryExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
