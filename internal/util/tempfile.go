package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// minFreeSpace is the free space below which CheckDiskSpace warns.
const minFreeSpace = 1 * GiB

// EnsureDirectoryWritable verifies that path is an existing directory the
// process can create files in.
func EnsureDirectoryWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("directory %s is not accessible: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}

	probe, err := os.CreateTemp(path, ".crashcheck_write_test_*")
	if err != nil {
		return fmt.Errorf("directory %s is not writable: %w", path, err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

// TempFile is an open temporary file removed by Cleanup.
type TempFile struct {
	path string
	file *os.File
}

// Path returns the file path.
func (f *TempFile) Path() string {
	return f.path
}

// File returns the open file handle.
func (f *TempFile) File() *os.File {
	return f.file
}

// Close closes the handle and keeps the file.
func (f *TempFile) Close() error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

// Cleanup closes and removes the file. A missing file is not an error.
func (f *TempFile) Cleanup() error {
	_ = f.Close()
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// CreateTempFile creates and opens baseDir/<prefix>_<random>.<ext> with
// owner-only permissions. It never reuses an existing name.
func CreateTempFile(baseDir, prefix, ext string) (*TempFile, error) {
	suffix, err := generateRandomString(8)
	if err != nil {
		return nil, err
	}
	name := prefix + "_" + suffix
	if ext = strings.TrimPrefix(ext, "."); ext != "" {
		name += "." + ext
	}

	path := filepath.Join(baseDir, name)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	return &TempFile{path: path, file: file}, nil
}

// CleanupStaleTempFiles removes files in dir named <prefix>_* that are
// older than maxAge and returns how many were removed. A missing
// directory is not an error.
func CleanupStaleTempFiles(dir, prefix string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	count := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix+"_") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
			count++
		}
	}
	return count, nil
}

// CheckDiskSpace reports whether path has at least 1 GiB free. Unknown
// free space counts as enough. logf, when set, receives a warning.
func CheckDiskSpace(path string, logf func(format string, args ...any)) bool {
	free := GetAvailableSpace(path)
	if free == 0 || free >= minFreeSpace {
		return true
	}
	if logf != nil {
		logf("low disk space in %s: %s available", path, FormatBytes(free))
	}
	return false
}

func generateRandomString(n int) (string, error) {
	buf := make([]byte, (n+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random name: %w", err)
	}
	return hex.EncodeToString(buf)[:n], nil
}
