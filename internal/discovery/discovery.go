// Package discovery expands command-line inputs into the files to check.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	cerrors "github.com/Vzurxy/discord-crasher-checker/internal/errors"
	"github.com/Vzurxy/discord-crasher-checker/internal/util"
)

// DiscoveryLogger defines the interface for discovery logging.
type DiscoveryLogger interface {
	Info(format string, args ...any)
	Debug(format string, args ...any)
}

// DiscoveryResult contains the results of file discovery with metadata.
type DiscoveryResult struct {
	Files        []string
	SkippedCount int
	Errors       []error
}

// FindVideoFiles finds video files in the given directory.
// Returns files sorted alphabetically by filename.
func FindVideoFiles(inputDir string) ([]string, error) {
	result := &DiscoveryResult{}
	if err := scanDirectory(inputDir, result); err != nil {
		return nil, err
	}
	if len(result.Files) == 0 {
		return nil, cerrors.NewNoFilesFoundError(inputDir)
	}
	return result.Files, nil
}

// ExpandInputs resolves each input to the files to check. Directories
// contribute their video files, non-recursively and sorted by name; any
// other input is kept as given whatever its extension, so a file that
// cannot be opened still gets a result of its own. Directories without
// video files are recorded in Errors. An error is returned only when
// nothing at all is left to check.
func ExpandInputs(inputs []string, logger DiscoveryLogger) (*DiscoveryResult, error) {
	result := &DiscoveryResult{}

	for _, input := range inputs {
		if !util.DirectoryExists(input) {
			result.Files = append(result.Files, input)
			continue
		}

		dirResult := &DiscoveryResult{}
		if err := scanDirectory(input, dirResult); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		result.SkippedCount += dirResult.SkippedCount
		if len(dirResult.Files) == 0 {
			result.Errors = append(result.Errors, cerrors.NewNoFilesFoundError(input))
			continue
		}
		result.Files = append(result.Files, dirResult.Files...)
	}

	if len(result.Files) == 0 {
		if len(result.Errors) > 0 {
			return nil, result.Errors[0]
		}
		return nil, cerrors.NewPathError("no inputs given")
	}

	if logger != nil {
		logDiscoveredFiles(result.Files, logger)
	}
	return result, nil
}

// scanDirectory appends the video files of dir to result, skipping hidden
// entries and subdirectories.
func scanDirectory(dir string, result *DiscoveryResult) error {
	info, err := os.Stat(dir)
	if err != nil {
		return cerrors.NewPathError(fmt.Sprintf("directory does not exist: %s", dir))
	}
	if !info.IsDir() {
		return cerrors.NewPathError(fmt.Sprintf("%s is not a directory", dir))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return cerrors.NewIOError(fmt.Sprintf("cannot read directory %s", dir), err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Skip hidden files
		if strings.HasPrefix(name, ".") {
			continue
		}

		fullPath := filepath.Join(dir, name)
		if util.IsVideoFile(fullPath) {
			files = append(files, fullPath)
		} else {
			result.SkippedCount++
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return strings.ToLower(filepath.Base(files[i])) < strings.ToLower(filepath.Base(files[j]))
	})
	result.Files = append(result.Files, files...)
	return nil
}

// logDiscoveredFiles logs the first 5 discovered files plus a count.
func logDiscoveredFiles(files []string, logger DiscoveryLogger) {
	if len(files) == 0 {
		logger.Info("No video files found")
		return
	}

	logger.Info("Found %d video file(s)", len(files))

	maxToLog := min(5, len(files))
	for i := 0; i < maxToLog; i++ {
		logger.Debug("  %s", filepath.Base(files[i]))
	}

	if len(files) > 5 {
		logger.Debug("  ... and %d more", len(files)-5)
	}
}
