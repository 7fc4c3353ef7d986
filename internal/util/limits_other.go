//go:build !linux && !darwin

package util

import "errors"

// MemoryLimitSupported reports whether SetMemoryLimit has an effect.
const MemoryLimitSupported = false

// SetMemoryLimit is not supported on this platform.
func SetMemoryLimit(limitBytes uint64) error {
	if limitBytes == 0 {
		return nil
	}
	return errors.New("memory limit is not supported on this platform")
}

// MemoryLimit always reports no limit on this platform.
func MemoryLimit() (uint64, error) {
	return 0, nil
}
