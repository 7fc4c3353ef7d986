//go:build linux || darwin

package util

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MemoryLimitSupported reports whether SetMemoryLimit has an effect.
const MemoryLimitSupported = true

// SetMemoryLimit lowers the soft address space limit (RLIMIT_AS) of the
// process to limitBytes. The hard limit is left alone and a soft limit
// already below limitBytes is kept. Zero is a no-op.
func SetMemoryLimit(limitBytes uint64) error {
	if limitBytes == 0 {
		return nil
	}

	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_AS, &rl); err != nil {
		return fmt.Errorf("failed to read address space limit: %w", err)
	}

	want := limitBytes
	if rl.Max != unix.RLIM_INFINITY && want > rl.Max {
		want = rl.Max
	}
	if rl.Cur != unix.RLIM_INFINITY && rl.Cur <= want {
		return nil
	}

	rl.Cur = want
	if err := unix.Setrlimit(unix.RLIMIT_AS, &rl); err != nil {
		return fmt.Errorf("failed to set address space limit: %w", err)
	}
	return nil
}

// MemoryLimit returns the current soft address space limit, or 0 when
// unlimited.
func MemoryLimit() (uint64, error) {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_AS, &rl); err != nil {
		return 0, err
	}
	if rl.Cur == unix.RLIM_INFINITY {
		return 0, nil
	}
	return rl.Cur, nil
}
