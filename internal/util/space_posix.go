//go:build linux || darwin

package util

import "golang.org/x/sys/unix"

// GetAvailableSpace returns the bytes available to unprivileged users on
// the filesystem holding path, or 0 if it cannot be determined.
func GetAvailableSpace(path string) uint64 {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0
	}
	return uint64(st.Bavail) * uint64(st.Bsize)
}
