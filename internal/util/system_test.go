package util

import (
	"runtime"
	"strings"
	"testing"
)

func TestGetSystemInfo(t *testing.T) {
	info := GetSystemInfo()
	if info.OS != runtime.GOOS || info.Arch != runtime.GOARCH {
		t.Errorf("GetSystemInfo() = %+v", info)
	}
	if info.NumCPU <= 0 {
		t.Errorf("NumCPU = %d, want > 0", info.NumCPU)
	}
}

func TestParseMemAvailable(t *testing.T) {
	meminfo := `MemTotal:       16316412 kB
MemFree:         1234567 kB
MemAvailable:    8000000 kB
Buffers:          123456 kB
`
	got := parseMemAvailable(strings.NewReader(meminfo))
	if got != 8000000*1024 {
		t.Errorf("parseMemAvailable() = %d, want %d", got, 8000000*1024)
	}

	got = parseMemAvailable(strings.NewReader("MemTotal: 1 kB\n"))
	if got != 0 {
		t.Errorf("parseMemAvailable() without MemAvailable = %d, want 0", got)
	}
}

func TestMaxWorkersForMemory(t *testing.T) {
	if got := MaxWorkersForMemory(0, 0, 0.5); got != 1 {
		t.Errorf("MaxWorkersForMemory(0, 0) = %d, want 1", got)
	}
	if got := MaxWorkersForMemory(4, 0, 0.5); got != 4 {
		t.Errorf("MaxWorkersForMemory without estimate = %d, want 4", got)
	}

	// An absurd per-worker estimate always collapses to a single worker
	// unless memory cannot be read at all.
	got := MaxWorkersForMemory(8, 1<<62, 0.5)
	if AvailableMemoryBytes() == 0 {
		if got != 8 {
			t.Errorf("MaxWorkersForMemory() = %d, want 8 when memory is unknown", got)
		}
	} else if got != 1 {
		t.Errorf("MaxWorkersForMemory() = %d, want 1", got)
	}
}
