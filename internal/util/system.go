package util

import (
	"bufio"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// SystemInfo describes the host, logged once at the start of a run.
type SystemInfo struct {
	Hostname string
	NumCPU   int
	OS       string
	Arch     string
}

// GetSystemInfo collects host information.
func GetSystemInfo() SystemInfo {
	hostname, _ := os.Hostname()
	return SystemInfo{
		Hostname: hostname,
		NumCPU:   runtime.NumCPU(),
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
	}
}

// AvailableMemoryBytes reports MemAvailable from /proc/meminfo, or 0 when
// it cannot be read.
func AvailableMemoryBytes() uint64 {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer f.Close()
	return parseMemAvailable(f)
}

func parseMemAvailable(r io.Reader) uint64 {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, rest, ok := strings.Cut(sc.Text(), ":")
		if !ok || key != "MemAvailable" {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return 0
		}
		kb, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return 0
		}
		return kb * KiB
	}
	return 0
}

// MaxWorkersForMemory caps workers so each can hold perWorkerBytes within
// memFraction of available memory. The result is at least 1; workers is
// returned unchanged when memory cannot be determined.
func MaxWorkersForMemory(workers int, perWorkerBytes uint64, memFraction float64) int {
	workers = max(workers, 1)
	available := AvailableMemoryBytes()
	if available == 0 || perWorkerBytes == 0 {
		return workers
	}
	fit := int(uint64(float64(available)*memFraction) / perWorkerBytes)
	return max(min(workers, fit), 1)
}
