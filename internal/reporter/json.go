package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// JSONReporter outputs one JSON event per line.
type JSONReporter struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONReporter creates a new JSON reporter that writes to stdout.
func NewJSONReporter() *JSONReporter {
	return &JSONReporter{writer: os.Stdout}
}

// NewJSONReporterWithWriter creates a JSON reporter with a custom writer.
func NewJSONReporterWithWriter(w io.Writer) *JSONReporter {
	return &JSONReporter{writer: w}
}

func (r *JSONReporter) timestamp() int64 {
	return time.Now().Unix()
}

func (r *JSONReporter) write(v interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintln(r.writer, string(data))
}

func (r *JSONReporter) BatchStarted(info BatchStartInfo) {
	r.write(map[string]interface{}{
		"type":        "batch_started",
		"total_files": info.TotalFiles,
		"workers":     info.Workers,
		"backend":     info.Backend,
		"file_list":   info.FileList,
		"timestamp":   r.timestamp(),
	})
}

func (r *JSONReporter) FileStarted(info FileStartInfo) {
	r.write(map[string]interface{}{
		"type":        "file_started",
		"index":       info.Index,
		"total_files": info.TotalFiles,
		"path":        info.Path,
		"timestamp":   r.timestamp(),
	})
}

func (r *JSONReporter) FileVerdict(summary VerdictSummary) {
	event := map[string]interface{}{
		"type":        "file_verdict",
		"index":       summary.Index,
		"scan_id":     summary.ScanID,
		"path":        summary.Path,
		"verdict":     summary.Verdict,
		"code":        summary.Code,
		"format":      summary.Format,
		"frames":      summary.Frames,
		"probes":      summary.Probes,
		"skipped":     summary.Skipped,
		"no_video":    summary.NoVideo,
		"truncated":   summary.Truncated,
		"duration_ms": summary.Duration.Milliseconds(),
		"timestamp":   r.timestamp(),
	}
	if summary.Verdict == "unsafe" {
		event["anomaly_frame"] = summary.AnomalyFrame
		event["anomaly_delta"] = summary.AnomalyDelta
		event["expected"] = summary.Expected
		event["observed"] = summary.Observed
	}
	r.write(event)
}

func (r *JSONReporter) FileError(failure FileFailure) {
	r.write(map[string]interface{}{
		"type":        "file_error",
		"index":       failure.Index,
		"scan_id":     failure.ScanID,
		"path":        failure.Path,
		"code":        failure.Code,
		"kind":        failure.Kind,
		"message":     failure.Message,
		"duration_ms": failure.Duration.Milliseconds(),
		"timestamp":   r.timestamp(),
	})
}

func (r *JSONReporter) Warning(message string) {
	r.write(map[string]interface{}{
		"type":      "warning",
		"message":   message,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) BatchComplete(summary BatchSummary) {
	r.write(map[string]interface{}{
		"type":                   "batch_complete",
		"total_files":            summary.TotalFiles,
		"safe_count":             summary.SafeCount,
		"unsafe_count":           summary.UnsafeCount,
		"error_count":            summary.ErrorCount,
		"skipped_count":          summary.SkippedCount,
		"unsafe_files":           summary.UnsafeFiles,
		"failed_files":           summary.FailedFiles,
		"total_duration_seconds": summary.TotalDuration.Seconds(),
		"timestamp":              r.timestamp(),
	})
}

// Verbose messages are terminal-only.
func (r *JSONReporter) Verbose(string) {}
