package reporter

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// recorder records event names in order.
type recorder struct {
	events []string
}

func (r *recorder) BatchStarted(BatchStartInfo) { r.events = append(r.events, "batch_started") }
func (r *recorder) FileStarted(FileStartInfo)   { r.events = append(r.events, "file_started") }
func (r *recorder) FileVerdict(VerdictSummary)  { r.events = append(r.events, "file_verdict") }
func (r *recorder) FileError(FileFailure)       { r.events = append(r.events, "file_error") }
func (r *recorder) Warning(string)              { r.events = append(r.events, "warning") }
func (r *recorder) BatchComplete(BatchSummary)  { r.events = append(r.events, "batch_complete") }
func (r *recorder) Verbose(string)              { r.events = append(r.events, "verbose") }

var _ Reporter = NullReporter{}
var _ Reporter = (*TerminalReporter)(nil)
var _ Reporter = (*JSONReporter)(nil)
var _ Reporter = (*CompositeReporter)(nil)

func decodeEvents(t *testing.T, data []byte) []map[string]interface{} {
	t.Helper()
	var events []map[string]interface{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var ev map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("line %q is not JSON: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}
	return events
}

func TestJSONReporterEvents(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporterWithWriter(&buf)

	r.BatchStarted(BatchStartInfo{TotalFiles: 2, Workers: 1, Backend: "libav", FileList: []string{"a.mp4", "b.mp4"}})
	r.FileVerdict(VerdictSummary{Path: "a.mp4", Verdict: "safe", Format: "mov,mp4,m4a,3gp,3g2,mj2", Frames: 10})
	r.FileVerdict(VerdictSummary{
		Index: 1, Path: "b.mp4", Verdict: "unsafe", Code: 1,
		AnomalyFrame: 4, AnomalyDelta: 1, Expected: "yuv420p 1280x720", Observed: "yuv444p 16x16",
	})
	r.FileError(FileFailure{Path: "c.mp4", Code: -1, Kind: "container_open", Message: "open failed"})
	r.Verbose("ignored")
	r.BatchComplete(BatchSummary{TotalFiles: 2, SafeCount: 1, UnsafeCount: 1, TotalDuration: 1500 * time.Millisecond})

	events := decodeEvents(t, buf.Bytes())
	wantTypes := []string{"batch_started", "file_verdict", "file_verdict", "file_error", "batch_complete"}
	if len(events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d", len(events), len(wantTypes))
	}
	for i, want := range wantTypes {
		if events[i]["type"] != want {
			t.Errorf("event %d type = %v, want %s", i, events[i]["type"], want)
		}
	}

	if _, ok := events[1]["anomaly_frame"]; ok {
		t.Error("safe verdict should not carry anomaly fields")
	}
	if events[2]["anomaly_frame"] != float64(4) {
		t.Errorf("anomaly_frame = %v, want 4", events[2]["anomaly_frame"])
	}
	if events[2]["observed"] != "yuv444p 16x16" {
		t.Errorf("observed = %v", events[2]["observed"])
	}
	if events[3]["code"] != float64(-1) {
		t.Errorf("error code = %v, want -1", events[3]["code"])
	}
	if events[4]["total_duration_seconds"] != 1.5 {
		t.Errorf("total_duration_seconds = %v, want 1.5", events[4]["total_duration_seconds"])
	}
}

func TestTerminalReporterVerdicts(t *testing.T) {
	var buf bytes.Buffer
	r := NewTerminalReporterWithWriter(&buf, false)

	r.BatchStarted(BatchStartInfo{TotalFiles: 3, Workers: 2, Backend: "ffprobe"})
	r.FileStarted(FileStartInfo{Index: 0, TotalFiles: 3, Path: "quiet.mp4"})
	r.FileVerdict(VerdictSummary{Path: "a.mp4", Verdict: "safe"})
	r.FileVerdict(VerdictSummary{Path: "b.webm", Verdict: "safe", Skipped: true, Format: "matroska,webm"})
	r.FileVerdict(VerdictSummary{
		Path: "c.mp4", Verdict: "unsafe",
		AnomalyFrame: 4, AnomalyDelta: 1, Expected: "yuv420p 1280x720", Observed: "yuv444p 16x16",
	})
	r.FileError(FileFailure{Path: "d.mp4", Code: -1, Message: "cannot open"})
	r.Verbose("quiet")
	r.BatchComplete(BatchSummary{TotalFiles: 4, SafeCount: 2, UnsafeCount: 1, ErrorCount: 1, UnsafeFiles: []string{"c.mp4"}})

	out := buf.String()
	for _, want := range []string{
		"CHECK", "ffprobe",
		"SAFE", "a.mp4",
		"matroska,webm not scanned",
		"UNSAFE", "frame 4: dts delta 1, decoder yuv420p 1280x720 -> yuv444p 16x16",
		"ERROR", "cannot open (code -1)",
		"SUMMARY", "2 of 4 safe",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	for _, absent := range []string{"quiet.mp4", "quiet\n"} {
		if strings.Contains(out, absent) {
			t.Errorf("non-verbose output contains %q", absent)
		}
	}
}

func TestTerminalReporterVerbose(t *testing.T) {
	var buf bytes.Buffer
	r := NewTerminalReporterWithWriter(&buf, true)

	r.FileStarted(FileStartInfo{Index: 1, TotalFiles: 2, Path: "b.mp4"})
	r.FileVerdict(VerdictSummary{Path: "b.mp4", Verdict: "safe", Format: "mp4", Frames: 1, Probes: 2, Duration: 250 * time.Millisecond})
	r.Verbose("detail line")

	out := buf.String()
	for _, want := range []string{"[2/2] b.mp4", "1 packet, 2 probes in 250ms", "detail line"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCompositeReporterFansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	c := NewCompositeReporter(a, b, NullReporter{})

	c.BatchStarted(BatchStartInfo{})
	c.FileStarted(FileStartInfo{})
	c.FileVerdict(VerdictSummary{})
	c.FileError(FileFailure{})
	c.Warning("w")
	c.Verbose("v")
	c.BatchComplete(BatchSummary{})

	want := "batch_started,file_started,file_verdict,file_error,warning,verbose,batch_complete"
	for _, r := range []*recorder{a, b} {
		if got := strings.Join(r.events, ","); got != want {
			t.Errorf("events = %s, want %s", got, want)
		}
	}
}
