package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupDisabled(t *testing.T) {
	l, err := Setup(t.TempDir(), true, true)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if l != nil {
		t.Fatalf("Setup() with noLog = %v, want nil", l)
	}

	// nil run log must be usable
	l.Info("ignored %d", 1)
	l.Debug("ignored")
	if l.FilePath() != "" {
		t.Errorf("FilePath() = %q, want empty", l.FilePath())
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	l.Structured().Info("dropped")
}

func TestSetupWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	l, err := Setup(dir, false, false)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	l.Info("checked %s", "a.mp4")
	l.Debug("hidden without verbose")
	l.Structured().Debug("hidden structured")
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	want := filepath.Join(dir, RunLogFilename)
	if l.FilePath() != want {
		t.Errorf("FilePath() = %q, want %q", l.FilePath(), want)
	}

	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "[INFO] checked a.mp4") {
		t.Errorf("log missing info line:\n%s", content)
	}
	if strings.Contains(content, "hidden") {
		t.Errorf("debug lines written without verbose:\n%s", content)
	}
}

func TestSetupVerbose(t *testing.T) {
	dir := t.TempDir()

	l, err := Setup(dir, true, false)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	l.Debug("delta %d", 1001)
	l.Structured().Debug("baseline established", "delta", 1001)
	_ = l.Close()

	data, err := os.ReadFile(filepath.Join(dir, RunLogFilename))
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "[DEBUG] delta 1001") {
		t.Errorf("log missing debug line:\n%s", content)
	}
	if !strings.Contains(content, "baseline established") {
		t.Errorf("log missing structured line:\n%s", content)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Output: &buf, Enabled: true})

	l.Info("quiet")
	l.Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("info record written at warn level: %s", out)
	}
	if !strings.Contains(out, "loud") {
		t.Errorf("warn record missing: %s", out)
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf, Enabled: true, JSON: true}).WithFile("x.mp4")

	l.Info("verdict", "result", "safe")

	out := buf.String()
	if !strings.Contains(out, `"file":"x.mp4"`) || !strings.Contains(out, `"result":"safe"`) {
		t.Errorf("unexpected JSON output: %s", out)
	}
}

func TestSetGlobal(t *testing.T) {
	prev := Global()
	t.Cleanup(func() { SetGlobal(prev) })

	var buf bytes.Buffer
	SetGlobal(New(Config{Level: LevelDebug, Output: &buf, Enabled: true}))
	Global().WithScan("abc").Debug("global debug")

	out := buf.String()
	if !strings.Contains(out, "global debug") || !strings.Contains(out, "scan_id=abc") {
		t.Errorf("global logger did not write: %s", out)
	}

	SetGlobal(nil)
	if Global() == nil {
		t.Error("SetGlobal(nil) cleared the global logger")
	}
}

func TestWithPrefix(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Level: LevelInfo, Output: &buf, Enabled: true}).WithPrefix("server").Info("listening")

	if !strings.Contains(buf.String(), "component=server") {
		t.Errorf("component attribute missing: %s", buf.String())
	}
}
