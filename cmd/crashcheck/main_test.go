package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vzurxy/discord-crasher-checker/internal/config"
	"github.com/Vzurxy/discord-crasher-checker/internal/processing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "crashcheck version "+appVersion+"\n", out)
}

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name  string
		batch processing.BatchResult
		want  int
	}{
		{"all safe", processing.BatchResult{Safe: 3}, exitSafe},
		{"unsafe", processing.BatchResult{Safe: 1, Unsafe: 1}, exitUnsafe},
		{"errors only", processing.BatchResult{Safe: 1, Failed: 1}, exitError},
		{"unsafe wins over errors", processing.BatchResult{Unsafe: 1, Failed: 2}, exitUnsafe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitStatus(&tt.batch))
		})
	}
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	gf := &globalFlags{}
	check, _, err := buildRootCmd(gf).Find([]string{"check"})
	require.NoError(t, err)

	logDir := t.TempDir()
	require.NoError(t, check.ParseFlags([]string{
		"--workers", "3",
		"--backend", "ffprobe",
		"--log-dir", logDir,
		"--timeout", "5s",
		"--max-packets", "100",
		"--json",
		"--skip-formats", "flv",
	}))

	cfg, err := loadConfig(check, gf)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, config.BackendFFprobe, cfg.Backend)
	assert.Equal(t, logDir, cfg.LogDir)
	assert.Equal(t, config.DefaultScanTimeout, cfg.ScanTimeout, "check flags apply separately")

	cf := &checkFlags{timeout: 5 * time.Second, maxPackets: 100, json: true, skip: []string{"flv"}}
	require.NoError(t, applyCheckFlags(check, cf, cfg))
	assert.Equal(t, 5*time.Second, cfg.ScanTimeout)
	assert.Equal(t, 100, cfg.MaxPackets)
	assert.Equal(t, config.OutputJSON, cfg.Output)
	assert.Equal(t, []string{"flv"}, cfg.SkipFormats)
}

func TestLoadConfigInvalidBackend(t *testing.T) {
	_, err := execute(t, "check", "--no-log", "--backend", "gstreamer", "x.mp4")
	assert.ErrorIs(t, err, config.ErrInvalidBackend)
}

func TestCheckMissingFileExitsWithError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.mp4")

	out, err := execute(t, "check", "--no-log", "--json", missing)

	var status *exitStatusError
	require.True(t, errors.As(err, &status), "error = %v", err)
	assert.Equal(t, exitError, status.status)
	assert.Contains(t, out, `"type":"file_error"`)
	assert.Contains(t, out, `"code":-1`)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "}"))
}

func TestCheckRequiresArgs(t *testing.T) {
	_, err := execute(t, "check")
	assert.Error(t, err)
}
