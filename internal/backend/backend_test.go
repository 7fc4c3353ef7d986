package backend

import (
	"path/filepath"
	"testing"

	"github.com/Vzurxy/discord-crasher-checker/internal/config"
	cerrors "github.com/Vzurxy/discord-crasher-checker/internal/errors"
	"github.com/Vzurxy/discord-crasher-checker/internal/libav"
	"github.com/Vzurxy/discord-crasher-checker/internal/logging"
)

func TestNewLibav(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())
	cfg.Verbose = true

	opener, err := New(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	lo, ok := opener.(*libav.Opener)
	if !ok {
		t.Fatalf("New() = %T, want *libav.Opener", opener)
	}
	if !lo.Verbose {
		t.Error("libav opener should inherit verbose")
	}
}

func TestNewFFprobeMissingBinary(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())
	cfg.Backend = config.BackendFFprobe
	cfg.FFprobePath = filepath.Join(t.TempDir(), "ffprobe-missing")

	_, err := New(cfg, nil)
	if !cerrors.IsKind(err, cerrors.KindBackendUnavailable) {
		t.Errorf("New() error = %v, want backend unavailable", err)
	}
}

func TestNewUnknownBackend(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())
	cfg.Backend = "gstreamer"

	_, err := New(cfg, nil)
	if !cerrors.IsKind(err, cerrors.KindConfig) {
		t.Errorf("New() error = %v, want config error", err)
	}
}
