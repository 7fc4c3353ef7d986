// Package backend builds the media opener selected by configuration.
package backend

import (
	"fmt"

	"github.com/Vzurxy/discord-crasher-checker/internal/config"
	cerrors "github.com/Vzurxy/discord-crasher-checker/internal/errors"
	"github.com/Vzurxy/discord-crasher-checker/internal/ffprobe"
	"github.com/Vzurxy/discord-crasher-checker/internal/libav"
	"github.com/Vzurxy/discord-crasher-checker/internal/logging"
	"github.com/Vzurxy/discord-crasher-checker/internal/media"
)

// New returns the opener for cfg.Backend. The ffprobe backend fails here
// when its binary cannot be found.
func New(cfg *config.Config, logger *logging.Logger) (media.Opener, error) {
	if logger == nil {
		logger = logging.Global()
	}

	switch cfg.Backend {
	case config.BackendLibav:
		return libav.NewOpener(cfg.Verbose, logger), nil
	case config.BackendFFprobe:
		return ffprobe.NewOpener(cfg.FFprobePath, logger)
	default:
		return nil, cerrors.NewConfigError(fmt.Sprintf("unknown backend %q", cfg.Backend))
	}
}
