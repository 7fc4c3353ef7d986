// Package crashcheck classifies media files as safe or unsafe to play by
// looking for "crasher" streams: video whose decode timestamps break cadence
// at the same packet where the decoder's pixel format or frame size silently
// changes.
//
// Basic usage:
//
//	res, err := crashcheck.Check(ctx, "upload.mp4")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if res.Verdict == crashcheck.Unsafe {
//	    fmt.Printf("unsafe: frame %d\n", res.AnomalyFrame)
//	}
//
// IsSafe offers the same check as a single integer code.
package crashcheck

import (
	"context"
	"time"

	"github.com/Vzurxy/discord-crasher-checker/internal/backend"
	"github.com/Vzurxy/discord-crasher-checker/internal/config"
	"github.com/Vzurxy/discord-crasher-checker/internal/detector"
	"github.com/Vzurxy/discord-crasher-checker/internal/discovery"
	cerrors "github.com/Vzurxy/discord-crasher-checker/internal/errors"
	"github.com/Vzurxy/discord-crasher-checker/internal/logging"
	"github.com/Vzurxy/discord-crasher-checker/internal/media"
	"github.com/Vzurxy/discord-crasher-checker/internal/processing"
	"github.com/Vzurxy/discord-crasher-checker/internal/reporter"
)

// Re-export result types
type (
	Result  = detector.Result
	Verdict = detector.Verdict
)

const (
	Safe   = detector.Safe
	Unsafe = detector.Unsafe
)

// Backend selects how containers are opened.
type Backend = config.Backend

const (
	BackendLibav   = config.BackendLibav
	BackendFFprobe = config.BackendFFprobe
)

// Code is the integer outcome of IsSafe.
type Code = cerrors.Code

const (
	CodeSafe             = cerrors.CodeSafe
	CodeUnsafe           = cerrors.CodeUnsafe
	CodeOutOfMemory      = cerrors.CodeOutOfMemory
	CodeOpenFailed       = cerrors.CodeOpenFailed
	CodeStreamInfoFailed = cerrors.CodeStreamInfoFailed
	CodeInternal         = cerrors.CodeInternal
)

// CodeOf maps an error returned by Check to its negative code.
func CodeOf(err error) Code {
	return cerrors.CodeOf(err)
}

// Reporter receives batch events; see CheckBatch.
type Reporter = reporter.Reporter

// Checker runs checks with a fixed configuration.
type Checker struct {
	config *config.Config
	opener media.Opener
	logger *logging.Logger
}

type settings struct {
	config *config.Config
	opener media.Opener
	logger *logging.Logger
}

// Option configures a Checker.
type Option func(*settings)

// WithBackend selects the media backend. The default is libav.
func WithBackend(b Backend) Option {
	return func(s *settings) {
		s.config.Backend = b
	}
}

// WithFFprobePath sets the ffprobe binary used by the ffprobe backend.
func WithFFprobePath(path string) Option {
	return func(s *settings) {
		s.config.FFprobePath = path
	}
}

// WithOpener replaces the backend with a custom opener.
func WithOpener(o media.Opener) Option {
	return func(s *settings) {
		s.opener = o
	}
}

// WithTimeout bounds each file check. Zero disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.config.ScanTimeout = d
	}
}

// WithMaxPackets stops a scan after n video packets and reports it safe
// and truncated. Zero scans the whole stream.
func WithMaxPackets(n int) Option {
	return func(s *settings) {
		s.config.MaxPackets = n
	}
}

// WithSkipFormats replaces the container formats that are reported safe
// without scanning. An empty list scans everything.
func WithSkipFormats(formats ...string) Option {
	return func(s *settings) {
		s.config.SkipFormats = append([]string{}, formats...)
	}
}

// WithWorkers sets how many files CheckBatch checks at once.
func WithWorkers(n int) Option {
	return func(s *settings) {
		s.config.Workers = n
	}
}

// WithLogger sets the structured logger. The default is the global logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// New creates a Checker with the given options.
func New(opts ...Option) (*Checker, error) {
	s := &settings{config: config.NewConfig("")}
	s.config.ScanTimeout = 0

	for _, opt := range opts {
		opt(s)
	}

	if err := s.config.Validate(); err != nil {
		return nil, cerrors.NewConfigError(err.Error())
	}

	if s.logger == nil {
		s.logger = logging.Global()
	}
	if s.opener == nil {
		o, err := backend.New(s.config, s.logger)
		if err != nil {
			return nil, err
		}
		s.opener = o
	}

	return &Checker{config: s.config, opener: s.opener, logger: s.logger}, nil
}

func (c *Checker) options() processing.Options {
	return processing.Options{
		Timeout: c.config.ScanTimeout,
		Workers: c.config.Workers,
		Backend: c.config.Backend.String(),
		Detector: detector.Options{
			SkipFormats: c.config.SkipFormats,
			MaxPackets:  c.config.MaxPackets,
		},
		Logger: c.logger,
	}
}

// Check scans a single file. A verdict, safe or unsafe, is never an error;
// errors are infrastructure failures and map to a code through CodeOf.
func (c *Checker) Check(ctx context.Context, path string) (*Result, error) {
	r := processing.CheckFile(ctx, c.opener, path, c.options())
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Result, nil
}

// CheckBatch scans paths concurrently and returns the outcomes in input
// order. rep may be nil.
func (c *Checker) CheckBatch(ctx context.Context, paths []string, rep Reporter) *processing.BatchResult {
	return processing.CheckFiles(ctx, c.opener, paths, c.options(), rep)
}

// Check scans a single file with a Checker built from opts.
func Check(ctx context.Context, path string, opts ...Option) (*Result, error) {
	c, err := New(opts...)
	if err != nil {
		return nil, err
	}
	return c.Check(ctx, path)
}

// IsSafe checks path with the default libav backend and returns 0 when it
// is safe, 1 when it is unsafe and a negative code when it could not be
// checked.
func IsSafe(path string) int {
	res, err := Check(context.Background(), path)
	if err != nil {
		return int(CodeOf(err))
	}
	if res.Verdict == Unsafe {
		return int(CodeUnsafe)
	}
	return int(CodeSafe)
}

// FindVideos finds video files in a directory.
func FindVideos(dir string) ([]string, error) {
	return discovery.FindVideoFiles(dir)
}
