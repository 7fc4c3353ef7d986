// Package processing runs detector scans over files: one at a time through
// CheckFile, or as a bounded concurrent batch through CheckFiles.
package processing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Vzurxy/discord-crasher-checker/internal/detector"
	cerrors "github.com/Vzurxy/discord-crasher-checker/internal/errors"
	"github.com/Vzurxy/discord-crasher-checker/internal/logging"
	"github.com/Vzurxy/discord-crasher-checker/internal/media"
	"github.com/Vzurxy/discord-crasher-checker/internal/metrics"
)

// Options configures file checks.
type Options struct {
	// Timeout bounds a single file check; 0 means no deadline.
	Timeout time.Duration
	// Workers is the number of files checked concurrently by CheckFiles.
	Workers int
	// Backend names the opener for reporting only.
	Backend  string
	Detector detector.Options
	Logger   *logging.Logger
}

func (o Options) logger() *logging.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logging.Global()
}

// FileResult is the outcome of checking one file. Exactly one of Result
// and Err is set.
type FileResult struct {
	Index    int
	ScanID   string
	Path     string
	Result   *detector.Result
	Err      error
	Code     cerrors.Code
	Duration time.Duration
}

// Unsafe reports whether the file was classified unsafe.
func (r FileResult) Unsafe() bool {
	return r.Err == nil && r.Result != nil && r.Result.Verdict == detector.Unsafe
}

// CheckFile opens path with opener, scans it and closes the container. The
// container is closed on every path out, including scan failures.
func CheckFile(ctx context.Context, opener media.Opener, path string, opts Options) FileResult {
	res := FileResult{ScanID: uuid.NewString(), Path: path}
	log := opts.logger().WithFile(path).WithScan(res.ScanID)

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	metrics.CheckStarted()
	defer metrics.CheckFinished()

	start := time.Now()
	scanResult, err := scan(ctx, opener, path, opts.Detector, log)
	res.Duration = time.Since(start)

	if err != nil {
		res.Err = err
		res.Code = cerrors.CodeOf(err)
		metrics.RecordError(cerrors.KindLabel(err), res.Duration)
		log.Debug("check failed", "code", int(res.Code), "error", err)
		return res
	}

	res.Result = scanResult
	res.Code = cerrors.CodeSafe
	if scanResult.Verdict == detector.Unsafe {
		res.Code = cerrors.CodeUnsafe
	}
	metrics.RecordVerdict(scanResult.Verdict.String(), scanResult.Frames, scanResult.Probes, res.Duration)
	log.Debug("check complete",
		"verdict", scanResult.Verdict.String(),
		"frames", scanResult.Frames,
		"probes", scanResult.Probes,
		"duration", res.Duration)
	return res
}

func scan(ctx context.Context, opener media.Opener, path string, opts detector.Options, log *logging.Logger) (*detector.Result, error) {
	c, err := opener.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			log.Warn("closing container failed", "error", cerr)
		}
	}()

	opts.Logger = log
	return detector.Scan(ctx, c, opts)
}
