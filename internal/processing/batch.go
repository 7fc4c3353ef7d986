package processing

import (
	"context"
	"fmt"
	"sync"
	"time"

	cerrors "github.com/Vzurxy/discord-crasher-checker/internal/errors"
	"github.com/Vzurxy/discord-crasher-checker/internal/media"
	"github.com/Vzurxy/discord-crasher-checker/internal/reporter"
	"github.com/Vzurxy/discord-crasher-checker/internal/util"
	"github.com/Vzurxy/discord-crasher-checker/internal/worker"
)

// BatchResult holds every file outcome of a batch in input order.
type BatchResult struct {
	Files    []FileResult
	Safe     int
	Unsafe   int
	Failed   int
	Skipped  int
	Duration time.Duration
}

// HasUnsafe reports whether any file was classified unsafe.
func (b *BatchResult) HasUnsafe() bool {
	return b.Unsafe > 0
}

// HasErrors reports whether any file ended without a verdict.
func (b *BatchResult) HasErrors() bool {
	return b.Failed > 0
}

// CheckFiles checks paths with at most opts.Workers files in flight. Each
// file gets its own container. Events reach rep in input order regardless
// of completion order. Files not started before ctx is done are reported
// as cancelled.
func CheckFiles(ctx context.Context, opener media.Opener, paths []string, opts Options, rep reporter.Reporter) *BatchResult {
	if rep == nil {
		rep = reporter.NullReporter{}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	workers = min(workers, max(len(paths), 1))

	fileNames := make([]string, len(paths))
	for i, p := range paths {
		fileNames[i] = util.GetFilename(p)
	}
	rep.BatchStarted(reporter.BatchStartInfo{
		TotalFiles: len(paths),
		Workers:    workers,
		Backend:    opts.Backend,
		FileList:   fileNames,
	})

	start := time.Now()
	results := make([]FileResult, len(paths))
	emit := newOrderedEmitter(len(paths), func(i int) { reportFile(rep, results[i]) })

	worker.Run(ctx, worker.NewSemaphore(workers), len(paths),
		func(ctx context.Context, i int) {
			rep.FileStarted(reporter.FileStartInfo{Index: i, TotalFiles: len(paths), Path: paths[i]})
			r := CheckFile(ctx, opener, paths[i], opts)
			r.Index = i
			results[i] = r
			emit.done(i)
		},
		func(i int) {
			err := cerrors.NewCancelledError(ctx.Err())
			results[i] = FileResult{Index: i, Path: paths[i], Err: err, Code: cerrors.CodeOf(err)}
			emit.done(i)
		},
	)

	batch := &BatchResult{Files: results, Duration: time.Since(start)}
	summary := reporter.BatchSummary{TotalFiles: len(paths), TotalDuration: batch.Duration}
	for _, r := range results {
		switch {
		case r.Err != nil:
			batch.Failed++
			summary.FailedFiles = append(summary.FailedFiles, r.Path)
		case r.Unsafe():
			batch.Unsafe++
			summary.UnsafeFiles = append(summary.UnsafeFiles, r.Path)
		default:
			batch.Safe++
			if r.Result.Skipped {
				batch.Skipped++
			}
		}
	}
	summary.SafeCount = batch.Safe
	summary.UnsafeCount = batch.Unsafe
	summary.ErrorCount = batch.Failed
	summary.SkippedCount = batch.Skipped

	if ctx.Err() != nil {
		rep.Warning(fmt.Sprintf("Check cancelled: %v", ctx.Err()))
	}
	rep.BatchComplete(summary)
	return batch
}

// reportFile translates a file outcome into a reporter event.
func reportFile(rep reporter.Reporter, r FileResult) {
	if r.Err != nil {
		rep.FileError(reporter.FileFailure{
			Index:    r.Index,
			ScanID:   r.ScanID,
			Path:     r.Path,
			Code:     int(r.Code),
			Kind:     cerrors.KindLabel(r.Err),
			Message:  r.Err.Error(),
			Duration: r.Duration,
		})
		return
	}

	res := r.Result
	summary := reporter.VerdictSummary{
		Index:     r.Index,
		ScanID:    r.ScanID,
		Path:      r.Path,
		Verdict:   res.Verdict.String(),
		Code:      int(r.Code),
		Format:    res.Format,
		Frames:    res.Frames,
		Probes:    res.Probes,
		Skipped:   res.Skipped,
		NoVideo:   res.NoVideo,
		Truncated: res.Truncated,
		Duration:  r.Duration,
	}
	if r.Unsafe() {
		summary.AnomalyFrame = res.AnomalyFrame
		summary.AnomalyDelta = res.AnomalyDelta
		summary.Expected = res.Expected.String()
		summary.Observed = res.Observed.String()
	}
	rep.FileVerdict(summary)
}

// orderedEmitter calls emit for indices in ascending order as soon as
// every lower index has completed.
type orderedEmitter struct {
	mu       sync.Mutex
	finished []bool
	next     int
	emit     func(i int)
}

func newOrderedEmitter(n int, emit func(i int)) *orderedEmitter {
	return &orderedEmitter{finished: make([]bool, n), emit: emit}
}

func (e *orderedEmitter) done(i int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finished[i] = true
	for e.next < len(e.finished) && e.finished[e.next] {
		e.emit(e.next)
		e.next++
	}
}
