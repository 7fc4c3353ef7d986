package reporter

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/Vzurxy/discord-crasher-checker/internal/util"
)

// TerminalReporter outputs human-friendly text to the terminal.
type TerminalReporter struct {
	mu           sync.Mutex
	out          io.Writer
	showProgress bool
	progress     *progressbar.ProgressBar
	total        int
	verbose      bool
	cyan         *color.Color
	green        *color.Color
	yellow       *color.Color
	red          *color.Color
	magenta      *color.Color
	bold         *color.Color
}

// NewTerminalReporter creates a terminal reporter writing to stdout with a
// batch progress bar on stderr.
func NewTerminalReporter(verbose bool) *TerminalReporter {
	r := NewTerminalReporterWithWriter(os.Stdout, verbose)
	r.showProgress = true
	return r
}

// NewTerminalReporterWithWriter creates a terminal reporter writing to w.
// No progress bar is drawn.
func NewTerminalReporterWithWriter(w io.Writer, verbose bool) *TerminalReporter {
	return &TerminalReporter{
		out:     w,
		verbose: verbose,
		cyan:    color.New(color.FgCyan, color.Bold),
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow, color.Bold),
		red:     color.New(color.FgRed, color.Bold),
		magenta: color.New(color.FgMagenta),
		bold:    color.New(color.Bold),
	}
}

// printLabel prints a bold label with fixed width padding followed by a value.
// Width is applied to the plain text before styling to keep columns aligned.
func (r *TerminalReporter) printLabel(width int, label, value string) {
	paddedLabel := fmt.Sprintf("%-*s", width, label)
	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.bold.Sprint(paddedLabel), value)
}

// clearProgress hides the bar so a line can be printed above it. Callers
// hold mu.
func (r *TerminalReporter) clearProgress() {
	if r.progress != nil {
		_ = r.progress.Clear()
	}
}

func (r *TerminalReporter) advance() {
	if r.progress != nil {
		_ = r.progress.Add(1)
	}
}

func (r *TerminalReporter) finishProgress() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress != nil {
		_ = r.progress.Finish()
		r.progress = nil
	}
}

func (r *TerminalReporter) BatchStarted(info BatchStartInfo) {
	r.finishProgress()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.total = info.TotalFiles
	_, _ = fmt.Fprintln(r.out)
	_, _ = r.cyan.Fprintln(r.out, "CHECK")
	r.printLabel(8, "Files:", fmt.Sprintf("%d", info.TotalFiles))
	r.printLabel(8, "Workers:", fmt.Sprintf("%d", info.Workers))
	if info.Backend != "" {
		r.printLabel(8, "Backend:", info.Backend)
	}
	_, _ = fmt.Fprintln(r.out)

	if !r.showProgress || info.TotalFiles < 2 {
		return
	}
	r.progress = progressbar.NewOptions(
		info.TotalFiles,
		progressbar.OptionSetDescription(""),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "Checking [",
			BarEnd:        "]",
		}),
	)
}

func (r *TerminalReporter) FileStarted(info FileStartInfo) {
	if !r.verbose {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearProgress()
	_, _ = r.magenta.Fprintf(r.out, "  [%d/%d] %s\n", info.Index+1, info.TotalFiles, info.Path)
}

func (r *TerminalReporter) FileVerdict(summary VerdictSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearProgress()

	var status string
	if summary.Verdict == "unsafe" {
		status = r.red.Sprint("UNSAFE")
	} else {
		status = r.green.Sprint("SAFE  ")
	}

	note := ""
	switch {
	case summary.Skipped:
		note = fmt.Sprintf(" (%s not scanned)", summary.Format)
	case summary.NoVideo:
		note = " (no video stream)"
	case summary.Truncated:
		note = fmt.Sprintf(" (stopped after %s)", count(summary.Frames, "packet"))
	}
	_, _ = fmt.Fprintf(r.out, "  %s %s%s\n", status, r.bold.Sprint(summary.Path), note)

	if summary.Verdict == "unsafe" {
		_, _ = fmt.Fprintf(r.out, "         frame %d: dts delta %d, decoder %s -> %s\n",
			summary.AnomalyFrame, summary.AnomalyDelta, summary.Expected, summary.Observed)
	}
	if r.verbose {
		_, _ = fmt.Fprintf(r.out, "         %s, %s, %s in %s\n",
			summary.Format,
			count(summary.Frames, "packet"),
			count(summary.Probes, "probe"),
			util.FormatElapsed(summary.Duration))
	}
	r.advance()
}

func (r *TerminalReporter) FileError(failure FileFailure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearProgress()

	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.yellow.Sprint("ERROR "), r.bold.Sprint(failure.Path))
	_, _ = fmt.Fprintf(r.out, "         %s (code %d)\n", failure.Message, failure.Code)
	r.advance()
}

func (r *TerminalReporter) Warning(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearProgress()
	_, _ = r.yellow.Fprintf(r.out, "WARN: %s\n", message)
}

func (r *TerminalReporter) BatchComplete(summary BatchSummary) {
	r.finishProgress()

	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintln(r.out)
	_, _ = r.cyan.Fprintln(r.out, "SUMMARY")
	_, _ = fmt.Fprintf(r.out, "  %s\n", r.bold.Sprintf("%d of %d safe", summary.SafeCount, summary.TotalFiles))
	_, _ = fmt.Fprintf(r.out, "  Unsafe: %s, errors: %s\n",
		r.red.Sprint(summary.UnsafeCount),
		r.yellow.Sprint(summary.ErrorCount))
	if summary.SkippedCount > 0 {
		_, _ = fmt.Fprintf(r.out, "  Not scanned: %d\n", summary.SkippedCount)
	}
	_, _ = fmt.Fprintf(r.out, "  Time: %s\n", util.FormatElapsed(summary.TotalDuration))

	for _, path := range summary.UnsafeFiles {
		_, _ = fmt.Fprintf(r.out, "  - %s %s\n", r.red.Sprint("unsafe"), path)
	}
	for _, path := range summary.FailedFiles {
		_, _ = fmt.Fprintf(r.out, "  - %s %s\n", r.yellow.Sprint("error"), path)
	}
}

func (r *TerminalReporter) Verbose(message string) {
	if !r.verbose {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearProgress()
	_, _ = r.magenta.Fprintln(r.out, message)
}

func count(n int, noun string) string {
	return fmt.Sprintf("%d %s", n, util.Pluralize(n, noun, noun+"s"))
}
