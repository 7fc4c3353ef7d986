// Package detector classifies a video stream as safe or unsafe by watching
// its decode timestamps.
//
// Crafted "crasher" files change the decoder's pixel format or frame size
// mid-stream without declaring it, and the packet where that happens
// almost always breaks the stream's DTS cadence. The detector therefore
// walks packet DTS values, and only when a delta shows up that it has not
// seen before does it ask the decoder what geometry it now reports. A new
// delta with unchanged geometry is ordinary variable frame rate and the
// delta becomes trusted; a new delta with changed geometry is the crasher
// signature and ends the scan.
package detector

import (
	"context"
	"errors"
	"io"

	cerrors "github.com/Vzurxy/discord-crasher-checker/internal/errors"
	"github.com/Vzurxy/discord-crasher-checker/internal/logging"
	"github.com/Vzurxy/discord-crasher-checker/internal/media"
)

// Verdict is the outcome of a completed scan.
type Verdict int

const (
	Safe Verdict = iota
	Unsafe
)

// String returns "safe" or "unsafe".
func (v Verdict) String() string {
	if v == Unsafe {
		return "unsafe"
	}
	return "safe"
}

// DefaultSkipFormats lists the demuxers the scan is not run for. The DTS
// pattern does not show up the same way in Matroska and scanning it
// produced false positives.
var DefaultSkipFormats = []string{"matroska", "webm"}

// Options tunes a scan.
type Options struct {
	// SkipFormats overrides DefaultSkipFormats when non-nil.
	SkipFormats []string
	// MaxPackets stops the scan after this many video packets; 0 means
	// no limit.
	MaxPackets int
	Logger     *logging.Logger
}

// Result describes a completed scan.
type Result struct {
	Verdict Verdict
	Format  string

	// Skipped is set when the container format bypassed the scan.
	Skipped bool
	// NoVideo is set when the input has no video stream.
	NoVideo bool
	// Truncated is set when MaxPackets ended the scan early.
	Truncated bool

	// Frames counts packets seen on the video stream.
	Frames int
	// Probes counts decode probes triggered by unknown deltas.
	Probes int

	// Populated for unsafe verdicts.
	AnomalyFrame int
	AnomalyDelta int64
	Expected     media.Geometry
	Observed     media.Geometry
}

// Scan runs the detector over an opened container. It reads packets until
// the input is exhausted or the crasher signature is confirmed; in the
// latter case no further packet is read. Errors are infrastructure
// failures, never a verdict.
func Scan(ctx context.Context, c media.Container, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Global()
	}
	skip := opts.SkipFormats
	if skip == nil {
		skip = DefaultSkipFormats
	}

	res := &Result{Verdict: Safe, Format: c.FormatName()}

	if media.MatchesFormat(res.Format, skip) {
		log.Debug("skipping scan for container format", "format", res.Format)
		res.Skipped = true
		return res, nil
	}

	stream, ok := c.VideoStream()
	if !ok {
		log.Debug("no video stream, nothing to scan", "format", res.Format)
		res.NoVideo = true
		return res, nil
	}

	snapshot := stream.Geometry
	st := newDeltaState()

	for {
		if err := ctx.Err(); err != nil {
			return nil, cerrors.NewCancelledError(err)
		}
		if opts.MaxPackets > 0 && st.frames >= opts.MaxPackets {
			res.Truncated = true
			break
		}

		pkt, err := c.ReadPacket(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if pkt.StreamIndex != stream.Index {
			continue
		}

		st.frames++
		if !pkt.HasDTS || pkt.DTS <= 0 {
			continue
		}

		delta, candidate := st.observe(pkt.DTS)
		if !candidate {
			continue
		}

		geo := c.Probe(ctx, pkt)
		res.Probes++

		if geo == snapshot {
			log.Debug("unknown DTS delta with stable geometry, trusting it",
				"frame", st.frames-1, "delta", delta, "previous", st.baseline)
			st.trust(delta)
			continue
		}

		log.Debug("DTS anomaly with geometry change",
			"frame", st.frames-1, "delta", delta, "expected", snapshot.String(), "observed", geo.String())

		res.Verdict = Unsafe
		res.AnomalyFrame = st.frames - 1
		res.AnomalyDelta = delta
		res.Expected = snapshot
		res.Observed = geo
		res.Frames = st.frames
		return res, nil
	}

	res.Frames = st.frames
	return res, nil
}
