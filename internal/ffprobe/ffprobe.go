// Package ffprobe opens media containers by running the ffprobe binary.
//
// Format and stream information come from a single JSON probe. Packet
// timestamps and decoder geometry come from a second, streaming ffprobe
// process that prints packets and the frames decoded from them. Frames
// carry the DTS of their packet, so a probe can wait out decoder delay
// instead of reading the geometry of an older frame.
package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"

	cerrors "github.com/Vzurxy/discord-crasher-checker/internal/errors"
	"github.com/Vzurxy/discord-crasher-checker/internal/logging"
	"github.com/Vzurxy/discord-crasher-checker/internal/media"
)

// DefaultBinary is the ffprobe executable looked up on PATH.
const DefaultBinary = "ffprobe"

// ffprobeOutput represents the JSON output from ffprobe.
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
}

type ffprobeStream struct {
	Index     int    `json:"index"`
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	PixFmt    string `json:"pix_fmt"`
}

// Opener opens containers by running ffprobe.
type Opener struct {
	binary string
	log    *logging.Logger
}

var _ media.Opener = (*Opener)(nil)

// NewOpener resolves the ffprobe binary. An empty binary means
// DefaultBinary.
func NewOpener(binary string, logger *logging.Logger) (*Opener, error) {
	if binary == "" {
		binary = DefaultBinary
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, cerrors.NewBackendUnavailableError("ffprobe not found: "+binary, err)
	}
	if logger == nil {
		logger = logging.Global()
	}
	return &Opener{binary: resolved, log: logger}, nil
}

// Open probes path and returns a container whose packet stream is started
// on the first ReadPacket.
func (o *Opener) Open(ctx context.Context, path string) (media.Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, cerrors.NewCancelledError(err)
	}

	probe, err := runFFprobe(ctx, o.binary, path)
	if err != nil {
		return nil, err
	}

	c := &Container{
		binary: o.binary,
		path:   path,
		format: probe.Format.FormatName,
		log:    o.log.WithFile(path),
	}
	if s, ok := probe.videoStream(); ok {
		c.stream = &s
		c.current = s.Geometry
	}
	return c, nil
}

// runFFprobe executes ffprobe and returns the parsed output.
func runFFprobe(ctx context.Context, binary, inputPath string) (*ffprobeOutput, error) {
	cmd := exec.CommandContext(ctx, binary,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, cerrors.NewCancelledError(ctx.Err())
		}
		return nil, cerrors.NewContainerOpenError(inputPath, cerrors.WrapExecError("ffprobe", err, stderr.String()))
	}

	probe, err := parseFFprobeOutput(output)
	if err != nil {
		return nil, cerrors.NewStreamInfoError(inputPath, err)
	}
	return probe, nil
}

// parseFFprobeOutput parses the JSON emitted by -show_format -show_streams.
func parseFFprobeOutput(data []byte) (*ffprobeOutput, error) {
	var result ffprobeOutput
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, cerrors.NewFFprobeParseError("invalid JSON", err)
	}
	if result.Format.FormatName == "" {
		return nil, cerrors.NewFFprobeParseError("missing format name", nil)
	}
	return &result, nil
}

// videoStream returns the first video stream.
func (p *ffprobeOutput) videoStream() (media.Stream, bool) {
	for _, s := range p.Streams {
		if s.CodecType != "video" {
			continue
		}
		return media.Stream{
			Index:     s.Index,
			CodecName: s.CodecName,
			Geometry: media.Geometry{
				PixelFormat: s.PixFmt,
				Width:       s.Width,
				Height:      s.Height,
			},
		}, true
	}
	return media.Stream{}, false
}
