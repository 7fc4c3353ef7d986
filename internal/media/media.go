// Package media defines the container collaborator consumed by the detector.
//
// A Container is opened for a single evaluation, yields the demuxed packets
// of the input in container order and exposes a best-effort decode probe
// that reports the decoder's current geometry. Backends live in the libav
// and ffprobe packages.
package media

import (
	"context"
	"fmt"
	"strings"
)

// Geometry is the pixel format and frame size reported by a decoder.
type Geometry struct {
	PixelFormat string
	Width       int
	Height      int
}

// String renders the geometry as "yuv420p 1920x1080".
func (g Geometry) String() string {
	pixFmt := g.PixelFormat
	if pixFmt == "" {
		pixFmt = "none"
	}
	return fmt.Sprintf("%s %dx%d", pixFmt, g.Width, g.Height)
}

// Stream identifies the selected video stream and its decoder geometry at
// the time the container was opened.
type Stream struct {
	Index     int
	CodecName string
	Geometry  Geometry
}

// Packet is one demuxed unit. HasDTS is false when the container carries
// no decode timestamp for it.
type Packet struct {
	StreamIndex int
	DTS         int64
	HasDTS      bool
}

// Container is an opened input. Implementations are not safe for
// concurrent use; every evaluation opens its own.
type Container interface {
	// FormatName returns the demuxer name, e.g. "mov,mp4,m4a,3gp,3g2,mj2".
	FormatName() string

	// VideoStream returns the first stream of video media type.
	VideoStream() (Stream, bool)

	// ReadPacket returns the next packet in container order, or io.EOF
	// when the input is exhausted.
	ReadPacket(ctx context.Context) (Packet, error)

	// Probe attempts to decode pkt and returns the decoder geometry
	// afterwards. Decode failures are not reported: the current geometry
	// is returned whether or not a frame came out.
	Probe(ctx context.Context, pkt Packet) Geometry

	// Close releases every resource held by the container. It is safe to
	// call more than once.
	Close() error
}

// Opener opens containers by path.
type Opener interface {
	Open(ctx context.Context, path string) (Container, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, path string) (Container, error)

// Open calls f(ctx, path).
func (f OpenerFunc) Open(ctx context.Context, path string) (Container, error) {
	return f(ctx, path)
}

// MatchesFormat reports whether a demuxer name matches any of the given
// format names. Demuxer names may list several aliases separated by
// commas ("matroska,webm"); a match on any alias counts.
func MatchesFormat(formatName string, names []string) bool {
	for _, alias := range strings.Split(formatName, ",") {
		alias = strings.TrimSpace(strings.ToLower(alias))
		if alias == "" {
			continue
		}
		for _, name := range names {
			if strings.EqualFold(alias, strings.TrimSpace(name)) {
				return true
			}
		}
	}
	return false
}
