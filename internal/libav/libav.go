// Package libav opens media containers in-process through libavformat and
// libavcodec.
package libav

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"

	"github.com/asticode/go-astiav"

	cerrors "github.com/Vzurxy/discord-crasher-checker/internal/errors"
	"github.com/Vzurxy/discord-crasher-checker/internal/logging"
	"github.com/Vzurxy/discord-crasher-checker/internal/media"
)

// noDTS is AV_NOPTS_VALUE.
const noDTS int64 = math.MinInt64

var logLevelOnce sync.Once

// Opener opens containers with libav. The zero value is ready to use.
type Opener struct {
	// Verbose lets libav print warnings to stderr; otherwise it is silent.
	Verbose bool
	Logger  *logging.Logger
}

var _ media.Opener = (*Opener)(nil)

// NewOpener creates a libav opener.
func NewOpener(verbose bool, logger *logging.Logger) *Opener {
	return &Opener{Verbose: verbose, Logger: logger}
}

func (o *Opener) logger() *logging.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logging.Global()
}

// Open opens path, probes its streams and prepares a decoder for the first
// video stream. Every resource acquired before a failure is released.
func (o *Opener) Open(ctx context.Context, path string) (media.Container, error) {
	logLevelOnce.Do(func() {
		if o.Verbose {
			astiav.SetLogLevel(astiav.LogLevelWarning)
		} else {
			astiav.SetLogLevel(astiav.LogLevelQuiet)
		}
	})

	if err := ctx.Err(); err != nil {
		return nil, cerrors.NewCancelledError(err)
	}

	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, cerrors.NewResourceError("format context")
	}

	if err := fc.OpenInput(path, nil, nil); err != nil {
		// A failed avformat_open_input frees the context itself.
		return nil, cerrors.NewContainerOpenError(path, err)
	}

	c := &Container{path: path, fc: fc, videoIdx: -1, log: o.logger().WithFile(path)}

	if err := fc.FindStreamInfo(nil); err != nil {
		c.Close()
		return nil, cerrors.NewStreamInfoError(path, err)
	}

	if err := c.selectVideo(); err != nil {
		c.Close()
		return nil, err
	}

	c.pkt = astiav.AllocPacket()
	if c.pkt == nil {
		c.Close()
		return nil, cerrors.NewResourceError("packet")
	}
	c.frame = astiav.AllocFrame()
	if c.frame == nil {
		c.Close()
		return nil, cerrors.NewResourceError("frame")
	}

	return c, nil
}

// Container is an input opened with libav. Probe decodes the packet most
// recently returned by ReadPacket.
type Container struct {
	path string
	log  *logging.Logger

	fc       *astiav.FormatContext
	videoIdx int
	codec    string
	params   media.Geometry

	cc     *astiav.CodecContext
	ccOpen bool

	pkt   *astiav.Packet
	frame *astiav.Frame

	closed bool
}

var _ media.Container = (*Container)(nil)

// selectVideo picks the first video stream and sets up its decoder. A
// decoder that cannot be found or opened is tolerated: geometry is then
// read from the codec context or the stream parameters as they are.
func (c *Container) selectVideo() error {
	var vst *astiav.Stream
	for _, s := range c.fc.Streams() {
		if s.CodecParameters().MediaType() == astiav.MediaTypeVideo {
			vst = s
			break
		}
	}
	if vst == nil {
		return nil
	}

	par := vst.CodecParameters()
	c.videoIdx = vst.Index()
	c.codec = par.CodecID().Name()
	c.params = media.Geometry{
		PixelFormat: par.PixelFormat().String(),
		Width:       par.Width(),
		Height:      par.Height(),
	}

	dec := astiav.FindDecoder(par.CodecID())
	if dec == nil {
		c.log.Debug("no decoder for video stream", "codec", c.codec)
		return nil
	}

	cc := astiav.AllocCodecContext(dec)
	if cc == nil {
		return cerrors.NewResourceError("codec context")
	}
	c.cc = cc

	if err := par.ToCodecContext(cc); err != nil {
		c.log.Debug("copying codec parameters failed", "error", err)
		return nil
	}
	if err := cc.Open(dec, nil); err != nil {
		c.log.Debug("opening decoder failed", "codec", c.codec, "error", err)
		return nil
	}
	c.ccOpen = true
	return nil
}

// FormatName implements media.Container.
func (c *Container) FormatName() string {
	if c.fc == nil || c.fc.InputFormat() == nil {
		return ""
	}
	return c.fc.InputFormat().Name()
}

// VideoStream implements media.Container.
func (c *Container) VideoStream() (media.Stream, bool) {
	if c.videoIdx < 0 {
		return media.Stream{}, false
	}
	return media.Stream{
		Index:     c.videoIdx,
		CodecName: c.codec,
		Geometry:  c.geometry(),
	}, true
}

// ReadPacket implements media.Container.
func (c *Container) ReadPacket(ctx context.Context) (media.Packet, error) {
	if c.closed {
		return media.Packet{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return media.Packet{}, cerrors.NewCancelledError(err)
	}

	c.pkt.Unref()
	if err := c.fc.ReadFrame(c.pkt); err != nil {
		if errors.Is(err, astiav.ErrEof) || errors.Is(err, io.EOF) {
			return media.Packet{}, io.EOF
		}
		return media.Packet{}, cerrors.NewContainerReadError(c.path, err)
	}

	return packetOf(c.pkt.StreamIndex(), c.pkt.Dts()), nil
}

// packetOf maps a demuxed packet; AV_NOPTS_VALUE means no DTS.
func packetOf(streamIndex int, dts int64) media.Packet {
	if dts == noDTS {
		return media.Packet{StreamIndex: streamIndex}
	}
	return media.Packet{StreamIndex: streamIndex, DTS: dts, HasDTS: true}
}

// Probe implements media.Container. The decode result is discarded; the
// codec context fields are read whether or not a frame came out.
func (c *Container) Probe(ctx context.Context, pkt media.Packet) media.Geometry {
	if c.closed || !c.ccOpen || c.pkt.StreamIndex() != pkt.StreamIndex {
		return c.geometry()
	}

	if err := c.cc.SendPacket(c.pkt); err != nil {
		c.log.Debug("probe decode rejected packet", "dts", pkt.DTS, "error", err)
	} else {
		for {
			err := c.cc.ReceiveFrame(c.frame)
			if err != nil {
				if !errors.Is(err, astiav.ErrEagain) && !errors.Is(err, astiav.ErrEof) {
					c.log.Debug("probe decode failed", "dts", pkt.DTS, "error", err)
				}
				break
			}
			c.frame.Unref()
		}
	}

	return c.geometry()
}

func (c *Container) geometry() media.Geometry {
	if c.cc == nil {
		return c.params
	}
	return media.Geometry{
		PixelFormat: c.cc.PixelFormat().String(),
		Width:       c.cc.Width(),
		Height:      c.cc.Height(),
	}
}

// Close implements media.Container.
func (c *Container) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	if c.frame != nil {
		c.frame.Free()
		c.frame = nil
	}
	if c.pkt != nil {
		c.pkt.Free()
		c.pkt = nil
	}
	if c.cc != nil {
		c.cc.Free()
		c.cc = nil
	}
	if c.fc != nil {
		// avformat_close_input frees the context as well.
		c.fc.CloseInput()
		c.fc = nil
	}
	return nil
}
