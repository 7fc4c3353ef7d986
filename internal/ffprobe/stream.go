package ffprobe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	cerrors "github.com/Vzurxy/discord-crasher-checker/internal/errors"
	"github.com/Vzurxy/discord-crasher-checker/internal/logging"
	"github.com/Vzurxy/discord-crasher-checker/internal/media"
)

// maxLineSize bounds a single compact output line.
const maxLineSize = 1 << 20

// maxProbeLookahead bounds how many packets Probe buffers while waiting
// for the frame decoded from the probed packet.
const maxProbeLookahead = 32

// Container is an input opened through ffprobe. The packet process only
// shows the selected video stream, so ReadPacket never surfaces packets of
// other streams.
type Container struct {
	binary string
	path   string
	format string
	stream *media.Stream
	log    *logging.Logger

	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  *bytes.Buffer
	scanner *bufio.Scanner

	// current is the geometry of the most recent decoded frame.
	current media.Geometry
	// decoded maps the packet DTS of frames seen during look-ahead to the
	// geometry they were decoded with.
	decoded map[int64]media.Geometry
	// framesHaveDTS is set once a frame entry carried a packet DTS.
	framesHaveDTS bool
	// pending and pendingErr hold the outcome of a read ahead by Probe.
	pending    []media.Packet
	pendingErr error
	done       bool

	closeOnce sync.Once
}

var _ media.Container = (*Container)(nil)

// FormatName implements media.Container.
func (c *Container) FormatName() string {
	return c.format
}

// VideoStream implements media.Container.
func (c *Container) VideoStream() (media.Stream, bool) {
	if c.stream == nil {
		return media.Stream{}, false
	}
	return *c.stream, true
}

// start launches the streaming packet/frame process.
func (c *Container) start(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, c.binary,
		"-v", "error",
		"-select_streams", strconv.Itoa(c.stream.Index),
		"-show_entries", "packet=stream_index,dts:frame=pkt_dts,pix_fmt,width,height",
		"-of", "compact=p=1:nk=0",
		c.path,
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return cerrors.NewCommandStartError("ffprobe", err)
	}
	c.stderr = &bytes.Buffer{}
	cmd.Stderr = c.stderr

	if err := cmd.Start(); err != nil {
		return cerrors.NewContainerReadError(c.path, cerrors.NewCommandStartError("ffprobe", err))
	}

	c.cmd = cmd
	c.attach(stdout)
	return nil
}

// attach starts reading compact output from r.
func (c *Container) attach(r io.ReadCloser) {
	c.stdout = r
	c.scanner = bufio.NewScanner(r)
	c.scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
}

// ReadPacket implements media.Container.
func (c *Container) ReadPacket(ctx context.Context) (media.Packet, error) {
	if err := ctx.Err(); err != nil {
		return media.Packet{}, cerrors.NewCancelledError(err)
	}
	if len(c.pending) > 0 {
		pkt := c.pending[0]
		c.pending = c.pending[1:]
		return pkt, nil
	}
	if c.pendingErr != nil {
		err := c.pendingErr
		c.pendingErr = nil
		return media.Packet{}, err
	}
	if c.stream == nil || c.done {
		return media.Packet{}, io.EOF
	}
	if c.scanner == nil {
		if err := c.start(ctx); err != nil {
			return media.Packet{}, err
		}
	}
	return c.next(ctx)
}

// next consumes entries until a packet, applying frames on the way.
func (c *Container) next(ctx context.Context) (media.Packet, error) {
	for {
		section, fields, err := c.entry(ctx)
		if err != nil {
			return media.Packet{}, err
		}
		switch section {
		case "packet":
			pkt, err := packetFromFields(fields)
			if err != nil {
				return media.Packet{}, cerrors.NewContainerReadError(c.path, err)
			}
			return pkt, nil
		case "frame":
			c.applyFrame(fields)
		}
	}
}

// entry returns the next non-empty compact entry. It returns io.EOF once
// the process output ends cleanly.
func (c *Container) entry(ctx context.Context) (string, map[string]string, error) {
	for c.scanner.Scan() {
		if section, fields := parseCompactLine(c.scanner.Text()); section != "" {
			return section, fields, nil
		}
	}

	c.done = true
	if err := c.scanner.Err(); err != nil {
		return "", nil, cerrors.NewContainerReadError(c.path, err)
	}
	if err := c.wait(); err != nil {
		if ctx.Err() != nil {
			return "", nil, cerrors.NewCancelledError(ctx.Err())
		}
		return "", nil, cerrors.NewContainerReadError(c.path, err)
	}
	return "", nil, io.EOF
}

// applyFrame updates the decoder geometry and returns the packet DTS the
// frame was decoded from, if ffprobe reported one.
func (c *Container) applyFrame(fields map[string]string) (int64, bool) {
	c.current = geometryFromFields(fields, c.current)
	dts, err := strconv.ParseInt(fields["pkt_dts"], 10, 64)
	if err != nil {
		return 0, false
	}
	c.framesHaveDTS = true
	return dts, true
}

// wait reaps the process and reports a non-zero exit.
func (c *Container) wait() error {
	if c.cmd == nil {
		return nil
	}
	cmd := c.cmd
	c.cmd = nil
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return cerrors.WrapExecError("ffprobe", err, strings.TrimSpace(c.stderr.String()))
		}
		return cerrors.NewCommandWaitError("ffprobe", err)
	}
	return nil
}

// Probe implements media.Container. ffprobe decodes every packet on its
// own and prints frames in output order, which lags decode order for
// decoders with delay. Probe reads ahead, buffering up to
// maxProbeLookahead packets, until the frame decoded from pkt shows up and
// returns the geometry it carried. Without frame packet timestamps it
// stops at the next packet. When the frame never appears the latest
// geometry is returned. Read errors are left for the following
// ReadPacket to report.
func (c *Container) Probe(ctx context.Context, pkt media.Packet) media.Geometry {
	if pkt.HasDTS {
		if geo, ok := c.decoded[pkt.DTS]; ok {
			delete(c.decoded, pkt.DTS)
			return geo
		}
	}
	if c.scanner == nil {
		return c.current
	}

	for c.pendingErr == nil && !c.done && len(c.pending) < maxProbeLookahead {
		section, fields, err := c.entry(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.log.Debug("probe read ahead failed", "dts", pkt.DTS, "error", err)
			}
			c.pendingErr = err
			break
		}

		switch section {
		case "packet":
			next, err := packetFromFields(fields)
			if err != nil {
				c.pendingErr = cerrors.NewContainerReadError(c.path, err)
				return c.current
			}
			c.pending = append(c.pending, next)
			if !c.framesHaveDTS || !pkt.HasDTS {
				return c.current
			}
		case "frame":
			dts, ok := c.applyFrame(fields)
			if !ok {
				continue
			}
			if pkt.HasDTS && dts == pkt.DTS {
				return c.current
			}
			if len(c.pending) > 0 {
				c.remember(dts)
			}
		}
	}
	return c.current
}

// remember records the geometry of a frame whose packet is still
// buffered, so probing that packet later does not need to read again.
func (c *Container) remember(dts int64) {
	if c.decoded == nil {
		c.decoded = make(map[int64]media.Geometry)
	}
	if len(c.decoded) >= 2*maxProbeLookahead {
		clear(c.decoded)
	}
	c.decoded[dts] = c.current
}

// Close implements media.Container. A running process is killed and
// reaped.
func (c *Container) Close() error {
	c.closeOnce.Do(func() {
		c.done = true
		if c.cmd != nil && c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		if c.stdout != nil {
			_ = c.stdout.Close()
		}
		if c.cmd != nil {
			_ = c.cmd.Wait()
			c.cmd = nil
		}
	})
	return nil
}

// parseCompactLine splits a compact writer line such as
// "packet|stream_index=0|dts=1001" into its section and key/value fields.
func parseCompactLine(line string) (string, map[string]string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil
	}
	parts := strings.Split(line, "|")
	fields := make(map[string]string, len(parts)-1)
	for _, p := range parts[1:] {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		fields[k] = v
	}
	return parts[0], fields
}

// packetFromFields builds a packet from compact fields. A "N/A" DTS means
// the container carried none.
func packetFromFields(fields map[string]string) (media.Packet, error) {
	idx, err := strconv.Atoi(fields["stream_index"])
	if err != nil {
		return media.Packet{}, cerrors.NewFFprobeParseError(
			fmt.Sprintf("invalid packet stream_index %q", fields["stream_index"]), err)
	}

	pkt := media.Packet{StreamIndex: idx}
	raw, ok := fields["dts"]
	if !ok || raw == "" || raw == "N/A" {
		return pkt, nil
	}
	dts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return media.Packet{}, cerrors.NewFFprobeParseError(fmt.Sprintf("invalid packet dts %q", raw), err)
	}
	pkt.DTS = dts
	pkt.HasDTS = true
	return pkt, nil
}

// geometryFromFields updates prev with the frame fields present. Missing
// or unparsable values keep the previous value.
func geometryFromFields(fields map[string]string, prev media.Geometry) media.Geometry {
	geo := prev
	if v, ok := fields["pix_fmt"]; ok && v != "N/A" {
		if v == "unknown" {
			v = ""
		}
		geo.PixelFormat = v
	}
	if w, err := strconv.Atoi(fields["width"]); err == nil {
		geo.Width = w
	}
	if h, err := strconv.Atoi(fields["height"]); err == nil {
		geo.Height = h
	}
	return geo
}
