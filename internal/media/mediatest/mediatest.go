// Package mediatest provides scripted media containers for tests.
package mediatest

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/Vzurxy/discord-crasher-checker/internal/media"
)

// Container replays a fixed packet list. Decoder geometry starts at the
// stream geometry and switches to Changes[i] once packet i has been read
// (indices count every packet, including other streams).
type Container struct {
	Format  string
	Stream  *media.Stream
	Packets []media.Packet
	Changes map[int]media.Geometry

	// ReadErr, when set, is returned instead of the packet at ReadErrAt.
	ReadErr   error
	ReadErrAt int

	mu     sync.Mutex
	reads  int
	probes []int
	closed int
}

var _ media.Container = (*Container)(nil)

// FormatName implements media.Container.
func (c *Container) FormatName() string {
	return c.Format
}

// VideoStream implements media.Container.
func (c *Container) VideoStream() (media.Stream, bool) {
	if c.Stream == nil {
		return media.Stream{}, false
	}
	return *c.Stream, true
}

// ReadPacket implements media.Container.
func (c *Container) ReadPacket(ctx context.Context) (media.Packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ReadErr != nil && c.reads == c.ReadErrAt {
		return media.Packet{}, c.ReadErr
	}
	if c.reads >= len(c.Packets) {
		return media.Packet{}, io.EOF
	}
	pkt := c.Packets[c.reads]
	c.reads++
	return pkt, nil
}

// Probe implements media.Container.
func (c *Container) Probe(ctx context.Context, pkt media.Packet) media.Geometry {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos := c.reads - 1
	c.probes = append(c.probes, pos)
	return c.geometryAt(pos)
}

func (c *Container) geometryAt(pos int) media.Geometry {
	var geo media.Geometry
	if c.Stream != nil {
		geo = c.Stream.Geometry
	}
	best := -1
	for i, g := range c.Changes {
		if i <= pos && i > best {
			best = i
			geo = g
		}
	}
	return geo
}

// Close implements media.Container.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

// Reads returns how many packets have been handed out.
func (c *Container) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Probes returns the packet positions Probe was called at.
func (c *Container) Probes() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.probes...)
}

// Closed reports whether Close has been called.
func (c *Container) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed > 0
}

// Opener hands out containers built by per-path factories.
type Opener struct {
	mu     sync.Mutex
	files  map[string]func() *Container
	errs   map[string]error
	opened []*Container
}

var _ media.Opener = (*Opener)(nil)

// NewOpener creates an empty Opener.
func NewOpener() *Opener {
	return &Opener{
		files: make(map[string]func() *Container),
		errs:  make(map[string]error),
	}
}

// Add registers a factory for path. Each Open builds a fresh container.
func (o *Opener) Add(path string, factory func() *Container) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.files[path] = factory
}

// Fail makes opening path return err.
func (o *Opener) Fail(path string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs[path] = err
}

// Open implements media.Opener.
func (o *Opener) Open(ctx context.Context, path string) (media.Container, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err, ok := o.errs[path]; ok {
		return nil, err
	}
	factory, ok := o.files[path]
	if !ok {
		return nil, fmt.Errorf("mediatest: no container registered for %s", path)
	}
	c := factory()
	o.opened = append(o.opened, c)
	return c, nil
}

// Opened returns every container handed out so far.
func (o *Opener) Opened() []*Container {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Container(nil), o.opened...)
}

// NoDTS marks a packet without decode timestamp in VideoPackets.
const NoDTS int64 = math.MinInt64

// VideoPackets builds packets for stream idx from a DTS list.
func VideoPackets(idx int, dts ...int64) []media.Packet {
	pkts := make([]media.Packet, len(dts))
	for i, d := range dts {
		pkts[i] = media.Packet{StreamIndex: idx, DTS: d, HasDTS: d != NoDTS}
	}
	return pkts
}
