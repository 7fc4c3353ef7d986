package detector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Vzurxy/discord-crasher-checker/internal/errors"
	"github.com/Vzurxy/discord-crasher-checker/internal/logging"
	"github.com/Vzurxy/discord-crasher-checker/internal/media"
	"github.com/Vzurxy/discord-crasher-checker/internal/media/mediatest"
)

var (
	hd    = media.Geometry{PixelFormat: "yuv420p", Width: 1920, Height: 1080}
	tiny  = media.Geometry{PixelFormat: "yuv420p", Width: 16, Height: 16}
	yuv44 = media.Geometry{PixelFormat: "yuv444p", Width: 1920, Height: 1080}
)

func videoContainer(dts ...int64) *mediatest.Container {
	return &mediatest.Container{
		Format:  "mov,mp4,m4a,3gp,3g2,mj2",
		Stream:  &media.Stream{Index: 0, CodecName: "h264", Geometry: hd},
		Packets: mediatest.VideoPackets(0, dts...),
	}
}

func scan(t *testing.T, c media.Container, opts Options) *Result {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	res, err := Scan(context.Background(), c, opts)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestScanSkipsMatroskaFamily(t *testing.T) {
	for _, format := range []string{"matroska,webm", "webm", "MATROSKA"} {
		t.Run(format, func(t *testing.T) {
			c := videoContainer(1000, 2000, 2500, 9000)
			c.Format = format
			c.Changes = map[int]media.Geometry{2: tiny}

			res := scan(t, c, Options{})

			assert.Equal(t, Safe, res.Verdict)
			assert.True(t, res.Skipped)
			assert.Zero(t, c.Reads(), "skipped containers must not be read")
		})
	}
}

func TestScanCustomSkipFormats(t *testing.T) {
	c := videoContainer(1000, 2000, 2500)
	c.Format = "matroska,webm"
	c.Changes = map[int]media.Geometry{2: tiny}

	res := scan(t, c, Options{SkipFormats: []string{}})

	assert.Equal(t, Unsafe, res.Verdict)
	assert.False(t, res.Skipped)
}

func TestScanNoVideoStream(t *testing.T) {
	c := &mediatest.Container{
		Format:  "mp3",
		Packets: mediatest.VideoPackets(0, 1000, 2000, 2500),
	}

	res := scan(t, c, Options{})

	assert.Equal(t, Safe, res.Verdict)
	assert.True(t, res.NoVideo)
	assert.Empty(t, c.Probes())
}

func TestScanNeedsTwoValidTimestamps(t *testing.T) {
	tests := []struct {
		name string
		dts  []int64
	}{
		{"empty", nil},
		{"single", []int64{1000}},
		{"zero and negative ignored", []int64{0, -3000, 1000, 0, -1}},
		{"missing dts ignored", []int64{mediatest.NoDTS, 5000, mediatest.NoDTS}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := videoContainer(tt.dts...)
			c.Changes = map[int]media.Geometry{0: tiny}

			res := scan(t, c, Options{})

			assert.Equal(t, Safe, res.Verdict)
			assert.Equal(t, len(tt.dts), res.Frames)
			assert.Empty(t, c.Probes())
		})
	}
}

func TestScanStableCadence(t *testing.T) {
	c := videoContainer(0, 1000, 2000, 3000, 4000, 5000)

	res := scan(t, c, Options{})

	assert.Equal(t, Safe, res.Verdict)
	assert.Equal(t, 6, res.Frames)
	assert.Zero(t, res.Probes)
}

func TestScanFirstDeltaIsTrustedUnconditionally(t *testing.T) {
	// Geometry differs from the start, but the first delta never probes.
	c := videoContainer(1000, 4000, 7000)
	c.Changes = map[int]media.Geometry{0: tiny}

	res := scan(t, c, Options{})

	assert.Equal(t, Safe, res.Verdict)
	assert.Empty(t, c.Probes())
}

func TestScanLegitimateCadenceShift(t *testing.T) {
	// Delta moves from 1000 to 2000 with stable geometry and then stays.
	c := videoContainer(0, 1000, 2000, 4000, 6000, 8000, 10000)

	res := scan(t, c, Options{})

	assert.Equal(t, Safe, res.Verdict)
	assert.Equal(t, 1, res.Probes, "the new cadence must be probed exactly once")
	assert.Equal(t, []int{3}, c.Probes())
	assert.Equal(t, 7, res.Frames)
}

func TestScanPreviousBaselineStaysTrusted(t *testing.T) {
	// 1000 -> 2000 (probe) -> 1000 (known) -> 3000 (probe) -> 1000, 2000 (known).
	c := videoContainer(1000, 2000, 4000, 5000, 8000, 9000, 11000)

	res := scan(t, c, Options{})

	assert.Equal(t, Safe, res.Verdict)
	assert.Equal(t, []int{2, 4}, c.Probes())
}

func TestScanTrustedDeltaNotReprobedAfterGeometryChange(t *testing.T) {
	// Once 1000 joined the known set, a later geometry change coinciding
	// with a known delta is not the crasher signature.
	c := videoContainer(1000, 2000, 4000, 5000)
	c.Changes = map[int]media.Geometry{3: tiny}

	res := scan(t, c, Options{})

	assert.Equal(t, Safe, res.Verdict)
	assert.Equal(t, []int{2}, c.Probes())
}

func TestScanConfirmedAnomaly(t *testing.T) {
	tests := []struct {
		name   string
		change media.Geometry
	}{
		{"size", tiny},
		{"pixel format", yuv44},
		{"width only", media.Geometry{PixelFormat: "yuv420p", Width: 1280, Height: 1080}},
		{"decoder lost format", media.Geometry{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := videoContainer(1000, 2000, 3000, 3001, 4001, 5001)
			c.Changes = map[int]media.Geometry{3: tt.change}

			res := scan(t, c, Options{})

			assert.Equal(t, Unsafe, res.Verdict)
			assert.Equal(t, 3, res.AnomalyFrame)
			assert.Equal(t, int64(1), res.AnomalyDelta)
			assert.Equal(t, hd, res.Expected)
			assert.Equal(t, tt.change, res.Observed)
			assert.Equal(t, 4, c.Reads(), "no packet may be read after the anomaly")
		})
	}
}

func TestScanIgnoresOtherStreams(t *testing.T) {
	c := videoContainer()
	c.Stream.Index = 1
	c.Packets = []media.Packet{
		{StreamIndex: 1, DTS: 1000, HasDTS: true},
		{StreamIndex: 0, DTS: 1500, HasDTS: true},
		{StreamIndex: 1, DTS: 2000, HasDTS: true},
		{StreamIndex: 0, DTS: 1700, HasDTS: true},
		{StreamIndex: 1, DTS: 3000, HasDTS: true},
		{StreamIndex: 0, DTS: 90000, HasDTS: true},
		{StreamIndex: 1, DTS: 4000, HasDTS: true},
	}
	c.Changes = map[int]media.Geometry{1: tiny}

	res := scan(t, c, Options{})

	assert.Equal(t, Safe, res.Verdict)
	assert.Equal(t, 4, res.Frames)
	assert.Empty(t, c.Probes())
}

func TestScanIsRepeatable(t *testing.T) {
	build := func() *mediatest.Container {
		c := videoContainer(1000, 2000, 3000, 3500, 4000, 9000)
		c.Changes = map[int]media.Geometry{5: yuv44}
		return c
	}

	first := scan(t, build(), Options{})
	second := scan(t, build(), Options{})

	assert.Equal(t, first.Verdict, second.Verdict)
	assert.Equal(t, first, second)
}

func TestScanMaxPackets(t *testing.T) {
	c := videoContainer(1000, 2000, 3000, 4000, 4001)
	c.Changes = map[int]media.Geometry{4: tiny}

	res := scan(t, c, Options{MaxPackets: 3})

	assert.Equal(t, Safe, res.Verdict)
	assert.True(t, res.Truncated)
	assert.Equal(t, 3, res.Frames)
	assert.Equal(t, 3, c.Reads())
}

func TestScanReadError(t *testing.T) {
	readErr := cerrors.NewContainerReadError("x.mp4", errors.New("invalid data"))
	c := videoContainer(1000, 2000, 3000)
	c.ReadErr = readErr
	c.ReadErrAt = 2

	res, err := Scan(context.Background(), c, Options{Logger: logging.Discard()})

	assert.Nil(t, res)
	assert.ErrorIs(t, err, readErr)
	assert.Equal(t, cerrors.CodeOpenFailed, cerrors.CodeOf(err))
}

func TestScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := videoContainer(1000, 2000, 3000)
	res, err := Scan(ctx, c, Options{Logger: logging.Discard()})

	assert.Nil(t, res)
	assert.True(t, cerrors.IsCancelled(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, c.Reads())
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "safe", Safe.String())
	assert.Equal(t, "unsafe", Unsafe.String())
}

func TestDeltaState(t *testing.T) {
	s := newDeltaState()

	_, candidate := s.observe(100)
	assert.False(t, candidate, "first timestamp only primes")

	d, candidate := s.observe(200)
	assert.Equal(t, int64(100), d)
	assert.False(t, candidate, "first delta becomes the baseline")

	d, candidate = s.observe(250)
	assert.Equal(t, int64(50), d)
	assert.True(t, candidate)

	s.trust(50)
	assert.Equal(t, int64(50), s.baseline)
	assert.True(t, s.seen.has(100))

	_, candidate = s.observe(350)
	assert.False(t, candidate, "old baseline stays trusted")
}
