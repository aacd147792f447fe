package ffmpeg

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerScan(t *testing.T) {
	t.Run("parses time and speed markers", func(t *testing.T) {
		tr := newTracker(120, SinglePass)

		p, ok := tr.scan("frame= 100 fps=25 time=00:01:00.00 bitrate=1000k speed=2.0x")
		require.True(t, ok)
		assert.Equal(t, 50, p.Percent)
		assert.Equal(t, "00:01:00.00", p.Clock)
		assert.Equal(t, "2.0x", p.Speed)
		// 60s of media left at 2x.
		assert.Equal(t, "0:30", p.Remaining)
	})

	t.Run("ignores lines without a time marker", func(t *testing.T) {
		tr := newTracker(120, SinglePass)
		_, ok := tr.scan("Stream #0:0: Video: h264")
		assert.False(t, ok)
	})

	t.Run("clamps into the window", func(t *testing.T) {
		tr := newTracker(100, SinglePass)

		p, _ := tr.scan("time=00:00:01.00 speed=1.0x")
		assert.Equal(t, 20, p.Percent)

		p, _ = tr.scan("time=00:01:39.00 speed=1.0x")
		assert.Equal(t, 90, p.Percent)
	})

	t.Run("compression phase window", func(t *testing.T) {
		tr := newTracker(100, CompressPhase)
		p, _ := tr.scan("time=00:01:39.00 speed=1.0x")
		assert.Equal(t, 60, p.Percent)
	})

	t.Run("derives speed from wall clock when marker is absent", func(t *testing.T) {
		tr := newTracker(600, SinglePass)
		wall := time.Unix(1000, 0)
		tr.now = func() time.Time { return wall }

		tr.scan("time=00:00:10.00")
		wall = wall.Add(5 * time.Second)

		// 10 media seconds in 5 wall seconds = 2x.
		p, ok := tr.scan("time=00:00:20.00")
		require.True(t, ok)
		assert.Equal(t, "2.0x", p.Speed)
	})

	t.Run("keeps previous speed on zero delta", func(t *testing.T) {
		tr := newTracker(600, SinglePass)
		wall := time.Unix(1000, 0)
		tr.now = func() time.Time { return wall }

		tr.scan("time=00:00:10.00 speed=1.5x")
		// Same media timestamp again, no wall time passed.
		p, ok := tr.scan("time=00:00:10.00")
		require.True(t, ok)
		assert.Equal(t, "1.5x", p.Speed)
	})

	t.Run("zero duration stays at the floor", func(t *testing.T) {
		tr := newTracker(0, SinglePass)
		p, ok := tr.scan("time=00:00:10.00 speed=1.0x")
		require.True(t, ok)
		assert.Equal(t, 20, p.Percent)
	})
}

func TestScanProgress(t *testing.T) {
	t.Run("delivers monotonic ticks from a carriage-return stream", func(t *testing.T) {
		stream := strings.Join([]string{
			"ffmpeg version n6.0",
			"Stream mapping:",
			"frame=  250 time=00:00:10.00 speed=1.0x",
			"frame=  500 time=00:00:20.00 speed=1.1x",
			"frame=  750 time=00:00:30.00 speed=1.2x",
		}, "\r")

		var ticks []Progress
		tail := scanProgress(strings.NewReader(stream), 60, SinglePass, func(p Progress) {
			ticks = append(ticks, p)
		})

		require.Len(t, ticks, 3)
		assert.Equal(t, 20, ticks[0].Percent)
		assert.Equal(t, 33, ticks[1].Percent)
		assert.Equal(t, 50, ticks[2].Percent)
		assert.Contains(t, tail, "time=00:00:30.00")
	})

	t.Run("keeps only the tail for diagnostics", func(t *testing.T) {
		long := strings.Repeat("x", 2000) + "\nLAST LINE"
		tail := scanProgress(strings.NewReader(long), 60, SinglePass, nil)
		assert.LessOrEqual(t, len(tail), diagTailLen)
		assert.Contains(t, tail, "LAST LINE")
	})
}

func TestParseRational(t *testing.T) {
	assert.InDelta(t, 29.97, parseRational("30000/1001"), 0.001)
	assert.Equal(t, 25.0, parseRational("25"))
	assert.Equal(t, 0.0, parseRational("30000/0"))
	assert.Equal(t, 0.0, parseRational(""))
	assert.Equal(t, 0.0, parseRational("abc/def"))
}
