package ffmpeg

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

var (
	timeRe  = regexp.MustCompile(`time=(\d+):(\d+):(\d+\.\d+)`)
	speedRe = regexp.MustCompile(`speed=\s*([\d.]+)x`)
)

// Window maps an encoder pass onto a sub-range of the job's 0-100 progress
// scale, so a two-phase workflow can reserve room for its second pass.
type Window struct {
	Floor, Ceil int
}

// SinglePass is the window for a job with one encoder invocation.
var SinglePass = Window{Floor: 20, Ceil: 90}

// CompressPhase and ConvertPhase split the scale for two-phase jobs.
var (
	CompressPhase = Window{Floor: 20, Ceil: 60}
	ConvertPhase  = Window{Floor: 70, Ceil: 100}
)

// Progress is one parsed tick of encoder output.
type Progress struct {
	Percent   int
	Elapsed   float64
	Clock     string // encoded media time, HH:MM:SS.ff
	Remaining string // ETA, M:SS
	Speed     string // encode speed multiplier, e.g. "1.5x"
}

// tracker derives progress ticks from encoder diagnostic lines. It keeps
// the previous tick so the speed can be computed even when the encoder
// omits its own speed marker.
type tracker struct {
	duration float64
	window   Window

	lastWall    time.Time
	lastElapsed float64
	lastSpeed   float64

	now func() time.Time
}

func newTracker(duration float64, w Window) *tracker {
	return &tracker{
		duration:  duration,
		window:    w,
		lastSpeed: 1,
		now:       time.Now,
	}
}

// scan parses one diagnostic line. ok is false for lines without a time
// marker; ticks arrive at whatever cadence the encoder chooses.
func (t *tracker) scan(line string) (Progress, bool) {
	m := timeRe.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}

	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.ParseFloat(m[3], 64)
	elapsed := float64(hours)*3600 + float64(minutes)*60 + seconds

	percent := t.window.Floor
	if t.duration > 0 {
		percent = int(math.Round(elapsed / t.duration * 100))
		if percent < t.window.Floor {
			percent = t.window.Floor
		}
		if percent > t.window.Ceil {
			percent = t.window.Ceil
		}
	}

	speed := t.lastSpeed
	if sm := speedRe.FindStringSubmatch(line); sm != nil {
		if v, err := strconv.ParseFloat(sm[1], 64); err == nil && v > 0 {
			speed = v
		}
	}
	now := t.now()
	if !t.lastWall.IsZero() {
		wallSec := now.Sub(t.lastWall).Seconds()
		mediaSec := elapsed - t.lastElapsed
		if wallSec > 0 && mediaSec > 0 {
			if derived := mediaSec / wallSec; !math.IsNaN(derived) {
				speed = derived
			}
		}
	}
	t.lastWall = now
	t.lastElapsed = elapsed
	t.lastSpeed = speed

	remaining := "--:--"
	if speed > 0 && t.duration > elapsed {
		left := (t.duration - elapsed) / speed
		if !math.IsInf(left, 0) && !math.IsNaN(left) {
			remaining = fmt.Sprintf("%d:%02d", int(left)/60, int(left)%60)
		}
	}

	return Progress{
		Percent:   percent,
		Elapsed:   elapsed,
		Clock:     fmt.Sprintf("%02d:%02d:%05.2f", hours, minutes, seconds),
		Remaining: remaining,
		Speed:     fmt.Sprintf("%.1fx", speed),
	}, true
}
