// Package plan computes encoder bitrate and quality targets. All functions
// are pure; the clamping thresholds are part of the service contract and
// determine the observable size/quality tradeoff.
package plan

import (
	"errors"
	"math"
)

const (
	// AudioBitrate is reserved for the AAC audio track, in bits per second.
	AudioBitrate = 128000
	// MinVideoBitrate is the floor below which encodes degenerate.
	MinVideoBitrate = 100000
	// MaxVideoBitrate bounds combined size+format jobs against pathological
	// size/duration inputs.
	MaxVideoBitrate = 5000000

	minPercent = 5
	maxPercent = 95

	minCRF = 18
	maxCRF = 51
)

var ErrInvalidParameter = errors.New("invalid planner parameter")

// ForTargetSize returns the video bitrate (bits/s) that fits sizeMB
// megabytes of output for the given duration, after reserving the audio
// track.
func ForTargetSize(sizeMB, durationSec float64) (int, error) {
	if sizeMB < 1 || math.IsNaN(sizeMB) {
		return 0, ErrInvalidParameter
	}
	if durationSec <= 0 || math.IsNaN(durationSec) {
		return 0, ErrInvalidParameter
	}

	bitrate := int(math.Floor(sizeMB*8*1024*1024/durationSec - AudioBitrate))
	if bitrate < MinVideoBitrate {
		bitrate = MinVideoBitrate
	}
	return bitrate, nil
}

// ForSizeAndFormat is ForTargetSize with an additional ceiling, used by the
// two-phase compress+convert workflow.
func ForSizeAndFormat(sizeMB, durationSec float64) (int, error) {
	bitrate, err := ForTargetSize(sizeMB, durationSec)
	if err != nil {
		return 0, err
	}
	if bitrate > MaxVideoBitrate {
		bitrate = MaxVideoBitrate
	}
	return bitrate, nil
}

// ClampPercent narrows a user-validated 1..99 percent into the working
// range, keeping encodes away from the degenerate extremes.
func ClampPercent(percent int) int {
	if percent < minPercent {
		return minPercent
	}
	if percent > maxPercent {
		return maxPercent
	}
	return percent
}

// ForPercent keeps (100-percent)% of the original video bitrate.
func ForPercent(percent, originalBitrate int) int {
	percent = ClampPercent(percent)
	bitrate := originalBitrate * (100 - percent) / 100
	if bitrate < MinVideoBitrate {
		bitrate = MinVideoBitrate
	}
	return bitrate
}

// CRFForPercent maps a compression percent onto a constant-quality factor
// for sources whose bitrate the prober could not determine. Higher percent
// means a higher CRF, i.e. stronger compression.
func CRFForPercent(percent int) int {
	percent = ClampPercent(percent)
	crf := int(math.Round(float64(minCRF) + float64(percent)/100*33))
	if crf < minCRF {
		crf = minCRF
	}
	if crf > maxCRF {
		crf = maxCRF
	}
	return crf
}
