package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// VideoStream describes the first video stream of a probed file.
type VideoStream struct {
	Codec   string
	Width   int
	Height  int
	FPS     float64
	Bitrate int
}

// AudioStream describes the first audio stream of a probed file.
type AudioStream struct {
	Codec    string
	Channels int
}

// Info is the probe result for one media file.
type Info struct {
	Format   string
	Duration float64
	Video    *VideoStream
	Audio    *AudioStream
}

// Prober extracts container and stream metadata without decoding.
type Prober struct {
	bin string
}

func NewProber(bin string) *Prober {
	return &Prober{bin: bin}
}

type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		BitRate    string `json:"bit_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// Probe runs ffprobe over the file and returns structured metadata.
func (p *Prober) Probe(ctx context.Context, path string) (*Info, error) {
	cmd := exec.CommandContext(ctx, p.bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var raw probeOutput
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("ffprobe output parse: %w", err)
	}

	info := &Info{Format: raw.Format.FormatName}
	info.Duration, _ = strconv.ParseFloat(raw.Format.Duration, 64)

	for _, s := range raw.Streams {
		switch s.CodecType {
		case "video":
			if info.Video != nil {
				continue
			}
			bitrate, _ := strconv.Atoi(s.BitRate)
			info.Video = &VideoStream{
				Codec:   s.CodecName,
				Width:   s.Width,
				Height:  s.Height,
				FPS:     parseRational(s.RFrameRate),
				Bitrate: bitrate,
			}
		case "audio":
			if info.Audio != nil {
				continue
			}
			info.Audio = &AudioStream{
				Codec:    s.CodecName,
				Channels: s.Channels,
			}
		}
	}
	return info, nil
}

// Duration is the lightweight duration-only probe.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, p.bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration failed: %w", err)
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration parse: %w", err)
	}
	return d, nil
}

// parseRational converts ffprobe frame-rate fractions like "30000/1001"
// into a float. Plain numbers pass through; malformed input yields 0.
func parseRational(s string) float64 {
	if s == "" {
		return 0
	}
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
