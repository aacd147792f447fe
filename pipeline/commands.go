package pipeline

import "strconv"

// strategy selects how a conversion is performed for an (input extension,
// target format) pair.
type strategy int

const (
	strategyRemux strategy = iota
	strategyH264
	strategyVP9
	strategyMPEG4
	strategyDefault
)

// convertStrategy picks remux-only when the container change alone keeps
// the streams compatible, otherwise a re-encode matching the target format.
func convertStrategy(inputExt, format string) strategy {
	switch {
	case inputExt == ".mp4" && (format == "mov" || format == "mkv"),
		inputExt == ".mov" && format == "mp4",
		inputExt == ".mkv" && format == "mp4":
		return strategyRemux
	case format == "mp4" || format == "mov" || format == "mkv":
		return strategyH264
	case format == "webm":
		return strategyVP9
	case format == "avi":
		return strategyMPEG4
	default:
		return strategyDefault
	}
}

// crfForQuality maps the user's {high, medium, low} choice onto a CRF for
// the given codec family. Medium is the default for unrecognized input.
func crfForQuality(quality string, vp9 bool) int {
	if vp9 {
		switch quality {
		case "high":
			return 25
		case "low":
			return 40
		default:
			return 32
		}
	}
	switch quality {
	case "high":
		return 18
	case "low":
		return 28
	default:
		return 23
	}
}

// sizeArgs is the single-pass compress-to-bitrate invocation.
func sizeArgs(input string, bitrate int, preset string) []string {
	return []string{
		"-i", input,
		"-b:v", strconv.Itoa(bitrate),
		"-c:a", "aac", "-b:a", "128k",
		"-preset", preset,
	}
}

// percentArgs caps the rate control so short spikes cannot blow past the
// reduced bitrate.
func percentArgs(input string, bitrate int, preset string) []string {
	return []string{
		"-i", input,
		"-b:v", strconv.Itoa(bitrate),
		"-maxrate", strconv.Itoa(bitrate),
		"-bufsize", strconv.Itoa(bitrate * 2),
		"-c:a", "aac", "-b:a", "128k",
		"-preset", preset,
	}
}

// crfArgs is the constant-quality fallback when no source bitrate is known.
func crfArgs(input string, crf int, preset string) []string {
	return []string{
		"-i", input,
		"-c:v", "libx264",
		"-crf", strconv.Itoa(crf),
		"-preset", preset,
		"-c:a", "aac", "-b:a", "128k",
	}
}

// convertArgs builds the re-encode (or remux) invocation that preserves
// the source bitrate.
func convertArgs(input, inputExt, format, quality string, sourceBitrate int) []string {
	switch convertStrategy(inputExt, format) {
	case strategyRemux:
		return []string{"-i", input, "-c", "copy", "-map", "0"}
	case strategyH264:
		return []string{
			"-i", input,
			"-c:v", "libx264",
			"-preset", "ultrafast",
			"-crf", strconv.Itoa(crfForQuality(quality, false)),
			"-b:v", strconv.Itoa(sourceBitrate),
			"-maxrate", strconv.Itoa(sourceBitrate * 12 / 10),
			"-bufsize", strconv.Itoa(sourceBitrate * 2),
			"-c:a", "aac", "-b:a", "128k",
			"-movflags", "+faststart",
		}
	case strategyVP9:
		return []string{
			"-i", input,
			"-c:v", "libvpx-vp9",
			"-crf", strconv.Itoa(crfForQuality(quality, true)),
			"-b:v", strconv.Itoa(sourceBitrate),
			"-maxrate", strconv.Itoa(sourceBitrate * 12 / 10),
			"-bufsize", strconv.Itoa(sourceBitrate * 2),
			"-deadline", "realtime", "-cpu-used", "5",
			"-c:a", "libopus", "-b:a", "64k",
		}
	case strategyMPEG4:
		return []string{
			"-i", input,
			"-c:v", "mpeg4",
			"-b:v", strconv.Itoa(sourceBitrate),
			"-q:v", "5",
			"-c:a", "mp3", "-b:a", "128k",
		}
	default:
		return []string{"-i", input}
	}
}

// compressPhaseArgs is phase one of compress+convert: squeeze into an
// intermediate mp4 at the planned bitrate.
func compressPhaseArgs(input string, bitrate, crf int, preset string) []string {
	return []string{
		"-i", input,
		"-c:v", "libx264",
		"-b:v", strconv.Itoa(bitrate),
		"-crf", strconv.Itoa(crf),
		"-preset", preset,
		"-c:a", "aac", "-b:a", "128k",
		"-movflags", "+faststart",
	}
}

// convertPhaseArgs is phase two: repackage the intermediate mp4 into the
// final container. The mp4 target never reaches here (plain rename).
func convertPhaseArgs(input, format string) []string {
	switch format {
	case "avi":
		return []string{"-i", input, "-c:v", "mpeg4", "-vtag", "xvid", "-q:v", "5", "-c:a", "mp3", "-b:a", "128k"}
	case "mov", "mkv":
		return []string{"-i", input, "-c:v", "libx264", "-preset", "fast", "-crf", "23", "-c:a", "aac", "-b:a", "128k"}
	case "webm":
		return []string{"-i", input, "-c:v", "libvpx-vp9", "-crf", "32", "-b:v", "0", "-c:a", "libopus", "-b:a", "64k", "-deadline", "realtime", "-cpu-used", "5"}
	case "wmv":
		return []string{"-i", input, "-c:v", "wmv2", "-b:v", "1M", "-c:a", "wmav2", "-b:a", "64k"}
	case "flv":
		return []string{"-i", input, "-c:v", "flv", "-q:v", "5", "-c:a", "mp3", "-b:a", "64k"}
	default:
		return []string{"-i", input}
	}
}

// qualityCRFForCompress matches the original compress+convert phase-one
// quality mapping, which differs from the convert table at "high".
func qualityCRFForCompress(quality string) int {
	switch quality {
	case "high":
		return 20
	case "low":
		return 28
	default:
		return 23
	}
}
