package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os/exec"
)

const diagTailLen = 500

// Encoder launches the external encoder and reports streamed progress.
type Encoder struct {
	bin string
}

// NewEncoder verifies the encoder binary is reachable before the server
// accepts any work.
func NewEncoder(bin string) (*Encoder, error) {
	if _, err := exec.LookPath(bin); err != nil {
		return nil, fmt.Errorf("ffmpeg binary not found or not in PATH: %s", bin)
	}
	return &Encoder{bin: bin}, nil
}

// Available reports whether the given binary resolves on PATH.
func Available(bin string) bool {
	_, err := exec.LookPath(bin)
	return err == nil
}

// Run executes one encoder pass. Progress ticks are delivered on the
// calling goroutine's behalf by a single scanner goroutine, and all of
// them are delivered before Run returns, so the caller's final update
// never races a tick. A zero return only means the process exited zero;
// the caller still has to verify the output file exists.
func (e *Encoder) Run(ctx context.Context, args []string, duration float64, w Window, onTick func(Progress)) error {
	cmd := exec.CommandContext(ctx, e.bin, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	tail := scanProgress(stderr, duration, w, onTick)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("encode aborted: %w", ctx.Err())
		}
		log.Printf("ffmpeg failed, last output: %s", tail)
		return fmt.Errorf("encoding failed (code %d)", cmd.ProcessState.ExitCode())
	}
	return nil
}

// scanProgress consumes the diagnostic stream line by line, never
// buffering the whole stream, and returns the tail kept for error
// reporting.
func scanProgress(r io.Reader, duration float64, w Window, onTick func(Progress)) string {
	t := newTracker(duration, w)
	var tail []byte

	sc := bufio.NewScanner(r)
	sc.Split(scanDiagLines)
	for sc.Scan() {
		line := sc.Text()

		tail = append(tail, line...)
		tail = append(tail, '\n')
		if len(tail) > diagTailLen {
			tail = tail[len(tail)-diagTailLen:]
		}

		if p, ok := t.scan(line); ok && onTick != nil {
			onTick(p)
		}
	}
	return string(tail)
}

// scanDiagLines splits on \n or \r: ffmpeg rewrites its progress line in
// place with bare carriage returns.
func scanDiagLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
