// Package audiotest provides a scripted command runner for exercising the
// ffmpeg processor without the real binaries.
package audiotest

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
)

// ProbeJSON returns ffprobe output describing one audio stream.
func ProbeJSON(duration float64) string {
	return fmt.Sprintf(`{"streams":[{"codec_name":"pcm_s16le","codec_type":"audio","sample_rate":"48000","channels":2,"bit_rate":"1536000"}],"format":{"duration":"%.3f","size":"1024"}}`, duration)
}

// Call records one Run invocation.
type Call struct {
	Name string
	Args []string
}

// Runner fakes ffmpeg and ffprobe. ffprobe calls print Probe; ffmpeg calls
// write OutputBytes to the last argument, or PCM/Progress to stdout when the
// output is pipe:1.
type Runner struct {
	mu    sync.Mutex
	calls []Call

	Probe       string
	ProbeErr    error
	FFmpegErr   error
	OutputBytes []byte
	PCM         []float32
	Progress    string
}

// NewRunner returns a runner whose probe reports duration seconds.
func NewRunner(duration float64) *Runner {
	return &Runner{
		Probe:       ProbeJSON(duration),
		OutputBytes: []byte("RIFF....WAVEfmt "),
	}
}

func (r *Runner) Run(ctx context.Context, name string, args []string, stdout io.Writer) error {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Name: name, Args: append([]string(nil), args...)})
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if stdout == nil {
		stdout = io.Discard
	}

	if strings.Contains(name, "ffprobe") {
		if r.ProbeErr != nil {
			return r.ProbeErr
		}
		_, err := io.WriteString(stdout, r.Probe)
		return err
	}

	if r.FFmpegErr != nil {
		return r.FFmpegErr
	}
	if r.Progress != "" {
		if _, err := io.WriteString(stdout, r.Progress); err != nil {
			return err
		}
	}

	out := args[len(args)-1]
	if out == "pipe:1" {
		buf := make([]byte, 4*len(r.PCM))
		for i, s := range r.PCM {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
		}
		_, err := stdout.Write(buf)
		return err
	}
	return os.WriteFile(out, r.OutputBytes, 0644)
}

// Calls returns a copy of the recorded invocations.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CountCalls returns the number of invocations whose binary name contains tool.
func (r *Runner) CountCalls(tool string) int {
	n := 0
	for _, c := range r.Calls() {
		if strings.Contains(c.Name, tool) {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls.
func (r *Runner) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

// ErrBoom is a canned tool failure.
var ErrBoom = errors.New("exit status 1")
