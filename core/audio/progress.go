package audio

import (
	"bytes"
	"strconv"
	"strings"
	"sync"
)

// progressWriter parses the key=value stream ffmpeg writes with
// "-progress pipe:1" and reports percentages against the known duration.
type progressWriter struct {
	mu       sync.Mutex
	duration float64
	report   func(float64)
	buf      bytes.Buffer
	last     float64
}

func newProgressWriter(duration float64, report func(float64)) *progressWriter {
	return &progressWriter{duration: duration, report: report, last: -1}
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// keep the partial line for the next write
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.handleLine(strings.TrimSpace(line))
	}
	return len(p), nil
}

func (w *progressWriter) handleLine(line string) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return
	}
	switch key {
	case "out_time_ms", "out_time_us":
		// ffmpeg reports both keys in microseconds
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 || w.duration <= 0 {
			return
		}
		percent := float64(us) / 1e6 / w.duration * 100
		if percent > 100 {
			percent = 100
		}
		w.emit(percent)
	case "progress":
		if value == "end" {
			w.emit(100)
		}
	}
}

func (w *progressWriter) emit(percent float64) {
	if percent <= w.last {
		return
	}
	w.last = percent
	w.report(percent)
}

// finish reports 100 unless the stream already ended.
func (w *progressWriter) finish() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.emit(100)
}
