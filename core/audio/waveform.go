package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	timestats "github.com/cwbudde/algo-dsp/stats/time"
)

const (
	waveformSampleRate = 8000
	// DefaultWaveformBuckets is used when the caller asks for none.
	DefaultWaveformBuckets = 100
	maxWaveformBuckets     = 2000
)

// Waveform decodes path to mono float PCM and summarizes it into buckets
// of peak and RMS amplitude.
func (p *FFmpegProcessor) Waveform(ctx context.Context, path string, buckets int) ([]WaveformPoint, error) {
	if err := checkInput(path); err != nil {
		return nil, err
	}
	if buckets <= 0 {
		buckets = DefaultWaveformBuckets
	}
	if buckets > maxWaveformBuckets {
		buckets = maxWaveformBuckets
	}

	args := []string{
		"-v", "error",
		"-i", path,
		"-ac", "1",
		"-ar", strconv.Itoa(waveformSampleRate),
		"-f", "f32le",
		"pipe:1",
	}

	runCtx, cancel := p.runContext(ctx)
	defer cancel()

	var pcm bytes.Buffer
	if err := p.runner.Run(runCtx, p.ffmpegPath, args, &pcm); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg decode failed for %s: %v", ErrExternalTool, path, err)
	}

	return summarize(decodeFloat32LE(pcm.Bytes()), buckets), nil
}

func decodeFloat32LE(raw []byte) []float64 {
	samples := make([]float64, len(raw)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		samples[i] = float64(math.Float32frombits(bits))
	}
	return samples
}

// summarize splits samples into at most buckets contiguous slices. Fewer
// samples than buckets yields one point per sample.
func summarize(samples []float64, buckets int) []WaveformPoint {
	if len(samples) == 0 || buckets <= 0 {
		return []WaveformPoint{}
	}
	if buckets > len(samples) {
		buckets = len(samples)
	}

	points := make([]WaveformPoint, 0, buckets)
	for i := 0; i < buckets; i++ {
		start := i * len(samples) / buckets
		end := (i + 1) * len(samples) / buckets
		stats := timestats.Calculate(samples[start:end])
		points = append(points, WaveformPoint{Peak: stats.Peak, RMS: stats.RMS})
	}
	return points
}
