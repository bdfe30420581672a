package audio

import (
	"context"
	"errors"
)

var (
	// ErrUnknownEffect is returned when the requested effect is not in the catalog.
	ErrUnknownEffect = errors.New("unknown effect")
	// ErrInputNotFound is returned when the input path does not reference a readable file.
	ErrInputNotFound = errors.New("input file does not exist")
	// ErrProbe is returned when ffprobe fails or the file has no audio stream.
	ErrProbe = errors.New("probe failed")
	// ErrExternalTool wraps any ffmpeg failure.
	ErrExternalTool = errors.New("external tool failed")
)

// Metadata is what a probe learns about an audio file.
type Metadata struct {
	Duration   float64 `json:"duration"` // seconds
	Size       int64   `json:"size"`     // bytes
	Bitrate    int64   `json:"bitrate"`
	SampleRate int     `json:"sampleRate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
}

// TransformOptions tune a single transform.
type TransformOptions struct {
	// DurationHint skips the probe when positive.
	DurationHint float64
	// Normalize adds EBU R128 loudness normalization before the fades.
	Normalize bool
	// Progress receives completion percentages in [0, 100] while ffmpeg runs.
	Progress func(percent float64)
}

// TransformRequest is one effect render from InputPath to OutputPath.
type TransformRequest struct {
	InputPath  string
	OutputPath string
	EffectID   string
	Options    TransformOptions
}

// TransformResult describes a finished render.
type TransformResult struct {
	OutputPath string `json:"outputPath"`
	EffectID   string `json:"effectType"`
	EffectName string `json:"effectName"`
}

// WaveformPoint summarizes one slice of a waveform.
type WaveformPoint struct {
	Peak float64 `json:"peak"`
	RMS  float64 `json:"rms"`
}

// Processor defines the audio operations the HTTP layer relies on.
type Processor interface {
	Probe(ctx context.Context, path string) (*Metadata, error)
	Transform(ctx context.Context, req TransformRequest) (*TransformResult, error)
	ConvertToMP3(ctx context.Context, inputPath, outputPath string, kbps int) error
	Normalize(ctx context.Context, inputPath, outputPath string) error
	Waveform(ctx context.Context, path string, buckets int) ([]WaveformPoint, error)
}
