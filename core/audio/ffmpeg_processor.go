package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"VoiceMorph/core/effects"
	"VoiceMorph/logger"
)

const (
	// FadeLength is the fade-in and fade-out duration in seconds.
	FadeLength = 0.1
	// MinDuration replaces a missing or non-positive probed duration.
	MinDuration = 0.2

	OutputSampleRate = 44100
	OutputChannels   = 1
	OutputBitrate    = "128k"
	OutputFormat     = "wav"
)

// FFmpegProcessor implements Processor using the ffmpeg and ffprobe binaries.
type FFmpegProcessor struct {
	ffmpegPath  string
	ffprobePath string
	catalog     *effects.Catalog
	runner      Runner
	timeout     time.Duration
}

// NewFFmpegProcessor creates a processor that spawns real processes.
func NewFFmpegProcessor(catalog *effects.Catalog, ffmpegPath, ffprobePath string) *FFmpegProcessor {
	return NewFFmpegProcessorWithRunner(catalog, ffmpegPath, ffprobePath, execRunner{})
}

// NewFFmpegProcessorWithRunner is NewFFmpegProcessor with a custom Runner.
func NewFFmpegProcessorWithRunner(catalog *effects.Catalog, ffmpegPath, ffprobePath string, runner Runner) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = strings.Replace(ffmpegPath, "ffmpeg", "ffprobe", 1)
	}
	return &FFmpegProcessor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		catalog:     catalog,
		runner:      runner,
	}
}

// WithTimeout bounds every ffmpeg run. Zero disables the bound.
func (p *FFmpegProcessor) WithTimeout(d time.Duration) *FFmpegProcessor {
	p.timeout = d
	return p
}

// Catalog returns the effect catalog the processor validates against.
func (p *FFmpegProcessor) Catalog() *effects.Catalog {
	return p.catalog
}

// ffprobeOutput defines the subset of ffprobe JSON output we read.
type ffprobeOutput struct {
	Streams []struct {
		CodecName  string `json:"codec_name"`
		CodecType  string `json:"codec_type"`
		BitRate    string `json:"bit_rate"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
}

// Probe runs ffprobe once and extracts the audio metadata of path.
func (p *FFmpegProcessor) Probe(ctx context.Context, path string) (*Metadata, error) {
	args := []string{
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-of", "json",
		path,
	}

	var out bytes.Buffer
	if err := p.runner.Run(ctx, p.ffprobePath, args, &out); err != nil {
		return nil, fmt.Errorf("%w: ffprobe execution failed for %s: %v", ErrProbe, path, err)
	}

	var probeData ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal ffprobe output for %s: %v", ErrProbe, path, err)
	}

	for _, s := range probeData.Streams {
		if s.CodecType != "audio" {
			continue
		}
		meta := &Metadata{
			Duration:   parseFloat(probeData.Format.Duration, 0),
			Size:       parseInt(probeData.Format.Size, 0),
			Bitrate:    parseInt(s.BitRate, 0),
			SampleRate: int(parseInt(s.SampleRate, OutputSampleRate)),
			Channels:   s.Channels,
			Codec:      s.CodecName,
		}
		if meta.Channels == 0 {
			meta.Channels = 1
		}
		if meta.Codec == "" {
			meta.Codec = "unknown"
		}
		return meta, nil
	}

	return nil, fmt.Errorf("%w: no audio stream found in %s", ErrProbe, path)
}

// Transform renders req.EffectID onto req.InputPath and writes a normalized
// WAV file to req.OutputPath. The input file is left in place.
func (p *FFmpegProcessor) Transform(ctx context.Context, req TransformRequest) (*TransformResult, error) {
	effect, ok := p.catalog.Lookup(req.EffectID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEffect, req.EffectID)
	}
	if err := checkInput(req.InputPath); err != nil {
		return nil, err
	}

	duration := req.Options.DurationHint
	if duration <= 0 {
		meta, err := p.Probe(ctx, req.InputPath)
		if err != nil {
			return nil, err
		}
		duration = meta.Duration
	}
	if duration <= 0 {
		duration = MinDuration
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory for %s: %w", req.OutputPath, err)
	}

	chain := BuildFilterChain(effect.Filters, duration, req.Options.Normalize)
	args := []string{
		"-y",
		"-hide_banner",
		"-i", req.InputPath,
		"-af", chain,
		"-ar", strconv.Itoa(OutputSampleRate),
		"-ac", strconv.Itoa(OutputChannels),
		"-b:a", OutputBitrate,
		"-f", OutputFormat,
	}

	var stdout io.Writer
	var progress *progressWriter
	if req.Options.Progress != nil {
		args = append(args, "-progress", "pipe:1", "-nostats")
		progress = newProgressWriter(duration, req.Options.Progress)
		stdout = progress
	}
	args = append(args, req.OutputPath)

	logger.Debug("执行 FFmpeg 命令",
		logger.String("effect", effect.ID),
		logger.String("command", p.ffmpegPath+" "+strings.Join(args, " ")))

	runCtx, cancel := p.runContext(ctx)
	defer cancel()

	start := time.Now()
	if err := p.runner.Run(runCtx, p.ffmpegPath, args, stdout); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg execution failed for %s: %v", ErrExternalTool, req.InputPath, err)
	}
	if progress != nil {
		progress.finish()
	}

	logger.Info("音频处理完成",
		logger.String("effect", effect.ID),
		logger.String("output", req.OutputPath),
		logger.Duration("elapsed", time.Since(start)))

	return &TransformResult{
		OutputPath: req.OutputPath,
		EffectID:   effect.ID,
		EffectName: effect.Name,
	}, nil
}

// ConvertToMP3 re-encodes inputPath as MP3 at the given bitrate in kbps.
func (p *FFmpegProcessor) ConvertToMP3(ctx context.Context, inputPath, outputPath string, kbps int) error {
	if err := checkInput(inputPath); err != nil {
		return err
	}
	if kbps <= 0 {
		kbps = 192
	}
	args := []string{"-y", "-hide_banner", "-i", inputPath, "-b:a", fmt.Sprintf("%dk", kbps), "-f", "mp3", outputPath}
	return p.run(ctx, inputPath, args)
}

// Normalize applies loudness normalization and writes a WAV file.
func (p *FFmpegProcessor) Normalize(ctx context.Context, inputPath, outputPath string) error {
	if err := checkInput(inputPath); err != nil {
		return err
	}
	args := []string{"-y", "-hide_banner", "-i", inputPath, "-af", "loudnorm", "-f", "wav", outputPath}
	return p.run(ctx, inputPath, args)
}

func (p *FFmpegProcessor) run(ctx context.Context, inputPath string, args []string) error {
	runCtx, cancel := p.runContext(ctx)
	defer cancel()
	if err := p.runner.Run(runCtx, p.ffmpegPath, args, nil); err != nil {
		return fmt.Errorf("%w: ffmpeg execution failed for %s: %v", ErrExternalTool, inputPath, err)
	}
	return nil
}

func (p *FFmpegProcessor) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout > 0 {
		return context.WithTimeout(ctx, p.timeout)
	}
	return context.WithCancel(ctx)
}

// BuildFilterChain joins the effect filters in order and appends the fades.
func BuildFilterChain(filters []string, duration float64, normalize bool) string {
	chain := make([]string, 0, len(filters)+3)
	chain = append(chain, filters...)
	if normalize {
		chain = append(chain, "loudnorm")
	}
	chain = append(chain,
		"afade=t=in:ss=0:d="+formatSeconds(FadeLength),
		"afade=t=out:st="+formatSeconds(FadeOutStart(duration))+":d="+formatSeconds(FadeLength),
	)
	return strings.Join(chain, ",")
}

// FadeOutStart is max(duration-FadeLength, 0).
func FadeOutStart(duration float64) float64 {
	return math.Max(duration-FadeLength, 0)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func checkInput(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrInputNotFound, path)
	}
	return nil
}

func parseFloat(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return fallback
	}
	return v
}

func parseInt(s string, fallback int64) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
