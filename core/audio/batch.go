package audio

import (
	"context"
	"path/filepath"
	"strings"

	"VoiceMorph/logger"
)

// BatchResult is the outcome of one file in BatchProcess.
type BatchResult struct {
	InputPath  string `json:"input"`
	OutputPath string `json:"output,omitempty"`
	Err        error  `json:"-"`
}

// BatchProcess applies effectID to every file sequentially and writes
// <stem>_<effect>.wav into outputDir. A failed file does not stop the batch.
func (p *FFmpegProcessor) BatchProcess(ctx context.Context, files []string, effectID, outputDir string, opts TransformOptions) []BatchResult {
	results := make([]BatchResult, 0, len(files))
	for _, in := range files {
		if err := ctx.Err(); err != nil {
			results = append(results, BatchResult{InputPath: in, Err: err})
			continue
		}

		stem := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
		out := filepath.Join(outputDir, stem+"_"+effectID+"."+OutputFormat)

		res, err := p.Transform(ctx, TransformRequest{
			InputPath:  in,
			OutputPath: out,
			EffectID:   effectID,
			Options:    opts,
		})
		if err != nil {
			logger.Warn("批量处理失败",
				logger.String("input", in),
				logger.ErrorField(err))
			results = append(results, BatchResult{InputPath: in, Err: err})
			continue
		}
		results = append(results, BatchResult{InputPath: in, OutputPath: res.OutputPath})
	}
	return results
}
