package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"VoiceMorph/core/audio"
	"VoiceMorph/core/effects"

	"github.com/spf13/cobra"
)

var (
	transformEffect    string
	transformOutputDir string
	transformNormalize bool
)

var transformCmd = &cobra.Command{
	Use:   "transform <file>...",
	Short: "批量处理音频文件",
	Long:  `对一个或多个音频文件应用同一个音效，输出为 <name>_<effect>.wav。单个文件失败不会中断其它文件。`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog := effects.Default()
		if _, ok := catalog.Lookup(transformEffect); !ok {
			return fmt.Errorf("%w: %q", audio.ErrUnknownEffect, transformEffect)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		processor := audio.NewFFmpegProcessor(catalog, cfg.FFmpegPath, cfg.FFprobePath).WithTimeout(cfg.FFmpegTimeout)
		results := processor.BatchProcess(ctx, args, transformEffect, transformOutputDir, audio.TransformOptions{
			Normalize: transformNormalize,
		})

		out := cmd.OutOrStdout()
		failed := 0
		rows := make([][]string, 0, len(results))
		report := make([]map[string]string, 0, len(results))
		for _, res := range results {
			status := "ok"
			if res.Err != nil {
				failed++
				status = res.Err.Error()
			}
			rows = append(rows, []string{res.InputPath, res.OutputPath, status})
			report = append(report, map[string]string{"input": res.InputPath, "output": res.OutputPath, "status": status})
		}

		if wantJSON(out) {
			if err := writeJSON(out, report); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(out, renderTable([]string{"Input", "Output", "Status"}, rows))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	transformCmd.Flags().StringVarP(&transformEffect, "effect", "e", "", "音效ID")
	transformCmd.Flags().StringVarP(&transformOutputDir, "output", "o", "processed", "输出目录")
	transformCmd.Flags().BoolVar(&transformNormalize, "normalize", false, "响度标准化")
	_ = transformCmd.MarkFlagRequired("effect")
	rootCmd.AddCommand(transformCmd)
}
