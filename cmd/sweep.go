package cmd

import (
	"fmt"
	"time"

	"VoiceMorph/core/cleanup"

	"github.com/spf13/cobra"
)

var sweepMaxAge time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "清理上传目录中的过期文件",
	Long:  `删除上传目录中超过最大保留时间的文件。与服务器内的定时清理共用同一把文件锁，不会重复执行。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		maxAge := cfg.CleanupMaxAge
		if sweepMaxAge > 0 {
			maxAge = sweepMaxAge
		}

		res, err := cleanup.NewSweeper(cfg.UploadDir, maxAge).SweepOnce(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if wantJSON(out) {
			return writeJSON(out, res)
		}
		_, err = fmt.Fprintf(out, "扫描 %d 个文件，删除 %d 个，失败 %d 个\n", res.Scanned, res.Removed, res.Failed)
		return err
	},
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepMaxAge, "max-age", 0, "最大保留时间，如 24h")
	rootCmd.AddCommand(sweepCmd)
}
