package cmd

import (
	"fmt"
	"strconv"

	"VoiceMorph/core/audio"
	"VoiceMorph/core/effects"
	"VoiceMorph/storage"

	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe <file>...",
	Short: "使用ffprobe查看音频信息",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		processor := audio.NewFFmpegProcessor(effects.Default(), cfg.FFmpegPath, cfg.FFprobePath)
		out := cmd.OutOrStdout()

		results := make(map[string]*audio.Metadata, len(args))
		rows := make([][]string, 0, len(args))
		for _, path := range args {
			meta, err := processor.Probe(cmd.Context(), path)
			if err != nil {
				return err
			}
			results[path] = meta
			rows = append(rows, []string{
				path,
				strconv.FormatFloat(meta.Duration, 'f', 2, 64) + "s",
				storage.FormatSize(meta.Size),
				meta.Codec,
				strconv.Itoa(meta.SampleRate),
				strconv.Itoa(meta.Channels),
			})
		}

		if wantJSON(out) {
			return writeJSON(out, results)
		}
		_, err := fmt.Fprintln(out, renderTable([]string{"File", "Duration", "Size", "Codec", "Sample Rate", "Channels"}, rows, 1, 2, 4, 5))
		return err
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
