package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"VoiceMorph/storage"

	"github.com/spf13/cobra"
)

var (
	storagePrefix string
	storageStats  bool
	storageDelete string
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "对象存储管理",
	Long:  `查看和管理归档的录音文件，支持列出文件、查看统计信息和删除对象。后端由 STORAGE_BACKEND 选择 (minio 或 s3)。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("STORAGE_BACKEND 未配置")
		}
		out := cmd.OutOrStdout()

		if storageDelete != "" {
			if err := store.Delete(cmd.Context(), storageDelete); err != nil {
				return fmt.Errorf("删除对象失败: %w", err)
			}
			_, err := fmt.Fprintf(out, "已删除 %s\n", storageDelete)
			return err
		}

		objects, err := store.List(cmd.Context(), storagePrefix)
		if err != nil {
			return fmt.Errorf("列出文件失败: %w", err)
		}

		if storageStats {
			stats := storage.Stats(objects)
			if wantJSON(out) {
				return writeJSON(out, stats)
			}
			_, err := fmt.Fprintf(out, "存储桶统计 (%s): %d 个对象, 总大小 %s\n",
				store.Name(), stats.TotalObjects, storage.FormatSize(stats.TotalSize))
			return err
		}

		if wantJSON(out) {
			return writeJSON(out, objects)
		}
		rows := make([][]string, 0, len(objects))
		for _, obj := range objects {
			rows = append(rows, []string{
				obj.Key,
				storage.FormatSize(obj.Size),
				strconv.FormatInt(obj.Size, 10),
				obj.LastModified.Format(time.DateTime),
			})
		}
		_, err = fmt.Fprintln(out, renderTable([]string{"Key", "Size", "Bytes", "Last Modified"}, rows, 1, 2))
		return err
	},
}

func init() {
	storageCmd.Flags().StringVarP(&storagePrefix, "prefix", "p", "recordings/", "对象前缀")
	storageCmd.Flags().BoolVarP(&storageStats, "stats", "s", false, "显示统计信息")
	storageCmd.Flags().StringVar(&storageDelete, "delete", "", "删除指定对象")
	rootCmd.AddCommand(storageCmd)
}
