package cmd

import (
	"VoiceMorph/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动VoiceMorph服务器",
	Long:  `启动VoiceMorph的HTTP服务器，提供音效API、分享页面和Web界面`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
