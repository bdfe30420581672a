package cmd

import (
	"fmt"
	"strconv"
	"time"

	"VoiceMorph/db"
	"VoiceMorph/repository"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	usersLimit int
	resetFrom  int
	resetTo    int
)

func openDB() (*gorm.DB, error) {
	gdb, err := db.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(gdb); err != nil {
		db.Close(gdb)
		return nil, err
	}
	return gdb, nil
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "用户管理",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出用户",
	RunE: func(cmd *cobra.Command, args []string) error {
		gdb, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close(gdb)

		users, err := repository.NewGormUserRepository(gdb).List(cmd.Context(), usersLimit, 0)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if wantJSON(out) {
			return writeJSON(out, users)
		}
		now := time.Now()
		rows := make([][]string, 0, len(users))
		for _, u := range users {
			trials := u.Trials()
			rows = append(rows, []string{
				strconv.FormatInt(u.ID, 10),
				u.Username,
				u.Email,
				fmt.Sprintf("%d/%d", trials.TrialCount, trials.MaxTrials),
				strconv.FormatBool(u.PurchaseActive(now)),
				strconv.FormatBool(u.IsActive),
				u.CreatedAt.Format(time.DateOnly),
			})
		}
		_, err = fmt.Fprintln(out, renderTable([]string{"ID", "Username", "Email", "Trials", "Purchased", "Active", "Created"}, rows, 0, 3))
		return err
	},
}

var usersResetTrialsCmd = &cobra.Command{
	Use:   "reset-trials",
	Short: "批量更新试用次数上限",
	Long:  `把 max_trials 等于 --from 的用户更新为 --to，默认把旧的 3 次上限升级为 10 次。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		gdb, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close(gdb)

		n, err := repository.NewGormUserRepository(gdb).ResetMaxTrials(cmd.Context(), resetFrom, resetTo)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "已更新 %d 个用户的试用上限: %d -> %d\n", n, resetFrom, resetTo)
		return err
	},
}

var usersDeactivateCmd = &cobra.Command{
	Use:   "deactivate <id>",
	Short: "停用用户",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q: %w", args[0], err)
		}
		gdb, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close(gdb)

		if err := repository.NewGormUserRepository(gdb).Deactivate(cmd.Context(), id); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "用户 %d 已停用\n", id)
		return err
	},
}

func init() {
	usersListCmd.Flags().IntVar(&usersLimit, "limit", 50, "最多显示的用户数")
	usersResetTrialsCmd.Flags().IntVar(&resetFrom, "from", 3, "原试用上限")
	usersResetTrialsCmd.Flags().IntVar(&resetTo, "to", 10, "新试用上限")

	usersCmd.AddCommand(usersListCmd, usersResetTrialsCmd, usersDeactivateCmd)
	rootCmd.AddCommand(usersCmd)
}
