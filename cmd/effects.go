package cmd

import (
	"fmt"
	"strings"

	"VoiceMorph/core/effects"

	"github.com/spf13/cobra"
)

var effectsCmd = &cobra.Command{
	Use:   "effects",
	Short: "列出所有音效",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		catalog := effects.Default()
		if wantJSON(out) {
			return writeJSON(out, catalog.List())
		}
		_, err := fmt.Fprintln(out, renderTable([]string{"ID", "Name", "Description", "Filters"}, effectRows(catalog)))
		return err
	},
}

func effectRows(catalog *effects.Catalog) [][]string {
	rows := make([][]string, 0, catalog.Len())
	for _, id := range catalog.IDs() {
		def, _ := catalog.Lookup(id)
		rows = append(rows, []string{def.Icon + " " + id, def.Name, def.Description, strings.Join(def.Filters, ",")})
	}
	return rows
}

func init() {
	rootCmd.AddCommand(effectsCmd)
}
