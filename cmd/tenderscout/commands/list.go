package commands

import (
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var listLimit *int

func init() {
	listLimit = listCmd.Flags().Int("limit", 50, "The number of tenders to show, 0 shows all.")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list [--limit n]",
	Short: "Lists the most recently seen tenders in the database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		tenders, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer tenders.Close()

		rows, err := tenders.List(cmd.Context(), *listLimit)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"Reference", "Title", "Organisation", "Closing", "Keywords", "Last seen"})
		t.SetColumnConfigs([]table.ColumnConfig{
			{Name: "Title", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
			{Name: "Organisation", WidthMax: 40, WidthMaxEnforcer: text.WrapSoft},
		})
		for _, row := range rows {
			t.AppendRow(table.Row{
				row.Tender.Reference,
				row.Tender.Title,
				row.Tender.Organisation,
				row.Tender.ClosingDate,
				strings.Join(row.Keywords, ", "),
				row.LastSeenAt.Local().Format(time.DateTime),
			})
		}
		t.Render()
		return nil
	},
}
