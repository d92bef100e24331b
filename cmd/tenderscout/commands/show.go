package commands

import (
	"encoding/json"
	"errors"
	"eprocure-backend/internal/store"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Shows one stored tender by its key, \"<reference>::<detail url>\".",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenders, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer tenders.Close()

		row, err := tenders.Get(cmd.Context(), args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no stored tender with key %q, see the list command", args[0])
		}
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendRows([]table.Row{
			{"Key", row.Key},
			{"Keywords", strings.Join(row.Keywords, ", ")},
			{"First seen", row.FirstSeenAt.Local().Format(time.DateTime)},
			{"Last seen", row.LastSeenAt.Local().Format(time.DateTime)},
		})
		t.Render()

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(row.Tender)
	},
}
