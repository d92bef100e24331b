package commands

import (
	"encoding/json"
	"eprocure-backend/internal/scrapers/t247"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var t247Keyword *string

func init() {
	t247Keyword = t247Cmd.Flags().String("keyword", "", "The keyword recorded on the stored tenders, defaults to the payload search_text.")
	rootCmd.AddCommand(t247Cmd)
}

var t247Cmd = &cobra.Command{
	Use:   "t247 <json-payload>",
	Short: "Runs a Tender247 search and stores the tenders it returns.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		payload := map[string]any{}
		err := json.Unmarshal([]byte(args[0]), &payload)
		if err != nil {
			return fmt.Errorf("payload is not a json object: %w", err)
		}
		payload = t247.PreparePayload(payload)

		keyword := *t247Keyword
		if keyword == "" {
			keyword, _ = payload["search_text"].(string)
		}

		tenders, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer tenders.Close()

		client := t247.NewClient(cfg.T247, tel)
		raw, err := client.Search(ctx, payload)
		if err != nil {
			return err
		}
		res, err := t247.Decode(raw)
		if err != nil {
			return err
		}

		found := t247.ToTenders(res.Data, keyword)
		stats, err := tenders.PersistTenders(ctx, keyword, found)
		if err != nil {
			return err
		}
		slog.Info(
			"tender247 sync",
			"total", res.TotalRecord,
			"fetched", len(res.Data),
			"inserted", stats.Inserted,
			"updated", stats.Updated,
			"skipped", stats.Skipped,
		)
		return nil
	},
}
