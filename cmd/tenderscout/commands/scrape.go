package commands

import (
	"eprocure-backend/internal/harvest"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [keywords...]",
	Short: "Runs one pass over the keywords and writes the tender snapshots.",
	Long: `Runs one pass over the keywords and writes the tender snapshots under the output directory.

Keywords come from the arguments, then the KEYWORDS environment variable, then
the config, then the built-in list. Tenders are also stored in the database
when one is configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var persister harvest.Persister
		if cfg.HasDatabase() {
			tenders, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer tenders.Close()
			persister = tenders
		}

		orchestrator, err := newOrchestrator(persister, cfg.Reset)
		if err != nil {
			return err
		}

		keywords := cfg.ResolveKeywords(args)
		slog.Info("scraping", "keywords", len(keywords), "details", cfg.ScrapeDetails, "documents", cfg.DownloadDocuments, "reset", cfg.Reset)

		start := time.Now()
		summary, err := orchestrator.Run(ctx, keywords)
		if err != nil {
			return err
		}
		printSummary(summary)
		slog.Info("scraping time", "seconds", time.Since(start).Seconds(), "failed", len(summary.Failed()))
		return nil
	},
}
