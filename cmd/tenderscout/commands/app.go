package commands

import (
	"context"
	"eprocure-backend/internal/components/chrono"
	"eprocure-backend/internal/harvest"
	"eprocure-backend/internal/scrapers/eprocure"
	"eprocure-backend/internal/store"
	"eprocure-backend/lib/restyutil"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newClock() (chrono.StandardImpl, error) {
	return chrono.NewStandardImpl(cfg.Timezone)
}

func openStore(ctx context.Context) (store.Store, error) {
	if !cfg.HasDatabase() {
		return store.Store{}, fmt.Errorf("no database configured, set database.file, database.url or DB_PATH")
	}
	clock, err := newClock()
	if err != nil {
		return store.Store{}, err
	}
	db, err := cfg.Database.OpenDB()
	if err != nil {
		return store.Store{}, fmt.Errorf("open database: %w", err)
	}
	tenders, err := store.New(ctx, db, clock, store.Options{InsertOnly: cfg.InsertOnly})
	if err != nil {
		db.Close()
		return store.Store{}, err
	}
	return tenders, nil
}

// newOrchestrator wires the portal scraper to the output directory and,
// when given, the tender store. reset empties both before the pass.
func newOrchestrator(persister harvest.Persister, reset bool) (harvest.Orchestrator, error) {
	clock, err := newClock()
	if err != nil {
		return harvest.Orchestrator{}, err
	}
	opts := cfg.ScraperOptions()
	if cfg.Portal.DumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(cfg.Portal.DumpDir)
		if err != nil {
			return harvest.Orchestrator{}, err
		}
		opts.Dump = output
	}
	scraper := eprocure.NewScraper(opts, clock, tel)
	return harvest.NewOrchestrator(
		scraper,
		harvest.NewFileStore(cfg.OutputDir),
		persister,
		clock,
		harvest.Options{Reset: reset, KeywordDelay: cfg.KeywordDelay()},
		tel,
	), nil
}

func printSummary(summary harvest.Summary) {
	t := newTable()
	t.AppendHeader(table.Row{"Keyword", "Path", "Found", "Enriched", "Documents", "Stored", "Error"})
	for _, report := range summary.Keywords {
		errText := ""
		if report.Err != nil {
			errText = report.Err.Error()
		}
		t.AppendRow(table.Row{
			report.Keyword,
			report.Path,
			report.Found,
			report.Enriched,
			report.Downloaded,
			report.Stored,
			errText,
		})
	}
	t.AppendFooter(table.Row{"run " + summary.RunId, "", "", "", "", len(summary.Combined), ""})
	t.Render()
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
