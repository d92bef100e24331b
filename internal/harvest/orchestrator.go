package harvest

import (
	"context"
	"eprocure-backend/internal/components/assert"
	"eprocure-backend/internal/components/chrono"
	"eprocure-backend/internal/components/telemetry"
	"eprocure-backend/internal/scrapers/eprocure"
	"eprocure-backend/internal/store"
	"eprocure-backend/internal/tender"
	"fmt"
	"time"

	"github.com/mazen160/go-random"
)

const (
	report_orchestrator_keyword = "orchestrator.keyword"
	report_orchestrator_persist = "orchestrator.persist"
	report_orchestrator_write   = "orchestrator.write"
	report_orchestrator_found   = "orchestrator.found"
	report_orchestrator_total   = "orchestrator.total"
)

// Scraper acquires the tenders listed for one keyword.
type Scraper interface {
	ScrapeKeyword(ctx context.Context, keyword string) (eprocure.Result, error)
}

// Persister hands a keyword's fresh tenders to long term storage.
type Persister interface {
	PersistTenders(ctx context.Context, keyword string, tenders []tender.Tender) (store.PersistStats, error)
	// Reset drops everything stored so far.
	Reset(ctx context.Context) error
}

type Options struct {
	// Reset ignores every prior snapshot and empties the persister before
	// the pass.
	Reset bool
	// KeywordDelay is the pause between two keywords, jittered by 35%.
	KeywordDelay time.Duration
}

// Orchestrator runs keyword passes strictly one after the other, a keyword
// never starts before the previous one finished.
type Orchestrator struct {
	scraper   Scraper
	snapshots SnapshotStore
	persister Persister
	sleep     chrono.SleepAPI
	opts      Options
	tel       telemetry.API
}

// NewOrchestrator creates an Orchestrator, persister may be nil.
func NewOrchestrator(
	scraper Scraper,
	snapshots SnapshotStore,
	persister Persister,
	sleep chrono.SleepAPI,
	opts Options,
	tel telemetry.API,
) Orchestrator {
	assert.NotNil(scraper)
	assert.NotNil(snapshots)
	assert.NotNil(sleep)
	assert.NotNil(tel)

	return Orchestrator{
		scraper:   scraper,
		snapshots: snapshots,
		persister: persister,
		sleep:     sleep,
		opts:      opts,
		tel:       telemetry.NewScopedAPI("harvest", tel),
	}
}

type KeywordReport struct {
	Keyword    string
	Path       eprocure.SearchPath
	Found      int
	Enriched   int
	Downloaded int
	// Stored is the size of the keyword's merged snapshot.
	Stored int
	Err    error
}

type Summary struct {
	RunId    string
	Reset    bool
	Keywords []KeywordReport
	// Combined is the merged cross-keyword sequence that was written.
	Combined []tender.Tender
}

// Failed returns the keywords whose search could not complete.
func (s Summary) Failed() []KeywordReport {
	failed := []KeywordReport{}
	for _, report := range s.Keywords {
		if report.Err != nil {
			failed = append(failed, report)
		}
	}
	return failed
}

// Run does one pass over keywords. A failing keyword contributes nothing
// and keeps its previous snapshot, it never stops the pass. The returned
// error is only about writing the snapshots or a cancelled context.
func (o Orchestrator) Run(ctx context.Context, keywords []string) (Summary, error) {
	runId, err := random.String(8)
	if err != nil {
		return Summary{}, err
	}
	tel := telemetry.NewScopedAPI(runId, o.tel)

	if o.opts.Reset && o.persister != nil {
		err = o.persister.Reset(ctx)
		if err != nil {
			tel.ReportBroken(report_orchestrator_persist, err, "reset")
			return Summary{}, fmt.Errorf("reset stored tenders: %w", err)
		}
	}

	combined := []tender.Tender{}
	if !o.opts.Reset {
		combined = o.snapshots.ReadCombined()
	}
	combined = MergeUnique(combined, nil)

	type pending struct {
		keyword string
		tenders []tender.Tender
	}
	perKeyword := []pending{}
	bySlug := map[string]int{}

	summary := Summary{RunId: runId, Reset: o.opts.Reset}
	for i, keyword := range keywords {
		if i > 0 {
			err = o.sleep.Sleep(ctx, chrono.JitterDuration(o.opts.KeywordDelay, 0.35))
			if err != nil {
				return summary, err
			}
		}

		prior := []tender.Tender{}
		if !o.opts.Reset {
			prior = o.snapshots.ReadKeyword(keyword)
		}

		report := KeywordReport{Keyword: keyword}
		result, err := o.scraper.ScrapeKeyword(ctx, keyword)
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			report.Err = err
			tel.ReportBroken(report_orchestrator_keyword, err, keyword)
		} else {
			report.Path = result.Path
			report.Found = len(result.Tenders)
			report.Enriched = result.Enriched
			report.Downloaded = result.Downloaded
			tel.ReportDebug("keyword done", keyword, result.Path, report.Found, report.Enriched, report.Downloaded)
			tel.ReportCount(report_orchestrator_found, int64(report.Found))

			combined = MergeUnique(combined, result.Tenders)
			o.persist(ctx, tel, keyword, result.Tenders)
		}

		// keywords sharing a slug accumulate into one file
		slug := Slug(keyword)
		if j, ok := bySlug[slug]; ok {
			prior = perKeyword[j].tenders
		}
		merged := MergeUnique(prior, result.Tenders)
		report.Stored = len(merged)
		if j, ok := bySlug[slug]; ok {
			perKeyword[j].tenders = merged
		} else {
			bySlug[slug] = len(perKeyword)
			perKeyword = append(perKeyword, pending{keyword: keyword, tenders: merged})
		}
		summary.Keywords = append(summary.Keywords, report)
	}

	for _, p := range perKeyword {
		err = o.snapshots.WriteKeyword(p.keyword, p.tenders)
		if err != nil {
			tel.ReportBroken(report_orchestrator_write, err, p.keyword)
			return summary, fmt.Errorf("write snapshot of %q: %w", p.keyword, err)
		}
	}
	err = o.snapshots.WriteCombined(combined)
	if err != nil {
		tel.ReportBroken(report_orchestrator_write, err, "combined")
		return summary, fmt.Errorf("write combined snapshot: %w", err)
	}

	summary.Combined = combined
	tel.ReportCount(report_orchestrator_total, int64(len(combined)))
	return summary, nil
}

func (o Orchestrator) persist(ctx context.Context, tel telemetry.API, keyword string, tenders []tender.Tender) {
	if o.persister == nil || len(tenders) == 0 {
		return
	}
	stats, err := o.persister.PersistTenders(ctx, keyword, tenders)
	if err != nil {
		tel.ReportBroken(report_orchestrator_persist, err, keyword)
		return
	}
	tel.ReportDebug("persisted", keyword, stats.Inserted, stats.Updated)
}
