package eprocure

import (
	"context"
	"eprocure-backend/internal/components/assert"
	"eprocure-backend/internal/components/chrono"
	"eprocure-backend/internal/components/telemetry"
	"eprocure-backend/internal/tender"
	"eprocure-backend/pkg/htmlutil"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_scraper_detail     = "scraper.detail"
	report_scraper_found      = "scraper.found"
	report_scraper_enriched   = "scraper.enriched"
	report_scraper_downloaded = "scraper.downloaded"
)

var tracer = otel.Tracer("eprocure-backend.internal.scrapers.eprocure")

type Options struct {
	ClientOptions

	// ScrapeDetails fetches the detail page of every listed tender.
	ScrapeDetails bool
	// DownloadDocuments saves the attachments of enriched tenders under
	// OutputDir, it has no effect without ScrapeDetails.
	DownloadDocuments bool
	OutputDir         string

	PageDelay     time.Duration
	DetailDelay   time.Duration
	DocumentDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		ClientOptions: DefaultClientOptions(),
		OutputDir:     "output",
		PageDelay:     900 * time.Millisecond,
		DetailDelay:   1500 * time.Millisecond,
		DocumentDelay: 500 * time.Millisecond,
	}
}

// Result is the outcome of one keyword pass.
type Result struct {
	Tenders    []tender.Tender
	Path       SearchPath
	Enriched   int
	Downloaded int
}

// Scraper acquires tenders from the eprocure portal, tying the navigator,
// the extractors and the document fetcher into one keyword pass. It holds
// no session state itself, every ScrapeKeyword call starts a session of
// its own.
type Scraper struct {
	opts  Options
	sleep chrono.SleepAPI
	tel   telemetry.API
}

func NewScraper(opts Options, sleep chrono.SleepAPI, tel telemetry.API) Scraper {
	assert.NotNil(sleep)
	assert.NotNil(tel)

	return Scraper{
		opts:  opts,
		sleep: sleep,
		tel:   telemetry.NewScopedAPI("eprocure_scraper", tel),
	}
}

// ScrapeKeyword searches the portal for keyword and returns the listed
// tenders, enriched with their details when enabled. Only a failure of the
// search itself is returned, detail and document failures degrade to the
// plain listing.
func (s Scraper) ScrapeKeyword(ctx context.Context, keyword string) (Result, error) {
	ctx, span := tracer.Start(ctx, "ScrapeKeyword")
	defer span.End()
	span.SetAttributes(attribute.String("keyword", keyword))

	result, err := s.scrapeKeyword(ctx, keyword)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	span.SetAttributes(
		attribute.String("path", string(result.Path)),
		attribute.Int("found", len(result.Tenders)),
		attribute.Int("enriched", result.Enriched),
		attribute.Int("downloaded", result.Downloaded),
	)
	s.tel.ReportCount(report_scraper_found, int64(len(result.Tenders)))
	s.tel.ReportCount(report_scraper_enriched, int64(result.Enriched))
	s.tel.ReportCount(report_scraper_downloaded, int64(result.Downloaded))
	return result, nil
}

func (s Scraper) scrapeKeyword(ctx context.Context, keyword string) (Result, error) {
	c, err := newClient(s.opts.ClientOptions, s.sleep, s.tel)
	if err != nil {
		return Result{}, err
	}
	nav := navigator{
		client:    c,
		sleep:     s.sleep,
		pageDelay: s.opts.PageDelay,
		tel:       s.tel,
	}

	outcome, err := nav.Search(ctx, keyword)
	if err != nil {
		return Result{}, fmt.Errorf("search %q: %w", keyword, err)
	}
	doc, err := htmlutil.ParseBytes(outcome.Html)
	if err != nil {
		return Result{}, fmt.Errorf("parse results of %q: %w", keyword, err)
	}

	result := Result{
		Tenders: ParseTenderList(doc, keyword, c.BaseUrl.String()),
		Path:    outcome.Path,
	}
	if !s.opts.ScrapeDetails {
		return result, nil
	}

	fetcher := documentFetcher{
		client:    c,
		outputDir: s.opts.OutputDir,
		delay:     s.opts.DocumentDelay,
		sleep:     s.sleep,
		tel:       s.tel,
	}
	for i := range result.Tenders {
		enriched, downloaded, err := s.enrich(ctx, c, fetcher, &result.Tenders[i])
		if err != nil {
			s.tel.ReportWarning(report_scraper_detail, err, keyword, result.Tenders[i].DetailUrl)
		}
		if enriched {
			result.Enriched++
		}
		result.Downloaded += downloaded

		err = s.sleep.Sleep(ctx, chrono.JitterDuration(s.opts.DetailDelay, 0.3))
		if err != nil {
			return Result{}, err
		}
	}
	return result, nil
}

// enrich merges the detail page of t into t. A session timeout page is not
// an error, the tender just stays a plain listing.
func (s Scraper) enrich(ctx context.Context, c *client, fetcher documentFetcher, t *tender.Tender) (bool, int, error) {
	body, err := c.get(ctx, t.DetailUrl)
	if err != nil {
		return false, 0, err
	}
	if isSessionTimeout(body) {
		s.tel.ReportWarning(report_scraper_detail, "session timed out", t.DetailUrl)
		return false, 0, nil
	}

	doc, err := htmlutil.ParseBytes(body)
	if err != nil {
		return false, 0, err
	}
	detail := ParseTenderDetail(doc, c.BaseUrl.String())

	downloaded := 0
	if s.opts.DownloadDocuments && s.opts.OutputDir != "" {
		for _, docs := range [][]tender.DocumentRef{detail.NitDocuments, detail.WorkItemDocuments} {
			saved, err := fetcher.fetchAll(ctx, docs)
			downloaded += saved
			if err != nil {
				return false, downloaded, err
			}
		}
	}

	err = t.Enrich(detail)
	if err != nil {
		return false, downloaded, err
	}
	return true, downloaded, nil
}
