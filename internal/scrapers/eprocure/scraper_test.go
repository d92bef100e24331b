package eprocure

import (
	"context"
	"eprocure-backend/internal/components/telemetry"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type portalMode int

const (
	portalOk portalMode = iota
	portalCaptcha
	portalValidation
	portalGetForm
)

// fakePortal serves the fixtures the way the real portal sequences them and
// records the form bodies it received.
type fakePortal struct {
	t    *testing.T
	mode portalMode

	mu          sync.Mutex
	advanced    map[string]string
	home        map[string]string
	detailHits  int
	cookieFails []string
}

func (p *fakePortal) requireCookie(r *http.Request, expected string) bool {
	if r.Header.Get("Cookie") == expected {
		return true
	}
	p.mu.Lock()
	p.cookieFails = append(p.cookieFails, r.URL.String()+" got "+r.Header.Get("Cookie"))
	p.mu.Unlock()
	return false
}

func flatten(r *http.Request) map[string]string {
	out := map[string]string{}
	for key, values := range r.PostForm {
		out[key] = values[len(values)-1]
	}
	return out
}

func (p *fakePortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if strings.HasPrefix(r.URL.Path, "/docs/") {
		if r.URL.Path != "/docs/Tendernotice 1.pdf" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 notice"))
		return
	}

	query := r.URL.Query()
	switch {
	case r.Method == http.MethodGet && query.Get("page") == "":
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "ABC123", Path: "/eprocure", HttpOnly: true})
		w.Write(readFixture(p.t, "landing.html"))

	case r.Method == http.MethodGet && query.Get("page") == "FrontEndAdvancedSearch":
		if !p.requireCookie(r, "JSESSIONID=ABC123") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "TS01", Value: "xyz", Path: "/"})
		body := readFixture(p.t, "advanced.html")
		if p.mode == portalGetForm {
			body = []byte(strings.Replace(string(body), `method="post"`, `method="get"`, 1))
		}
		w.Write(body)

	case r.Method == http.MethodGet && query.Get("page") == "FrontEndViewTender":
		p.mu.Lock()
		p.detailHits++
		p.mu.Unlock()
		if query.Get("sp") == "2" {
			w.Write(readFixture(p.t, "timeout.html"))
			return
		}
		w.Write(readFixture(p.t, "detail.html"))

	case r.Method == http.MethodPost:
		if !p.requireCookie(r, "JSESSIONID=ABC123; TS01=xyz") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		form := flatten(r)

		p.mu.Lock()
		defer p.mu.Unlock()
		switch form["component"] {
		case "TenderAdvancedSearch":
			p.advanced = form
			switch p.mode {
			case portalCaptcha:
				w.Write([]byte(`<html><body><span class="error">Invalid Captcha! Please try again.</span></body></html>`))
			case portalValidation:
				w.Write([]byte(`<html><body><span class="error">Please Select Tender Type</span></body></html>`))
			default:
				w.Write(readFixture(p.t, "results.html"))
			}
		case "tenderSearch":
			p.home = form
			w.Write(readFixture(p.t, "results.html"))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}

	default:
		http.NotFound(w, r)
	}
}

func newTestScraper(t *testing.T, srv *httptest.Server, outputDir string) (Scraper, *recordingSleep, *telemetry.Recorder) {
	opts := DefaultOptions()
	opts.BaseUrl = srv.URL + "/eprocure/app"
	opts.OutputDir = outputDir
	sleep := &recordingSleep{}
	tel := &telemetry.Recorder{}
	return NewScraper(opts, sleep, tel), sleep, tel
}

func TestScrapeKeywordAdvancedSearch(t *testing.T) {
	portal := &fakePortal{t: t, mode: portalOk}
	srv := httptest.NewServer(portal)
	defer srv.Close()

	scraper, sleep, tel := newTestScraper(t, srv, t.TempDir())
	result, err := scraper.ScrapeKeyword(context.Background(), "bitumen")
	require.NoError(t, err)
	require.Empty(t, portal.cookieFails)

	require.Equal(t, PathAdvanced, result.Path)
	require.Len(t, result.Tenders, 2)
	require.Equal(t, "[TN/45/2026][2026_NHAI_998_1]", result.Tenders[0].Reference)
	require.Equal(t, srv.URL+"/eprocure/app?component=%24DirectLink&page=FrontEndViewTender&service=direct&sp=1", result.Tenders[0].DetailUrl)
	require.Zero(t, result.Enriched)
	require.Zero(t, portal.detailHits)

	form := portal.advanced
	require.Equal(t, "bitumen", form["workItemTitle"])
	require.Equal(t, "1", form["TenderType"])
	require.Equal(t, "submit", form["submitname"])
	require.Equal(t, "Search", form["submit"])
	require.Equal(t, "ZH4sIAAAAAAAAAFvzloG1uIhBMaKoNCW1OLFIz1QP", form["seedids"])
	require.NotContains(t, form, "If_11")
	require.NotContains(t, form, "oldField")
	require.Nil(t, portal.home)

	// two page pauses, nothing else
	delays := sleep.Delays()
	require.Len(t, delays, 2)
	for _, d := range delays {
		require.GreaterOrEqual(t, d, 630*time.Millisecond)
		require.LessOrEqual(t, d, 1170*time.Millisecond)
	}

	found, ok := tel.Count("scraper.found")
	require.True(t, ok)
	require.EqualValues(t, 2, found)
}

func TestScrapeKeywordCaptchaFallback(t *testing.T) {
	portal := &fakePortal{t: t, mode: portalCaptcha}
	srv := httptest.NewServer(portal)
	defer srv.Close()

	scraper, _, tel := newTestScraper(t, srv, t.TempDir())
	result, err := scraper.ScrapeKeyword(context.Background(), "bitumen")
	require.NoError(t, err)

	require.Equal(t, PathHome, result.Path)
	require.Len(t, result.Tenders, 2)
	require.NotNil(t, portal.advanced)
	require.Equal(t, "bitumen", portal.home["SearchDescription"])
	require.Equal(t, "Go", portal.home["submitname"])
	require.Equal(t, "Go", portal.home["Go"])
	require.Equal(t, "T", portal.home["session"])
	require.NotEmpty(t, tel.Reports("warning"))
}

func TestScrapeKeywordValidationIsTerminal(t *testing.T) {
	portal := &fakePortal{t: t, mode: portalValidation}
	srv := httptest.NewServer(portal)
	defer srv.Close()

	scraper, _, _ := newTestScraper(t, srv, t.TempDir())
	_, err := scraper.ScrapeKeyword(context.Background(), "bitumen")
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "Please Select Tender Type", validation.Message)
	require.Nil(t, portal.home)
}

func TestScrapeKeywordRejectsGetForm(t *testing.T) {
	portal := &fakePortal{t: t, mode: portalGetForm}
	srv := httptest.NewServer(portal)
	defer srv.Close()

	scraper, _, tel := newTestScraper(t, srv, t.TempDir())
	_, err := scraper.ScrapeKeyword(context.Background(), "bitumen")
	var structural *StructuralError
	require.ErrorAs(t, err, &structural)
	require.Contains(t, structural.Message, `"get"`)
	require.Nil(t, portal.advanced)
	require.NotEmpty(t, tel.Reports("broken"))
}

func TestScrapeKeywordDetailsAndDocuments(t *testing.T) {
	portal := &fakePortal{t: t, mode: portalOk}
	srv := httptest.NewServer(portal)
	defer srv.Close()

	outputDir := t.TempDir()
	scraper, _, _ := newTestScraper(t, srv, outputDir)
	scraper.opts.ScrapeDetails = true
	scraper.opts.DownloadDocuments = true

	result, err := scraper.ScrapeKeyword(context.Background(), "bitumen")
	require.NoError(t, err)
	require.Equal(t, 2, portal.detailHits)
	require.Equal(t, 1, result.Enriched)
	require.Equal(t, 1, result.Downloaded)

	enriched := result.Tenders[0]
	require.Equal(t, "2026_NHAI_998_1", enriched.TenderId)
	require.Equal(t, "19,133", enriched.EmdAmount)
	require.Len(t, enriched.NitDocuments, 1)
	require.Equal(t, "documents/Tendernotice_1.pdf", enriched.NitDocuments[0].LocalPath)
	require.Len(t, enriched.WorkItemDocuments, 1)
	require.Empty(t, enriched.WorkItemDocuments[0].LocalPath)

	saved, err := os.ReadFile(filepath.Join(outputDir, "documents", "Tendernotice_1.pdf"))
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4 notice", string(saved))

	// the session timeout page leaves the second tender as a plain listing
	require.Empty(t, result.Tenders[1].TenderId)
	require.Nil(t, result.Tenders[1].Covers)
}

type memoryDump struct {
	mu  sync.Mutex
	ids []string
}

func (d *memoryDump) Write(id string, contents string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, id)
}

func TestScrapeKeywordDumpsExchanges(t *testing.T) {
	portal := &fakePortal{t: t, mode: portalOk}
	srv := httptest.NewServer(portal)
	defer srv.Close()

	dump := &memoryDump{}
	scraper, _, _ := newTestScraper(t, srv, t.TempDir())
	scraper.opts.Dump = dump

	_, err := scraper.ScrapeKeyword(context.Background(), "bitumen")
	require.NoError(t, err)
	require.Equal(t, []string{"get.txt", "get.txt", "post.txt"}, dump.ids)
}

func TestDocumentFilename(t *testing.T) {
	require.Equal(t, "Tendernotice_1.pdf", documentFilename("Tendernotice 1.pdf"))
	require.Equal(t, "BOQ_998.xls", documentFilename("BOQ_998.xls"))
	require.Equal(t, ".._.._etc_passwd", documentFilename("../../etc/passwd"))
	require.Equal(t, "", documentFilename(".."))
	require.Equal(t, "", documentFilename(""))
}

func TestFindAdvancedSearchUrl(t *testing.T) {
	base := "https://eprocure.gov.in/eprocure/app"

	landing := parseFixture(t, "landing.html")
	require.Equal(t, base+"?page=FrontEndAdvancedSearch&service=page", findAdvancedSearchUrl(base, landing))

	byHref := parseHtml(t, `<a href="?component=AdvancedSearch&amp;page=Home">Find</a>`)
	require.Equal(t, base+"?component=AdvancedSearch&page=Home", findAdvancedSearchUrl(base, byHref))

	none := parseHtml(t, `<a href="?page=Home">Home</a><a href="?page=AdvancedSearch">Search</a>`)
	require.Equal(t, base, findAdvancedSearchUrl(base, none))
}

func TestClassifySubmission(t *testing.T) {
	result, err := classifySubmission([]byte(`<body><div id="error">Please enter Captcha</div></body>`))
	require.NoError(t, err)
	require.Equal(t, SubmitCaptchaBlocked, result.Outcome)
	require.Equal(t, "Please enter Captcha", result.Message)

	result, err = classifySubmission([]byte(`<body><p>Session   expired, start again</p></body>`))
	require.NoError(t, err)
	require.Equal(t, SubmitValidationError, result.Outcome)
	require.Equal(t, "Session expired", result.Message)

	body := readFixture(t, "results.html")
	result, err = classifySubmission(body)
	require.NoError(t, err)
	require.Equal(t, SubmitOk, result.Outcome)
	require.Equal(t, body, result.Html)
}
