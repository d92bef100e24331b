package eprocure

import (
	"context"
	"eprocure-backend/internal/components/chrono"
	"eprocure-backend/internal/components/telemetry"
	"eprocure-backend/pkg/htmlutil"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	report_navigator_landing         = "navigator.landing"
	report_navigator_advanced_search = "navigator.advanced-search"
	report_navigator_home_search     = "navigator.home-search"
)

// SearchPath says which search form produced the results.
type SearchPath string

const (
	PathAdvanced SearchPath = "advanced"
	PathHome     SearchPath = "home"
)

type navState int

const (
	stateLandingLoaded navState = iota
	stateAdvancedSearchLocated
	stateAdvancedFormSubmitted
	stateCaptchaBlocked
	stateHomeSearchSubmitted
	stateSuccess
)

func (s navState) String() string {
	switch s {
	case stateLandingLoaded:
		return "landing-loaded"
	case stateAdvancedSearchLocated:
		return "advanced-search-located"
	case stateAdvancedFormSubmitted:
		return "advanced-form-submitted"
	case stateCaptchaBlocked:
		return "captcha-blocked"
	case stateHomeSearchSubmitted:
		return "home-search-submitted"
	case stateSuccess:
		return "success"
	}
	return "unknown"
}

type SubmitOutcome int

const (
	SubmitOk SubmitOutcome = iota
	SubmitCaptchaBlocked
	SubmitValidationError
)

// SubmitResult is the classified response of a search submission.
type SubmitResult struct {
	Outcome SubmitOutcome
	// Html is the response body, set for SubmitOk.
	Html []byte
	// Message is the matched validation message.
	Message string
}

// knownServerErrors are checked in order, the first one found wins.
var knownServerErrors = []string{
	"Please Select Tender Type",
	"Invalid Captcha",
	"Please enter Captcha",
	"Session expired",
}

var captchaRegex = regexp.MustCompile(`(?i)captcha`)

// detectServerError returns the first known validation message present in
// the page, or "" when there is none.
func detectServerError(doc htmlutil.Node) string {
	parts := []string{}
	for _, el := range doc.FindAll(".error, .errormsg, #error, .validationError") {
		parts = append(parts, el.Text())
	}
	if body, ok := doc.First("body"); ok {
		parts = append(parts, body.Text())
	} else {
		parts = append(parts, doc.Text())
	}
	text := htmlutil.NormalizeSpace(strings.Join(parts, " "))

	for _, msg := range knownServerErrors {
		if strings.Contains(text, msg) {
			return msg
		}
	}
	return ""
}

func classifySubmission(body []byte) (SubmitResult, error) {
	doc, err := htmlutil.ParseBytes(body)
	if err != nil {
		return SubmitResult{}, err
	}
	msg := detectServerError(doc)
	switch {
	case msg == "":
		return SubmitResult{Outcome: SubmitOk, Html: body}, nil
	case captchaRegex.MatchString(msg):
		return SubmitResult{Outcome: SubmitCaptchaBlocked, Message: msg}, nil
	default:
		return SubmitResult{Outcome: SubmitValidationError, Message: msg}, nil
	}
}

type advancedLinkRule struct {
	match func(text, href string) bool
}

var (
	frontEndAdvancedSearchRegex = regexp.MustCompile(`(?i)FrontEndAdvancedSearch`)
	advancedSearchRegex         = regexp.MustCompile(`(?i)AdvancedSearch`)
)

// advancedLinkRules recognize the "Advanced Search" entry point on the
// landing page, an anchor matching any rule is taken.
var advancedLinkRules = []advancedLinkRule{
	{match: func(text, _ string) bool {
		return strings.Contains(text, "advanced") && strings.Contains(text, "search")
	}},
	{match: func(_, href string) bool {
		return frontEndAdvancedSearchRegex.MatchString(href)
	}},
	{match: func(_, href string) bool {
		return advancedSearchRegex.MatchString(href) && strings.Contains(href, "component=")
	}},
}

// findAdvancedSearchUrl returns the advanced search link of the landing
// page, defaulting to the base url itself.
func findAdvancedSearchUrl(baseUrl string, landing htmlutil.Node) string {
	for _, anchor := range htmlutil.GetAnchors(baseUrl, landing) {
		if anchor.Href == "" {
			continue
		}
		text := strings.ToLower(anchor.Name)
		for _, rule := range advancedLinkRules {
			if !rule.match(text, anchor.Href) {
				continue
			}
			if anchor.Url == nil {
				break
			}
			return anchor.Url.String()
		}
	}
	return baseUrl
}

// navigator drives one keyword's search through the portal. It is bound to
// a single client and therefore to a single session.
type navigator struct {
	client    *client
	sleep     chrono.SleepAPI
	pageDelay time.Duration
	tel       telemetry.API
}

// SearchOutcome is the result page of a successful search.
type SearchOutcome struct {
	Html []byte
	Path SearchPath
}

func (n navigator) pause(ctx context.Context) error {
	return n.sleep.Sleep(ctx, chrono.JitterDuration(n.pageDelay, 0.3))
}

// Search runs the landing -> advanced search -> (home search) sequence for
// keyword and returns the result listing.
func (n navigator) Search(ctx context.Context, keyword string) (SearchOutcome, error) {
	baseUrl := n.client.BaseUrl.String()

	landingHtml, err := n.client.get(ctx, baseUrl)
	if err != nil {
		n.tel.ReportBroken(report_navigator_landing, err, keyword)
		return SearchOutcome{}, fmt.Errorf("load landing page: %w", err)
	}
	landing, err := htmlutil.ParseBytes(landingHtml)
	if err != nil {
		return SearchOutcome{}, fmt.Errorf("parse landing page: %w", err)
	}
	state := stateLandingLoaded
	n.tel.ReportDebug("navigator: state", keyword, state.String(), n.client.Session.Len())
	err = n.pause(ctx)
	if err != nil {
		return SearchOutcome{}, err
	}

	result, err := n.submitAdvancedSearch(ctx, landing, keyword)
	if err != nil {
		n.tel.ReportBroken(report_navigator_advanced_search, err, keyword)
		return SearchOutcome{}, err
	}
	state = stateAdvancedFormSubmitted
	n.tel.ReportDebug("navigator: state", keyword, state.String())

	switch result.Outcome {
	case SubmitOk:
		state = stateSuccess
		n.tel.ReportDebug("navigator: state", keyword, state.String(), PathAdvanced)
		return SearchOutcome{Html: result.Html, Path: PathAdvanced}, nil
	case SubmitValidationError:
		err = &ValidationError{Message: result.Message}
		n.tel.ReportBroken(report_navigator_advanced_search, err, keyword)
		return SearchOutcome{}, err
	}

	state = stateCaptchaBlocked
	n.tel.ReportWarning(report_navigator_advanced_search, keyword, state.String(), result.Message)

	html, err := n.submitHomeSearch(ctx, landing, keyword)
	if err != nil {
		n.tel.ReportBroken(report_navigator_home_search, err, keyword)
		return SearchOutcome{}, err
	}
	state = stateSuccess
	n.tel.ReportDebug("navigator: state", keyword, state.String(), PathHome)
	return SearchOutcome{Html: html, Path: PathHome}, nil
}

func (n navigator) submitAdvancedSearch(ctx context.Context, landing htmlutil.Node, keyword string) (SubmitResult, error) {
	baseUrl := n.client.BaseUrl.String()

	advancedUrl := findAdvancedSearchUrl(baseUrl, landing)
	advancedHtml, err := n.client.get(ctx, advancedUrl)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("load advanced search: %w", err)
	}
	n.tel.ReportDebug("navigator: state", keyword, stateAdvancedSearchLocated.String(), advancedUrl)
	err = n.pause(ctx)
	if err != nil {
		return SubmitResult{}, err
	}

	page, err := htmlutil.ParseBytes(advancedHtml)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("parse advanced search: %w", err)
	}
	form, ok := page.First("form#TenderAdvancedSearch")
	if !ok {
		form, ok = page.First("form")
	}
	if !ok {
		return SubmitResult{}, &StructuralError{
			Step:    "advanced search",
			Message: "search form not found",
		}
	}

	method, ok := form.Attr("method")
	if !ok {
		method = "post"
	}
	method = strings.ToLower(strings.TrimSpace(method))
	if method != "post" {
		return SubmitResult{}, &StructuralError{
			Step:    "advanced search",
			Message: fmt.Sprintf("unexpected form method %q", method),
		}
	}

	action := formAction(form, advancedUrl, baseUrl)
	if action == "" {
		return SubmitResult{}, &StructuralError{
			Step:    "advanced search",
			Message: "form action cannot be resolved",
		}
	}

	state := serializeFormNode(form)
	injectKeyword(form, state, keyword)
	defaultTenderType(state)
	if submit, ok := pickSubmitControl(form); ok {
		applySubmitControl(state, submit)
	}

	body, err := n.client.postForm(ctx, action, state)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("submit advanced search: %w", err)
	}
	return classifySubmission(body)
}

// submitHomeSearch resubmits keyword through the small search box of the
// landing page. Any failure here is final.
func (n navigator) submitHomeSearch(ctx context.Context, landing htmlutil.Node, keyword string) ([]byte, error) {
	baseUrl := n.client.BaseUrl.String()

	form, ok := landing.First("form#tenderSearch")
	if !ok {
		for _, candidate := range landing.FindAll("form") {
			if _, has := candidate.First(`input[name="SearchDescription"]`); has {
				form, ok = candidate, true
				break
			}
		}
	}
	if !ok {
		return nil, &StructuralError{
			Step:    "home search",
			Message: "search form not found",
		}
	}

	action := formAction(form, baseUrl, baseUrl)
	if action == "" {
		return nil, &StructuralError{
			Step:    "home search",
			Message: "form action cannot be resolved",
		}
	}

	state := serializeFormNode(form)
	state.Set("SearchDescription", keyword)
	if state.Has("submitname") {
		state.Set("submitname", "Go")
	}
	if value, ok := state.Get("Go"); ok && value == "" {
		state.Set("Go", "Go")
	}

	body, err := n.client.postForm(ctx, action, state)
	if err != nil {
		return nil, fmt.Errorf("submit home search: %w", err)
	}

	result, err := classifySubmission(body)
	if err != nil {
		return nil, err
	}
	switch result.Outcome {
	case SubmitCaptchaBlocked:
		return nil, fmt.Errorf("%w: %s", ErrCaptchaBlocked, result.Message)
	case SubmitValidationError:
		return nil, &ValidationError{Message: result.Message}
	}
	return result.Html, nil
}

// formAction resolves the form's action against pageUrl, a form without an
// action posts to fallback.
func formAction(form htmlutil.Node, pageUrl, fallback string) string {
	action, ok := form.Attr("action")
	if !ok {
		action = fallback
	}
	resolved, ok := htmlutil.AbsUrl(pageUrl, action)
	if !ok {
		return ""
	}
	return resolved
}
