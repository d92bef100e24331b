// Package t247 searches the Tender247 aggregator api and maps its results
// into tender records.
package t247

import (
	"context"
	"encoding/json"
	"eprocure-backend/internal/components/assert"
	"eprocure-backend/internal/components/telemetry"
	"eprocure-backend/internal/tender"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultSearchUrl = "https://t247_api.tender247.com/apigateway/T247Tender/api/tender/search-tender"

type Options struct {
	SearchUrl     string        `json:"search_url"`
	Authorization string        `json:"authorization"`
	ApiKey        string        `json:"api_key"`
	Timeout       time.Duration `json:"-"`
}

type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("tender247 api failed: HTTP %d", e.Status)
}

type Client struct {
	http *resty.Client
	opts Options
	tel  telemetry.API
}

func NewClient(opts Options, tel telemetry.API) Client {
	assert.NotNil(tel)
	if opts.SearchUrl == "" {
		opts.SearchUrl = DefaultSearchUrl
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetHeader("content-type", "application/json")
	client.SetHeader("accept", "application/json")
	if opts.Authorization != "" {
		client.SetHeader("authorization", opts.Authorization)
	}
	if opts.ApiKey != "" {
		client.SetHeader("x-api-key", opts.ApiKey)
	}
	tel = telemetry.NewScopedAPI("t247", tel)
	telemetry.InstrumentResty(client, tel)

	return Client{http: client, opts: opts, tel: tel}
}

// Search posts payload as json and returns the raw response body.
func (c Client) Search(ctx context.Context, payload any) (json.RawMessage, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(c.opts.SearchUrl)
	if err != nil {
		return nil, err
	}
	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		return nil, &HTTPError{Status: res.StatusCode(), Body: string(res.Body())}
	}
	return json.RawMessage(res.Body()), nil
}

// PreparePayload applies the rules the api enforces on a search payload,
// filtering by state requires search_by_location.
func PreparePayload(payload map[string]any) map[string]any {
	if payload == nil {
		payload = map[string]any{}
	}
	if states, ok := payload["state_ids"]; ok && states != nil {
		if byLocation, _ := payload["search_by_location"].(bool); !byLocation {
			payload["search_by_location"] = true
		}
	}
	return payload
}

type Record struct {
	TenderId             json.Number `json:"tender_id"`
	OrganizationName     string      `json:"organization_name"`
	RequirementWorkbrief string      `json:"requirement_workbrief"`
	EndSubmission        string      `json:"tender_endsubmission_datetime"`
	SiteLocation         string      `json:"site_location"`
	EstimatedCost        json.Number `json:"estimatedcost"`
}

type SearchResponse struct {
	Success       bool     `json:"Success"`
	Data          []Record `json:"Data"`
	TotalRecord   int      `json:"TotalRecord"`
	IsAuthFailure *bool    `json:"IsAuthFailure"`
}

// Decode parses a search response, an api level failure is an error.
func Decode(raw json.RawMessage) (SearchResponse, error) {
	var res SearchResponse
	err := json.Unmarshal(raw, &res)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("decode tender247 response: %w", err)
	}
	if !res.Success {
		if res.IsAuthFailure != nil && *res.IsAuthFailure {
			return res, fmt.Errorf("tender247 api rejected the credentials")
		}
		return res, fmt.Errorf("tender247 api returned failure")
	}
	return res, nil
}

// ToTenders maps records with an id into tender records.
func ToTenders(records []Record, keyword string) []tender.Tender {
	out := []tender.Tender{}
	for _, r := range records {
		id := strings.TrimSpace(r.TenderId.String())
		if id == "" {
			continue
		}
		t := tender.Tender{
			Source:       tender.SourceT247,
			Keyword:      keyword,
			Reference:    "t247:" + id,
			Title:        strings.TrimSpace(r.RequirementWorkbrief),
			Organisation: strings.TrimSpace(r.OrganizationName),
			ClosingDate:  strings.TrimSpace(r.EndSubmission),
		}
		t.TenderId = id
		t.WorkLocation = strings.TrimSpace(r.SiteLocation)
		t.TenderValue = r.EstimatedCost.String()
		out = append(out, t)
	}
	return out
}
