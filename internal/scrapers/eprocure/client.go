package eprocure

import (
	"context"
	"eprocure-backend/internal/components/assert"
	"eprocure-backend/internal/components/chrono"
	"eprocure-backend/internal/components/telemetry"
	"eprocure-backend/lib/restyutil"
	"fmt"
	"net/http"
	"net/url"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseUrl   = "https://eprocure.gov.in/eprocure/app"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

type ClientOptions struct {
	BaseUrl   string
	UserAgent string
	// RequestTimeout bounds every page request attempt.
	RequestTimeout time.Duration
	// DocumentTimeout bounds a single attachment download.
	DocumentTimeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries    int
	GetBaseDelay  time.Duration
	PostBaseDelay time.Duration
	// RequestsPerSecond caps the request rate on top of the pacing delays,
	// 0 disables it.
	RequestsPerSecond float64
	CloudflareBypass  bool
	// Dump receives every http exchange when set.
	Dump restyutil.Output
}

func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		BaseUrl:         DefaultBaseUrl,
		UserAgent:       DefaultUserAgent,
		RequestTimeout:  30 * time.Second,
		DocumentTimeout: 60 * time.Second,
		MaxRetries:      3,
		GetBaseDelay:    4 * time.Second,
		PostBaseDelay:   5 * time.Second,
	}
}

// client is the http surface of one keyword's navigation, every client owns
// a fresh Session so that keywords never share cookies.
type client struct {
	BaseUrl *url.URL
	Http    *resty.Client
	Session *Session

	opts       ClientOptions
	getPolicy  retryPolicy
	postPolicy retryPolicy
	tel        telemetry.API
}

func newClient(opts ClientOptions, sleep chrono.SleepAPI, tel telemetry.API) (*client, error) {
	assert.NotNil(sleep)
	assert.NotNil(tel)

	parsedBaseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if parsedBaseUrl.Scheme == "" || parsedBaseUrl.Host == "" {
		return nil, fmt.Errorf("base url %q is not absolute", opts.BaseUrl)
	}

	session := NewSession()

	httpClient := resty.New()
	// cookies are carried by the session transport, a jar would send them twice
	httpClient.SetCookieJar(nil)
	transport := httpClient.GetClient().Transport
	if opts.CloudflareBypass {
		transport = cloudflarebp.AddCloudFlareByPass(transport)
	}
	httpClient.SetTransport(session.Transport(transport))

	httpClient.SetHeaders(map[string]string{
		"user-agent":      opts.UserAgent,
		"accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"accept-language": "en-US,en;q=0.9",
		"connection":      "keep-alive",
	})
	httpClient.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	if opts.RequestsPerSecond > 0 {
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel)
	if opts.Dump != nil {
		restyutil.Dump(httpClient, opts.Dump)
	}

	c := &client{
		BaseUrl: parsedBaseUrl,
		Http:    httpClient,
		Session: session,
		opts:    opts,
		getPolicy: retryPolicy{
			MaxRetries: opts.MaxRetries,
			BaseDelay:  opts.GetBaseDelay,
			Sleep:      sleep,
			tel:        tel,
		},
		postPolicy: retryPolicy{
			MaxRetries: opts.MaxRetries,
			BaseDelay:  opts.PostBaseDelay,
			Sleep:      sleep,
			tel:        tel,
		},
		tel: tel,
	}
	return c, nil
}

func (c *client) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// get fetches a page with retries and returns its body.
func (c *client) get(ctx context.Context, link string) ([]byte, error) {
	res, err := executeWithRetry(ctx, c.getPolicy, http.MethodGet, link, func(ctx context.Context) (*resty.Response, error) {
		ctx, cancel := c.withTimeout(ctx, c.opts.RequestTimeout)
		defer cancel()
		return c.Http.R().
			SetContext(ctx).
			Get(link)
	})
	if err != nil {
		return nil, err
	}
	return res.Body(), nil
}

// postForm submits form url-encoded in field insertion order.
func (c *client) postForm(ctx context.Context, link string, form *FormState) ([]byte, error) {
	encoded := form.Encode()
	res, err := executeWithRetry(ctx, c.postPolicy, http.MethodPost, link, func(ctx context.Context) (*resty.Response, error) {
		ctx, cancel := c.withTimeout(ctx, c.opts.RequestTimeout)
		defer cancel()
		return c.Http.R().
			SetContext(ctx).
			SetHeader("content-type", "application/x-www-form-urlencoded").
			SetBody(encoded).
			Post(link)
	})
	if err != nil {
		return nil, err
	}
	return res.Body(), nil
}

// download fetches an attachment once, without retries. Anything but a 200
// with a non-empty body is a failure.
func (c *client) download(ctx context.Context, link string) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx, c.opts.DocumentTimeout)
	defer cancel()

	res, err := c.Http.R().
		SetContext(ctx).
		Get(link)
	if err != nil {
		return nil, &NetworkError{Method: http.MethodGet, Url: link, Attempts: 1, Err: err}
	}
	if res.StatusCode() != http.StatusOK {
		return nil, &HTTPError{Method: http.MethodGet, Url: link, Status: res.StatusCode(), Attempts: 1}
	}
	if len(res.Body()) == 0 {
		return nil, fmt.Errorf("download %s: empty body", link)
	}
	return res.Body(), nil
}
