package eprocure

import (
	"context"
	"eprocure-backend/internal/components/chrono"
	"eprocure-backend/internal/components/telemetry"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
)

const report_retry = "client.retry"

var retryableStatuses = map[int]struct{}{
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// retryPolicy retries an operation up to MaxRetries times after the first
// attempt. The n-th retry waits jitter(BaseDelay*n, 40%).
type retryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Sleep      chrono.SleepAPI

	tel telemetry.API
}

type operation func(ctx context.Context) (*resty.Response, error)

func isTransientNetworkError(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// executeWithRetry runs op until it yields a 2xx response, a non-retryable
// failure, or the retries are exhausted. Failures are returned as
// *HTTPError or *NetworkError.
func executeWithRetry(ctx context.Context, policy retryPolicy, method, link string, op operation) (*resty.Response, error) {
	attempt := 0
	for {
		attempt++

		var retryable bool
		var failure error

		res, err := op(ctx)
		switch {
		case err != nil:
			// a cancelled parent context is final, even though the resulting
			// error looks like a timeout
			retryable = ctx.Err() == nil && isTransientNetworkError(err)
			failure = &NetworkError{Method: method, Url: link, Attempts: attempt, Err: err}
		case res.IsSuccess():
			return res, nil
		default:
			_, retryable = retryableStatuses[res.StatusCode()]
			failure = &HTTPError{Method: method, Url: link, Status: res.StatusCode(), Attempts: attempt}
		}

		if !retryable || attempt > policy.MaxRetries {
			return res, failure
		}

		delay := chrono.JitterDuration(policy.BaseDelay*time.Duration(attempt), 0.4)
		if policy.tel != nil {
			policy.tel.ReportWarning(report_retry, method, link, attempt, delay.String(), failure)
		}
		err = policy.Sleep.Sleep(ctx, delay)
		if err != nil {
			return res, err
		}
	}
}
