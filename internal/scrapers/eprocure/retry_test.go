package eprocure

import (
	"context"
	"eprocure-backend/internal/components/telemetry"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func statusServer(t *testing.T, statuses ...int) (*httptest.Server, *int64) {
	t.Helper()
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := atomic.AddInt64(&hits, 1) - 1
		status := statuses[len(statuses)-1]
		if int(i) < len(statuses) {
			status = statuses[i]
		}
		w.WriteHeader(status)
		w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testPolicy(sleep *recordingSleep, base time.Duration) retryPolicy {
	return retryPolicy{
		MaxRetries: 3,
		BaseDelay:  base,
		Sleep:      sleep,
		tel:        &telemetry.Recorder{},
	}
}

func restyGet(link string) operation {
	httpClient := resty.New()
	return func(ctx context.Context) (*resty.Response, error) {
		return httpClient.R().SetContext(ctx).Get(link)
	}
}

func TestRetryRecoversFromTransientStatus(t *testing.T) {
	srv, hits := statusServer(t, 503, 429, 200)
	sleep := &recordingSleep{}

	res, err := executeWithRetry(context.Background(), testPolicy(sleep, 4*time.Second), http.MethodGet, srv.URL, restyGet(srv.URL))
	require.NoError(t, err)
	require.Equal(t, 200, res.StatusCode())
	require.EqualValues(t, 3, atomic.LoadInt64(hits))

	delays := sleep.Delays()
	require.Len(t, delays, 2)
	for i, delay := range delays {
		base := 4 * time.Second * time.Duration(i+1)
		require.GreaterOrEqual(t, delay, base*6/10)
		require.LessOrEqual(t, delay, base*14/10)
	}
}

func TestRetryExhaustion(t *testing.T) {
	srv, hits := statusServer(t, 502)
	sleep := &recordingSleep{}

	_, err := executeWithRetry(context.Background(), testPolicy(sleep, 5*time.Second), http.MethodPost, srv.URL, restyGet(srv.URL))
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, 502, httpErr.Status)
	require.Equal(t, 4, httpErr.Attempts)
	require.Equal(t, http.MethodPost, httpErr.Method)
	require.EqualValues(t, 4, atomic.LoadInt64(hits))
	require.Len(t, sleep.Delays(), 3)
}

func TestRetrySkipsPermanentStatus(t *testing.T) {
	for _, status := range []int{400, 403, 404} {
		srv, hits := statusServer(t, status)
		sleep := &recordingSleep{}

		_, err := executeWithRetry(context.Background(), testPolicy(sleep, time.Second), http.MethodGet, srv.URL, restyGet(srv.URL))
		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		require.Equal(t, status, httpErr.Status)
		require.Equal(t, 1, httpErr.Attempts)
		require.EqualValues(t, 1, atomic.LoadInt64(hits))
		require.Empty(t, sleep.Delays())
	}
}

func TestRetryNetworkErrors(t *testing.T) {
	reset := &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", syscall.ECONNRESET)}
	dns := &net.DNSError{Err: "temporary failure in name resolution", Name: "eprocure.gov.in", IsTemporary: true}
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}

	require.True(t, isTransientNetworkError(reset))
	require.True(t, isTransientNetworkError(dns))
	require.True(t, isTransientNetworkError(context.DeadlineExceeded))
	require.False(t, isTransientNetworkError(refused))
	require.False(t, isTransientNetworkError(errors.New("tls: bad certificate")))

	calls := 0
	sleep := &recordingSleep{}
	_, err := executeWithRetry(context.Background(), testPolicy(sleep, time.Second), http.MethodGet, "https://eprocure.gov.in", func(ctx context.Context) (*resty.Response, error) {
		calls++
		if calls < 3 {
			return nil, reset
		}
		return nil, dns
	})
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	require.Equal(t, 4, netErr.Attempts)
	require.Equal(t, 4, calls)
	require.ErrorIs(t, err, dns)

	calls = 0
	_, err = executeWithRetry(context.Background(), testPolicy(&recordingSleep{}, time.Second), http.MethodGet, "https://eprocure.gov.in", func(ctx context.Context) (*resty.Response, error) {
		calls++
		return nil, refused
	})
	require.ErrorAs(t, err, &netErr)
	require.Equal(t, 1, calls)
	require.ErrorIs(t, err, syscall.ECONNREFUSED)
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := executeWithRetry(ctx, testPolicy(&recordingSleep{}, time.Second), http.MethodGet, "https://eprocure.gov.in", func(ctx context.Context) (*resty.Response, error) {
		calls++
		return nil, context.DeadlineExceeded
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}
