package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	rec := &Recorder{}
	scoped := NewScopedAPI("eprocure", NewScopedAPI("navigator", rec))

	scoped.ReportBroken("advanced-search", "form not found")
	scoped.ReportCount("found", 3)

	broken := rec.Reports("broken")
	require.Len(t, broken, 1)
	require.Equal(t, "navigator: eprocure: advanced-search", broken[0].Id)
	require.Equal(t, []any{"form not found"}, broken[0].Params)

	n, ok := rec.Count("found")
	require.True(t, ok)
	require.Equal(t, int64(3), n)
}

func TestInstrumentResty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	rec := &Recorder{}
	client := resty.New()
	InstrumentResty(client, rec)

	_, err := client.R().Get(srv.URL + "/")
	require.NoError(t, err)
	_, err = client.R().Get(srv.URL + "/missing")
	require.NoError(t, err)

	require.Len(t, rec.Reports("warning"), 1)
	require.Empty(t, rec.Reports("broken"))
	require.Len(t, rec.Reports("debug"), 4)
}
