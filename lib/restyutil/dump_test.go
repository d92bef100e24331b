package restyutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestDump(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/moved" {
			http.Redirect(w, r, "/results", http.StatusFound)
			return
		}
		w.Header().Set("X-Portal", "eprocure")
		w.Write([]byte("<html>results</html>"))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "dump")
	output, err := NewFilesystemOutput(dir)
	require.NoError(t, err)

	client := resty.New()
	Dump(client, output)

	_, err = client.R().
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody("SearchDescription=bitumen").
		Post(srv.URL + "/search")
	require.NoError(t, err)
	_, err = client.R().Get(srv.URL + "/moved")
	require.NoError(t, err)

	post, err := os.ReadFile(filepath.Join(dir, "0001-post.txt"))
	require.NoError(t, err)
	require.Contains(t, string(post), "POST "+srv.URL+"/search")
	require.Contains(t, string(post), "SearchDescription=bitumen")
	require.Contains(t, string(post), "X-Portal: eprocure")
	require.Contains(t, string(post), "<html>results</html>")

	get, err := os.ReadFile(filepath.Join(dir, "0002-get.txt"))
	require.NoError(t, err)
	require.Contains(t, string(get), "200 "+srv.URL+"/results")
}

func TestDumpRequestWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>landing</html>"))
	}))
	defer srv.Close()

	output := &memoryOutput{}
	client := resty.New()
	Dump(client, output)

	_, err := client.R().Get(srv.URL + "/landing")
	require.NoError(t, err)

	require.Equal(t, []string{"get.txt"}, output.ids)
	require.Contains(t, output.contents[0], "GET "+srv.URL+"/landing")
	require.Contains(t, output.contents[0], "<html>landing</html>")
}

type memoryOutput struct {
	ids      []string
	contents []string
}

func (o *memoryOutput) Write(id string, contents string) {
	o.ids = append(o.ids, id)
	o.contents = append(o.contents, contents)
}
