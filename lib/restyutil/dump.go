// Package restyutil dumps full http exchanges made through a resty client,
// it is used to capture portal pages when the parsers drift.
package restyutil

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type Output interface {
	Write(id string, contents string)
}

// FilesystemOutput writes each dump to its own file, numbered in write
// order across every client sharing it.
type FilesystemOutput struct {
	directory string
	seq       *uint64
}

func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir, seq: new(uint64)}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	n := atomic.AddUint64(o.seq, 1)
	name := fmt.Sprintf("%04d-%s", n, id)
	err := os.WriteFile(filepath.Join(o.directory, name), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write http dump", "id", name, "err", err)
	}
}

// Dump writes every response received by client to output under the id
// "<method>.txt".
func Dump(client *resty.Client, output Output) {
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		output.Write(strings.ToLower(res.Request.Method)+".txt", FormatExchange(res))
		return nil
	})
}

func formatHeaders(headers http.Header) string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := []string{}
	for _, name := range names {
		for _, value := range headers[name] {
			lines = append(lines, name+": "+value)
		}
	}
	return strings.Join(lines, "\n")
}

func requestBody(res *resty.Response) string {
	raw := res.Request.RawRequest
	if raw != nil && (raw.Body == nil || raw.Body == http.NoBody) {
		return ""
	}
	if raw != nil && raw.GetBody != nil {
		body, err := raw.GetBody()
		if err != nil {
			return "failed to get request body: " + err.Error()
		}
		if body == nil {
			return ""
		}
		defer body.Close()
		read, err := io.ReadAll(body)
		if err != nil {
			return "failed to read request body: " + err.Error()
		}
		return string(read)
	}
	if body, ok := res.Request.Body.(string); ok {
		return body
	}
	return ""
}

const exchangeTemplate = `---- REQUEST ----

%s %s

%s

%s

---- RESPONSE ----

%d %s

%s

%s`

// FormatExchange renders the request and response of res as plain text.
func FormatExchange(res *resty.Response) string {
	requestHeaders := http.Header{}
	if res.Request.RawRequest != nil {
		requestHeaders = res.Request.RawRequest.Header
	}
	responseUrl := res.Request.URL
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		responseUrl = res.RawResponse.Request.URL.String()
	}

	return fmt.Sprintf(
		exchangeTemplate,
		res.Request.Method, res.Request.URL,
		formatHeaders(requestHeaders),
		requestBody(res),
		res.StatusCode(), responseUrl,
		formatHeaders(res.Header()),
		res.String(),
	)
}
