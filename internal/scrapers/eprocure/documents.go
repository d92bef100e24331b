package eprocure

import (
	"context"
	"eprocure-backend/internal/components/chrono"
	"eprocure-backend/internal/components/telemetry"
	"eprocure-backend/internal/tender"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const report_documents_download = "documents.download"

// DocumentsDir is the directory under the output root attachments are
// saved to.
const DocumentsDir = "documents"

var unsafeFilenameRegex = regexp.MustCompile(`(?i)[^a-z0-9._-]`)

// documentFilename maps a document name onto a file name, every character
// outside [A-Za-z0-9._-] becomes "_".
func documentFilename(name string) string {
	filename := unsafeFilenameRegex.ReplaceAllString(name, "_")
	if strings.Trim(filename, ".") == "" {
		return ""
	}
	return filename
}

type documentFetcher struct {
	client    *client
	outputDir string
	delay     time.Duration
	sleep     chrono.SleepAPI
	tel       telemetry.API
}

// fetchAll downloads every document with a download url and records its
// local path. Failures leave the reference untouched, only a cancelled
// context stops the loop. It returns the number of saved documents.
func (f documentFetcher) fetchAll(ctx context.Context, docs []tender.DocumentRef) (int, error) {
	saved := 0
	for i := range docs {
		if docs[i].DownloadUrl == "" {
			continue
		}

		localPath, err := f.fetch(ctx, docs[i])
		if err != nil {
			f.tel.ReportWarning(report_documents_download, err, docs[i].Name, docs[i].DownloadUrl)
		} else {
			docs[i].LocalPath = localPath
			saved++
		}

		err = f.sleep.Sleep(ctx, chrono.JitterDuration(f.delay, 0.3))
		if err != nil {
			return saved, err
		}
	}
	return saved, nil
}

func (f documentFetcher) fetch(ctx context.Context, doc tender.DocumentRef) (string, error) {
	filename := documentFilename(doc.Name)
	if filename == "" {
		return "", fmt.Errorf("document name %q has no usable file name", doc.Name)
	}

	body, err := f.client.download(ctx, doc.DownloadUrl)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(f.outputDir, DocumentsDir)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return "", err
	}
	err = os.WriteFile(filepath.Join(dir, filename), body, 0644)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(filepath.Join(DocumentsDir, filename)), nil
}
