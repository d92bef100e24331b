package harvest

import (
	"bytes"
	"encoding/json"
	"eprocure-backend/internal/tender"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	CombinedFile = "tenders.json"
	ByKeywordDir = "by-keyword"

	maxSlugLength = 80
)

// SnapshotStore reads and replaces the persisted tender sequences of the
// previous run.
type SnapshotStore interface {
	// ReadKeyword returns the prior sequence of keyword, empty when it is
	// missing or unreadable.
	ReadKeyword(keyword string) []tender.Tender
	WriteKeyword(keyword string, tenders []tender.Tender) error
	ReadCombined() []tender.Tender
	WriteCombined(tenders []tender.Tender) error
}

var slugRegex = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a keyword into a file name stem, "Crude Oil (Brent)" ->
// "crude-oil-brent".
func Slug(keyword string) string {
	slug := strings.Join(strings.Fields(keyword), " ")
	slug = slugRegex.ReplaceAllString(strings.ToLower(slug), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "keyword"
	}
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	return slug
}

// FileStore keeps snapshots as indented JSON arrays under Dir:
// Dir/tenders.json and Dir/by-keyword/<slug>.json.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) FileStore {
	return FileStore{Dir: dir}
}

func (s FileStore) KeywordPath(keyword string) string {
	return filepath.Join(s.Dir, ByKeywordDir, Slug(keyword)+".json")
}

func (s FileStore) CombinedPath() string {
	return filepath.Join(s.Dir, CombinedFile)
}

func (s FileStore) ReadKeyword(keyword string) []tender.Tender {
	return readSequence(s.KeywordPath(keyword))
}

func (s FileStore) WriteKeyword(keyword string, tenders []tender.Tender) error {
	return writeSequence(s.KeywordPath(keyword), tenders)
}

func (s FileStore) ReadCombined() []tender.Tender {
	return readSequence(s.CombinedPath())
}

func (s FileStore) WriteCombined(tenders []tender.Tender) error {
	return writeSequence(s.CombinedPath(), tenders)
}

func readSequence(path string) []tender.Tender {
	raw, err := os.ReadFile(path)
	if err != nil {
		return []tender.Tender{}
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []tender.Tender{}
	}
	var tenders []tender.Tender
	err = json.Unmarshal(raw, &tenders)
	if err != nil || tenders == nil {
		return []tender.Tender{}
	}
	return tenders
}

// writeSequence replaces path atomically, readers see either the old or
// the new file.
func writeSequence(path string, tenders []tender.Tender) error {
	if tenders == nil {
		tenders = []tender.Tender{}
	}
	encoded, err := json.MarshalIndent(tenders, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	err = tmp.Chmod(0644)
	if err != nil {
		tmp.Close()
		return err
	}
	_, err = tmp.Write(encoded)
	if err != nil {
		tmp.Close()
		return err
	}
	err = tmp.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
