package eprocure

import (
	"context"
	"eprocure-backend/pkg/htmlutil"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recordingSleep returns immediately and remembers every requested delay.
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleep) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleep) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func readFixture(t testing.TB, name string) []byte {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return body
}

func parseFixture(t testing.TB, name string) htmlutil.Node {
	t.Helper()
	doc, err := htmlutil.ParseBytes(readFixture(t, name))
	require.NoError(t, err)
	return doc
}

func parseHtml(t testing.TB, body string) htmlutil.Node {
	t.Helper()
	doc, err := htmlutil.ParseString(body)
	require.NoError(t, err)
	return doc
}
