package eprocure

import (
	"net/http"
	"strings"
	"sync"
)

// Session is the cookie carrier of one keyword's navigation. Cookies are
// kept in first-seen order and a later Set-Cookie for the same name
// replaces the value in place. Attributes (Path, Expires, ...) are ignored.
type Session struct {
	mu     sync.Mutex
	names  []string
	values map[string]string
}

func NewSession() *Session {
	return &Session{values: map[string]string{}}
}

// Absorb records the name=value pair of every Set-Cookie header value.
func (s *Session) Absorb(headers ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, header := range headers {
		pair, _, _ := strings.Cut(header, ";")
		name, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, exists := s.values[name]; !exists {
			s.names = append(s.names, name)
		}
		s.values[name] = strings.TrimSpace(value)
	}
}

// HeaderValue is the Cookie request header, "" when nothing was absorbed.
func (s *Session) HeaderValue() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	pairs := make([]string, len(s.names))
	for i, name := range s.names {
		pairs[i] = name + "=" + s.values[name]
	}
	return strings.Join(pairs, "; ")
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.names)
}

// Transport attaches the session to every request going through next and
// absorbs every response, including the intermediate hops of a redirect.
func (s *Session) Transport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return sessionTransport{session: s, next: next}
}

type sessionTransport struct {
	session *Session
	next    http.RoundTripper
}

func (t sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Del("Cookie")
	if cookie := t.session.HeaderValue(); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	res, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	t.session.Absorb(res.Header.Values("Set-Cookie")...)
	return res, nil
}
