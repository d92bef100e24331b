package eprocure

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionAbsorb(t *testing.T) {
	session := NewSession()
	require.Equal(t, "", session.HeaderValue())

	session.Absorb(
		"JSESSIONID=ABC123; Path=/eprocure; HttpOnly",
		"TS01=xyz",
		"=orphan",
		"noequals",
		"  spaced  =  value ; Secure",
	)
	require.Equal(t, "JSESSIONID=ABC123; TS01=xyz; spaced=value", session.HeaderValue())

	// a later value replaces the earlier one in place
	session.Absorb("JSESSIONID=DEF456; Path=/", "token=a=b")
	require.Equal(t, "JSESSIONID=DEF456; TS01=xyz; spaced=value; token=a=b", session.HeaderValue())
	require.Equal(t, 4, session.Len())
}

func TestSessionTransportFollowsRedirects(t *testing.T) {
	var seen []string
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Cookie"))
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "first", Path: "/"})
		http.Redirect(w, r, "/landing", http.StatusFound)
	})
	mux.HandleFunc("/landing", func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Cookie"))
		http.SetCookie(w, &http.Cookie{Name: "lb", Value: "node2", Path: "/"})
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session := NewSession()
	client := &http.Client{Transport: session.Transport(nil)}

	res, err := client.Get(srv.URL + "/start")
	require.NoError(t, err)
	res.Body.Close()

	require.Equal(t, []string{"", "JSESSIONID=first"}, seen)
	require.Equal(t, "JSESSIONID=first; lb=node2", session.HeaderValue())

	res, err = client.Get(srv.URL + "/landing")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, "JSESSIONID=first; lb=node2", seen[2])
}
