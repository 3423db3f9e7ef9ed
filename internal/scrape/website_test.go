package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/provider"
)

func newTestFinder(t *testing.T, mux *http.ServeMux, paths ...string) (*EmailFinder, string) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f := NewEmailFinder(NewFetcher(Options{Timeout: 5 * time.Second}), paths)
	f.schemes = []string{"http"}
	return f, strings.TrimPrefix(srv.URL, "http://")
}

func TestEmailFinder_HomePage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Acme</title></head><body>
<a href="mailto:Hello@Acme.com?subject=Hi">Email us</a>
<script>var x = "tracking@sentry.io";</script>
<p>Or write to sales@acme.com</p></body></html>`))
	})

	f, host := newTestFinder(t, mux)
	assert.Equal(t, provider.Website, f.Name())

	email, err := f.FindEmail(context.Background(), host)
	require.NoError(t, err)
	assert.Equal(t, "hello@acme.com", email)
}

func TestEmailFinder_ContactPageFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><h1>Welcome</h1></body></html>`))
	})
	mux.HandleFunc("/contact", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>Reach us: office@acme.com</body></html>`))
	})

	f, host := newTestFinder(t, mux, "/about", "/contact")
	email, err := f.FindEmail(context.Background(), host)
	require.NoError(t, err)
	assert.Equal(t, "office@acme.com", email)
}

func TestEmailFinder_NoEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>Nothing here. Styles: a@media.css</body></html>`))
	})

	f, host := newTestFinder(t, mux, "/contact")
	email, err := f.FindEmail(context.Background(), host)
	require.NoError(t, err)
	assert.Empty(t, email)
}

func TestEmailFinder_HomeUnreachable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	f, host := newTestFinder(t, mux)
	_, err := f.FindEmail(context.Background(), host)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestFetcher_Blocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Cf-Ray", "abc123")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<html><body>Access denied</body></html>`))
	}))
	defer srv.Close()

	_, err := NewFetcher(Options{}).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestFetcher_DecodesCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "Café" in Latin-1.
		_, _ = w.Write([]byte("<html><head><title>Caf\xe9</title></head><body>x</body></html>"))
	}))
	defer srv.Close()

	page, err := NewFetcher(Options{}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Café", page.Title)
	assert.Equal(t, http.StatusOK, page.StatusCode)
}

func TestFetcher_MetaCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><head><meta charset=\"windows-1252\"><title>Na\xefve</title></head></html>"))
	}))
	defer srv.Close()

	page, err := NewFetcher(Options{}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Naïve", page.Title)
}

func TestPickEmail(t *testing.T) {
	assert.Equal(t, "jo@shop.acme.com", pickEmail([]string{"a@gmail.com", "jo@shop.acme.com"}, "acme.com"))
	assert.Equal(t, "a@gmail.com", pickEmail([]string{"a@gmail.com"}, "acme.com"))
	assert.Empty(t, pickEmail(nil, "acme.com"))
	assert.False(t, onDomain("x@notacme.com", "acme.com"))
}
