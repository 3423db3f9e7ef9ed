// Package scrape fetches prospect websites and extracts contact addresses
// from their pages.
package scrape

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// Page is a fetched and parsed HTML page.
type Page struct {
	URL        string
	StatusCode int
	Title      string
	Doc        *goquery.Document
}

// Options tune the fetcher.
type Options struct {
	Timeout   time.Duration
	MaxBodyKB int
	UserAgent string
}

// Fetcher downloads HTML pages with a size cap and charset decoding.
type Fetcher struct {
	client    *http.Client
	maxBody   int64
	userAgent string
}

// NewFetcher creates a Fetcher. Zero options fall back to defaults.
func NewFetcher(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxBodyKB <= 0 {
		opts.MaxBodyKB = 2048
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; outreach-cli/1.0)"
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		maxBody:   int64(opts.MaxBodyKB) * 1024,
		userAgent: opts.UserAgent,
	}
}

// Fetch downloads targetURL and parses it. Blocked and non-2xx responses
// are errors.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: create request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: fetch %s", targetURL)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: read body")
	}

	if kind := DetectBlock(resp, body); kind != BlockNone {
		return nil, &BlockedError{URL: targetURL, Kind: kind}
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("scrape: %s status %d", targetURL, resp.StatusCode)
	}

	decoded, err := decodeBody(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(decoded)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse html")
	}

	return &Page{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Title:      strings.TrimSpace(doc.Find("title").First().Text()),
		Doc:        doc,
	}, nil
}

var metaCharsetRe = regexp.MustCompile(`(?i)<meta[^>]+charset=["']?([a-z0-9_\-:.]+)`)

// decodeBody converts body to UTF-8 using the Content-Type charset, then a
// <meta charset> in the first KB. Unknown labels leave the body as is.
func decodeBody(body []byte, contentType string) (io.Reader, error) {
	label := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		label = params["charset"]
	}
	if label == "" {
		head := body
		if len(head) > 1024 {
			head = head[:1024]
		}
		if m := metaCharsetRe.FindSubmatch(head); m != nil {
			label = string(m[1])
		}
	}
	if label == "" || strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "utf8") {
		return bytes.NewReader(body), nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return bytes.NewReader(body), nil
	}
	return enc.NewDecoder().Reader(bytes.NewReader(body)), nil
}
