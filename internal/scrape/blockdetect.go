package scrape

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
)

// BlockKind names the anti-bot mechanism that stopped a fetch.
type BlockKind string

const (
	BlockNone       BlockKind = ""
	BlockCloudflare BlockKind = "cloudflare"
	BlockCaptcha    BlockKind = "captcha"
	BlockJSShell    BlockKind = "js_shell"
	BlockThrottled  BlockKind = "throttled"
)

// BlockedError is returned by Fetch when a site answered with an
// interstitial instead of its page. It fails only that prospect; the
// website provider is never restricted for it.
type BlockedError struct {
	URL  string
	Kind BlockKind
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("scrape: %s blocked (%s)", e.URL, e.Kind)
}

// interstitialMaxBytes bounds the size of a challenge page. Real contact
// pages often embed a reCAPTCHA widget on their form, so captcha markers
// only count on small or non-2xx responses.
const interstitialMaxBytes = 16 * 1024

type bodyMarker struct {
	kind    BlockKind
	all     [][]byte
	maxSize int
}

var bodyMarkers = []bodyMarker{
	{kind: BlockCloudflare, all: [][]byte{[]byte("checking your browser")}},
	{kind: BlockCloudflare, all: [][]byte{[]byte("cf-browser-verification")}},
	{kind: BlockCloudflare, all: [][]byte{[]byte("cloudflare"), []byte("challenge")}, maxSize: interstitialMaxBytes},
	{kind: BlockCaptcha, all: [][]byte{[]byte("captcha")}, maxSize: interstitialMaxBytes},
	{kind: BlockJSShell, all: [][]byte{[]byte("<noscript"), []byte("javascript")}, maxSize: 2000},
	{kind: BlockJSShell, all: [][]byte{[]byte(`http-equiv="refresh"`)}, maxSize: 2000},
}

// DetectBlock inspects a response for anti-bot interstitials and returns
// BlockNone for a normal page.
func DetectBlock(resp *http.Response, body []byte) BlockKind {
	if resp == nil {
		return BlockNone
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return BlockThrottled
	}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("Cf-Ray") != "" || resp.Header.Get("Cf-Cache-Status") != "" ||
			strings.EqualFold(resp.Header.Get("Server"), "cloudflare") {
			return BlockCloudflare
		}
	}

	lower := bytes.ToLower(body)
	ok2xx := resp.StatusCode >= 200 && resp.StatusCode < 300
	for _, m := range bodyMarkers {
		if m.maxSize > 0 && ok2xx && len(body) > m.maxSize {
			continue
		}
		if containsAll(lower, m.all) {
			return m.kind
		}
	}
	return BlockNone
}

func containsAll(b []byte, subs [][]byte) bool {
	for _, s := range subs {
		if !bytes.Contains(b, s) {
			return false
		}
	}
	return true
}
