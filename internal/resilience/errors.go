package resilience

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ErrorKind classifies a provider failure by how the pipeline reacts to it.
type ErrorKind string

const (
	// KindUnauthorized aborts the job: credentials were rejected.
	KindUnauthorized ErrorKind = "unauthorized"
	// KindForbidden aborts the job: the account may not use the endpoint.
	KindForbidden ErrorKind = "forbidden"
	// KindRateLimited restricts the provider and defers the item.
	KindRateLimited ErrorKind = "rate_limited"
	// KindNotConfigured aborts the job: credentials are missing.
	KindNotConfigured ErrorKind = "not_configured"
	// KindUnknown fails the item and the job continues.
	KindUnknown ErrorKind = "unknown"
)

// Fatal reports whether errors of this kind abort the whole job.
func (k ErrorKind) Fatal() bool {
	return k == KindUnauthorized || k == KindForbidden || k == KindNotConfigured
}

// ProviderError is the error contract of every external provider call.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	// RetryAfter is the provider's requested backoff, zero when absent.
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Kind == KindNotConfigured {
		return "provider not configured: " + e.Provider
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Provider, e.Kind)
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError builds a ProviderError of the given kind.
func NewProviderError(provider string, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// NotConfigured reports missing provider credentials.
func NotConfigured(provider string) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindNotConfigured}
}

// RateLimited reports a throttled provider with an optional backoff.
func RateLimited(provider string, retryAfter time.Duration, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindRateLimited, StatusCode: http.StatusTooManyRequests, RetryAfter: retryAfter, Err: err}
}

// FromHTTPStatus classifies a non-2xx provider response. body is included
// in the message, truncated.
func FromHTTPStatus(provider string, status int, header http.Header, body string) *ProviderError {
	kind := KindUnknown
	switch status {
	case http.StatusUnauthorized:
		kind = KindUnauthorized
	case http.StatusForbidden:
		kind = KindForbidden
	case http.StatusTooManyRequests:
		kind = KindRateLimited
	}
	if len(body) > 200 {
		body = body[:200]
	}
	pe := &ProviderError{Provider: provider, Kind: kind, StatusCode: status}
	if body = strings.TrimSpace(body); body != "" {
		pe.Err = errors.New(body)
	}
	if kind == KindRateLimited && header != nil {
		pe.RetryAfter = ParseRetryAfter(header.Get("Retry-After"), time.Now())
	}
	return pe
}

// ParseRetryAfter reads a Retry-After header given as delay-seconds or as
// an HTTP date. Unparseable or past values yield zero.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}

// KindOf returns the kind of the first ProviderError in err's chain, or
// KindUnknown.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// RetryAfterOf returns the requested backoff carried by err, if any.
func RetryAfterOf(err error) time.Duration {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return 0
}

// TransientError wraps an error that is safe to retry within a single call
// (5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as transient with an optional HTTP status.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
}

// IsTransient reports whether err may succeed on an immediate retry.
// Classified provider errors other than server-side unknowns are never
// transient: rate limits go through provider restriction instead.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind == KindUnknown && IsTransientHTTPStatus(pe.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether status indicates a retryable
// server-side failure. 429 is excluded; it is handled as a rate limit.
func IsTransientHTTPStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
