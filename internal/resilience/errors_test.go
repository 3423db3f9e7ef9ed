package resilience

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromHTTPStatus_Classification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   ErrorKind
	}{
		{http.StatusUnauthorized, KindUnauthorized},
		{http.StatusForbidden, KindForbidden},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusInternalServerError, KindUnknown},
		{http.StatusBadRequest, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()
			pe := FromHTTPStatus("hunter", tt.status, nil, "boom")
			assert.Equal(t, tt.want, pe.Kind)
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Contains(t, pe.Error(), "hunter")
		})
	}
}

func TestFromHTTPStatus_RetryAfterSeconds(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("Retry-After", "120")
	pe := FromHTTPStatus("dataforseo", http.StatusTooManyRequests, h, "")

	assert.Equal(t, KindRateLimited, pe.Kind)
	assert.Equal(t, 2*time.Minute, pe.RetryAfter)
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 30*time.Second, ParseRetryAfter("30", now))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("", now))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("-5", now))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("soon", now))
	assert.Equal(t, 90*time.Second, ParseRetryAfter(now.Add(90*time.Second).Format(http.TimeFormat), now))
	assert.Equal(t, time.Duration(0), ParseRetryAfter(now.Add(-time.Hour).Format(http.TimeFormat), now))
}

func TestKindOf_Wrapped(t *testing.T) {
	t.Parallel()

	err := eris.Wrap(RateLimited("gmail", time.Minute, errors.New("slow down")), "send")
	assert.Equal(t, KindRateLimited, KindOf(err))
	assert.Equal(t, time.Minute, RetryAfterOf(err))

	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, time.Duration(0), RetryAfterOf(errors.New("plain")))
}

func TestErrorKind_Fatal(t *testing.T) {
	t.Parallel()
	assert.True(t, KindUnauthorized.Fatal())
	assert.True(t, KindForbidden.Fatal())
	assert.True(t, KindNotConfigured.Fatal())
	assert.False(t, KindRateLimited.Fatal())
	assert.False(t, KindUnknown.Fatal())
}

func TestNotConfigured_Message(t *testing.T) {
	t.Parallel()
	err := NotConfigured("hunter")
	assert.Equal(t, "provider not configured: hunter", err.Error())
	assert.Equal(t, KindNotConfigured, KindOf(fmt.Errorf("prepare: %w", err)))
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("x"), 503), true},
		{"wrapped explicit", fmt.Errorf("call: %w", NewTransientError(errors.New("x"), 502)), true},
		{"plain", errors.New("bad request"), false},
		{"conn reset", fmt.Errorf("write: %w", syscall.ECONNRESET), true},
		{"conn refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"net timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"string pattern", errors.New("read tcp: i/o timeout"), true},
		{"provider 503", FromHTTPStatus("x", 503, nil, ""), true},
		{"provider 429", FromHTTPStatus("x", 429, nil, ""), false},
		{"provider 401", FromHTTPStatus("x", 401, nil, ""), false},
		{"provider 404", FromHTTPStatus("x", 404, nil, ""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	t.Parallel()
	inner := errors.New("inner")
	te := NewTransientError(inner, 500)
	require.ErrorIs(t, te, inner)
	assert.Equal(t, "inner", te.Error())
}
