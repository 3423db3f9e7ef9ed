// Package providerstate records which external providers are temporarily
// restricted after rate limiting. Records expire on their own and are
// purged lazily on read.
package providerstate

import (
	"context"
	"time"
)

// DefaultRestriction applies when a provider gives no Retry-After.
const DefaultRestriction = time.Hour

// Store tracks provider restrictions. Implementations are safe for
// concurrent use.
type Store interface {
	// SetRestricted blocks provider for d. d <= 0 uses the store default.
	SetRestricted(ctx context.Context, provider string, d time.Duration) error
	// IsRestricted reports whether provider is blocked now. An expired
	// record is deleted and reported as not restricted.
	IsRestricted(ctx context.Context, provider string) (bool, error)
	// ClearRestriction removes any record for provider.
	ClearRestriction(ctx context.Context, provider string) error
	// Restrictions lists active restrictions and their expiry.
	Restrictions(ctx context.Context) (map[string]time.Time, error)
}

// Option configures a store.
type Option func(*options)

type options struct {
	now        func() time.Time
	defaultTTL time.Duration
	keyPrefix  string
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithDefaultRestriction overrides DefaultRestriction.
func WithDefaultRestriction(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.defaultTTL = d
		}
	}
}

// WithKeyPrefix sets the Redis key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, defaultTTL: DefaultRestriction, keyPrefix: "provider_restriction:"}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func (o options) ttl(d time.Duration) time.Duration {
	if d <= 0 {
		return o.defaultTTL
	}
	return d
}
