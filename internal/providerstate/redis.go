package providerstate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisStore keeps restrictions in Redis so every process sees the same
// backoff. Each record stores its expiry in unix milliseconds and carries a
// matching key TTL. Expiry is computed and checked against the Redis server
// clock inside scripts, so skewed process clocks cannot drop a live record.
type RedisStore struct {
	client *redis.Client
	opts   options
}

// setScript stores server_now+ARGV[1] ms with a PX of ARGV[1] and returns
// the expiry.
var setScript = redis.NewScript(`
local t = redis.call('TIME')
local expiry = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000) + tonumber(ARGV[1])
redis.call('SET', KEYS[1], string.format('%.0f', expiry), 'PX', ARGV[1])
return expiry
`)

// checkScript returns the stored expiry, or 0 after deleting a record the
// server clock has passed.
var checkScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
	return 0
end
local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
if now >= tonumber(v) then
	redis.call('DEL', KEYS[1])
	return 0
end
return tonumber(v)
`)

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL string, opts ...Option) (*RedisStore, error) {
	ro, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, eris.Wrap(err, "providerstate: parse redis url")
	}
	client := redis.NewClient(ro)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "providerstate: ping redis")
	}
	return NewRedisStoreFromClient(client, opts...), nil
}

// NewRedisStoreFromClient wraps an existing client. WithClock has no
// effect on a RedisStore.
func NewRedisStoreFromClient(client *redis.Client, opts ...Option) *RedisStore {
	return &RedisStore{client: client, opts: buildOptions(opts)}
}

func (s *RedisStore) key(provider string) string {
	return s.opts.keyPrefix + provider
}

func (s *RedisStore) SetRestricted(ctx context.Context, provider string, d time.Duration) error {
	ms := s.opts.ttl(d).Milliseconds()
	if ms < 1 {
		ms = 1
	}
	if err := setScript.Run(ctx, s.client, []string{s.key(provider)}, ms).Err(); err != nil {
		return eris.Wrapf(err, "providerstate: set restriction %s", provider)
	}
	return nil
}

func (s *RedisStore) IsRestricted(ctx context.Context, provider string) (bool, error) {
	until, err := s.expiry(ctx, provider)
	if err != nil {
		return false, err
	}
	return until > 0, nil
}

// expiry returns the live record's expiry in unix milliseconds, or 0.
func (s *RedisStore) expiry(ctx context.Context, provider string) (int64, error) {
	ms, err := checkScript.Run(ctx, s.client, []string{s.key(provider)}).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "providerstate: check restriction %s", provider)
	}
	return ms, nil
}

func (s *RedisStore) ClearRestriction(ctx context.Context, provider string) error {
	if err := s.client.Del(ctx, s.key(provider)).Err(); err != nil {
		return eris.Wrapf(err, "providerstate: clear restriction %s", provider)
	}
	return nil
}

func (s *RedisStore) Restrictions(ctx context.Context) (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	iter := s.client.Scan(ctx, 0, s.opts.keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		provider := strings.TrimPrefix(iter.Val(), s.opts.keyPrefix)
		ms, err := s.expiry(ctx, provider)
		if err != nil {
			return nil, err
		}
		if ms > 0 {
			out[provider] = time.UnixMilli(ms)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, eris.Wrap(err, "providerstate: scan restrictions")
	}
	return out, nil
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
