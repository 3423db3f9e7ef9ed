package providerstate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns its URL.
func setupRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return "redis://" + host + ":" + port.Port()
}

func TestRedisStore_RestrictAndExpire(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	s, err := NewRedisStore(ctx, setupRedis(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck

	require.NoError(t, s.SetRestricted(ctx, "hunter", time.Hour))
	restricted, err := s.IsRestricted(ctx, "hunter")
	require.NoError(t, err)
	assert.True(t, restricted)

	all, err := s.Restrictions(ctx)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), all["hunter"], 5*time.Second)

	require.NoError(t, s.SetRestricted(ctx, "gmail", 300*time.Millisecond))
	assert.Eventually(t, func() bool {
		restricted, err := s.IsRestricted(ctx, "gmail")
		return err == nil && !restricted
	}, 5*time.Second, 50*time.Millisecond)

	exists, err := s.client.Exists(ctx, s.key("gmail")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)
}

func TestRedisStore_SkewedClocksKeepLiveRestriction(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	url := setupRedis(t)

	writerClock := newClock()
	readerClock := newClock()
	readerClock.Advance(2 * time.Minute)

	writer, err := NewRedisStore(ctx, url, WithClock(writerClock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { writer.Close() }) //nolint:errcheck
	reader, err := NewRedisStore(ctx, url, WithClock(readerClock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { reader.Close() }) //nolint:errcheck

	require.NoError(t, writer.SetRestricted(ctx, "dataforseo", time.Minute))

	restricted, err := reader.IsRestricted(ctx, "dataforseo")
	require.NoError(t, err)
	assert.True(t, restricted)

	exists, err := reader.client.Exists(ctx, reader.key("dataforseo")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

func TestRedisStore_ClearAndUnknown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	s, err := NewRedisStore(ctx, setupRedis(t), WithKeyPrefix("test_restriction:"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck

	restricted, err := s.IsRestricted(ctx, "never-set")
	require.NoError(t, err)
	assert.False(t, restricted)

	require.NoError(t, s.SetRestricted(ctx, "gmail", 0))
	ttl, err := s.client.TTL(ctx, "test_restriction:gmail").Result()
	require.NoError(t, err)
	assert.InDelta(t, DefaultRestriction.Seconds(), ttl.Seconds(), 5)

	require.NoError(t, s.ClearRestriction(ctx, "gmail"))
	restricted, err = s.IsRestricted(ctx, "gmail")
	require.NoError(t, err)
	assert.False(t, restricted)
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "not-a-url://")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")
}
