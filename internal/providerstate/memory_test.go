package providerstate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func TestMemoryStore_RestrictionExpires(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s := NewMemoryStore(WithClock(clock.Now))

	require.NoError(t, s.SetRestricted(ctx, "hunter", 10*time.Second))

	restricted, err := s.IsRestricted(ctx, "hunter")
	require.NoError(t, err)
	assert.True(t, restricted)

	clock.Advance(11 * time.Second)
	restricted, err = s.IsRestricted(ctx, "hunter")
	require.NoError(t, err)
	assert.False(t, restricted)

	// The expired record was purged on read.
	s.mu.Lock()
	_, exists := s.until["hunter"]
	s.mu.Unlock()
	assert.False(t, exists)
}

func TestMemoryStore_ExpiryBoundaryIsUnrestricted(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s := NewMemoryStore(WithClock(clock.Now))

	require.NoError(t, s.SetRestricted(ctx, "gmail", time.Minute))
	clock.Advance(time.Minute)

	restricted, err := s.IsRestricted(ctx, "gmail")
	require.NoError(t, err)
	assert.False(t, restricted)
}

func TestMemoryStore_DefaultDuration(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s := NewMemoryStore(WithClock(clock.Now))

	require.NoError(t, s.SetRestricted(ctx, "anthropic", 0))
	all, err := s.Restrictions(ctx)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(DefaultRestriction), all["anthropic"])

	clock.Advance(DefaultRestriction - time.Second)
	restricted, _ := s.IsRestricted(ctx, "anthropic")
	assert.True(t, restricted)
}

func TestMemoryStore_CustomDefault(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s := NewMemoryStore(WithClock(clock.Now), WithDefaultRestriction(5*time.Minute))

	require.NoError(t, s.SetRestricted(ctx, "x", -1))
	clock.Advance(5*time.Minute + time.Second)
	restricted, _ := s.IsRestricted(ctx, "x")
	assert.False(t, restricted)
}

func TestMemoryStore_ClearAndIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.SetRestricted(ctx, "a", time.Hour))
	require.NoError(t, s.SetRestricted(ctx, "b", time.Hour))
	require.NoError(t, s.ClearRestriction(ctx, "a"))

	ra, _ := s.IsRestricted(ctx, "a")
	rb, _ := s.IsRestricted(ctx, "b")
	assert.False(t, ra)
	assert.True(t, rb)

	// Clearing an unknown provider is a no-op.
	assert.NoError(t, s.ClearRestriction(ctx, "never-set"))
}

func TestMemoryStore_RestrictionsDropsExpired(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s := NewMemoryStore(WithClock(clock.Now))

	require.NoError(t, s.SetRestricted(ctx, "short", time.Second))
	require.NoError(t, s.SetRestricted(ctx, "long", time.Hour))
	clock.Advance(2 * time.Second)

	all, err := s.Restrictions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Contains(t, all, "long")
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.SetRestricted(ctx, "p", time.Minute)
			_, _ = s.IsRestricted(ctx, "p")
			if i%5 == 0 {
				_ = s.ClearRestriction(ctx, "p")
			}
		}(i)
	}
	wg.Wait()
}
