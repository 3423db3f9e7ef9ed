package providerstate

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps restrictions in process memory. Restrictions are lost
// on restart and are not shared between processes, so concurrent CLI
// invocations may each hit a throttled provider once.
type MemoryStore struct {
	mu    sync.Mutex
	until map[string]time.Time
	opts  options
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{until: make(map[string]time.Time), opts: buildOptions(opts)}
}

func (s *MemoryStore) SetRestricted(_ context.Context, provider string, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.until[provider] = s.opts.now().Add(s.opts.ttl(d))
	return nil
}

func (s *MemoryStore) IsRestricted(_ context.Context, provider string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.until[provider]
	if !ok {
		return false, nil
	}
	if !s.opts.now().Before(until) {
		delete(s.until, provider)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) ClearRestriction(_ context.Context, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.until, provider)
	return nil
}

func (s *MemoryStore) Restrictions(_ context.Context) (map[string]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.opts.now()
	out := make(map[string]time.Time, len(s.until))
	for p, until := range s.until {
		if !now.Before(until) {
			delete(s.until, p)
			continue
		}
		out[p] = until
	}
	return out, nil
}
