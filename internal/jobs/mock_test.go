package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/provider"
	"github.com/sells-group/outreach-cli/internal/providerstate"
	"github.com/sells-group/outreach-cli/internal/store"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

type testEnv struct {
	st       *store.SQLiteStore
	state    *providerstate.MemoryStore
	registry *provider.Registry
	opts     Options
}

func newTestEnv(t *testing.T) *testEnv {
	return &testEnv{
		st:       newTestStore(t),
		state:    providerstate.NewMemoryStore(providerstate.WithClock(func() time.Time { return testNow })),
		registry: provider.NewRegistry(),
		opts:     Options{Now: func() time.Time { return testNow }},
	}
}

func (e *testEnv) runner() *Runner {
	return NewRunner(e.st, e.state, e.registry, e.opts)
}

// run creates a job and runs it to completion.
func (e *testEnv) run(t *testing.T, jt model.JobType, params model.JobParams) *model.Job {
	t.Helper()
	ctx := context.Background()
	job, err := e.st.CreateJob(ctx, jt, params)
	require.NoError(t, err)
	done, err := e.runner().Run(ctx, job.ID)
	require.NoError(t, err)
	return done
}

// seed inserts a website prospect after applying mutate.
func (e *testEnv) seed(t *testing.T, domain string, mutate func(p *model.Prospect)) *model.Prospect {
	t.Helper()
	p := model.NewWebsiteProspect(domain)
	p.AdvanceDiscovery(model.DiscoveryDiscovered)
	if mutate != nil {
		mutate(p)
	}
	created, err := e.st.CreateProspect(context.Background(), p)
	require.NoError(t, err)
	require.True(t, created)
	return p
}

func (e *testEnv) reload(t *testing.T, id string) *model.Prospect {
	t.Helper()
	p, err := e.st.GetProspect(context.Background(), id)
	require.NoError(t, err)
	return p
}

func withEmail(addr string) func(p *model.Prospect) {
	return func(p *model.Prospect) { p.ContactEmail = &addr }
}

func verified(addr string) func(p *model.Prospect) {
	return func(p *model.Prospect) {
		p.ContactEmail = &addr
		p.ScrapeStatus = model.ScrapeScraped
		p.VerificationStatus = model.VerificationVerified
	}
}

func drafted(addr string) func(p *model.Prospect) {
	return func(p *model.Prospect) {
		verified(addr)(p)
		p.DraftStatus = model.DraftDrafted
		p.DraftSubject = "Quick idea"
		p.DraftBody = "Hello there"
	}
}

// --- fake providers ---

type fakeDiscoverer struct {
	name    string
	results map[string][]provider.SearchResult
	err     error
	mu      sync.Mutex
	opts    []provider.SearchOptions
}

func (f *fakeDiscoverer) Name() string { return f.name }

func (f *fakeDiscoverer) Search(_ context.Context, q string, opts provider.SearchOptions) ([]provider.SearchResult, error) {
	f.mu.Lock()
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.results[q], nil
}

type fakeFinder struct {
	name   string
	emails map[string]string
	errs   map[string]error
	calls  []string
}

func (f *fakeFinder) Name() string { return f.name }

func (f *fakeFinder) FindEmail(_ context.Context, domain string) (string, error) {
	f.calls = append(f.calls, domain)
	if err := f.errs[domain]; err != nil {
		return "", err
	}
	return f.emails[domain], nil
}

type fakeVerifier struct {
	verdicts map[string]*provider.Verification
	err      error
	calls    []string
}

func (f *fakeVerifier) Name() string { return provider.Hunter }

func (f *fakeVerifier) Verify(_ context.Context, email string) (*provider.Verification, error) {
	f.calls = append(f.calls, email)
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.verdicts[email]; ok {
		return v, nil
	}
	return &provider.Verification{Deliverable: true, Status: "deliverable"}, nil
}

type fakeComposer struct {
	name string
	// fn overrides the default draft when set.
	fn   func(req provider.DraftRequest) (*provider.Draft, error)
	mu   sync.Mutex
	reqs []provider.DraftRequest
}

func (f *fakeComposer) Name() string {
	if f.name == "" {
		return provider.Anthropic
	}
	return f.name
}

func (f *fakeComposer) Compose(_ context.Context, req provider.DraftRequest) (*provider.Draft, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(req)
	}
	return &provider.Draft{Subject: "Idea for " + req.Domain, Body: "Hi " + req.Domain}, nil
}

type fakeSender struct {
	err  error
	sent []provider.Message
}

func (f *fakeSender) Name() string { return provider.Gmail }

func (f *fakeSender) Send(_ context.Context, msg provider.Message) (*provider.Delivery, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, msg)
	thread := msg.ThreadID
	if thread == "" {
		thread = "thread-" + msg.To
	}
	return &provider.Delivery{MessageID: "msg-" + msg.To, ThreadID: thread}, nil
}

// conflictStore fails the first n prospect updates with a version conflict.
type conflictStore struct {
	store.Store
	n int
}

func (s *conflictStore) UpdateProspect(ctx context.Context, p *model.Prospect) error {
	if s.n > 0 {
		s.n--
		return store.ErrConflict
	}
	return s.Store.UpdateProspect(ctx, p)
}

// startFailStore fails StartJob for one job id.
type startFailStore struct {
	store.Store
	failID string
}

func (s *startFailStore) StartJob(ctx context.Context, id string) (*model.Job, error) {
	if id == s.failID {
		return nil, errors.New("connection reset")
	}
	return s.Store.StartJob(ctx, id)
}
