// Package provider defines the contracts of the external services the
// pipeline steps call, and the registry that resolves them by name.
package provider

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

// Provider names. They double as provider-state restriction keys.
const (
	DataForSEO   = "dataforseo"
	GoogleSearch = "google_search"
	Website      = "website"
	Hunter       = "hunter"
	Anthropic    = "anthropic"
	Gemini       = "gemini"
	Gmail        = "gmail"
)

// Provider is implemented by every external service adapter.
type Provider interface {
	// Name returns the provider identifier.
	Name() string
}

// SearchOptions narrows a SERP query. Site restricts results to one host.
type SearchOptions struct {
	LocationCode int
	Limit        int
	Site         string
}

// SearchResult is one organic search hit.
type SearchResult struct {
	URL     string
	Title   string
	Snippet string
	Rank    int
	// Raw is the provider's item payload, stored opaque on the prospect.
	Raw json.RawMessage
	// Intent classification, when the provider supplies it.
	Intent     string
	Confidence *float64
	Signals    json.RawMessage
	DAEst      *int
}

// Discoverer runs search queries.
type Discoverer interface {
	Provider
	Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error)
}

// EmailFinder looks up a contact address for a domain. An empty address
// with a nil error means none was found.
type EmailFinder interface {
	Provider
	FindEmail(ctx context.Context, domain string) (string, error)
}

// Verification is the outcome of an email deliverability check.
type Verification struct {
	Deliverable bool
	Status      string
	Score       int
	Reason      string
}

// Verifier checks whether an address accepts mail.
type Verifier interface {
	Provider
	Verify(ctx context.Context, email string) (*Verification, error)
}

// DraftRequest carries the page context an outreach message is written
// from. FollowUp > 0 asks for the n-th follow-up to PreviousBody.
type DraftRequest struct {
	Domain       string
	PageTitle    string
	PageURL      string
	Snippet      string
	FollowUp     int
	PreviousBody string
}

// Draft is a composed message.
type Draft struct {
	Subject string
	Body    string
}

// Composer writes outreach messages.
type Composer interface {
	Provider
	Compose(ctx context.Context, req DraftRequest) (*Draft, error)
}

// Message is an outbound email. ThreadID continues an existing thread.
type Message struct {
	To       string
	Subject  string
	Body     string
	ThreadID string
}

// Delivery identifies a sent message.
type Delivery struct {
	MessageID string
	ThreadID  string
}

// Sender delivers outreach messages.
type Sender interface {
	Provider
	Send(ctx context.Context, msg Message) (*Delivery, error)
}

// Registry manages configured providers. Lookups of a missing provider
// return a not-configured ProviderError.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry, replacing any provider of the
// same name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name, or nil if not found.
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// List returns all registered names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup[T Provider](r *Registry, name string) (T, error) {
	var zero T
	p, ok := r.Get(name).(T)
	if !ok {
		return zero, resilience.NotConfigured(name)
	}
	return p, nil
}

// Discoverer returns the named search provider.
func (r *Registry) Discoverer(name string) (Discoverer, error) {
	return lookup[Discoverer](r, name)
}

// EmailFinder returns the named email finder.
func (r *Registry) EmailFinder(name string) (EmailFinder, error) {
	return lookup[EmailFinder](r, name)
}

// Verifier returns the named verifier.
func (r *Registry) Verifier(name string) (Verifier, error) {
	return lookup[Verifier](r, name)
}

// Composer returns the named composer.
func (r *Registry) Composer(name string) (Composer, error) {
	return lookup[Composer](r, name)
}

// Sender returns the named sender.
func (r *Registry) Sender(name string) (Sender, error) {
	return lookup[Sender](r, name)
}
