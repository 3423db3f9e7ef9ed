// Package google wraps the Programmable Search (Custom Search JSON) API.
package google

import (
	"context"
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

const (
	providerName = "google_search"
	// maxNum is the per-request page size cap of the API.
	maxNum = 10
)

// Client performs Custom Search queries against one search engine.
type Client interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// SearchRequest is one search query. SiteSearch restricts results to a
// host such as linkedin.com.
type SearchRequest struct {
	Query      string
	SiteSearch string
	Num        int
	Start      int
}

// SearchResponse holds the returned results in rank order.
type SearchResponse struct {
	Items []Item
}

// Item is a single search result.
type Item struct {
	Title       string
	Link        string
	Snippet     string
	DisplayLink string
}

// Option configures the client.
type Option func(*settings)

type settings struct {
	clientOpts []option.ClientOption
	retry      resilience.RetryConfig
}

// WithBaseURL overrides the default API endpoint.
func WithBaseURL(url string) Option {
	return func(s *settings) {
		s.clientOpts = append(s.clientOpts, option.WithEndpoint(url))
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) {
		s.clientOpts = append(s.clientOpts, option.WithHTTPClient(hc))
	}
}

// WithRetry sets the in-call retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(s *settings) {
		s.retry = cfg
	}
}

type apiClient struct {
	svc      *customsearch.Service
	engineID string
	retry    resilience.RetryConfig
}

// NewClient creates a Custom Search client for the given engine.
func NewClient(ctx context.Context, apiKey, engineID string, opts ...Option) (Client, error) {
	if apiKey == "" || engineID == "" {
		return nil, resilience.NotConfigured(providerName)
	}
	s := &settings{retry: resilience.DefaultRetryConfig()}
	for _, o := range opts {
		o(s)
	}

	svc, err := customsearch.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, s.clientOpts...)...)
	if err != nil {
		return nil, eris.Wrap(err, "google: create customsearch service")
	}
	return &apiClient{svc: svc, engineID: engineID, retry: s.retry}, nil
}

func (c *apiClient) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	return resilience.Call(ctx, c.retry, providerName, "cse_list", func(ctx context.Context) (*SearchResponse, error) {
		call := c.svc.Cse.List().Cx(c.engineID).Q(req.Query)
		if req.Num > 0 {
			call = call.Num(int64(min(req.Num, maxNum)))
		}
		if req.Start > 0 {
			call = call.Start(int64(req.Start))
		}
		if req.SiteSearch != "" {
			call = call.SiteSearch(req.SiteSearch).SiteSearchFilter("i")
		}

		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, eris.Wrapf(classify(err), "google: search %q", req.Query)
		}

		out := &SearchResponse{Items: make([]Item, 0, len(resp.Items))}
		for _, it := range resp.Items {
			out.Items = append(out.Items, Item{
				Title:       it.Title,
				Link:        it.Link,
				Snippet:     it.Snippet,
				DisplayLink: it.DisplayLink,
			})
		}
		return out, nil
	})
}

func classify(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	return resilience.FromHTTPStatus(providerName, gerr.Code, gerr.Header, gerr.Message)
}
