// Package hunter is a client for the Hunter.io domain search and email
// verifier APIs.
package hunter

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://api.hunter.io/v2"
	providerName   = "hunter"
)

// Client performs Hunter.io lookups.
type Client interface {
	DomainSearch(ctx context.Context, domain string) (*DomainSearchResult, error)
	VerifyEmail(ctx context.Context, email string) (*VerifyResult, error)
}

// DomainSearchResult lists the addresses Hunter knows for a domain.
type DomainSearchResult struct {
	Domain       string  `json:"domain"`
	Organization string  `json:"organization"`
	Pattern      string  `json:"pattern"`
	Emails       []Email `json:"emails"`
}

// Email is one address from a domain search.
type Email struct {
	Value      string `json:"value"`
	Type       string `json:"type"`
	Confidence int    `json:"confidence"`
}

// VerifyResult is the email verifier verdict. Result is one of
// deliverable, undeliverable or risky.
type VerifyResult struct {
	Email  string `json:"email"`
	Status string `json:"status"`
	Result string `json:"result"`
	Score  int    `json:"score"`
}

type envelope[T any] struct {
	Data T `json:"data"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.rc.SetBaseURL(url)
	}
}

// WithRetry sets the in-call retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	rc    *resty.Client
	retry resilience.RetryConfig
}

// NewClient creates a Hunter client.
func NewClient(apiKey string, opts ...Option) Client {
	rc := resty.New().
		SetBaseURL(defaultBaseURL).
		SetQueryParam("api_key", apiKey).
		SetTimeout(30 * time.Second)

	c := &httpClient{rc: rc, retry: resilience.DefaultRetryConfig()}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) DomainSearch(ctx context.Context, domain string) (*DomainSearchResult, error) {
	return resilience.Call(ctx, c.retry, providerName, "domain_search", func(ctx context.Context) (*DomainSearchResult, error) {
		var out envelope[DomainSearchResult]
		if err := c.get(ctx, "/domain-search", map[string]string{"domain": domain}, &out); err != nil {
			return nil, eris.Wrapf(err, "hunter: domain search %s", domain)
		}
		return &out.Data, nil
	})
}

func (c *httpClient) VerifyEmail(ctx context.Context, email string) (*VerifyResult, error) {
	return resilience.Call(ctx, c.retry, providerName, "email_verifier", func(ctx context.Context) (*VerifyResult, error) {
		var out envelope[VerifyResult]
		if err := c.get(ctx, "/email-verifier", map[string]string{"email": email}, &out); err != nil {
			return nil, eris.Wrap(err, "hunter: verify email")
		}
		return &out.Data, nil
	})
}

func (c *httpClient) get(ctx context.Context, path string, params map[string]string, result any) error {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(result).
		Get(path)
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusAccepted:
		// The verifier is still working on the address; try again.
		return resilience.NewTransientError(eris.New("verification pending"), http.StatusAccepted)
	}
	return resilience.FromHTTPStatus(providerName, resp.StatusCode(), resp.Header(), resp.String())
}
