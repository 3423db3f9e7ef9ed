// Package dataforseo is a client for the DataForSEO SERP API.
package dataforseo

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://api.dataforseo.com"
	providerName   = "dataforseo"
	organicPath    = "/v3/serp/google/organic/live/advanced"
)

// Task status codes with a meaning beyond "failed".
const (
	statusOK            = 20000
	statusAuthFailed    = 40100
	statusPaymentNeeded = 40200
	statusRateLimited   = 40202
)

// Client performs SERP lookups.
type Client interface {
	OrganicSearch(ctx context.Context, req SearchRequest) ([]OrganicItem, error)
}

// SearchRequest is one live organic SERP task.
type SearchRequest struct {
	Keyword      string `json:"keyword"`
	LocationCode int    `json:"location_code,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	Depth        int    `json:"depth,omitempty"`
}

// OrganicItem is a single SERP entry. Raw holds the item as returned.
type OrganicItem struct {
	Type         string          `json:"type"`
	RankGroup    int             `json:"rank_group"`
	RankAbsolute int             `json:"rank_absolute"`
	Domain       string          `json:"domain"`
	Title        string          `json:"title"`
	URL          string          `json:"url"`
	Description  string          `json:"description"`
	Raw          json.RawMessage `json:"-"`
}

type apiResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Tasks         []struct {
		StatusCode    int    `json:"status_code"`
		StatusMessage string `json:"status_message"`
		Result        []struct {
			Keyword string            `json:"keyword"`
			Items   []json.RawMessage `json:"items"`
		} `json:"result"`
	} `json:"tasks"`
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

// NewClient creates a DataForSEO client authenticating with login and
// password.
func NewClient(login, password string, opts ...Option) Client {
	rc := resty.New().
		SetBaseURL(defaultBaseURL).
		SetBasicAuth(login, password).
		SetHeader("Content-Type", "application/json").
		SetTimeout(60 * time.Second)

	c := &httpClient{rc: rc, retry: resilience.DefaultRetryConfig()}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) OrganicSearch(ctx context.Context, req SearchRequest) ([]OrganicItem, error) {
	return resilience.Call(ctx, c.retry, providerName, "organic_search", func(ctx context.Context) ([]OrganicItem, error) {
		return c.organicSearch(ctx, req)
	})
}

func (c *httpClient) organicSearch(ctx context.Context, req SearchRequest) ([]OrganicItem, error) {
	var out apiResponse
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody([]SearchRequest{req}).
		SetResult(&out).
		Post(organicPath)
	if err != nil {
		return nil, eris.Wrap(err, "dataforseo: send request")
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, resilience.FromHTTPStatus(providerName, resp.StatusCode(), resp.Header(), resp.String())
	}
	if err := taskError(out.StatusCode, out.StatusMessage); err != nil {
		return nil, err
	}
	if len(out.Tasks) == 0 {
		return nil, eris.New("dataforseo: response has no tasks")
	}

	task := out.Tasks[0]
	if err := taskError(task.StatusCode, task.StatusMessage); err != nil {
		return nil, err
	}

	var items []OrganicItem
	for _, result := range task.Result {
		for _, raw := range result.Items {
			var item OrganicItem
			if err := json.Unmarshal(raw, &item); err != nil {
				return nil, eris.Wrap(err, "dataforseo: unmarshal item")
			}
			if item.Type != "organic" {
				continue
			}
			item.Raw = raw
			items = append(items, item)
		}
	}
	return items, nil
}

// taskError maps DataForSEO's in-body status codes onto provider errors.
func taskError(code int, msg string) error {
	if code == statusOK || code == 0 {
		return nil
	}
	detail := eris.New(strconv.Itoa(code) + " " + msg)
	switch {
	case code == statusRateLimited:
		return resilience.RateLimited(providerName, 0, detail)
	case code >= statusAuthFailed && code < statusPaymentNeeded:
		return resilience.NewProviderError(providerName, resilience.KindUnauthorized, detail)
	case code >= statusPaymentNeeded && code < statusRateLimited:
		return resilience.NewProviderError(providerName, resilience.KindForbidden, detail)
	case code >= 50000:
		return &resilience.ProviderError{Provider: providerName, Kind: resilience.KindUnknown, StatusCode: http.StatusInternalServerError, Err: detail}
	}
	return resilience.NewProviderError(providerName, resilience.KindUnknown, detail)
}
