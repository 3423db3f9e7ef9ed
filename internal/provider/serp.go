package provider

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/pkg/dataforseo"
	"github.com/sells-group/outreach-cli/pkg/google"
)

// DataForSEODiscoverer adapts the DataForSEO organic SERP API to Discoverer.
type DataForSEODiscoverer struct {
	client       dataforseo.Client
	languageCode string
	locationCode int
	depth        int
}

// NewDataForSEODiscoverer wraps client. locationCode and depth are used when a
// query does not set them.
func NewDataForSEODiscoverer(client dataforseo.Client, languageCode string, locationCode, depth int) *DataForSEODiscoverer {
	return &DataForSEODiscoverer{client: client, languageCode: languageCode, locationCode: locationCode, depth: depth}
}

func (d *DataForSEODiscoverer) Name() string { return DataForSEO }

func (d *DataForSEODiscoverer) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	req := dataforseo.SearchRequest{
		Keyword:      siteQuery(query, opts.Site),
		LocationCode: d.locationCode,
		LanguageCode: d.languageCode,
		Depth:        d.depth,
	}
	if opts.LocationCode > 0 {
		req.LocationCode = opts.LocationCode
	}

	items, err := d.client.OrganicSearch(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make([]SearchResult, 0, len(items))
	for _, it := range items {
		r := SearchResult{
			URL:     it.URL,
			Title:   it.Title,
			Snippet: it.Description,
			Rank:    it.RankAbsolute,
			Raw:     it.Raw,
		}
		ClassifyIntent(&r)
		out = append(out, r)
	}
	return limitResults(out, opts.Limit), nil
}

// GoogleDiscoverer adapts Google Programmable Search to Discoverer.
type GoogleDiscoverer struct {
	client google.Client
}

// NewGoogleDiscoverer wraps client.
func NewGoogleDiscoverer(client google.Client) *GoogleDiscoverer {
	return &GoogleDiscoverer{client: client}
}

func (g *GoogleDiscoverer) Name() string { return GoogleSearch }

func (g *GoogleDiscoverer) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	resp, err := g.client.Search(ctx, google.SearchRequest{
		Query:      query,
		SiteSearch: opts.Site,
		Num:        opts.Limit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]SearchResult, 0, len(resp.Items))
	for i, it := range resp.Items {
		raw, err := json.Marshal(it)
		if err != nil {
			return nil, eris.Wrap(err, "provider: marshal search item")
		}
		r := SearchResult{
			URL:     it.Link,
			Title:   it.Title,
			Snippet: it.Snippet,
			Rank:    i + 1,
			Raw:     raw,
		}
		ClassifyIntent(&r)
		out = append(out, r)
	}
	return limitResults(out, opts.Limit), nil
}

func siteQuery(query, site string) string {
	if site == "" {
		return query
	}
	return "site:" + site + " " + strings.TrimSpace(query)
}

func limitResults(rs []SearchResult, limit int) []SearchResult {
	if limit > 0 && len(rs) > limit {
		return rs[:limit]
	}
	return rs
}
