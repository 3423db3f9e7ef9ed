package jobs

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/provider"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/internal/validate"
)

// excludedHosts are never prospects themselves: marketplaces, directories
// and social networks.
var excludedHosts = []string{
	"google.com", "youtube.com", "wikipedia.org", "amazon.com", "reddit.com",
	"yelp.com", "yellowpages.com", "angi.com", "thumbtack.com", "bbb.org", "tripadvisor.com",
	"facebook.com", "instagram.com", "linkedin.com", "tiktok.com", "x.com", "twitter.com", "pinterest.com",
}

func excludedDomain(domain string) bool {
	for _, h := range excludedHosts {
		if domain == h || strings.HasSuffix(domain, "."+h) {
			return true
		}
	}
	return false
}

// queryOps provides selection for steps whose items are search queries.
type queryOps struct{}

func (queryOps) targets(_ context.Context, params model.JobParams) ([]item, error) {
	seen := make(map[string]bool, len(params.Queries))
	out := make([]item, 0, len(params.Queries))
	for _, q := range params.Queries {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item{query: q})
	}
	return out, nil
}

func (queryOps) record(_ context.Context, it item, msg string, deferred bool) {
	zap.L().Info("jobs: query not processed",
		zap.String("query", it.query), zap.String("reason", msg), zap.Bool("deferred", deferred))
}

// discoveryStep turns SERP results into website prospects. Each created
// prospect counts as a success; results already known are skipped and a
// query yielding nothing new counts as no result.
type discoveryStep struct {
	queryOps
	st     store.Store
	search provider.Discoverer
	opts   provider.SearchOptions
}

func newDiscoveryStep(st store.Store, d provider.Discoverer, params model.JobParams, o Options) *discoveryStep {
	loc := params.LocationCode
	if loc == 0 {
		loc = o.LocationCode
	}
	return &discoveryStep{
		st:     st,
		search: d,
		opts:   provider.SearchOptions{LocationCode: loc, Limit: params.Limit},
	}
}

func (s *discoveryStep) gate() string { return s.search.Name() }

func (s *discoveryStep) execute(ctx context.Context, it item) (tally, error) {
	results, err := s.search.Search(ctx, it.query, s.opts)
	if err != nil {
		return tally{}, err
	}

	var t tally
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		domain, ok := validate.NormalizeDomain(r.URL)
		if !ok || excludedDomain(domain) || seen[domain] {
			continue
		}
		seen[domain] = true

		p := prospectFromResult(model.NewWebsiteProspect(domain), r)
		created, err := s.st.CreateProspect(ctx, p)
		if err != nil {
			return t, err
		}
		if created {
			t.succeeded++
		} else {
			t.skipped++
		}
	}
	if t.succeeded == 0 && t.skipped == 0 {
		return noResult, nil
	}
	return t, nil
}

// prospectFromResult copies page context and SERP scoring onto p.
func prospectFromResult(p *model.Prospect, r provider.SearchResult) *model.Prospect {
	p.AdvanceDiscovery(model.DiscoveryDiscovered)
	p.PageTitle = r.Title
	p.PageURL = r.URL
	p.Snippet = r.Snippet
	if len(r.Raw) > 0 && json.Valid(r.Raw) {
		p.RawPayload = r.Raw
	}
	p.SERPIntent = r.Intent
	p.SERPConfidence = r.Confidence
	if len(r.Signals) > 0 {
		p.SERPSignals = r.Signals
	}
	p.DAEst = r.DAEst
	score := ScoreResult(r)
	p.Score = &score
	return p
}

// ScoreResult rates a search hit in [0,1] from its rank and intent.
// Commercial pages near the top score highest; directories lowest.
func ScoreResult(r provider.SearchResult) float64 {
	rank := 0.0
	if r.Rank > 0 {
		rank = 1.0 / (1.0 + float64(r.Rank-1)/10.0)
	}
	conf := 0.5
	if r.Confidence != nil {
		conf = *r.Confidence
	}
	intent := 0.5
	switch r.Intent {
	case provider.IntentCommercial:
		intent = 0.5 + conf/2
	case provider.IntentInformational:
		intent = 0.5 - conf/4
	case provider.IntentDirectory:
		intent = 0.5 - conf/2
	}
	return 0.6*intent + 0.4*rank
}

// platformHosts maps a social platform to its canonical host.
var platformHosts = map[model.Platform]string{
	model.PlatformLinkedIn:  "linkedin.com",
	model.PlatformInstagram: "instagram.com",
	model.PlatformFacebook:  "facebook.com",
	model.PlatformTikTok:    "tiktok.com",
}

// reservedPaths are first path segments that are not profiles.
var reservedPaths = map[model.Platform]map[string]bool{
	model.PlatformInstagram: {"p": true, "reel": true, "reels": true, "explore": true, "stories": true, "accounts": true},
	model.PlatformFacebook:  {"groups": true, "events": true, "watch": true, "marketplace": true, "photo.php": true, "story.php": true, "sharer": true, "login": true},
	model.PlatformTikTok:    {"discover": true, "tag": true, "music": true},
}

// ParseProfile extracts the canonical profile URL and username from a
// search hit on platform. Posts, tags and other non-profile pages are
// rejected.
func ParseProfile(platform model.Platform, rawURL string) (string, string, bool) {
	host, ok := platformHosts[platform]
	if !ok {
		return "", "", false
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return "", "", false
	}
	h := strings.ToLower(u.Hostname())
	if h != host && !strings.HasSuffix(h, "."+host) {
		return "", "", false
	}

	segs := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segs) == 0 {
		return "", "", false
	}

	var path []string
	switch platform {
	case model.PlatformLinkedIn:
		if len(segs) < 2 || (segs[0] != "in" && segs[0] != "company") {
			return "", "", false
		}
		path = segs[:2]
	case model.PlatformTikTok:
		if !strings.HasPrefix(segs[0], "@") || len(segs[0]) < 2 {
			return "", "", false
		}
		path = segs[:1]
	default:
		if reservedPaths[platform][strings.ToLower(segs[0])] {
			return "", "", false
		}
		path = segs[:1]
	}

	username := strings.TrimPrefix(path[len(path)-1], "@")
	profile := "https://www." + host + "/" + strings.Join(path, "/")
	return strings.ToLower(profile), strings.ToLower(username), true
}

// socialDiscoveryStep turns site-restricted search results into social
// prospects.
type socialDiscoveryStep struct {
	queryOps
	st       store.Store
	search   provider.Discoverer
	platform model.Platform
	opts     provider.SearchOptions
}

func newSocialDiscoveryStep(st store.Store, d provider.Discoverer, params model.JobParams) *socialDiscoveryStep {
	return &socialDiscoveryStep{
		st:       st,
		search:   d,
		platform: params.Platform,
		opts:     provider.SearchOptions{Limit: params.Limit, Site: platformHosts[params.Platform]},
	}
}

func (s *socialDiscoveryStep) gate() string { return s.search.Name() }

func (s *socialDiscoveryStep) execute(ctx context.Context, it item) (tally, error) {
	results, err := s.search.Search(ctx, it.query, s.opts)
	if err != nil {
		return tally{}, err
	}

	var t tally
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		profile, username, ok := ParseProfile(s.platform, r.URL)
		if !ok || seen[profile] {
			continue
		}
		seen[profile] = true

		p := prospectFromResult(model.NewSocialProspect(s.platform, profile, username), r)
		created, err := s.st.CreateProspect(ctx, p)
		if err != nil {
			return t, err
		}
		if created {
			t.succeeded++
		} else {
			t.skipped++
		}
	}
	if t.succeeded == 0 && t.skipped == 0 {
		return noResult, nil
	}
	return t, nil
}
