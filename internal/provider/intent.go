package provider

import (
	"encoding/json"
	"sort"
	"strings"
)

// Search intents assigned to SERP results.
const (
	IntentCommercial    = "commercial"
	IntentInformational = "informational"
	IntentDirectory     = "directory"
)

var intentMarkers = map[string][]string{
	IntentCommercial: {
		"services", "pricing", "book now", "get a quote", "free quote", "free consultation",
		"hire", "call today", "contact us", "shop", "near you", "appointment",
	},
	IntentInformational: {
		"how to", "what is", "guide", "tips", "/blog", "wikipedia.org", "definition", "tutorial",
	},
	IntentDirectory: {
		"top 10", "best ", "reviews", "yelp.com", "yellowpages", "angi.com", "thumbtack.com",
		"bbb.org", "tripadvisor", "directory", "listings",
	},
}

// IntentSignals is the serialized evidence behind an intent verdict.
type IntentSignals struct {
	Matched map[string][]string `json:"matched"`
}

// ClassifyIntent assigns a search intent to r from keyword markers in its
// title, snippet and URL. Results without any marker keep an empty intent.
func ClassifyIntent(r *SearchResult) {
	text := strings.ToLower(r.Title + " " + r.Snippet + " " + r.URL)

	matched := make(map[string][]string)
	total := 0
	for intent, markers := range intentMarkers {
		for _, m := range markers {
			if strings.Contains(text, m) {
				matched[intent] = append(matched[intent], strings.TrimSpace(m))
				total++
			}
		}
	}
	if total == 0 {
		return
	}

	intents := make([]string, 0, len(matched))
	for k := range matched {
		intents = append(intents, k)
	}
	sort.Slice(intents, func(i, j int) bool {
		if len(matched[intents[i]]) != len(matched[intents[j]]) {
			return len(matched[intents[i]]) > len(matched[intents[j]])
		}
		return intents[i] < intents[j]
	})

	best := intents[0]
	conf := float64(len(matched[best])) / float64(total)
	r.Intent = best
	r.Confidence = &conf
	if b, err := json.Marshal(IntentSignals{Matched: matched}); err == nil {
		r.Signals = b
	}
}
