package provider

import (
	"context"
	"strings"

	"github.com/sells-group/outreach-cli/internal/validate"
	"github.com/sells-group/outreach-cli/pkg/hunter"
)

// Hunter verifier results.
const (
	hunterDeliverable   = "deliverable"
	hunterRisky         = "risky"
	hunterUndeliverable = "undeliverable"
)

// HunterProvider adapts Hunter.io to EmailFinder and Verifier.
type HunterProvider struct {
	client      hunter.Client
	acceptRisky bool
}

// NewHunterProvider wraps client. acceptRisky treats "risky" verdicts
// (catch-all domains, webmail) as deliverable.
func NewHunterProvider(client hunter.Client, acceptRisky bool) *HunterProvider {
	return &HunterProvider{client: client, acceptRisky: acceptRisky}
}

func (h *HunterProvider) Name() string { return Hunter }

// FindEmail returns the highest-confidence plausible address Hunter knows
// for domain. Generic role addresses win ties.
func (h *HunterProvider) FindEmail(ctx context.Context, domain string) (string, error) {
	res, err := h.client.DomainSearch(ctx, domain)
	if err != nil {
		return "", err
	}

	best, bestScore := "", -1
	for _, e := range res.Emails {
		addr := strings.ToLower(strings.TrimSpace(e.Value))
		if !validate.IsPlausibleEmail(addr) {
			continue
		}
		score := e.Confidence * 2
		if e.Type == "generic" {
			score++
		}
		if score > bestScore {
			best, bestScore = addr, score
		}
	}
	return best, nil
}

func (h *HunterProvider) Verify(ctx context.Context, email string) (*Verification, error) {
	res, err := h.client.VerifyEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	v := &Verification{Status: res.Status, Score: res.Score}
	switch res.Result {
	case hunterDeliverable:
		v.Deliverable = true
	case hunterRisky:
		v.Deliverable = h.acceptRisky
		if !v.Deliverable {
			v.Reason = "hunter: risky address (" + res.Status + ")"
		}
	case hunterUndeliverable:
		v.Reason = "hunter: undeliverable (" + res.Status + ")"
	default:
		v.Reason = "hunter: unknown verdict " + res.Result
	}
	return v, nil
}
