// Package stage derives the canonical pipeline stage of a prospect and the
// pipeline steps available to the operator.
package stage

import (
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Resolve maps the five status axes of p to exactly one stage. The first
// matching rule wins:
//
//	send SENT                          -> SENT
//	draft DRAFTED                      -> DRAFTED
//	verification VERIFIED              -> VERIFIED
//	scrape SCRAPED or ENRICHED         -> SCRAPED
//	discovery DISCOVERED or NEW        -> DISCOVERED
//	otherwise                          -> UNKNOWN
func Resolve(p *model.Prospect) model.Stage {
	switch {
	case p.SendStatus == model.SendSent:
		return model.StageSent
	case p.DraftStatus == model.DraftDrafted:
		return model.StageDrafted
	case p.VerificationStatus == model.VerificationVerified:
		return model.StageVerified
	case p.ScrapeStatus == model.ScrapeScraped || p.ScrapeStatus == model.ScrapeEnriched:
		return model.StageScraped
	case p.DiscoveryStatus == model.DiscoveryDiscovered || p.DiscoveryStatus == model.DiscoveryNew:
		return model.StageDiscovered
	}
	return model.StageUnknown
}

// ResolveChecked is Resolve with a data-integrity warning when no rule
// matches.
func ResolveChecked(p *model.Prospect) model.Stage {
	s := Resolve(p)
	if s == model.StageUnknown {
		zap.L().Warn("stage: prospect resolves to unknown stage",
			zap.String("prospect_id", p.ID),
			zap.String("discovery_status", string(p.DiscoveryStatus)),
			zap.String("scrape_status", string(p.ScrapeStatus)),
			zap.String("verification_status", string(p.VerificationStatus)),
			zap.String("draft_status", string(p.DraftStatus)),
			zap.String("send_status", string(p.SendStatus)),
		)
	}
	return s
}
