package model

import (
	"encoding/json"
	"strings"
	"time"
)

// MaxErrorLength caps error text persisted on prospects and jobs.
const MaxErrorLength = 500

// Prospect is a candidate outreach target tracked through the pipeline.
type Prospect struct {
	ID             string     `json:"id"`
	SourceType     SourceType `json:"source_type"`
	SourcePlatform Platform   `json:"source_platform,omitempty"`
	Domain         string     `json:"domain,omitempty"`
	ProfileURL     string     `json:"profile_url,omitempty"`
	Username       string     `json:"username,omitempty"`
	ContactEmail   *string    `json:"contact_email,omitempty"`
	ContactMethod  string     `json:"contact_method,omitempty"`

	DiscoveryStatus    DiscoveryStatus    `json:"discovery_status"`
	ScrapeStatus       ScrapeStatus       `json:"scrape_status"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	DraftStatus        DraftStatus        `json:"draft_status"`
	SendStatus         SendStatus         `json:"send_status"`
	Stage              Stage              `json:"stage"`

	DraftSubject  string     `json:"draft_subject,omitempty"`
	DraftBody     string     `json:"draft_body,omitempty"`
	FinalBody     *string    `json:"final_body,omitempty"`
	ThreadID      *string    `json:"thread_id,omitempty"`
	SequenceIndex *int       `json:"sequence_index,omitempty"`
	FollowupsSent int        `json:"followups_sent"`
	LastSent      *time.Time `json:"last_sent,omitempty"`

	PageTitle string `json:"page_title,omitempty"`
	PageURL   string `json:"page_url,omitempty"`
	Snippet   string `json:"snippet,omitempty"`

	RawPayload     json.RawMessage `json:"raw_payload,omitempty"`
	Score          *float64        `json:"score,omitempty"`
	DAEst          *int            `json:"da_est,omitempty"`
	SERPIntent     string          `json:"serp_intent,omitempty"`
	SERPConfidence *float64        `json:"serp_confidence,omitempty"`
	SERPSignals    json.RawMessage `json:"serp_signals,omitempty"`

	LastError string    `json:"last_error,omitempty"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWebsiteProspect returns a website prospect with every status at its default.
func NewWebsiteProspect(domain string) *Prospect {
	p := &Prospect{SourceType: SourceWebsite, SourcePlatform: PlatformNone, Domain: domain}
	p.ApplyDefaults()
	return p
}

// NewSocialProspect returns a social prospect with every status at its default.
func NewSocialProspect(platform Platform, profileURL, username string) *Prospect {
	p := &Prospect{
		SourceType:     SourceSocial,
		SourcePlatform: platform,
		ProfileURL:     profileURL,
		Username:       username,
	}
	p.ApplyDefaults()
	return p
}

// ApplyDefaults fills empty status fields with their initial values. It
// reports whether anything changed.
func (p *Prospect) ApplyDefaults() bool {
	changed := false
	if p.SourceType == "" {
		p.SourceType, changed = SourceWebsite, true
	}
	if p.SourcePlatform == "" {
		p.SourcePlatform, changed = PlatformNone, true
	}
	if p.DiscoveryStatus == "" {
		p.DiscoveryStatus, changed = DiscoveryNew, true
	}
	if p.ScrapeStatus == "" {
		p.ScrapeStatus, changed = ScrapeDiscovered, true
	}
	if p.VerificationStatus == "" {
		p.VerificationStatus, changed = VerificationUnverified, true
	}
	if p.DraftStatus == "" {
		p.DraftStatus, changed = DraftPending, true
	}
	if p.SendStatus == "" {
		p.SendStatus, changed = SendPending, true
	}
	return changed
}

// Email returns the contact email or "" when unset.
func (p *Prospect) Email() string {
	if p.ContactEmail == nil {
		return ""
	}
	return *p.ContactEmail
}

// HasEmail reports whether a non-empty contact email is set.
func (p *Prospect) HasEmail() bool {
	return strings.TrimSpace(p.Email()) != ""
}

// Thread returns the outreach thread id or "".
func (p *Prospect) Thread() string {
	if p.ThreadID == nil {
		return ""
	}
	return *p.ThreadID
}

// Label is a human-readable identifier for logs and tables.
func (p *Prospect) Label() string {
	switch {
	case p.Domain != "":
		return p.Domain
	case p.ProfileURL != "":
		return p.ProfileURL
	case p.Username != "":
		return p.Username
	}
	return p.ID
}

// AdvanceDiscovery moves the discovery axis forward to s. Earlier statuses
// are ignored.
func (p *Prospect) AdvanceDiscovery(s DiscoveryStatus) {
	if s.rank() > p.DiscoveryStatus.rank() {
		p.DiscoveryStatus = s
	}
}

// TruncateError shortens msg to MaxErrorLength runes.
func TruncateError(msg string) string {
	r := []rune(strings.TrimSpace(msg))
	if len(r) <= MaxErrorLength {
		return string(r)
	}
	return string(r[:MaxErrorLength-3]) + "..."
}

// ProspectFilter selects prospects for listing and job targeting.
type ProspectFilter struct {
	SourceType         SourceType
	Stage              Stage
	ScrapeStatus       ScrapeStatus
	VerificationStatus []VerificationStatus
	DraftStatus        DraftStatus
	SendStatus         SendStatus
	HasEmail           *bool
	Limit              int
}
