package model

// SourceType identifies where a prospect was discovered.
type SourceType string

const (
	SourceWebsite SourceType = "website"
	SourceSocial  SourceType = "social"
)

// Platform identifies the social network of a social prospect.
type Platform string

const (
	PlatformNone      Platform = "none"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformTikTok    Platform = "tiktok"
)

// DiscoveryStatus is the coarse progress marker of a prospect.
type DiscoveryStatus string

const (
	DiscoveryNew           DiscoveryStatus = "NEW"
	DiscoveryDiscovered    DiscoveryStatus = "DISCOVERED"
	DiscoveryScraped       DiscoveryStatus = "SCRAPED"
	DiscoveryVerified      DiscoveryStatus = "VERIFIED"
	DiscoveryOutreachReady DiscoveryStatus = "OUTREACH_READY"
	DiscoveryContacted     DiscoveryStatus = "CONTACTED"
)

// ScrapeStatus tracks contact enrichment.
type ScrapeStatus string

const (
	ScrapeDiscovered   ScrapeStatus = "DISCOVERED"
	ScrapeScraped      ScrapeStatus = "SCRAPED"
	ScrapeEnriched     ScrapeStatus = "ENRICHED"
	ScrapeNoEmailFound ScrapeStatus = "NO_EMAIL_FOUND"
	ScrapeFailed       ScrapeStatus = "FAILED"
)

// VerificationStatus tracks contact email verification.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "UNVERIFIED"
	VerificationPending    VerificationStatus = "PENDING"
	VerificationVerified   VerificationStatus = "VERIFIED"
	VerificationFailed     VerificationStatus = "FAILED"
)

// DraftStatus tracks outreach message drafting.
type DraftStatus string

const (
	DraftPending DraftStatus = "PENDING"
	DraftDrafted DraftStatus = "DRAFTED"
	DraftFailed  DraftStatus = "FAILED"
)

// SendStatus tracks delivery of the first outreach message.
type SendStatus string

const (
	SendPending SendStatus = "PENDING"
	SendSent    SendStatus = "SENT"
	SendFailed  SendStatus = "FAILED"
)

// Stage is the single canonical pipeline position derived from the five
// status axes.
type Stage string

const (
	StageDiscovered Stage = "DISCOVERED"
	StageScraped    Stage = "SCRAPED"
	StageVerified   Stage = "VERIFIED"
	StageDrafted    Stage = "DRAFTED"
	StageSent       Stage = "SENT"
	StageUnknown    Stage = "UNKNOWN"
)

// Step is a user-facing pipeline step that may be locked or unlocked.
type Step string

const (
	StepDiscovery Step = "discovery"
	StepReview    Step = "review"
	StepDrafting  Step = "drafting"
	StepSending   Step = "sending"
	StepFollowups Step = "followups"
)

// DiscoveryStatuses returns every discovery status in progression order.
func DiscoveryStatuses() []DiscoveryStatus {
	return []DiscoveryStatus{
		DiscoveryNew, DiscoveryDiscovered, DiscoveryScraped,
		DiscoveryVerified, DiscoveryOutreachReady, DiscoveryContacted,
	}
}

// ScrapeStatuses returns every scrape status.
func ScrapeStatuses() []ScrapeStatus {
	return []ScrapeStatus{ScrapeDiscovered, ScrapeScraped, ScrapeEnriched, ScrapeNoEmailFound, ScrapeFailed}
}

// VerificationStatuses returns every verification status.
func VerificationStatuses() []VerificationStatus {
	return []VerificationStatus{VerificationUnverified, VerificationPending, VerificationVerified, VerificationFailed}
}

// DraftStatuses returns every draft status.
func DraftStatuses() []DraftStatus {
	return []DraftStatus{DraftPending, DraftDrafted, DraftFailed}
}

// SendStatuses returns every send status.
func SendStatuses() []SendStatus {
	return []SendStatus{SendPending, SendSent, SendFailed}
}

// Stages returns the known stages in pipeline order, UNKNOWN last.
func Stages() []Stage {
	return []Stage{StageDiscovered, StageScraped, StageVerified, StageDrafted, StageSent, StageUnknown}
}

// rank orders discovery statuses so the axis never moves backwards.
func (s DiscoveryStatus) rank() int {
	for i, v := range DiscoveryStatuses() {
		if v == s {
			return i
		}
	}
	return -1
}

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformNone, PlatformLinkedIn, PlatformInstagram, PlatformFacebook, PlatformTikTok:
		return true
	}
	return false
}

// Valid reports whether s is a known source type.
func (s SourceType) Valid() bool {
	return s == SourceWebsite || s == SourceSocial
}
