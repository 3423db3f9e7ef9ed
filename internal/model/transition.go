package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// ErrInvalidTransition is returned when a prospect is not in a state that
// allows the requested status change.
var ErrInvalidTransition = eris.New("model: invalid status transition")

func invalid(format string, args ...any) error {
	return eris.Wrapf(ErrInvalidTransition, format, args...)
}

// DraftPolicy controls which verification states are accepted for drafting.
type DraftPolicy struct {
	// AllowUnverified accepts prospects that have an email but have not been
	// verified (UNVERIFIED or PENDING). FAILED verification is never drafted.
	AllowUnverified bool
}

// --- enrichment ---

// CanEnrich reports whether p is waiting for contact enrichment.
func CanEnrich(p *Prospect) error {
	if p.ScrapeStatus != ScrapeDiscovered {
		return invalid("enrich: scrape_status is %s", p.ScrapeStatus)
	}
	if p.HasEmail() {
		return invalid("enrich: contact email already set")
	}
	if p.Domain == "" {
		return invalid("enrich: prospect has no domain")
	}
	return nil
}

// ApplyEnrichment records a found contact email. fromWebsite distinguishes
// addresses scraped from the prospect's own pages from provider lookups.
func ApplyEnrichment(p *Prospect, email string, fromWebsite bool) error {
	if err := CanEnrich(p); err != nil {
		return err
	}
	p.ContactEmail = &email
	p.ContactMethod = "email"
	if fromWebsite {
		p.ScrapeStatus = ScrapeScraped
	} else {
		p.ScrapeStatus = ScrapeEnriched
	}
	p.AdvanceDiscovery(DiscoveryScraped)
	p.LastError = ""
	return nil
}

// ApplyNoEmail records that enrichment completed without finding an address.
func ApplyNoEmail(p *Prospect) error {
	if err := CanEnrich(p); err != nil {
		return err
	}
	p.ScrapeStatus = ScrapeNoEmailFound
	p.AdvanceDiscovery(DiscoveryScraped)
	return nil
}

// FailEnrichment marks enrichment as failed.
func FailEnrichment(p *Prospect, msg string) error {
	if p.ScrapeStatus != ScrapeDiscovered {
		return invalid("enrich: scrape_status is %s", p.ScrapeStatus)
	}
	p.ScrapeStatus = ScrapeFailed
	p.LastError = TruncateError(msg)
	return nil
}

// --- verification ---

// CanVerify reports whether p has an email awaiting verification.
func CanVerify(p *Prospect) error {
	if !p.HasEmail() {
		return invalid("verify: no contact email")
	}
	if p.VerificationStatus != VerificationUnverified && p.VerificationStatus != VerificationPending {
		return invalid("verify: verification_status is %s", p.VerificationStatus)
	}
	return nil
}

// ApplyVerification records a verification verdict.
func ApplyVerification(p *Prospect, deliverable bool, reason string) error {
	if err := CanVerify(p); err != nil {
		return err
	}
	if deliverable {
		p.VerificationStatus = VerificationVerified
		p.AdvanceDiscovery(DiscoveryVerified)
		p.LastError = ""
		return nil
	}
	p.VerificationStatus = VerificationFailed
	p.LastError = TruncateError(reason)
	return nil
}

// FailVerification marks verification as failed after a provider error.
func FailVerification(p *Prospect, msg string) error {
	if err := CanVerify(p); err != nil {
		return err
	}
	p.VerificationStatus = VerificationFailed
	p.LastError = TruncateError(msg)
	return nil
}

// --- drafting ---

// CanDraft enforces the drafting law: draft_status must be PENDING, the
// contact email must be set, and verification must be VERIFIED (or not yet
// verified when the policy allows it).
func CanDraft(p *Prospect, policy DraftPolicy) error {
	if p.DraftStatus != DraftPending {
		return invalid("draft: draft_status is %s", p.DraftStatus)
	}
	if !p.HasEmail() {
		return invalid("draft: no contact email")
	}
	switch p.VerificationStatus {
	case VerificationVerified:
		return nil
	case VerificationUnverified, VerificationPending:
		if policy.AllowUnverified {
			return nil
		}
	}
	return invalid("draft: verification_status is %s", p.VerificationStatus)
}

// ApplyDraft stores a drafted message.
func ApplyDraft(p *Prospect, subject, body string, policy DraftPolicy) error {
	if err := CanDraft(p, policy); err != nil {
		return err
	}
	p.DraftStatus = DraftDrafted
	p.DraftSubject = subject
	p.DraftBody = body
	p.AdvanceDiscovery(DiscoveryOutreachReady)
	p.LastError = ""
	return nil
}

// FailDraft marks drafting as failed.
func FailDraft(p *Prospect, msg string) error {
	if p.DraftStatus != DraftPending {
		return invalid("draft: draft_status is %s", p.DraftStatus)
	}
	p.DraftStatus = DraftFailed
	p.LastError = TruncateError(msg)
	return nil
}

// --- sending ---

// CanSend enforces the send law: send_status PENDING, draft DRAFTED and an
// email to send to.
func CanSend(p *Prospect) error {
	if p.SendStatus != SendPending {
		return invalid("send: send_status is %s", p.SendStatus)
	}
	if p.DraftStatus != DraftDrafted {
		return invalid("send: draft_status is %s", p.DraftStatus)
	}
	if !p.HasEmail() {
		return invalid("send: no contact email")
	}
	return nil
}

// ApplySend records a delivered first message. The thread, sequence index,
// send time and final body are set together with the status.
func ApplySend(p *Prospect, threadID, body string, at time.Time) error {
	if err := CanSend(p); err != nil {
		return err
	}
	idx := 0
	p.SendStatus = SendSent
	p.ThreadID = &threadID
	p.SequenceIndex = &idx
	p.LastSent = &at
	p.FinalBody = &body
	p.AdvanceDiscovery(DiscoveryContacted)
	p.LastError = ""
	return nil
}

// FailSend marks sending as failed.
func FailSend(p *Prospect, msg string) error {
	if p.SendStatus != SendPending {
		return invalid("send: send_status is %s", p.SendStatus)
	}
	p.SendStatus = SendFailed
	p.LastError = TruncateError(msg)
	return nil
}

// --- follow-ups ---

// FollowUpPolicy bounds automatic follow-ups.
type FollowUpPolicy struct {
	Max   int
	After time.Duration
}

// CanFollowUp reports whether p is due for another follow-up at now.
func CanFollowUp(p *Prospect, policy FollowUpPolicy, now time.Time) error {
	if p.SendStatus != SendSent {
		return invalid("followup: send_status is %s", p.SendStatus)
	}
	if p.Thread() == "" {
		return invalid("followup: no thread")
	}
	if p.FollowupsSent >= policy.Max {
		return invalid("followup: %d of %d follow-ups sent", p.FollowupsSent, policy.Max)
	}
	if p.LastSent == nil || now.Sub(*p.LastSent) < policy.After {
		return invalid("followup: not due")
	}
	return nil
}

// ApplyFollowUp records a follow-up delivered in the existing thread.
func ApplyFollowUp(p *Prospect, body string, policy FollowUpPolicy, at time.Time) error {
	if err := CanFollowUp(p, policy, at); err != nil {
		return err
	}
	p.FollowupsSent++
	idx := p.FollowupsSent
	p.SequenceIndex = &idx
	p.LastSent = &at
	p.FinalBody = &body
	p.LastError = ""
	return nil
}

// NoteDeferred records why a prospect was skipped without changing status.
func NoteDeferred(p *Prospect, msg string) {
	p.LastError = TruncateError(msg)
}
