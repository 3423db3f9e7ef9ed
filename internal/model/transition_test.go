package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func draftable() *Prospect {
	p := NewWebsiteProspect("acme.com")
	p.ContactEmail = strPtr("owner@acme.com")
	p.VerificationStatus = VerificationVerified
	return p
}

func TestCanDraft(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(p *Prospect)
		policy DraftPolicy
		ok     bool
	}{
		{"verified with email", func(p *Prospect) {}, DraftPolicy{}, true},
		{"already drafted", func(p *Prospect) { p.DraftStatus = DraftDrafted }, DraftPolicy{}, false},
		{"draft failed", func(p *Prospect) { p.DraftStatus = DraftFailed }, DraftPolicy{}, false},
		{"no email", func(p *Prospect) { p.ContactEmail = nil }, DraftPolicy{}, false},
		{"blank email", func(p *Prospect) { p.ContactEmail = strPtr("  ") }, DraftPolicy{}, false},
		{"unverified strict", func(p *Prospect) { p.VerificationStatus = VerificationUnverified }, DraftPolicy{}, false},
		{"unverified allowed", func(p *Prospect) { p.VerificationStatus = VerificationUnverified }, DraftPolicy{AllowUnverified: true}, true},
		{"pending allowed", func(p *Prospect) { p.VerificationStatus = VerificationPending }, DraftPolicy{AllowUnverified: true}, true},
		{"verification failed never", func(p *Prospect) { p.VerificationStatus = VerificationFailed }, DraftPolicy{AllowUnverified: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := draftable()
			tt.mutate(p)
			err := CanDraft(p, tt.policy)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			}
		})
	}
}

func TestApplyDraft_SetsFieldsAndIsIdempotent(t *testing.T) {
	t.Parallel()
	p := draftable()
	p.DiscoveryStatus = DiscoveryVerified

	require.NoError(t, ApplyDraft(p, "Hello", "Body", DraftPolicy{}))
	assert.Equal(t, DraftDrafted, p.DraftStatus)
	assert.Equal(t, "Hello", p.DraftSubject)
	assert.Equal(t, "Body", p.DraftBody)
	assert.Equal(t, DiscoveryOutreachReady, p.DiscoveryStatus)

	err := ApplyDraft(p, "Again", "Again", DraftPolicy{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, "Hello", p.DraftSubject)
}

func TestFailDraft_TruncatesError(t *testing.T) {
	t.Parallel()
	p := draftable()

	require.NoError(t, FailDraft(p, strings.Repeat("x", 2000)))
	assert.Equal(t, DraftFailed, p.DraftStatus)
	assert.Len(t, []rune(p.LastError), MaxErrorLength)
	assert.True(t, strings.HasSuffix(p.LastError, "..."))
}

func TestApplySend_SetsThreadFieldsAtomically(t *testing.T) {
	t.Parallel()
	p := draftable()
	require.NoError(t, ApplyDraft(p, "s", "b", DraftPolicy{}))

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, ApplySend(p, "thread-1", "final", at))

	assert.Equal(t, SendSent, p.SendStatus)
	require.NotNil(t, p.ThreadID)
	assert.Equal(t, "thread-1", *p.ThreadID)
	require.NotNil(t, p.SequenceIndex)
	assert.Equal(t, 0, *p.SequenceIndex)
	require.NotNil(t, p.LastSent)
	assert.Equal(t, at, *p.LastSent)
	require.NotNil(t, p.FinalBody)
	assert.Equal(t, "final", *p.FinalBody)
	assert.Equal(t, DiscoveryContacted, p.DiscoveryStatus)

	assert.ErrorIs(t, ApplySend(p, "thread-2", "x", at), ErrInvalidTransition)
	assert.Equal(t, "thread-1", *p.ThreadID)
}

func TestCanSend_RequiresDraft(t *testing.T) {
	t.Parallel()
	p := draftable()
	assert.ErrorIs(t, CanSend(p), ErrInvalidTransition)

	p.DraftStatus = DraftDrafted
	assert.NoError(t, CanSend(p))

	p.ContactEmail = nil
	assert.ErrorIs(t, CanSend(p), ErrInvalidTransition)
}

func TestFollowUp(t *testing.T) {
	t.Parallel()
	policy := FollowUpPolicy{Max: 2, After: 72 * time.Hour}
	sentAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	p := draftable()
	require.NoError(t, ApplyDraft(p, "s", "b", DraftPolicy{}))
	require.NoError(t, ApplySend(p, "t1", "b", sentAt))

	assert.ErrorIs(t, CanFollowUp(p, policy, sentAt.Add(time.Hour)), ErrInvalidTransition, "not due yet")

	due := sentAt.Add(73 * time.Hour)
	require.NoError(t, ApplyFollowUp(p, "bump", policy, due))
	assert.Equal(t, 1, p.FollowupsSent)
	assert.Equal(t, 1, *p.SequenceIndex)
	assert.Equal(t, due, *p.LastSent)

	second := due.Add(73 * time.Hour)
	require.NoError(t, ApplyFollowUp(p, "bump 2", policy, second))
	assert.Equal(t, 2, p.FollowupsSent)

	assert.ErrorIs(t, CanFollowUp(p, policy, second.Add(1000*time.Hour)), ErrInvalidTransition, "max reached")
}

func TestEnrichment(t *testing.T) {
	t.Parallel()

	p := NewWebsiteProspect("acme.com")
	p.DiscoveryStatus = DiscoveryDiscovered
	require.NoError(t, ApplyEnrichment(p, "info@acme.com", true))
	assert.Equal(t, ScrapeScraped, p.ScrapeStatus)
	assert.Equal(t, "info@acme.com", p.Email())
	assert.Equal(t, DiscoveryScraped, p.DiscoveryStatus)
	assert.ErrorIs(t, ApplyEnrichment(p, "other@acme.com", false), ErrInvalidTransition)

	q := NewWebsiteProspect("beta.io")
	require.NoError(t, ApplyEnrichment(q, "hi@beta.io", false))
	assert.Equal(t, ScrapeEnriched, q.ScrapeStatus)

	r := NewWebsiteProspect("gamma.io")
	require.NoError(t, ApplyNoEmail(r))
	assert.Equal(t, ScrapeNoEmailFound, r.ScrapeStatus)
	assert.Nil(t, r.ContactEmail)

	s := NewSocialProspect(PlatformLinkedIn, "https://linkedin.com/in/x", "x")
	assert.ErrorIs(t, CanEnrich(s), ErrInvalidTransition)
}

func TestVerification(t *testing.T) {
	t.Parallel()

	p := NewWebsiteProspect("acme.com")
	assert.ErrorIs(t, CanVerify(p), ErrInvalidTransition)

	p.ContactEmail = strPtr("a@acme.com")
	require.NoError(t, ApplyVerification(p, true, ""))
	assert.Equal(t, VerificationVerified, p.VerificationStatus)
	assert.ErrorIs(t, ApplyVerification(p, false, "x"), ErrInvalidTransition)

	q := NewWebsiteProspect("beta.io")
	q.ContactEmail = strPtr("b@beta.io")
	require.NoError(t, ApplyVerification(q, false, "undeliverable"))
	assert.Equal(t, VerificationFailed, q.VerificationStatus)
	assert.Equal(t, "undeliverable", q.LastError)
}

func TestAdvanceDiscovery_NeverMovesBackwards(t *testing.T) {
	t.Parallel()
	p := NewWebsiteProspect("acme.com")
	p.AdvanceDiscovery(DiscoveryVerified)
	p.AdvanceDiscovery(DiscoveryScraped)
	assert.Equal(t, DiscoveryVerified, p.DiscoveryStatus)
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()
	p := &Prospect{Domain: "acme.com"}
	assert.True(t, p.ApplyDefaults())
	assert.Equal(t, DiscoveryNew, p.DiscoveryStatus)
	assert.Equal(t, ScrapeDiscovered, p.ScrapeStatus)
	assert.Equal(t, VerificationUnverified, p.VerificationStatus)
	assert.Equal(t, DraftPending, p.DraftStatus)
	assert.Equal(t, SendPending, p.SendStatus)
	assert.False(t, p.ApplyDefaults())
}
