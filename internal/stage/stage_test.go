package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/outreach-cli/internal/model"
)

// expected restates the priority rules independently of Resolve.
func expected(p *model.Prospect) model.Stage {
	if p.SendStatus == model.SendSent {
		return model.StageSent
	}
	if p.DraftStatus == model.DraftDrafted {
		return model.StageDrafted
	}
	if p.VerificationStatus == model.VerificationVerified {
		return model.StageVerified
	}
	if p.ScrapeStatus == model.ScrapeScraped || p.ScrapeStatus == model.ScrapeEnriched {
		return model.StageScraped
	}
	if p.DiscoveryStatus == model.DiscoveryDiscovered || p.DiscoveryStatus == model.DiscoveryNew {
		return model.StageDiscovered
	}
	return model.StageUnknown
}

func TestResolve_AllCombinations(t *testing.T) {
	t.Parallel()

	known := map[model.Stage]bool{}
	for _, s := range model.Stages() {
		known[s] = true
	}

	n := 0
	for _, d := range model.DiscoveryStatuses() {
		for _, sc := range model.ScrapeStatuses() {
			for _, v := range model.VerificationStatuses() {
				for _, dr := range model.DraftStatuses() {
					for _, se := range model.SendStatuses() {
						p := &model.Prospect{
							DiscoveryStatus:    d,
							ScrapeStatus:       sc,
							VerificationStatus: v,
							DraftStatus:        dr,
							SendStatus:         se,
						}
						got := Resolve(p)
						assert.True(t, known[got], "unknown stage value %q", got)
						assert.Equal(t, expected(p), got, "%s/%s/%s/%s/%s", d, sc, v, dr, se)
						assert.Equal(t, got, Resolve(p), "deterministic")
						n++
					}
				}
			}
		}
	}
	assert.Equal(t, 1080, n)
}

func TestResolve_Examples(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    model.Prospect
		want model.Stage
	}{
		{
			name: "fresh prospect",
			p:    *model.NewWebsiteProspect("acme.com"),
			want: model.StageDiscovered,
		},
		{
			name: "sent outranks failed draft",
			p: model.Prospect{DiscoveryStatus: model.DiscoveryContacted, ScrapeStatus: model.ScrapeFailed,
				VerificationStatus: model.VerificationFailed, DraftStatus: model.DraftFailed, SendStatus: model.SendSent},
			want: model.StageSent,
		},
		{
			name: "enriched counts as scraped",
			p: model.Prospect{DiscoveryStatus: model.DiscoveryScraped, ScrapeStatus: model.ScrapeEnriched,
				VerificationStatus: model.VerificationUnverified, DraftStatus: model.DraftPending, SendStatus: model.SendPending},
			want: model.StageScraped,
		},
		{
			name: "no rule matches",
			p: model.Prospect{DiscoveryStatus: model.DiscoveryContacted, ScrapeStatus: model.ScrapeNoEmailFound,
				VerificationStatus: model.VerificationPending, DraftStatus: model.DraftFailed, SendStatus: model.SendFailed},
			want: model.StageUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Resolve(&tt.p))
			assert.Equal(t, tt.want, ResolveChecked(&tt.p))
		})
	}
}

func TestUnlockedSteps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		counts Counts
		want   []model.Step
	}{
		{"empty", Counts{}, []model.Step{model.StepDiscovery}},
		{"discovered", Counts{Discovered: 3}, []model.Step{model.StepDiscovery, model.StepReview}},
		{"qualified", Counts{Discovered: 3, Qualified: 1}, []model.Step{model.StepDiscovery, model.StepReview, model.StepDrafting}},
		{"drafted", Counts{Discovered: 3, Qualified: 1, Drafted: 1},
			[]model.Step{model.StepDiscovery, model.StepReview, model.StepDrafting, model.StepSending}},
		{"sent", Counts{Discovered: 3, Qualified: 2, Drafted: 2, Sent: 1},
			[]model.Step{model.StepDiscovery, model.StepReview, model.StepDrafting, model.StepSending, model.StepFollowups}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, UnlockedSteps(tt.counts))
		})
	}
}

func TestCountsFromStages_Cumulative(t *testing.T) {
	t.Parallel()

	c := CountsFromStages(map[model.Stage]int{
		model.StageDiscovered: 5,
		model.StageScraped:    4,
		model.StageVerified:   3,
		model.StageDrafted:    2,
		model.StageSent:       1,
		model.StageUnknown:    9,
	})
	assert.Equal(t, Counts{Discovered: 15, Qualified: 6, Drafted: 3, Sent: 1}, c)
	assert.True(t, IsUnlocked(c, model.StepFollowups))
	assert.False(t, IsUnlocked(Counts{}, model.StepDrafting))
}
