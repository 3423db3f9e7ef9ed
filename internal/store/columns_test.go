package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

func TestSelectProspects_SafeProjection(t *testing.T) {
	q, cols := postgresDialect.selectProspects(model.SafeColumnSet())
	assert.Len(t, cols, len(model.RequiredColumns))
	assert.NotContains(t, q, "thread_id")
	assert.Contains(t, q, "COALESCE(draft_body, '')")
}

func TestSelectProspects_JSONCast(t *testing.T) {
	q, _ := postgresDialect.selectProspects(model.FullColumnSet())
	assert.Contains(t, q, "COALESCE(raw_payload::text, '')")

	q, _ = sqliteDialect.selectProspects(model.FullColumnSet())
	assert.Contains(t, q, "COALESCE(raw_payload, '')")
	assert.NotContains(t, q, castText)
}

func TestUpdateProspect_VersionedPlaceholders(t *testing.T) {
	p := model.NewWebsiteProspect("acme.com")
	p.ID = "p-1"
	p.Version = 7

	q, args := updateProspect(postgresDialect, model.FullColumnSet(), p)
	n := len(args)
	assert.True(t, strings.HasSuffix(q, "AND COALESCE(version, 0) = $"+itoa(n)), q)
	assert.Equal(t, "p-1", args[n-2])
	assert.Equal(t, int64(7), args[n-1])
	assert.Equal(t, int64(8), args[n-3])
	assert.NotContains(t, q, "created_at =")
}

func TestUpdateProspect_Unversioned(t *testing.T) {
	p := model.NewWebsiteProspect("acme.com")
	p.ID = "p-1"

	q, args := updateProspect(sqliteDialect, model.SafeColumnSet(), p)
	assert.True(t, strings.HasSuffix(q, "WHERE id = ?"), q)
	assert.Equal(t, "p-1", args[len(args)-1])
}

func TestListProspectsQuery_StagePushdown(t *testing.T) {
	f := model.ProspectFilter{Stage: model.StageVerified, SourceType: model.SourceWebsite, Limit: 5}

	q, args, _, post := listProspectsQuery(postgresDialect, model.FullColumnSet(), f)
	assert.False(t, post)
	assert.Contains(t, q, "source_type = $1 AND stage = $2")
	assert.Contains(t, q, "LIMIT $3")
	require.Len(t, args, 3)

	q, args, _, post = listProspectsQuery(postgresDialect, model.SafeColumnSet(), f)
	assert.True(t, post)
	assert.NotContains(t, q, "LIMIT")
	assert.NotContains(t, q, "stage =")
	assert.Len(t, args, 1)
}

func TestProspectWhere_VerificationIn(t *testing.T) {
	f := model.ProspectFilter{
		DraftStatus:        model.DraftPending,
		VerificationStatus: []model.VerificationStatus{model.VerificationVerified, model.VerificationUnverified},
	}
	where, args := prospectWhere(postgresDialect, model.FullColumnSet(), f)
	assert.Equal(t, " WHERE verification_status IN ($1, $2) AND draft_status = $3", where)
	assert.Equal(t, []any{"VERIFIED", "UNVERIFIED", "PENDING"}, args)
}

func TestApplyPostFilter(t *testing.T) {
	a := model.NewWebsiteProspect("a.com")
	b := model.NewWebsiteProspect("b.com")
	b.ScrapeStatus = model.ScrapeScraped
	c := model.NewWebsiteProspect("c.com")

	out := applyPostFilter([]*model.Prospect{a, b, c}, model.ProspectFilter{Stage: model.StageDiscovered, Limit: 1})
	require.Len(t, out, 1)
	assert.Equal(t, "a.com", out[0].Domain)
}

func itoa(n int) string { return postgresDialect.ph(n)[1:] }
