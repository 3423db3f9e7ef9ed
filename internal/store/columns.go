package store

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/stage"
)

// dialect captures the SQL differences between Postgres and SQLite.
type dialect struct {
	name string
	ph   func(n int) string
}

var (
	postgresDialect = dialect{name: "postgres", ph: func(n int) string { return "$" + strconv.Itoa(n) }}
	sqliteDialect   = dialect{name: "sqlite", ph: func(int) string { return "?" }}
)

// prospectColumn maps one prospects column to its struct field. expr is the
// select expression; nullable text columns are coalesced so they scan into
// plain strings.
type prospectColumn struct {
	name     string
	expr     string
	required bool
	dest     func(p *model.Prospect) any
	value    func(p *model.Prospect) any
}

func coalesceText(name string) string { return "COALESCE(" + name + ", '')" }

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

var prospectColumns = []prospectColumn{
	{name: "id", required: true,
		dest: func(p *model.Prospect) any { return &p.ID }, value: func(p *model.Prospect) any { return p.ID }},
	{name: "source_type", expr: coalesceText("source_type"), required: true,
		dest: func(p *model.Prospect) any { return &p.SourceType }, value: func(p *model.Prospect) any { return string(p.SourceType) }},
	{name: "domain", expr: coalesceText("domain"), required: true,
		dest: func(p *model.Prospect) any { return &p.Domain }, value: func(p *model.Prospect) any { return p.Domain }},
	{name: "contact_email", required: true,
		dest: func(p *model.Prospect) any { return &p.ContactEmail }, value: func(p *model.Prospect) any { return p.ContactEmail }},
	{name: "contact_method", expr: coalesceText("contact_method"), required: true,
		dest: func(p *model.Prospect) any { return &p.ContactMethod }, value: func(p *model.Prospect) any { return p.ContactMethod }},
	{name: "discovery_status", expr: coalesceText("discovery_status"), required: true,
		dest: func(p *model.Prospect) any { return &p.DiscoveryStatus }, value: func(p *model.Prospect) any { return string(p.DiscoveryStatus) }},
	{name: "scrape_status", expr: coalesceText("scrape_status"), required: true,
		dest: func(p *model.Prospect) any { return &p.ScrapeStatus }, value: func(p *model.Prospect) any { return string(p.ScrapeStatus) }},
	{name: "verification_status", expr: coalesceText("verification_status"), required: true,
		dest: func(p *model.Prospect) any { return &p.VerificationStatus }, value: func(p *model.Prospect) any { return string(p.VerificationStatus) }},
	{name: "draft_status", expr: coalesceText("draft_status"), required: true,
		dest: func(p *model.Prospect) any { return &p.DraftStatus }, value: func(p *model.Prospect) any { return string(p.DraftStatus) }},
	{name: "send_status", expr: coalesceText("send_status"), required: true,
		dest: func(p *model.Prospect) any { return &p.SendStatus }, value: func(p *model.Prospect) any { return string(p.SendStatus) }},
	{name: "draft_subject", expr: coalesceText("draft_subject"), required: true,
		dest: func(p *model.Prospect) any { return &p.DraftSubject }, value: func(p *model.Prospect) any { return p.DraftSubject }},
	{name: "draft_body", expr: coalesceText("draft_body"), required: true,
		dest: func(p *model.Prospect) any { return &p.DraftBody }, value: func(p *model.Prospect) any { return p.DraftBody }},
	{name: "created_at", required: true,
		dest: func(p *model.Prospect) any { return &p.CreatedAt }, value: func(p *model.Prospect) any { return p.CreatedAt }},
	{name: "updated_at", required: true,
		dest: func(p *model.Prospect) any { return &p.UpdatedAt }, value: func(p *model.Prospect) any { return p.UpdatedAt }},

	{name: model.ColSourcePlatform, expr: coalesceText(model.ColSourcePlatform),
		dest: func(p *model.Prospect) any { return &p.SourcePlatform }, value: func(p *model.Prospect) any { return string(p.SourcePlatform) }},
	{name: model.ColProfileURL, expr: coalesceText(model.ColProfileURL),
		dest: func(p *model.Prospect) any { return &p.ProfileURL }, value: func(p *model.Prospect) any { return p.ProfileURL }},
	{name: model.ColUsername, expr: coalesceText(model.ColUsername),
		dest: func(p *model.Prospect) any { return &p.Username }, value: func(p *model.Prospect) any { return p.Username }},
	{name: model.ColStage, expr: coalesceText(model.ColStage),
		dest: func(p *model.Prospect) any { return &p.Stage }, value: func(p *model.Prospect) any { return string(p.Stage) }},
	{name: model.ColFinalBody,
		dest: func(p *model.Prospect) any { return &p.FinalBody }, value: func(p *model.Prospect) any { return p.FinalBody }},
	{name: model.ColThreadID,
		dest: func(p *model.Prospect) any { return &p.ThreadID }, value: func(p *model.Prospect) any { return p.ThreadID }},
	{name: model.ColSequenceIndex,
		dest: func(p *model.Prospect) any { return &p.SequenceIndex }, value: func(p *model.Prospect) any { return p.SequenceIndex }},
	{name: model.ColFollowupsSent, expr: "COALESCE(" + model.ColFollowupsSent + ", 0)",
		dest: func(p *model.Prospect) any { return &p.FollowupsSent }, value: func(p *model.Prospect) any { return p.FollowupsSent }},
	{name: model.ColLastSent,
		dest: func(p *model.Prospect) any { return &p.LastSent }, value: func(p *model.Prospect) any { return p.LastSent }},
	{name: model.ColPageTitle, expr: coalesceText(model.ColPageTitle),
		dest: func(p *model.Prospect) any { return &p.PageTitle }, value: func(p *model.Prospect) any { return p.PageTitle }},
	{name: model.ColPageURL, expr: coalesceText(model.ColPageURL),
		dest: func(p *model.Prospect) any { return &p.PageURL }, value: func(p *model.Prospect) any { return p.PageURL }},
	{name: model.ColSnippet, expr: coalesceText(model.ColSnippet),
		dest: func(p *model.Prospect) any { return &p.Snippet }, value: func(p *model.Prospect) any { return p.Snippet }},
	{name: model.ColRawPayload, expr: coalesceText(model.ColRawPayload + castText),
		dest: func(p *model.Prospect) any { return (*rawJSON)(&p.RawPayload) }, value: func(p *model.Prospect) any { return nullableJSON(p.RawPayload) }},
	{name: model.ColScore,
		dest: func(p *model.Prospect) any { return &p.Score }, value: func(p *model.Prospect) any { return p.Score }},
	{name: model.ColDAEst,
		dest: func(p *model.Prospect) any { return &p.DAEst }, value: func(p *model.Prospect) any { return p.DAEst }},
	{name: model.ColSERPIntent, expr: coalesceText(model.ColSERPIntent),
		dest: func(p *model.Prospect) any { return &p.SERPIntent }, value: func(p *model.Prospect) any { return p.SERPIntent }},
	{name: model.ColSERPConfidence,
		dest: func(p *model.Prospect) any { return &p.SERPConfidence }, value: func(p *model.Prospect) any { return p.SERPConfidence }},
	{name: model.ColSERPSignals, expr: coalesceText(model.ColSERPSignals + castText),
		dest: func(p *model.Prospect) any { return (*rawJSON)(&p.SERPSignals) }, value: func(p *model.Prospect) any { return nullableJSON(p.SERPSignals) }},
	{name: model.ColLastError, expr: coalesceText(model.ColLastError),
		dest: func(p *model.Prospect) any { return &p.LastError }, value: func(p *model.Prospect) any { return p.LastError }},
	{name: model.ColVersion, expr: "COALESCE(" + model.ColVersion + ", 0)",
		dest: func(p *model.Prospect) any { return &p.Version }, value: func(p *model.Prospect) any { return p.Version }},
}

// castText is replaced per dialect: JSON columns are read back as text.
const castText = "{{text}}"

// rawJSON scans a JSON column delivered as text; "" becomes nil.
type rawJSON json.RawMessage

func (r *rawJSON) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = nil
	case string:
		if v == "" {
			*r = nil
		} else {
			*r = rawJSON(v)
		}
	case []byte:
		if len(v) == 0 {
			*r = nil
		} else {
			*r = append(rawJSON(nil), v...)
		}
	default:
		return eris.Errorf("store: cannot scan %T into json", src)
	}
	return nil
}

// columnsFor returns the specs available in cs, in declaration order.
func columnsFor(cs model.ColumnSet) []prospectColumn {
	out := make([]prospectColumn, 0, len(prospectColumns))
	for _, c := range prospectColumns {
		if c.required || cs.Has(c.name) {
			out = append(out, c)
		}
	}
	return out
}

func (d dialect) selectExpr(c prospectColumn) string {
	expr := c.expr
	if expr == "" {
		expr = c.name
	}
	cast := ""
	if d.name == "postgres" {
		cast = "::text"
	}
	return strings.ReplaceAll(expr, castText, cast)
}

// selectProspects returns "SELECT <projection> FROM prospects" for cs.
func (d dialect) selectProspects(cs model.ColumnSet) (string, []prospectColumn) {
	cols := columnsFor(cs)
	exprs := make([]string, len(cols))
	for i, c := range cols {
		exprs[i] = d.selectExpr(c)
	}
	return "SELECT " + strings.Join(exprs, ", ") + " FROM prospects", cols
}

func insertProspect(d dialect, cs model.ColumnSet, p *model.Prospect) (string, []any) {
	cols := columnsFor(cs)
	names := make([]string, len(cols))
	phs := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		names[i] = c.name
		phs[i] = d.ph(i + 1)
		args[i] = c.value(p)
	}
	q := "INSERT INTO prospects (" + strings.Join(names, ", ") + ") VALUES (" + strings.Join(phs, ", ") +
		") ON CONFLICT DO NOTHING"
	return q, args
}

// updateProspect writes every available column. With a version column the
// update only applies when the stored version still equals p.Version.
func updateProspect(d dialect, cs model.ColumnSet, p *model.Prospect) (string, []any) {
	var sets []string
	var args []any
	n := 0
	next := func() string { n++; return d.ph(n) }

	for _, c := range columnsFor(cs) {
		switch c.name {
		case "id", "created_at", model.ColVersion:
			continue
		}
		sets = append(sets, c.name+" = "+next())
		args = append(args, c.value(p))
	}

	versioned := cs.Has(model.ColVersion)
	if versioned {
		sets = append(sets, model.ColVersion+" = "+next())
		args = append(args, p.Version+1)
	}

	q := "UPDATE prospects SET " + strings.Join(sets, ", ") + " WHERE id = " + next()
	args = append(args, p.ID)
	if versioned {
		q += " AND COALESCE(" + model.ColVersion + ", 0) = " + next()
		args = append(args, p.Version)
	}
	return q, args
}

// prospectWhere builds the WHERE clause of a prospect listing. The stage
// condition is only pushed down when the schema caches stages.
func prospectWhere(d dialect, cs model.ColumnSet, f model.ProspectFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, vals ...any) {
		for _, v := range vals {
			args = append(args, v)
			cond = strings.Replace(cond, "?", d.ph(len(args)), 1)
		}
		conds = append(conds, cond)
	}

	if f.SourceType != "" {
		add("source_type = ?", string(f.SourceType))
	}
	if f.ScrapeStatus != "" {
		add("scrape_status = ?", string(f.ScrapeStatus))
	}
	if len(f.VerificationStatus) > 0 {
		phs := make([]string, len(f.VerificationStatus))
		for i := range phs {
			phs[i] = "?"
		}
		vals := make([]any, len(f.VerificationStatus))
		for i, v := range f.VerificationStatus {
			vals[i] = string(v)
		}
		add("verification_status IN ("+strings.Join(phs, ", ")+")", vals...)
	}
	if f.DraftStatus != "" {
		add("draft_status = ?", string(f.DraftStatus))
	}
	if f.SendStatus != "" {
		add("send_status = ?", string(f.SendStatus))
	}
	if f.HasEmail != nil {
		if *f.HasEmail {
			conds = append(conds, "contact_email IS NOT NULL AND contact_email <> ''")
		} else {
			conds = append(conds, "(contact_email IS NULL OR contact_email = '')")
		}
	}
	if f.Stage != "" && cs.Has(model.ColStage) {
		add(model.ColStage+" = ?", string(f.Stage))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// listProspectsQuery assembles the full listing query. postFilter is true
// when the stage filter and limit must be applied after scanning.
func listProspectsQuery(d dialect, cs model.ColumnSet, f model.ProspectFilter) (q string, args []any, cols []prospectColumn, postFilter bool) {
	q, cols = d.selectProspects(cs)
	where, args := prospectWhere(d, cs, f)
	q += where + " ORDER BY created_at ASC, id ASC"
	postFilter = f.Stage != "" && !cs.Has(model.ColStage)
	if f.Limit > 0 && !postFilter {
		q += " LIMIT " + d.ph(len(args)+1)
		args = append(args, f.Limit)
	}
	return q, args, cols, postFilter
}

// applyPostFilter filters by resolved stage and applies the limit.
func applyPostFilter(ps []*model.Prospect, f model.ProspectFilter) []*model.Prospect {
	out := ps[:0]
	for _, p := range ps {
		if stage.Resolve(p) != f.Stage {
			continue
		}
		out = append(out, p)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProspect(sc scanner, cols []prospectColumn) (*model.Prospect, error) {
	p := &model.Prospect{}
	dests := make([]any, len(cols))
	for i, c := range cols {
		dests[i] = c.dest(p)
	}
	if err := sc.Scan(dests...); err != nil {
		return nil, err
	}
	if p.Stage == "" {
		p.Stage = stage.Resolve(p)
	}
	return p, nil
}

// prepareWrite stamps the derived and audit fields before a write.
func prepareWrite(p *model.Prospect, now time.Time) {
	p.Stage = stage.ResolveChecked(p)
	p.UpdatedAt = now
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
}

// statusRow holds the five status axes used for stage counting and repair.
type statusRow struct {
	id     string
	stage  string
	status model.Prospect
}

func statusSelect(d dialect, cs model.ColumnSet) string {
	stageExpr := "''"
	if cs.Has(model.ColStage) {
		stageExpr = coalesceText(model.ColStage)
	}
	return "SELECT id, " + stageExpr + ", " +
		coalesceText("discovery_status") + ", " + coalesceText("scrape_status") + ", " +
		coalesceText("verification_status") + ", " + coalesceText("draft_status") + ", " +
		coalesceText("send_status") + " FROM prospects"
}

func scanStatusRow(sc scanner) (statusRow, error) {
	var r statusRow
	err := sc.Scan(&r.id, &r.stage,
		&r.status.DiscoveryStatus, &r.status.ScrapeStatus, &r.status.VerificationStatus,
		&r.status.DraftStatus, &r.status.SendStatus)
	r.status.ID = r.id
	return r, err
}

// repairStatusesSQL sets empty or NULL status columns to their defaults.
const repairStatusesSQL = `UPDATE prospects SET
	discovery_status = COALESCE(NULLIF(discovery_status, ''), 'NEW'),
	scrape_status = COALESCE(NULLIF(scrape_status, ''), 'DISCOVERED'),
	verification_status = COALESCE(NULLIF(verification_status, ''), 'UNVERIFIED'),
	draft_status = COALESCE(NULLIF(draft_status, ''), 'PENDING'),
	send_status = COALESCE(NULLIF(send_status, ''), 'PENDING')
WHERE discovery_status IS NULL OR discovery_status = ''
	OR scrape_status IS NULL OR scrape_status = ''
	OR verification_status IS NULL OR verification_status = ''
	OR draft_status IS NULL OR draft_status = ''
	OR send_status IS NULL OR send_status = ''`

// --- jobs ---

func (d dialect) jobSelect() string {
	cast := ""
	if d.name == "postgres" {
		cast = "::text"
	}
	return "SELECT id, job_type, params" + cast + ", status, result" + cast + ", COALESCE(error_message, ''), " +
		"created_at, updated_at, started_at, completed_at FROM jobs"
}

func scanJob(sc scanner) (*model.Job, error) {
	var j model.Job
	var jobType, status string
	var params, result rawJSON
	if err := sc.Scan(&j.ID, &jobType, &params, &status, &result, &j.ErrorMessage,
		&j.CreatedAt, &j.UpdatedAt, &j.StartedAt, &j.CompletedAt); err != nil {
		return nil, err
	}
	j.Type = model.JobType(jobType)
	j.Status = model.JobStatus(status)
	if len(params) > 0 {
		if err := json.Unmarshal(params, &j.Params); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal job params")
		}
	}
	if len(result) > 0 {
		j.Result = &model.JobResult{}
		if err := json.Unmarshal(result, j.Result); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal job result")
		}
	}
	return &j, nil
}

func jobListQuery(d dialect, f JobFilter) (string, []any) {
	q := d.jobSelect()
	var conds []string
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, "status = "+d.ph(len(args)))
	}
	if f.Type != "" {
		args = append(args, string(f.Type))
		conds = append(conds, "job_type = "+d.ph(len(args)))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	if f.OldestFirst {
		q += " ORDER BY created_at ASC"
	} else {
		q += " ORDER BY created_at DESC"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	q += " LIMIT " + d.ph(len(args))
	return q, args
}
