package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/db"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/stage"
)

// errNoRows is what conn implementations return for an empty QueryRow.
var errNoRows = errors.New("store: no rows")

// rows is the iteration surface shared by pgx.Rows and *sql.Rows.
type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// conn is the driver seam between the SQL core and a concrete database.
type conn interface {
	exec(ctx context.Context, q string, args ...any) (int64, error)
	query(ctx context.Context, q string, args ...any) (rows, error)
	queryRow(ctx context.Context, q string, args ...any) scanner
}

// sqlStore implements the Store operations over any conn. PostgresStore and
// SQLiteStore embed it and add lifecycle handling.
type sqlStore struct {
	conn conn
	d    dialect
	now  func() time.Time

	mu   sync.RWMutex
	cols model.ColumnSet
}

func newSQLStore(c conn, d dialect) *sqlStore {
	return &sqlStore{
		conn: c,
		d:    d,
		now:  func() time.Time { return time.Now().UTC() },
		cols: model.SafeColumnSet(),
	}
}

// Columns returns the negotiated prospect column set.
func (s *sqlStore) Columns() model.ColumnSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cols
}

func (s *sqlStore) setColumns(cs model.ColumnSet) {
	s.mu.Lock()
	s.cols = cs
	s.mu.Unlock()
}

func (s *sqlStore) columnsQuery() string {
	if s.d.name == "postgres" {
		return `SELECT column_name FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = 'prospects'`
	}
	return `SELECT name FROM pragma_table_info('prospects')`
}

// detectColumns negotiates the column set with the schema. A failed
// detection falls back to the safe projection.
func (s *sqlStore) detectColumns(ctx context.Context) model.ColumnSet {
	log := zap.L().With(zap.String("component", "store"), zap.String("dialect", s.d.name))

	names, err := s.columnNames(ctx)
	if err != nil {
		log.Warn("store: column detection failed, using safe projection", zap.Error(err))
		cs := model.SafeColumnSet()
		s.setColumns(cs)
		return cs
	}

	cs := model.NewColumnSet(names...)
	if missing := cs.Missing(); len(missing) > 0 {
		log.Info("store: prospects schema lacks optional columns", zap.Strings("missing", missing))
	}
	s.setColumns(cs)
	return cs
}

func (s *sqlStore) columnNames(ctx context.Context) ([]string, error) {
	r, err := s.conn.query(ctx, s.columnsQuery())
	if err != nil {
		return nil, eris.Wrap(err, "store: query columns")
	}
	defer r.Close()

	var names []string
	for r.Next() {
		var n string
		if err := r.Scan(&n); err != nil {
			return nil, eris.Wrap(err, "store: scan column name")
		}
		names = append(names, n)
	}
	return names, eris.Wrap(r.Err(), "store: iterate columns")
}

// withColumns runs fn against the negotiated columns. When the schema turns
// out to lack a column the store downgrades to the safe projection and
// retries once.
func (s *sqlStore) withColumns(ctx context.Context, op string, fn func(cs model.ColumnSet) error) error {
	cs := s.Columns()
	err := fn(cs)
	if err == nil || !db.IsUndefinedColumn(err) || len(cs.Optional()) == 0 {
		return err
	}
	zap.L().Warn("store: undefined column, downgrading to safe projection",
		zap.String("op", op), zap.Error(err))
	safe := model.SafeColumnSet()
	s.setColumns(safe)
	return fn(safe)
}

// --- prospects ---

func (s *sqlStore) CreateProspect(ctx context.Context, p *model.Prospect) (bool, error) {
	switch p.SourceType {
	case model.SourceSocial:
		if p.ProfileURL == "" {
			return false, eris.New("store: social prospect requires a profile url")
		}
	default:
		if p.Domain == "" {
			return false, eris.New("store: website prospect requires a domain")
		}
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.ApplyDefaults()
	p.Version = 0
	prepareWrite(p, s.now())

	var created bool
	err := s.withColumns(ctx, "create prospect", func(cs model.ColumnSet) error {
		q, args := insertProspect(s.d, cs, p)
		n, err := s.conn.exec(ctx, q, args...)
		if err != nil {
			return err
		}
		created = n > 0
		return nil
	})
	if err != nil {
		return false, eris.Wrapf(err, "store: insert prospect %s", p.Label())
	}
	return created, nil
}

func (s *sqlStore) GetProspect(ctx context.Context, id string) (*model.Prospect, error) {
	var p *model.Prospect
	err := s.withColumns(ctx, "get prospect", func(cs model.ColumnSet) error {
		q, cols := s.d.selectProspects(cs)
		var err error
		p, err = scanProspect(s.conn.queryRow(ctx, q+" WHERE id = "+s.d.ph(1), id), cols)
		return err
	})
	if errors.Is(err, errNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get prospect %s", id)
	}
	return p, nil
}

// GetProspects loads prospects by id in the order given. Unknown ids are
// skipped.
func (s *sqlStore) GetProspects(ctx context.Context, ids []string) ([]*model.Prospect, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var found map[string]*model.Prospect
	err := s.withColumns(ctx, "get prospects", func(cs model.ColumnSet) error {
		q, cols := s.d.selectProspects(cs)
		phs := make([]string, len(ids))
		args := make([]any, len(ids))
		for i, id := range ids {
			phs[i] = s.d.ph(i + 1)
			args[i] = id
		}
		list, err := s.scanProspects(ctx, cols, q+" WHERE id IN ("+strings.Join(phs, ", ")+")", args...)
		if err != nil {
			return err
		}
		found = make(map[string]*model.Prospect, len(list))
		for _, p := range list {
			found[p.ID] = p
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "store: get prospects")
	}

	out := make([]*model.Prospect, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if p, ok := found[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *sqlStore) ListProspects(ctx context.Context, filter model.ProspectFilter) ([]*model.Prospect, error) {
	var out []*model.Prospect
	err := s.withColumns(ctx, "list prospects", func(cs model.ColumnSet) error {
		q, args, cols, post := listProspectsQuery(s.d, cs, filter)
		list, err := s.scanProspects(ctx, cols, q, args...)
		if err != nil {
			return err
		}
		if post {
			list = applyPostFilter(list, filter)
		}
		out = list
		return nil
	})
	return out, eris.Wrap(err, "store: list prospects")
}

func (s *sqlStore) scanProspects(ctx context.Context, cols []prospectColumn, q string, args ...any) ([]*model.Prospect, error) {
	r, err := s.conn.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []*model.Prospect
	for r.Next() {
		p, err := scanProspect(r, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, r.Err()
}

// UpdateProspect persists every field of p and refreshes the cached stage.
// With a version column the write is a compare-and-set against p.Version;
// a concurrent change yields ErrConflict.
func (s *sqlStore) UpdateProspect(ctx context.Context, p *model.Prospect) error {
	prepareWrite(p, s.now())

	var versioned bool
	err := s.withColumns(ctx, "update prospect", func(cs model.ColumnSet) error {
		versioned = cs.Has(model.ColVersion)
		q, args := updateProspect(s.d, cs, p)
		n, err := s.conn.exec(ctx, q, args...)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if !versioned {
			return ErrNotFound
		}
		exists, err := s.exists(ctx, "prospects", p.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrConflict
		}
		return ErrNotFound
	})
	switch {
	case err == nil:
		if versioned {
			p.Version++
		}
		return nil
	case errors.Is(err, ErrConflict), errors.Is(err, ErrNotFound):
		return err
	default:
		return eris.Wrapf(err, "store: update prospect %s", p.ID)
	}
}

func (s *sqlStore) exists(ctx context.Context, table, id string) (bool, error) {
	var one int
	err := s.conn.queryRow(ctx, "SELECT 1 FROM "+table+" WHERE id = "+s.d.ph(1), id).Scan(&one)
	if errors.Is(err, errNoRows) {
		return false, nil
	}
	return err == nil, err
}

// CountByStage counts prospects by resolved stage. Stages are resolved from
// the status axes rather than the cached column so stale caches never skew
// the counts.
func (s *sqlStore) CountByStage(ctx context.Context, sourceType model.SourceType) (map[model.Stage]int, error) {
	q := statusSelect(s.d, s.Columns())
	var args []any
	if sourceType != "" {
		q += " WHERE source_type = " + s.d.ph(1)
		args = append(args, string(sourceType))
	}

	list, err := s.statusRows(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: count by stage")
	}

	counts := make(map[model.Stage]int, len(model.Stages()))
	for _, st := range model.Stages() {
		counts[st] = 0
	}
	for i := range list {
		counts[stage.Resolve(&list[i].status)]++
	}
	return counts, nil
}

func (s *sqlStore) statusRows(ctx context.Context, q string, args ...any) ([]statusRow, error) {
	r, err := s.conn.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []statusRow
	for r.Next() {
		row, err := scanStatusRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, r.Err()
}

// RepairStatuses resets NULL or empty status columns to their defaults and
// refreshes cached stages that disagree with the resolver. It returns the
// number of rows touched by either repair.
func (s *sqlStore) RepairStatuses(ctx context.Context) (int, error) {
	n, err := s.conn.exec(ctx, repairStatusesSQL)
	if err != nil {
		return 0, eris.Wrap(err, "store: repair statuses")
	}
	repaired := int(n)

	cs := s.Columns()
	if !cs.Has(model.ColStage) {
		return repaired, nil
	}

	list, err := s.statusRows(ctx, statusSelect(s.d, cs))
	if err != nil {
		return repaired, eris.Wrap(err, "store: load statuses")
	}
	for i := range list {
		want := stage.Resolve(&list[i].status)
		if string(want) == list[i].stage {
			continue
		}
		if _, err := s.conn.exec(ctx,
			"UPDATE prospects SET stage = "+s.d.ph(1)+" WHERE id = "+s.d.ph(2),
			string(want), list[i].id,
		); err != nil {
			return repaired, eris.Wrapf(err, "store: refresh stage %s", list[i].id)
		}
		repaired++
	}
	if repaired > 0 {
		zap.L().Info("store: repaired prospect statuses", zap.Int("rows", repaired))
	}
	return repaired, nil
}

// --- jobs ---

func (s *sqlStore) CreateJob(ctx context.Context, jobType model.JobType, params model.JobParams) (*model.Job, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal job params")
	}

	now := s.now()
	j := &model.Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Params:    params,
		Status:    model.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	d := s.d
	_, err = s.conn.exec(ctx,
		"INSERT INTO jobs (id, job_type, params, status, created_at, updated_at) VALUES ("+
			d.ph(1)+", "+d.ph(2)+", "+d.ph(3)+", "+d.ph(4)+", "+d.ph(5)+", "+d.ph(6)+")",
		j.ID, string(jobType), string(paramsJSON), string(model.JobPending), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: insert job")
	}
	return j, nil
}

func (s *sqlStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	j, err := scanJob(s.conn.queryRow(ctx, s.d.jobSelect()+" WHERE id = "+s.d.ph(1), id))
	if errors.Is(err, errNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get job %s", id)
	}
	return j, nil
}

func (s *sqlStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	q, args := jobListQuery(s.d, filter)
	r, err := s.conn.query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list jobs")
	}
	defer r.Close()

	var jobs []model.Job
	for r.Next() {
		j, err := scanJob(r)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(r.Err(), "store: list jobs iterate")
}

// StartJob moves a job from pending to running. Only one caller can win the
// compare-and-set; the others get ErrJobNotPending.
func (s *sqlStore) StartJob(ctx context.Context, id string) (*model.Job, error) {
	now := s.now()
	d := s.d
	n, err := s.conn.exec(ctx,
		"UPDATE jobs SET status = "+d.ph(1)+", started_at = "+d.ph(2)+", updated_at = "+d.ph(3)+
			" WHERE id = "+d.ph(4)+" AND status = "+d.ph(5),
		string(model.JobRunning), now, now, id, string(model.JobPending),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "store: start job %s", id)
	}
	if n == 0 {
		exists, err := s.exists(ctx, "jobs", id)
		if err != nil {
			return nil, eris.Wrapf(err, "store: start job %s", id)
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrJobNotPending
	}
	return s.GetJob(ctx, id)
}

// TouchJob refreshes the heartbeat of a running job.
func (s *sqlStore) TouchJob(ctx context.Context, id string) error {
	d := s.d
	n, err := s.conn.exec(ctx,
		"UPDATE jobs SET updated_at = "+d.ph(1)+" WHERE id = "+d.ph(2)+" AND status = "+d.ph(3),
		s.now(), id, string(model.JobRunning),
	)
	if err != nil {
		return eris.Wrapf(err, "store: touch job %s", id)
	}
	if n == 0 {
		return ErrJobNotRunning
	}
	return nil
}

// FinishJob records the terminal status of a running job.
func (s *sqlStore) FinishJob(ctx context.Context, id string, status model.JobStatus, result *model.JobResult, errMsg string) error {
	if status != model.JobCompleted && status != model.JobFailed {
		return eris.Errorf("store: %q is not a terminal job status", status)
	}

	var resultArg any
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return eris.Wrap(err, "store: marshal job result")
		}
		resultArg = string(b)
	}
	var errArg any
	if errMsg != "" {
		errArg = model.TruncateError(errMsg)
	}

	now := s.now()
	d := s.d
	n, err := s.conn.exec(ctx,
		"UPDATE jobs SET status = "+d.ph(1)+", result = "+d.ph(2)+", error_message = "+d.ph(3)+
			", completed_at = "+d.ph(4)+", updated_at = "+d.ph(5)+
			" WHERE id = "+d.ph(6)+" AND status = "+d.ph(7),
		string(status), resultArg, errArg, now, now, id, string(model.JobRunning),
	)
	if err != nil {
		return eris.Wrapf(err, "store: finish job %s", id)
	}
	if n == 0 {
		exists, err := s.exists(ctx, "jobs", id)
		if err != nil {
			return eris.Wrapf(err, "store: finish job %s", id)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrJobNotRunning
	}
	return nil
}

// StaleJobMessage is recorded on running jobs failed by ResetStaleJobs.
const StaleJobMessage = "job heartbeat expired; marked failed"

// ResetStaleJobs fails running jobs whose heartbeat is older than cutoff.
func (s *sqlStore) ResetStaleJobs(ctx context.Context, cutoff time.Time) (int, error) {
	now := s.now()
	d := s.d
	n, err := s.conn.exec(ctx,
		"UPDATE jobs SET status = "+d.ph(1)+", error_message = "+d.ph(2)+
			", completed_at = "+d.ph(3)+", updated_at = "+d.ph(4)+
			" WHERE status = "+d.ph(5)+" AND updated_at < "+d.ph(6),
		string(model.JobFailed), StaleJobMessage, now, now, string(model.JobRunning), cutoff.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "store: reset stale jobs")
	}
	return int(n), nil
}

func (s *sqlStore) CountJobsByStatus(ctx context.Context) (map[model.JobStatus]int, error) {
	r, err := s.conn.query(ctx, "SELECT status, COUNT(*) FROM jobs GROUP BY status")
	if err != nil {
		return nil, eris.Wrap(err, "store: count jobs")
	}
	defer r.Close()

	counts := map[model.JobStatus]int{
		model.JobPending: 0, model.JobRunning: 0, model.JobCompleted: 0, model.JobFailed: 0,
	}
	for r.Next() {
		var status string
		var n int
		if err := r.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "store: scan job count")
		}
		counts[model.JobStatus(status)] = n
	}
	return counts, eris.Wrap(r.Err(), "store: count jobs iterate")
}
