package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return newPostgresFromPool(mock), mock
}

// anyArgs matches n arguments of any value.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func expectAdvisoryLock(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec("SELECT pg_advisory_lock").WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))
}

func expectAdvisoryUnlock(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec("SELECT pg_advisory_unlock").WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))
}

func TestPostgresStore_DetectColumns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery("information_schema.columns").
		WillReturnRows(pgxmock.NewRows([]string{"column_name"}).
			AddRow("id").AddRow("domain").AddRow("thread_id").AddRow("version").AddRow("legacy_col"))

	cs := s.detectColumns(context.Background())
	assert.True(t, cs.Has(model.ColThreadID))
	assert.True(t, cs.Has(model.ColVersion))
	assert.False(t, cs.Has(model.ColFinalBody))
	assert.False(t, cs.Has("legacy_col"))
	assert.True(t, s.Columns().Has(model.ColVersion))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DetectColumns_ErrorFallsBackToSafe(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	s.setColumns(model.FullColumnSet())

	mock.ExpectQuery("information_schema.columns").WillReturnError(errors.New("permission denied"))

	cs := s.detectColumns(context.Background())
	assert.Empty(t, cs.Optional())
	assert.Empty(t, s.Columns().Optional())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_FreshDB(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	files, err := loadMigrations("postgres")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	expectAdvisoryLock(mock)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT filename FROM schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"filename"}))
	for _, f := range files {
		mock.ExpectExec(".*").WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectExec("INSERT INTO schema_migrations").
			WithArgs(f.name).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	expectAdvisoryUnlock(mock)
	mock.ExpectQuery("information_schema.columns").
		WillReturnRows(pgxmock.NewRows([]string{"column_name"}).AddRow("id").AddRow("thread_id"))
	mock.ExpectExec("UPDATE prospects SET").WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.True(t, s.Columns().Has(model.ColThreadID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_AllApplied(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	files, err := loadMigrations("postgres")
	require.NoError(t, err)
	applied := pgxmock.NewRows([]string{"filename"})
	for _, f := range files {
		applied.AddRow(f.name)
	}

	expectAdvisoryLock(mock)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT filename FROM schema_migrations").WillReturnRows(applied)
	expectAdvisoryUnlock(mock)
	mock.ExpectQuery("information_schema.columns").
		WillReturnRows(pgxmock.NewRows([]string{"column_name"}).AddRow("id"))
	mock.ExpectExec("UPDATE prospects SET").WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_LockError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec("SELECT pg_advisory_lock").WithArgs(migrationLockID).WillReturnError(errors.New("connection reset"))

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "advisory lock")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetJob_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM jobs WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StartJob_NotPending(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE jobs SET status = \$1`).
		WithArgs("running", pgxmock.AnyArg(), pgxmock.AnyArg(), "job-1", "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT 1 FROM jobs WHERE id = \$1`).
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{"one"}).AddRow(1))

	_, err := s.StartJob(context.Background(), "job-1")
	assert.ErrorIs(t, err, ErrJobNotPending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StartJob_Missing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE jobs SET status = \$1`).
		WithArgs("running", pgxmock.AnyArg(), pgxmock.AnyArg(), "job-x", "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT 1 FROM jobs`).
		WithArgs("job-x").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.StartJob(context.Background(), "job-x")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinishJob_RejectsNonTerminal(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	err := s.FinishJob(context.Background(), "job-1", model.JobRunning, nil, "")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinishJob_WritesResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	res := &model.JobResult{Label: "drafted", Succeeded: 1, Total: 1}
	mock.ExpectExec(`UPDATE jobs SET status = \$1, result = \$2`).
		WithArgs("completed", `{"drafted":1,"failed":0,"total":1}`, nil,
			pgxmock.AnyArg(), pgxmock.AnyArg(), "job-1", "running").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.FinishJob(context.Background(), "job-1", model.JobCompleted, res, ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ResetStaleJobs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE jobs SET status = \$1, error_message = \$2`).
		WithArgs("failed", StaleJobMessage, pgxmock.AnyArg(), pgxmock.AnyArg(), "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := s.ResetStaleJobs(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountJobsByStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery("SELECT status, COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 2).AddRow("failed", 1))

	counts, err := s.CountJobsByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, counts[model.JobPending])
	assert.Equal(t, 1, counts[model.JobFailed])
	assert.Equal(t, 0, counts[model.JobRunning])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProspect_VersionConflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	s.setColumns(model.FullColumnSet())

	p := model.NewWebsiteProspect("acme.com")
	p.ID = "p-1"
	p.Version = 3
	_, args := updateProspect(postgresDialect, s.Columns(), p)

	mock.ExpectExec(`UPDATE prospects SET .* WHERE id = \$\d+ AND COALESCE\(version, 0\) = \$\d+`).
		WithArgs(anyArgs(len(args))...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT 1 FROM prospects WHERE id = \$1`).
		WithArgs("p-1").
		WillReturnRows(pgxmock.NewRows([]string{"one"}).AddRow(1))

	err := s.UpdateProspect(context.Background(), p)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, int64(3), p.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProspect_BumpsVersion(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	s.setColumns(model.FullColumnSet())

	p := model.NewWebsiteProspect("acme.com")
	p.ID = "p-1"
	p.Version = 3
	_, args := updateProspect(postgresDialect, s.Columns(), p)

	mock.ExpectExec(`UPDATE prospects SET`).
		WithArgs(anyArgs(len(args))...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdateProspect(context.Background(), p))
	assert.Equal(t, int64(4), p.Version)
	assert.Equal(t, model.StageDiscovered, p.Stage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProspect_UnversionedMissing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	p := model.NewWebsiteProspect("acme.com")
	p.ID = "p-404"
	_, args := updateProspect(postgresDialect, s.Columns(), p)

	mock.ExpectExec(`UPDATE prospects SET`).
		WithArgs(anyArgs(len(args))...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateProspect(context.Background(), p)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateProspect_Duplicate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	p := model.NewWebsiteProspect("acme.com")
	_, args := insertProspect(postgresDialect, s.Columns(), p)

	mock.ExpectExec(`INSERT INTO prospects .* ON CONFLICT DO NOTHING`).
		WithArgs(anyArgs(len(args))...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	created, err := s.CreateProspect(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}
