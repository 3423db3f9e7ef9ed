package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/outreach-cli/internal/model"
)

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	*sqlStore
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. A single connection is kept open so per-connection pragmas hold and
// writers serialize.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	s := &SQLiteStore{sqlStore: newSQLStore(sqliteConn{db: db}, sqliteDialect), db: db}
	s.detectColumns(context.Background())
	return s, nil
}

// sqliteColumnTypes are the declared types used when adding optional
// columns to an existing prospects table.
var sqliteColumnTypes = map[string]string{
	model.ColSourcePlatform: "TEXT NOT NULL DEFAULT 'none'",
	model.ColProfileURL:     "TEXT NOT NULL DEFAULT ''",
	model.ColUsername:       "TEXT NOT NULL DEFAULT ''",
	model.ColStage:          "TEXT NOT NULL DEFAULT 'DISCOVERED'",
	model.ColFinalBody:      "TEXT",
	model.ColThreadID:       "TEXT",
	model.ColSequenceIndex:  "INTEGER",
	model.ColFollowupsSent:  "INTEGER NOT NULL DEFAULT 0",
	model.ColLastSent:       "DATETIME",
	model.ColPageTitle:      "TEXT NOT NULL DEFAULT ''",
	model.ColPageURL:        "TEXT NOT NULL DEFAULT ''",
	model.ColSnippet:        "TEXT NOT NULL DEFAULT ''",
	model.ColRawPayload:     "TEXT",
	model.ColScore:          "REAL",
	model.ColDAEst:          "INTEGER",
	model.ColSERPIntent:     "TEXT NOT NULL DEFAULT ''",
	model.ColSERPConfidence: "REAL",
	model.ColSERPSignals:    "TEXT",
	model.ColLastError:      "TEXT NOT NULL DEFAULT ''",
	model.ColVersion:        "INTEGER NOT NULL DEFAULT 0",
}

var sqliteIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_prospects_domain ON prospects(domain) WHERE domain <> ''`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_prospects_profile_url ON prospects(profile_url) WHERE profile_url <> ''`,
	`CREATE INDEX IF NOT EXISTS idx_prospects_stage ON prospects(source_type, stage)`,
	`CREATE INDEX IF NOT EXISTS idx_prospects_created ON prospects(created_at)`,
}

// Migrate applies pending migrations, adds optional prospect columns the
// table lacks, renegotiates columns and repairs statuses.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "store.migrate"))

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename   TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		return eris.Wrap(err, "sqlite: ensure migration table")
	}

	migrations, err := loadMigrations("sqlite")
	if err != nil {
		return err
	}
	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if applied[m.name] {
			continue
		}
		log.Info("applying migration", zap.String("file", m.name))
		if _, err := s.db.ExecContext(ctx, m.sql); err != nil {
			return eris.Wrapf(err, "sqlite: apply migration %s", m.name)
		}
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO schema_migrations (filename) VALUES (?)", m.name,
		); err != nil {
			return eris.Wrapf(err, "sqlite: record migration %s", m.name)
		}
	}

	cs := s.detectColumns(ctx)
	for _, col := range cs.Missing() {
		log.Info("adding prospects column", zap.String("column", col))
		if _, err := s.db.ExecContext(ctx,
			"ALTER TABLE prospects ADD COLUMN "+col+" "+sqliteColumnTypes[col],
		); err != nil {
			return eris.Wrapf(err, "sqlite: add column %s", col)
		}
	}
	for _, idx := range sqliteIndexes {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return eris.Wrap(err, "sqlite: create index")
		}
	}

	s.detectColumns(ctx)
	if _, err := s.RepairStatuses(ctx); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	r, err := s.db.QueryContext(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query applied migrations")
	}
	defer r.Close() //nolint:errcheck

	applied := make(map[string]bool)
	for r.Next() {
		var name string
		if err := r.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan migration row")
		}
		applied[name] = true
	}
	return applied, r.Err()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqliteConn adapts *sql.DB to conn.
type sqliteConn struct {
	db *sql.DB
}

func (c sqliteConn) exec(ctx context.Context, q string, args ...any) (int64, error) {
	res, err := c.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c sqliteConn) query(ctx context.Context, q string, args ...any) (rows, error) {
	r, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{r}, nil
}

func (c sqliteConn) queryRow(ctx context.Context, q string, args ...any) scanner {
	return sqlRow{row: c.db.QueryRowContext(ctx, q, args...)}
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() {
	r.Rows.Close() //nolint:errcheck
}

type sqlRow struct {
	row *sql.Row
}

func (r sqlRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return errNoRows
	}
	return err
}
