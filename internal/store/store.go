package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
)

var (
	// ErrNotFound is returned when a prospect or job does not exist.
	ErrNotFound = eris.New("store: not found")
	// ErrConflict is returned when a prospect changed since it was read.
	ErrConflict = eris.New("store: version conflict")
	// ErrJobNotPending is returned when starting a job that is not pending.
	ErrJobNotPending = eris.New("store: job is not pending")
	// ErrJobNotRunning is returned when finishing a job that is not running.
	ErrJobNotRunning = eris.New("store: job is not running")
)

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status      model.JobStatus
	Type        model.JobType
	Limit       int
	OldestFirst bool
}

// Store defines the persistence interface for prospects and jobs.
type Store interface {
	// Columns returns the prospect columns negotiated with the schema.
	Columns() model.ColumnSet

	// Prospects
	CreateProspect(ctx context.Context, p *model.Prospect) (bool, error)
	GetProspect(ctx context.Context, id string) (*model.Prospect, error)
	GetProspects(ctx context.Context, ids []string) ([]*model.Prospect, error)
	ListProspects(ctx context.Context, filter model.ProspectFilter) ([]*model.Prospect, error)
	UpdateProspect(ctx context.Context, p *model.Prospect) error
	CountByStage(ctx context.Context, sourceType model.SourceType) (map[model.Stage]int, error)
	RepairStatuses(ctx context.Context) (int, error)

	// Jobs
	CreateJob(ctx context.Context, jobType model.JobType, params model.JobParams) (*model.Job, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)
	StartJob(ctx context.Context, id string) (*model.Job, error)
	TouchJob(ctx context.Context, id string) error
	FinishJob(ctx context.Context, id string, status model.JobStatus, result *model.JobResult, errMsg string) error
	ResetStaleJobs(ctx context.Context, cutoff time.Time) (int, error)
	CountJobsByStatus(ctx context.Context) (map[model.JobStatus]int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
