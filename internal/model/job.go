package model

import (
	"encoding/json"
	"time"
)

// JobType identifies the pipeline step a job executes.
type JobType string

const (
	JobDiscovery       JobType = "discovery"
	JobSocialDiscovery JobType = "social_discovery"
	JobEnrichment      JobType = "enrichment"
	JobVerification    JobType = "verification"
	JobDrafting        JobType = "drafting"
	JobSend            JobType = "send"
	JobFollowUp        JobType = "followup"
)

// JobTypes returns every job type.
func JobTypes() []JobType {
	return []JobType{JobDiscovery, JobSocialDiscovery, JobEnrichment, JobVerification, JobDrafting, JobSend, JobFollowUp}
}

// SuccessLabel is the result key under which a job type reports successes.
func (t JobType) SuccessLabel() string {
	switch t {
	case JobDiscovery, JobSocialDiscovery:
		return "discovered"
	case JobEnrichment:
		return "enriched"
	case JobVerification:
		return "verified"
	case JobDrafting:
		return "drafted"
	case JobSend:
		return "sent"
	case JobFollowUp:
		return "followed_up"
	}
	return "succeeded"
}

// JobStatus is the execution state of a job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is one execution of a pipeline step over a set of prospects.
type Job struct {
	ID           string     `json:"id"`
	Type         JobType    `json:"job_type"`
	Params       JobParams  `json:"params"`
	Status       JobStatus  `json:"status"`
	Result       *JobResult `json:"result,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// JobParams are the step-specific inputs of a job.
type JobParams struct {
	ProspectIDs  []string   `json:"prospect_ids,omitempty" yaml:"prospect_ids" validate:"omitempty,max=5000,dive,required"`
	SourceType   SourceType `json:"source_type,omitempty" yaml:"source_type" validate:"omitempty,oneof=website social"`
	Limit        int        `json:"limit,omitempty" yaml:"limit" validate:"gte=0,lte=5000"`
	Queries      []string   `json:"queries,omitempty" yaml:"queries" validate:"omitempty,max=100,dive,required"`
	LocationCode int        `json:"location_code,omitempty" yaml:"location_code" validate:"gte=0"`
	Platform     Platform   `json:"platform,omitempty" yaml:"platform" validate:"omitempty,oneof=linkedin instagram facebook tiktok"`
}

// JobResult aggregates per-item outcomes. It serializes as a flat object
// keyed by the job type's success label, e.g.
// {"drafted":1,"failed":0,"total":1}.
type JobResult struct {
	Label     string
	Succeeded int
	Failed    int
	Skipped   int
	NoResult  int
	Total     int
}

// NewJobResult returns an empty result labelled for t.
func NewJobResult(t JobType) *JobResult {
	return &JobResult{Label: t.SuccessLabel()}
}

// MarshalJSON writes the flat result object.
func (r JobResult) MarshalJSON() ([]byte, error) {
	label := r.Label
	if label == "" {
		label = "succeeded"
	}
	m := map[string]int{
		label:    r.Succeeded,
		"failed": r.Failed,
		"total":  r.Total,
	}
	if r.Skipped > 0 {
		m["skipped"] = r.Skipped
	}
	if r.NoResult > 0 {
		m["no_result"] = r.NoResult
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads the flat result object.
func (r *JobResult) UnmarshalJSON(data []byte) error {
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*r = JobResult{}
	for k, v := range m {
		switch k {
		case "failed":
			r.Failed = v
		case "skipped":
			r.Skipped = v
		case "no_result":
			r.NoResult = v
		case "total":
			r.Total = v
		default:
			r.Label = k
			r.Succeeded = v
		}
	}
	return nil
}
