package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sells-group/outreach-cli/internal/model"
)

func formatJob(out io.Writer, j *model.Job) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "ID:\t%s\n", j.ID)
	_, _ = fmt.Fprintf(w, "Type:\t%s\n", j.Type)
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", j.Status)
	_, _ = fmt.Fprintf(w, "Result:\t%s\n", resultString(j.Result))
	if d := jobDuration(*j, time.Now()); d > 0 {
		_, _ = fmt.Fprintf(w, "Duration:\t%s\n", d)
	}
	if j.ErrorMessage != "" {
		_, _ = fmt.Fprintf(w, "Error:\t%s\n", j.ErrorMessage)
	}
	_ = w.Flush()
}

func formatJobsList(out io.Writer, js []model.Job) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tCREATED\tDURATION\tRESULT\tERROR")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-------\t--------\t------\t-----")

	now := time.Now()
	for _, j := range js {
		dur := "-"
		if d := jobDuration(j, now); d > 0 {
			dur = d.String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(j.ID),
			j.Type,
			j.Status,
			j.CreatedAt.Format("2006-01-02 15:04"),
			dur,
			resultString(j.Result),
			truncate(j.ErrorMessage, 50),
		)
	}
	_ = w.Flush()
}

func formatProspectsList(out io.Writer, ps []*model.Prospect) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPROSPECT\tSTAGE\tEMAIL\tVERIFY\tDRAFT\tSEND\tFOLLOWUPS")
	_, _ = fmt.Fprintln(w, "--\t--------\t-----\t-----\t------\t-----\t----\t---------")

	for _, p := range ps {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			truncateID(p.ID),
			truncate(p.Label(), 40),
			p.Stage,
			p.Email(),
			p.VerificationStatus,
			p.DraftStatus,
			p.SendStatus,
			p.FollowupsSent,
		)
	}
	_ = w.Flush()
}

func resultString(r *model.JobResult) string {
	if r == nil {
		return "-"
	}
	s := fmt.Sprintf("%s=%d failed=%d", r.Label, r.Succeeded, r.Failed)
	if r.Skipped > 0 {
		s += fmt.Sprintf(" skipped=%d", r.Skipped)
	}
	if r.NoResult > 0 {
		s += fmt.Sprintf(" no_result=%d", r.NoResult)
	}
	return s + fmt.Sprintf(" total=%d", r.Total)
}

// jobDuration is the run time of a finished job, or the time since start
// of a running one.
func jobDuration(j model.Job, now time.Time) time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	end := now
	if j.CompletedAt != nil {
		end = *j.CompletedAt
	}
	return end.Sub(*j.StartedAt).Round(time.Second)
}

// truncateID shortens a UUID to its first segment for table output.
func truncateID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return truncate(id, 12)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
