package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/jobs"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/monitoring"
	"github.com/sells-group/outreach-cli/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Create, run and inspect pipeline jobs",
	Long:  "A job runs one pipeline step (discovery, social_discovery, enrichment, verification, drafting, send, followup) over a set of prospects or queries.",
}

// -- jobs create --

var jobsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a pending job",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		jt, _ := cmd.Flags().GetString("type")
		params, err := paramsFromFlags(cmd)
		if err != nil {
			return err
		}
		if err := jobs.ValidateParams(model.JobType(jt), params); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		job, err := st.CreateJob(ctx, model.JobType(jt), params)
		if err != nil {
			return eris.Wrap(err, "jobs create")
		}

		if run, _ := cmd.Flags().GetBool("run"); run {
			return runJob(cmd, job.ID)
		}
		_, _ = fmt.Fprintln(os.Stdout, job.ID)
		return nil
	},
}

// paramsFromFlags merges --params-file with the individual flags; flags
// win.
func paramsFromFlags(cmd *cobra.Command) (model.JobParams, error) {
	var params model.JobParams
	if path, _ := cmd.Flags().GetString("params-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return params, eris.Wrap(err, "read params file")
		}
		if params, err = jobs.ParseParamsYAML(data); err != nil {
			return params, err
		}
	}

	if ids, _ := cmd.Flags().GetStringSlice("ids"); len(ids) > 0 {
		params.ProspectIDs = ids
	}
	if queries, _ := cmd.Flags().GetStringArray("query"); len(queries) > 0 {
		params.Queries = queries
	}
	if src, _ := cmd.Flags().GetString("source-type"); src != "" {
		params.SourceType = model.SourceType(src)
	}
	if platform, _ := cmd.Flags().GetString("platform"); platform != "" {
		params.Platform = model.Platform(strings.ToLower(platform))
	}
	if cmd.Flags().Changed("limit") {
		params.Limit, _ = cmd.Flags().GetInt("limit")
	}
	if cmd.Flags().Changed("location-code") {
		params.LocationCode, _ = cmd.Flags().GetInt("location-code")
	}
	return params, nil
}

// -- jobs run --

var jobsRunCmd = &cobra.Command{
	Use:   "run <job-id>",
	Short: "Run a pending job to completion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(cmd, args[0])
	},
}

func runJob(cmd *cobra.Command, id string) error {
	ctx := cmd.Context()
	e, err := initEnv(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	job, err := e.runner.Run(ctx, id)
	if err != nil {
		return eris.Wrap(err, "jobs run")
	}
	formatJob(os.Stdout, job)
	if job.Status == model.JobFailed {
		return eris.Errorf("job %s failed: %s", job.ID, job.ErrorMessage)
	}
	return nil
}

// -- jobs run-pending --

var jobsRunPendingCmd = &cobra.Command{
	Use:   "run-pending",
	Short: "Run pending jobs, oldest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		e, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		done, err := jobs.NewWorker(e.runner, e.st, cfg.Jobs.MaxConcurrent).RunPending(ctx, limit)
		if len(done) > 0 {
			formatJobsList(os.Stdout, derefJobs(done))
		} else if err == nil {
			_, _ = fmt.Fprintln(os.Stderr, "No pending jobs.")
		}
		return eris.Wrap(err, "jobs run-pending")
	},
}

func derefJobs(js []*model.Job) []model.Job {
	out := make([]model.Job, 0, len(js))
	for _, j := range js {
		out = append(out, *j)
	}
	return out
}

// -- jobs show --

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show a job as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		job, err := st.GetJob(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "jobs show")
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

// -- jobs list --

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		jt, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")

		list, err := st.ListJobs(ctx, store.JobFilter{
			Status: model.JobStatus(status),
			Type:   model.JobType(jt),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "jobs list")
		}
		if len(list) == 0 {
			_, _ = fmt.Fprintln(os.Stderr, "No jobs found.")
			return nil
		}
		formatJobsList(os.Stdout, list)
		return nil
	},
}

// -- jobs reap --

var jobsReapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Fail running jobs without a recent heartbeat",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		staleAfter := cfg.Jobs.StaleAfter()
		if cmd.Flags().Changed("stale-after") {
			staleAfter, _ = cmd.Flags().GetDuration("stale-after")
		}
		if staleAfter <= 0 {
			return eris.New("jobs reap: set --stale-after or jobs.stale_after_mins")
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := monitoring.NewReaper(st, staleAfter).Reap(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("jobs reap complete", zap.Int("failed", n), zap.Duration("stale_after", staleAfter))
		_, _ = fmt.Fprintf(os.Stdout, "%d stale job(s) marked failed\n", n)
		return nil
	},
}

func init() {
	jobsCreateCmd.Flags().String("type", "", "job type (discovery, social_discovery, enrichment, verification, drafting, send, followup)")
	jobsCreateCmd.Flags().StringSlice("ids", nil, "explicit prospect ids, comma separated")
	jobsCreateCmd.Flags().StringArray("query", nil, "search query (repeatable)")
	jobsCreateCmd.Flags().String("source-type", "", "restrict selection to website or social prospects")
	jobsCreateCmd.Flags().String("platform", "", "social platform for social_discovery (linkedin, instagram, facebook, tiktok)")
	jobsCreateCmd.Flags().Int("limit", 0, "max items to process (0 = config default)")
	jobsCreateCmd.Flags().Int("location-code", 0, "SERP location code for discovery")
	jobsCreateCmd.Flags().String("params-file", "", "YAML file with job params")
	jobsCreateCmd.Flags().Bool("run", false, "run the job immediately")
	_ = jobsCreateCmd.MarkFlagRequired("type")

	jobsRunPendingCmd.Flags().Int("limit", 10, "max number of pending jobs to run")

	jobsListCmd.Flags().String("status", "", "filter by status (pending, running, completed, failed)")
	jobsListCmd.Flags().String("type", "", "filter by job type")
	jobsListCmd.Flags().Int("limit", 50, "max number of jobs to display")

	jobsReapCmd.Flags().Duration("stale-after", 0, "heartbeat age after which a running job is failed (e.g. 2h)")

	jobsCmd.AddCommand(jobsCreateCmd)
	jobsCmd.AddCommand(jobsRunCmd)
	jobsCmd.AddCommand(jobsRunPendingCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsReapCmd)
	rootCmd.AddCommand(jobsCmd)
}

