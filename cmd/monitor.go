package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/monitoring"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Reap stale jobs and alert on job health",
	Long:  "Periodically fails running jobs whose heartbeat is older than jobs.stale_after_mins, collects job and provider metrics and posts alerts to monitoring.webhook_url.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		state, closeState, err := initProviderState(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeState()

		reaper := monitoring.NewReaper(st, cfg.Jobs.StaleAfter())
		checker := monitoring.NewChecker(
			reaper,
			monitoring.NewCollector(st, state),
			monitoring.NewAlerter(cfg.Monitoring, monitoring.WithWebhookRetry(retryConfig(cfg.Retry))),
			cfg.Monitoring,
		)

		if once, _ := cmd.Flags().GetBool("once"); once {
			snap := checker.Check(ctx, zap.L().With(zap.String("component", "monitoring.checker")))
			if snap == nil {
				return eris.New("monitor: metrics collection failed")
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}

		checker.Run(ctx)
		return nil
	},
}

func init() {
	monitorCmd.Flags().Bool("once", false, "run a single check and print the metrics snapshot")
	rootCmd.AddCommand(monitorCmd)
}
