package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/stage"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Report pipeline progress",
}

// stepsReport is the JSON shape of `pipeline steps --json`.
type stepsReport struct {
	SourceType model.SourceType    `json:"source_type,omitempty"`
	ByStage    map[model.Stage]int `json:"by_stage"`
	Counts     stage.Counts        `json:"counts"`
	Unlocked   []model.Step        `json:"unlocked"`
}

var pipelineStepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "Show prospect counts per stage and which steps are unlocked",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		src, _ := cmd.Flags().GetString("source-type")
		sourceType := model.SourceType(src)
		if src != "" && !sourceType.Valid() {
			return eris.Errorf("invalid --source-type %q (want website or social)", src)
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		byStage, err := st.CountByStage(ctx, sourceType)
		if err != nil {
			return eris.Wrap(err, "pipeline steps")
		}
		counts := stage.CountsFromStages(byStage)
		report := stepsReport{
			SourceType: sourceType,
			ByStage:    byStage,
			Counts:     counts,
			Unlocked:   stage.UnlockedSteps(counts),
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		formatStepsReport(report)
		return nil
	},
}

func formatStepsReport(r stepsReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STAGE\tPROSPECTS")
	_, _ = fmt.Fprintln(w, "-----\t---------")
	for _, s := range model.Stages() {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", s, r.ByStage[s])
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "STEP\tSTATUS")
	_, _ = fmt.Fprintln(w, "----\t------")
	for _, step := range []model.Step{model.StepDiscovery, model.StepReview, model.StepDrafting, model.StepSending, model.StepFollowups} {
		status := "locked"
		if stage.IsUnlocked(r.Counts, step) {
			status = "unlocked"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", step, status)
	}
	_ = w.Flush()
}

func init() {
	pipelineStepsCmd.Flags().String("source-type", "", "restrict counts to website or social prospects")
	pipelineStepsCmd.Flags().Bool("json", false, "print the report as JSON")

	pipelineCmd.AddCommand(pipelineStepsCmd)
	rootCmd.AddCommand(pipelineCmd)
}
