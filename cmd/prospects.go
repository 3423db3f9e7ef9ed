package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/export"
	"github.com/sells-group/outreach-cli/internal/jobs"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/validate"
)

var prospectsCmd = &cobra.Command{
	Use:   "prospects",
	Short: "Inspect, add, import and export prospects",
}

// -- prospects list --

var prospectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prospects, oldest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		filter, err := prospectFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ps, err := st.ListProspects(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "prospects list")
		}
		if len(ps) == 0 {
			_, _ = fmt.Fprintln(os.Stderr, "No prospects found.")
			return nil
		}
		formatProspectsList(os.Stdout, ps)
		return nil
	},
}

func prospectFilterFromFlags(cmd *cobra.Command) (model.ProspectFilter, error) {
	var f model.ProspectFilter
	src, _ := cmd.Flags().GetString("source-type")
	if src != "" {
		f.SourceType = model.SourceType(src)
		if !f.SourceType.Valid() {
			return f, eris.Errorf("invalid --source-type %q (want website or social)", src)
		}
	}
	if s, _ := cmd.Flags().GetString("stage"); s != "" {
		f.Stage = model.Stage(strings.ToUpper(s))
		if !validStage(f.Stage) {
			return f, eris.Errorf("invalid --stage %q", s)
		}
	}
	f.Limit, _ = cmd.Flags().GetInt("limit")
	return f, nil
}

func validStage(s model.Stage) bool {
	for _, known := range model.Stages() {
		if s == known {
			return true
		}
	}
	return false
}

// -- prospects show --

var prospectsShowCmd = &cobra.Command{
	Use:   "show <prospect-id>",
	Short: "Show a prospect as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := st.GetProspect(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "prospects show")
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

// -- prospects add --

var prospectsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a website (--domain) or social (--profile-url) prospect",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		p, err := prospectFromFlags(cmd)
		if err != nil {
			return err
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		created, err := st.CreateProspect(ctx, p)
		if err != nil {
			return eris.Wrap(err, "prospects add")
		}
		if !created {
			_, _ = fmt.Fprintf(os.Stderr, "%s already exists\n", p.Label())
			return nil
		}
		_, _ = fmt.Fprintln(os.Stdout, p.ID)
		return nil
	},
}

func prospectFromFlags(cmd *cobra.Command) (*model.Prospect, error) {
	domain, _ := cmd.Flags().GetString("domain")
	profileURL, _ := cmd.Flags().GetString("profile-url")

	switch {
	case domain != "" && profileURL != "":
		return nil, eris.New("use either --domain or --profile-url, not both")
	case domain != "":
		d, ok := validate.NormalizeDomain(domain)
		if !ok {
			return nil, eris.Errorf("invalid domain %q", domain)
		}
		return model.NewWebsiteProspect(d), nil
	case profileURL != "":
		platform, _ := cmd.Flags().GetString("platform")
		pl := model.Platform(strings.ToLower(platform))
		if pl == model.PlatformNone || !pl.Valid() {
			return nil, eris.Errorf("--profile-url needs --platform (linkedin, instagram, facebook, tiktok)")
		}
		profile, username, ok := jobs.ParseProfile(pl, profileURL)
		if !ok {
			return nil, eris.Errorf("%q is not a %s profile url", profileURL, pl)
		}
		return model.NewSocialProspect(pl, profile, username), nil
	}
	return nil, eris.New("one of --domain or --profile-url is required")
}

// -- prospects repair --

var prospectsRepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Fill empty statuses and recompute stages",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.RepairStatuses(ctx)
		if err != nil {
			return eris.Wrap(err, "prospects repair")
		}
		_, _ = fmt.Fprintf(os.Stdout, "%d prospect(s) repaired\n", n)
		return nil
	},
}

// -- prospects export --

var prospectsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export prospects to .xlsx or .csv",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out, _ := cmd.Flags().GetString("out")
		filter, err := prospectFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ps, err := st.ListProspects(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "prospects export")
		}
		if out == "" || out == "-" {
			return export.WriteCSV(os.Stdout, ps)
		}
		if err := export.WriteFile(out, ps); err != nil {
			return err
		}
		zap.L().Info("prospects exported", zap.String("path", out), zap.Int("count", len(ps)))
		return nil
	},
}

// -- prospects import --

var prospectsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import website prospects from a .csv or .xlsx list of domains",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		path, _ := cmd.Flags().GetString("file")

		domains, invalid, err := export.ReadDomains(path)
		if err != nil {
			return err
		}
		for _, v := range invalid {
			zap.L().Warn("prospects import: skipping invalid domain", zap.String("value", v))
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var created, existing int
		for _, d := range domains {
			ok, err := st.CreateProspect(ctx, model.NewWebsiteProspect(d))
			if err != nil {
				return eris.Wrapf(err, "prospects import: %s", d)
			}
			if ok {
				created++
			} else {
				existing++
			}
		}
		_, _ = fmt.Fprintf(os.Stdout, "created=%d existing=%d invalid=%d\n", created, existing, len(invalid))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{prospectsListCmd, prospectsExportCmd} {
		c.Flags().String("source-type", "", "filter by source type (website, social)")
		c.Flags().String("stage", "", "filter by stage (DISCOVERED, SCRAPED, VERIFIED, DRAFTED, SENT, UNKNOWN)")
	}
	prospectsListCmd.Flags().Int("limit", 50, "max number of prospects to display")
	prospectsExportCmd.Flags().Int("limit", 0, "max number of prospects to export (0 = all)")
	prospectsExportCmd.Flags().String("out", "", "output path (.xlsx or .csv); stdout CSV when empty")

	prospectsAddCmd.Flags().String("domain", "", "website domain")
	prospectsAddCmd.Flags().String("profile-url", "", "social profile url")
	prospectsAddCmd.Flags().String("platform", "", "social platform (linkedin, instagram, facebook, tiktok)")

	prospectsImportCmd.Flags().String("file", "", "path to .csv or .xlsx with a domain column")
	_ = prospectsImportCmd.MarkFlagRequired("file")

	prospectsCmd.AddCommand(prospectsListCmd)
	prospectsCmd.AddCommand(prospectsShowCmd)
	prospectsCmd.AddCommand(prospectsAddCmd)
	prospectsCmd.AddCommand(prospectsRepairCmd)
	prospectsCmd.AddCommand(prospectsExportCmd)
	prospectsCmd.AddCommand(prospectsImportCmd)
	rootCmd.AddCommand(prospectsCmd)
}
