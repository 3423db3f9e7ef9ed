package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/provider"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect and manage provider restrictions",
}

// knownProviders are the names restrictions may be recorded under.
var knownProviders = []string{
	provider.DataForSEO,
	provider.GoogleSearch,
	provider.Website,
	provider.Hunter,
	provider.Anthropic,
	provider.Gemini,
	provider.Gmail,
}

func checkProviderName(name string) error {
	for _, p := range knownProviders {
		if p == name {
			return nil
		}
	}
	return eris.Errorf("unknown provider %q", name)
}

// -- providers status --

var providersStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configured providers and active restrictions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		state, closeState, err := initProviderState(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeState()

		reg, closeProviders, err := buildRegistry(ctx, cfg)
		defer closeProviders()
		if err != nil {
			return err
		}

		restrictions, err := state.Restrictions(ctx)
		if err != nil {
			return eris.Wrap(err, "providers status")
		}
		configured := make(map[string]bool)
		for _, name := range reg.List() {
			configured[name] = true
		}

		names := append([]string(nil), knownProviders...)
		sort.Strings(names)

		now := time.Now()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "PROVIDER\tCONFIGURED\tRESTRICTED UNTIL\tREMAINING")
		_, _ = fmt.Fprintln(w, "--------\t----------\t----------------\t---------")
		for _, name := range names {
			until, remaining := "-", "-"
			if exp, ok := restrictions[name]; ok {
				until = exp.Local().Format("2006-01-02 15:04:05")
				remaining = exp.Sub(now).Round(time.Second).String()
			}
			_, _ = fmt.Fprintf(w, "%s\t%t\t%s\t%s\n", name, configured[name], until, remaining)
		}
		_ = w.Flush()
		return nil
	},
}

// -- providers restrict --

var providersRestrictCmd = &cobra.Command{
	Use:   "restrict <provider>",
	Short: "Manually restrict a provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := checkProviderName(args[0]); err != nil {
			return err
		}
		d, _ := cmd.Flags().GetDuration("for")

		state, closeState, err := initProviderState(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeState()

		if err := state.SetRestricted(ctx, args[0], d); err != nil {
			return eris.Wrap(err, "providers restrict")
		}
		_, _ = fmt.Fprintf(os.Stdout, "%s restricted\n", args[0])
		return nil
	},
}

// -- providers clear --

var providersClearCmd = &cobra.Command{
	Use:   "clear <provider>",
	Short: "Lift a provider restriction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := checkProviderName(args[0]); err != nil {
			return err
		}

		state, closeState, err := initProviderState(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeState()

		if err := state.ClearRestriction(ctx, args[0]); err != nil {
			return eris.Wrap(err, "providers clear")
		}
		_, _ = fmt.Fprintf(os.Stdout, "%s cleared\n", args[0])
		return nil
	},
}

func init() {
	providersRestrictCmd.Flags().Duration("for", 0, "restriction length (0 = provider_state.default_restriction_secs)")

	providersCmd.AddCommand(providersStatusCmd)
	providersCmd.AddCommand(providersRestrictCmd)
	providersCmd.AddCommand(providersClearCmd)
	rootCmd.AddCommand(providersCmd)
}
