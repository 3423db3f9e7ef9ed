package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and repair prospect statuses",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := initStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		zap.L().Info("migrations applied",
			zap.String("driver", cfg.Store.Driver),
			zap.Strings("optional_columns", st.Columns().Optional()),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
