package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgschema/viewmig/cmd/util"
	"github.com/pgschema/viewmig/internal/apply"
)

var (
	refreshConcurrently bool
	refreshDryRun       bool
)

var RefreshCmd = &cobra.Command{
	Use:          "refresh <table>",
	Short:        "Refresh a materialized view",
	Long:         "Run REFRESH MATERIALIZED VIEW for one materialized view. PostgreSQL only.",
	Args:         cobra.ExactArgs(1),
	RunE:         runRefresh,
	SilenceUsage: true,
}

func init() {
	util.AddCommonFlags(RefreshCmd)
	RefreshCmd.Flags().BoolVar(&refreshConcurrently, "concurrently", false, "Refresh without locking out reads (needs a unique index)")
	RefreshCmd.Flags().BoolVar(&refreshDryRun, "dry-run", false, "Print the statement instead of executing it")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	settings, err := util.ResolveSettings(cmd)
	if err != nil {
		return err
	}

	var opts []apply.Option
	if refreshDryRun {
		opts = append(opts, apply.WithDryRun(cmd.OutOrStdout()))
		return apply.New(nil, settings.Engine, opts...).Refresh(ctx, args[0], refreshConcurrently)
	}

	db, err := util.Connect(ctx, settings.Engine, settings.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := apply.New(db, settings.Engine).Refresh(ctx, args[0], refreshConcurrently); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Refreshed %s\n", args[0])
	return nil
}
