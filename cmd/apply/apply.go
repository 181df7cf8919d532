package apply

import (
	"fmt"

	"github.com/spf13/cobra"

	planCmd "github.com/pgschema/viewmig/cmd/plan"
	"github.com/pgschema/viewmig/cmd/util"
	"github.com/pgschema/viewmig/internal/apply"
	"github.com/pgschema/viewmig/internal/history"
	"github.com/pgschema/viewmig/internal/logger"
)

var (
	applyDryRun     bool
	applyRollbackTo string
)

var ApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply migration records to a database",
	Long: `Run every migration record that has not been applied yet, in order, and
record it in the viewmig_migrations table. With --rollback-to the records
after the named one are reverted instead; use "zero" to revert everything.`,
	RunE:         runApply,
	SilenceUsage: true,
}

func init() {
	util.AddCommonFlags(ApplyCmd)

	ApplyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Print the statements instead of executing them")
	ApplyCmd.Flags().StringVar(&applyRollbackTo, "rollback-to", "", "Revert applied records after this one (\"zero\" reverts all)")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logger.Get()

	settings, err := util.ResolveSettings(cmd)
	if err != nil {
		return err
	}

	records, err := history.NewStore(settings.HistoryDir).Load()
	if err != nil {
		return err
	}

	if applyRollbackTo == "" {
		// Declarations that were never written to history are not applied
		if pending, err := planCmd.GeneratePlan(ctx, settings, false); err != nil {
			log.Warn("Could not compare declarations with history", "error", err)
		} else if pending.HasChanges() {
			log.Warn("Declarations have changes that are not in migration history; run 'viewmig plan --write' first",
				"operations", len(pending.Operations()))
		}
	}

	db, err := util.Connect(ctx, settings.Engine, settings.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	var opts []apply.Option
	if applyDryRun {
		opts = append(opts, apply.WithDryRun(cmd.OutOrStdout()))
	}
	applier := apply.New(db, settings.Engine, opts...)

	out := cmd.ErrOrStderr()
	verb, undo := "Applied", "Reverted"
	if applyDryRun {
		verb, undo = "Would apply", "Would revert"
	}
	if applyRollbackTo != "" {
		reverted, err := applier.Rollback(ctx, records, applyRollbackTo)
		if err != nil {
			return err
		}
		if len(reverted) == 0 {
			fmt.Fprintln(out, "Nothing to roll back.")
			return nil
		}
		for _, name := range reverted {
			fmt.Fprintf(out, "%s %s\n", undo, name)
		}
		return nil
	}

	applied, err := applier.Apply(ctx, records)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Fprintln(out, "No migrations to apply. Database is up to date.")
		return nil
	}
	for _, name := range applied {
		fmt.Fprintf(out, "%s %s\n", verb, name)
	}
	return nil
}
