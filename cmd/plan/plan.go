package plan

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgschema/viewmig/cmd/util"
	"github.com/pgschema/viewmig/internal/declare"
	"github.com/pgschema/viewmig/internal/diff"
	"github.com/pgschema/viewmig/internal/fingerprint"
	"github.com/pgschema/viewmig/internal/history"
	"github.com/pgschema/viewmig/internal/inspect"
	"github.com/pgschema/viewmig/internal/ir"
	"github.com/pgschema/viewmig/internal/logger"
	"github.com/pgschema/viewmig/internal/plan"
)

var (
	outputHuman     string
	outputJSON      string
	outputSQL       string
	outputRollback  string
	planNoColor     bool
	discoverIndexes bool
	writeRecord     bool
	recordName      string
)

var PlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate a migration plan for declared views",
	Long: `Compare the declared views with the state recorded in migration history and
print the operations needed to bring the database in line. With --write the
operations are saved as the next migration record.`,
	RunE:         runPlan,
	SilenceUsage: true,
}

func init() {
	util.AddCommonFlags(PlanCmd)

	PlanCmd.Flags().BoolVar(&discoverIndexes, "discover-indexes", false, "Read existing materialized view indexes from the database and track them")
	PlanCmd.Flags().BoolVar(&writeRecord, "write", false, "Write the plan as the next migration record")
	PlanCmd.Flags().StringVar(&recordName, "name", "", "Name of the written migration record (default: auto_<timestamp>)")

	// Output flags
	PlanCmd.Flags().StringVar(&outputHuman, "output-human", "", "Output human-readable format to stdout or file path")
	PlanCmd.Flags().StringVar(&outputJSON, "output-json", "", "Output JSON format to stdout or file path")
	PlanCmd.Flags().StringVar(&outputSQL, "output-sql", "", "Output forward SQL to stdout or file path")
	PlanCmd.Flags().StringVar(&outputRollback, "output-rollback-sql", "", "Output rollback SQL to stdout or file path")
	PlanCmd.Flags().BoolVar(&planNoColor, "no-color", false, "Disable colored output")
}

func runPlan(cmd *cobra.Command, args []string) error {
	settings, err := util.ResolveSettings(cmd)
	if err != nil {
		return err
	}

	// Determine which outputs to generate before doing any work
	outputs, err := determineOutputs()
	if err != nil {
		return err
	}

	migrationPlan, err := GeneratePlan(cmd.Context(), settings, discoverIndexes)
	if err != nil {
		return err
	}

	for _, output := range outputs {
		if err := processOutput(migrationPlan, output, cmd); err != nil {
			return err
		}
	}

	if !writeRecord {
		return nil
	}
	if !migrationPlan.HasChanges() {
		fmt.Fprintln(cmd.ErrOrStderr(), "No changes detected, no migration written.")
		return nil
	}

	record, err := history.NewStore(settings.HistoryDir).Write(migrationPlan.Operations(), recordName)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote migration %s\n", record.Name)
	return nil
}

// GeneratePlan runs one detection pass of the declarations against the
// state replayed from history
func GeneratePlan(ctx context.Context, settings *util.Settings, discover bool) (*plan.Plan, error) {
	log := logger.Get()

	file, err := declare.LoadFile(settings.Declarations)
	if err != nil {
		return nil, err
	}

	records, err := history.NewStore(settings.HistoryDir).Load()
	if err != nil {
		return nil, err
	}
	states, err := history.Replay(records)
	if err != nil {
		return nil, err
	}
	log.Debug("Replayed migration history", "records", len(records))

	var discovered map[string][]ir.IndexSpec
	if discover {
		if discovered, err = discoverExisting(ctx, settings, file.MaterializedTables()); err != nil {
			return nil, err
		}
	}

	reg, err := file.Registry(discovered)
	if err != nil {
		return nil, err
	}

	result, err := diff.Run(reg, states, diff.Options{
		ActiveEngine: settings.Engine,
		Engines:      settings.TargetEngines,
	})
	if err != nil {
		return nil, err
	}

	fp, err := fingerprint.StateFingerprint(states)
	if err != nil {
		return nil, fmt.Errorf("failed to compute history fingerprint: %w", err)
	}
	return plan.NewPlan(result, settings.Engine).WithSourceFingerprint(fp), nil
}

func discoverExisting(ctx context.Context, settings *util.Settings, tables []string) (map[string][]ir.IndexSpec, error) {
	if len(tables) == 0 {
		return nil, nil
	}

	db, err := util.Connect(ctx, settings.Engine, settings.DSN)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return inspect.New(db, settings.Schema, settings.Concurrency).Discover(ctx, tables)
}

// outputSpec represents a single output specification
type outputSpec struct {
	format string
	target string
}

// determineOutputs parses the output flags and returns the list of outputs to generate
func determineOutputs() ([]outputSpec, error) {
	var outputs []outputSpec
	stdoutCount := 0

	for _, o := range []outputSpec{
		{format: "human", target: outputHuman},
		{format: "json", target: outputJSON},
		{format: "sql", target: outputSQL},
		{format: "rollback-sql", target: outputRollback},
	} {
		if o.target == "" {
			continue
		}
		if o.target == "stdout" {
			stdoutCount++
		}
		outputs = append(outputs, o)
	}

	if stdoutCount > 1 {
		return nil, fmt.Errorf("only one output format can use stdout")
	}

	// Default behavior: if no outputs specified, output human to stdout
	if len(outputs) == 0 {
		outputs = append(outputs, outputSpec{format: "human", target: "stdout"})
	}

	return outputs, nil
}

// processOutput writes the plan in the specified format to the target destination
func processOutput(migrationPlan *plan.Plan, output outputSpec, cmd *cobra.Command) error {
	var content string
	var err error

	switch output.format {
	case "human":
		useColor := output.target == "stdout" && !planNoColor
		content = migrationPlan.HumanColored(useColor)
	case "json":
		content, err = migrationPlan.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to generate JSON output: %w", err)
		}
		content += "\n"
	case "sql":
		content = migrationPlan.ToSQL()
	case "rollback-sql":
		content = migrationPlan.ToRollbackSQL()
	default:
		return fmt.Errorf("unknown output format: %s", output.format)
	}

	if output.target == "stdout" {
		fmt.Fprint(cmd.OutOrStdout(), content)
		return nil
	}
	if err := os.WriteFile(output.target, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s output to %s: %w", output.format, output.target, err)
	}
	return nil
}
