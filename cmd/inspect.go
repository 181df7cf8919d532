package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/pgschema/viewmig/cmd/util"
	"github.com/pgschema/viewmig/internal/declare"
	"github.com/pgschema/viewmig/internal/inspect"
	"github.com/pgschema/viewmig/internal/ir"
)

var InspectCmd = &cobra.Command{
	Use:   "inspect [table...]",
	Short: "Show indexes found on materialized views",
	Long: `Read the indexes that exist on materialized views in the database and print
them in declaration file form. Without arguments every materialized view in
the declaration file is inspected. PostgreSQL only.`,
	RunE:         runInspect,
	SilenceUsage: true,
}

func init() {
	util.AddCommonFlags(InspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	settings, err := util.ResolveSettings(cmd)
	if err != nil {
		return err
	}

	tables := args
	if len(tables) == 0 {
		file, err := declare.LoadFile(settings.Declarations)
		if err != nil {
			return err
		}
		tables = file.MaterializedTables()
	}
	if len(tables) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No materialized views to inspect.")
		return nil
	}

	db, err := util.Connect(ctx, settings.Engine, settings.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	found, err := inspect.New(db, settings.Schema, settings.Concurrency).Discover(ctx, tables)
	if err != nil {
		return err
	}

	out, err := renderIndexes(found)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

// renderIndexes formats discovered indexes as a views: block
func renderIndexes(found map[string][]ir.IndexSpec) (string, error) {
	file := struct {
		Views []declare.Declaration `json:"views"`
	}{Views: []declare.Declaration{}}

	for _, table := range inspect.Tables(found) {
		file.Views = append(file.Views, declare.Declaration{Table: table, Indexes: found[table]})
	}

	data, err := yaml.Marshal(file)
	if err != nil {
		return "", fmt.Errorf("failed to render indexes: %w", err)
	}
	return string(data), nil
}
