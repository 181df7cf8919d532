package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgschema/viewmig/cmd/apply"
	"github.com/pgschema/viewmig/cmd/plan"
	"github.com/pgschema/viewmig/cmd/util"
	"github.com/pgschema/viewmig/internal/config"
	"github.com/pgschema/viewmig/internal/logger"
	"github.com/pgschema/viewmig/internal/version"
)

var (
	Debug      bool
	configPath string
	logFormat  string
)

var RootCmd = &cobra.Command{
	Use:   "viewmig",
	Short: "View and materialized view migration tool",
	Long: fmt.Sprintf(`viewmig keeps database views and materialized views in step with their
declarations by writing reversible migrations.

Version: %s@%s %s %s

Commands:
  plan      Generate a migration plan (and optionally write it)
  apply     Apply or roll back migration records
  inspect   Show indexes found on materialized views
  refresh   Refresh a materialized view

Use "viewmig [command] --help" for more information about a command.`,
		version.App(), version.GetGitCommit(), version.Platform(), version.GetBuildDate()),
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "Enable debug logging (config: log.debug)")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to viewmig.yaml (default: searched upwards from the working directory)")
	RootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (config: log.format)")

	RootCmd.AddCommand(plan.PlanCmd)
	RootCmd.AddCommand(apply.ApplyCmd)
	RootCmd.AddCommand(InspectCmd)
	RootCmd.AddCommand(RefreshCmd)
	RootCmd.AddCommand(VersionCmd)
}

// setup loads configuration and installs the process logger
func setup(cmd *cobra.Command) error {
	cfg, path, err := config.Load(configPath)
	if err != nil {
		return err
	}
	util.SetConfig(cfg, path)

	debug := cfg.Log.Debug || Debug
	format := cfg.Log.Format
	if logFormat != "" {
		format = logFormat
	}
	log := logger.Setup(cmd.ErrOrStderr(), debug, format)
	if path != "" {
		log.Debug("Loaded configuration", "path", path)
	}
	return nil
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
