package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgschema/viewmig/internal/version"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display the version number of viewmig",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "viewmig v%s@%s %s %s (plan format %s)\n",
			version.App(), version.GetGitCommit(), version.Platform(), version.GetBuildDate(), version.PlanFormat())
	},
}
