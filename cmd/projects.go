package cmd

import (
	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List the Jira projects visible to the configured credential",
	RunE: func(cmd *cobra.Command, _ []string) error {
		result := newPipeline().ListProjects(cmd.Context(), cfg.Connection())
		return writeResult(cmd.OutOrStdout(), cfg.Output, result)
	},
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}
