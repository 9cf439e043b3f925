package cmd

import (
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch and normalize issues once and print them",
	RunE: func(cmd *cobra.Command, _ []string) error {
		filter, err := filterFrom(cfg)
		if err != nil {
			return err
		}
		result := newPipeline().FetchIssues(cmd.Context(), cfg.Connection(), filter)
		if result.Success {
			logger.Info().Int("count", len(result.Data)).Msg(result.Message)
		}
		return writeResult(cmd.OutOrStdout(), cfg.Output, result)
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
