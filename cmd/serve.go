package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kalverra/jira-insights/config"
	"github.com/kalverra/jira-insights/ingest"
	"github.com/kalverra/jira-insights/issues"
	"github.com/kalverra/jira-insights/server"
	"github.com/kalverra/jira-insights/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve normalized issues over HTTP",
	Long: `Starts an HTTP server exposing the latest issue snapshot. ` +
		`POST /api/v1/fetch refreshes it from Jira.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		filter, err := filterFrom(cfg)
		if err != nil {
			return err
		}
		fetchOnStart, _ := cmd.Flags().GetBool("fetch-on-start")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pipeline := newPipeline()
		st := store.New(logger)
		conn := cfg.Connection()

		if fetchOnStart {
			if jql, err := ingest.BuildJQL(filter); err == nil {
				go st.Refresh(ctx, jql, func(ctx context.Context) ingest.Result[[]issues.Issue] {
					return pipeline.FetchIssues(ctx, conn, filter)
				})
			} else {
				logger.Warn().Err(err).Msg("Skipping initial fetch")
			}
		}

		router := server.NewRouter(pipeline, st, conn, filter, logger)
		return server.Run(ctx, router, cfg.ListenAddr, logger)
	},
}

func init() {
	serveCmd.Flags().String("listen-addr", config.DefaultListenAddr, "Address to listen on (env: LISTEN_ADDR)")
	serveCmd.Flags().Bool("fetch-on-start", false, "Fetch with the configured filter before serving")
	rootCmd.AddCommand(serveCmd)
}
