// Package cmd contains command execution logic.
package cmd

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kalverra/jira-insights/config"
	"github.com/kalverra/jira-insights/ingest"
	"github.com/kalverra/jira-insights/telemetry"
)

var version = "dev"

var (
	cfg               *config.Config
	logger            zerolog.Logger
	shutdownTelemetry telemetry.ShutdownFunc
)

var rootCmd = &cobra.Command{
	Use:   "jira-insights",
	Short: "Fetch and normalize Jira issues for delivery analytics",
	Long: `A CLI tool that pulls issues from Jira Cloud by JQL or project filter, ` +
		`normalizes sprint, effort, and custom fields, and serves them as JSON.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		opts := []config.Option{config.WithFlags(cmd.Flags())}
		if configFile != "" {
			opts = append(opts, config.WithConfigFile(configFile))
		}

		var err error
		cfg, err = config.Load(opts...)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		lvl, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil || cfg.LogLevel == "" {
			lvl = zerolog.InfoLevel
			cfg.LogLevel = "info"
		}
		zerolog.SetGlobalLevel(lvl)
		logger = zerolog.New(
			zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: time.RFC3339,
			},
		).Level(lvl).With().Timestamp().Logger()

		shutdownTelemetry, err = telemetry.Init(cmd.Context(), telemetry.Options{
			Enabled:      cfg.OtelEnabled,
			ServiceName:  "jira-insights",
			Version:      version,
			OTLPEndpoint: cfg.OTLPEndpoint,
		})
		if err != nil {
			return err
		}

		logger.Debug().
			Str("jira_url", cfg.JiraURL).
			Str("jira_email", cfg.JiraEmail).
			Str("query_type", cfg.QueryType).
			Str("project", cfg.Project).
			Str("issue_type", cfg.IssueType).
			Strs("extension_fields", cfg.ExtensionFields).
			Str("log_level", cfg.LogLevel).
			Bool("otel_enabled", cfg.OtelEnabled).
			Msg("config")

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		if shutdownTelemetry == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), 5*time.Second)
		defer cancel()
		return shutdownTelemetry(ctx)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to a YAML config file whose keys match the flag names")
	flags.String("jira-url", "", "Jira Cloud base URL (env: JIRA_URL)")
	flags.String("jira-email", "", "Jira account email (env: JIRA_EMAIL)")
	flags.String("jira-token", "", "Jira API token (env: JIRA_TOKEN)")
	flags.String(
		"query-type",
		"",
		"Query mode: jql or project; inferred when empty (env: JIRA_QUERY_TYPE)",
	)
	flags.String("jql", "", "Raw JQL query, used as-is (env: JIRA_JQL)")
	flags.String("project", "", "Jira project key (env: JIRA_PROJECT)")
	flags.String("issue-type", config.DefaultIssueType, "Issue type to filter on, or all (env: JIRA_ISSUE_TYPE)")
	flags.String("created-from", "", "Only issues created on or after YYYY-MM-DD (env: JIRA_CREATED_FROM)")
	flags.String("created-to", "", "Only issues created on or before YYYY-MM-DD (env: JIRA_CREATED_TO)")
	flags.String(
		"extension-fields",
		config.DefaultExtensionFields,
		"Comma-separated custom field ids copied verbatim into each issue (env: JIRA_EXTENSION_FIELDS)",
	)
	flags.String("log-level", config.DefaultLogLevel, "Log level: trace, debug, info, warn, error (env: LOG_LEVEL)")
	flags.String("output", config.DefaultOutput, "Output format: json or yaml (env: OUTPUT)")
	flags.Bool("otel-enabled", false, "Write traces and metrics to stderr (env: OTEL_ENABLED)")
	flags.String("otlp-endpoint", "", "Also push metrics to this OTLP/HTTP host:port (env: OTEL_EXPORTER_OTLP_ENDPOINT)")
}

// filterFrom returns c's filter, or an error worded the way a failed fetch
// result would be.
func filterFrom(c *config.Config) (ingest.Filter, error) {
	filter, err := c.Filter()
	if err != nil {
		return ingest.Filter{}, errors.New(ingest.Classify(err))
	}
	return filter, nil
}

func newPipeline() *ingest.Pipeline {
	return ingest.NewPipeline(logger, ingest.WithExtensionFields(cfg.ExtensionFields))
}

// Execute runs the root command.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(version),
	); err != nil {
		os.Exit(1)
	}
}
