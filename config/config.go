// Package config holds the configuration for the jira-insights CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kalverra/jira-insights/ingest"
	"github.com/kalverra/jira-insights/jira"
)

const (
	DefaultIssueType  = ingest.AllIssueTypes
	DefaultLogLevel   = "info"
	DefaultListenAddr = ":8080"
	DefaultOutput     = "json"
)

// DefaultExtensionFields is the comma-separated form of jira.DefaultExtensionFields.
var DefaultExtensionFields = strings.Join(jira.DefaultExtensionFields, ",")

// Config holds everything needed to fetch issues and serve them.
type Config struct {
	JiraURL         string
	JiraEmail       string
	JiraToken       string
	QueryType       string
	JQL             string
	Project         string
	IssueType       string
	CreatedFrom     string
	CreatedTo       string
	ExtensionFields []string
	LogLevel        string
	ListenAddr      string
	Output          string
	OtelEnabled     bool
	OTLPEndpoint    string
}

// keys maps config keys (also the flag names) to their environment variables.
var keys = map[string]string{
	"jira-url":         "JIRA_URL",
	"jira-email":       "JIRA_EMAIL",
	"jira-token":       "JIRA_TOKEN",
	"query-type":       "JIRA_QUERY_TYPE",
	"jql":              "JIRA_JQL",
	"project":          "JIRA_PROJECT",
	"issue-type":       "JIRA_ISSUE_TYPE",
	"created-from":     "JIRA_CREATED_FROM",
	"created-to":       "JIRA_CREATED_TO",
	"extension-fields": "JIRA_EXTENSION_FIELDS",
	"log-level":        "LOG_LEVEL",
	"listen-addr":      "LISTEN_ADDR",
	"output":           "OUTPUT",
	"otel-enabled":     "OTEL_ENABLED",
	"otlp-endpoint":    "OTEL_EXPORTER_OTLP_ENDPOINT",
}

type loadOptions struct {
	flags      *pflag.FlagSet
	envFiles   []string
	configFile string
}

// Option configures Load.
type Option func(*loadOptions)

// WithFlags lets explicitly set flags override env and file values.
func WithFlags(flags *pflag.FlagSet) Option {
	return func(o *loadOptions) {
		o.flags = flags
	}
}

// WithEnvFiles replaces the default .env file list. Missing files are skipped.
func WithEnvFiles(paths ...string) Option {
	return func(o *loadOptions) {
		o.envFiles = paths
	}
}

// WithConfigFile reads a YAML config file whose keys match the flag names.
func WithConfigFile(path string) Option {
	return func(o *loadOptions) {
		o.configFile = path
	}
}

// Load resolves the configuration. Precedence, highest first: flags,
// environment (including .env), config file, defaults.
func Load(opts ...Option) (*Config, error) {
	o := loadOptions{envFiles: []string{".env"}}
	for _, opt := range opts {
		opt(&o)
	}

	for _, path := range o.envFiles {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	v := viper.New()
	v.SetDefault("issue-type", DefaultIssueType)
	v.SetDefault("extension-fields", DefaultExtensionFields)
	v.SetDefault("log-level", DefaultLogLevel)
	v.SetDefault("listen-addr", DefaultListenAddr)
	v.SetDefault("output", DefaultOutput)
	for key, env := range keys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", o.configFile, err)
		}
	}

	if o.flags != nil {
		if err := v.BindPFlags(o.flags); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	return &Config{
		JiraURL:         strings.TrimSpace(v.GetString("jira-url")),
		JiraEmail:       strings.TrimSpace(v.GetString("jira-email")),
		JiraToken:       strings.TrimSpace(v.GetString("jira-token")),
		QueryType:       strings.TrimSpace(v.GetString("query-type")),
		JQL:             v.GetString("jql"),
		Project:         strings.TrimSpace(v.GetString("project")),
		IssueType:       strings.TrimSpace(v.GetString("issue-type")),
		CreatedFrom:     strings.TrimSpace(v.GetString("created-from")),
		CreatedTo:       strings.TrimSpace(v.GetString("created-to")),
		ExtensionFields: splitList(v.GetString("extension-fields")),
		LogLevel:        strings.ToLower(strings.TrimSpace(v.GetString("log-level"))),
		ListenAddr:      v.GetString("listen-addr"),
		Output:          strings.ToLower(strings.TrimSpace(v.GetString("output"))),
		OtelEnabled:     v.GetBool("otel-enabled"),
		OTLPEndpoint:    v.GetString("otlp-endpoint"),
	}, nil
}

// Validate checks option values and normalizes the Jira URL. Missing
// credentials are not reported here; the pipeline returns them as a
// validation result.
func (c *Config) Validate() error {
	if c.JiraURL != "" {
		c.JiraURL = strings.TrimRight(c.JiraURL, "/")
		if !strings.HasPrefix(c.JiraURL, "http://") && !strings.HasPrefix(c.JiraURL, "https://") {
			c.JiraURL = "https://" + c.JiraURL
		}
	}
	switch ingest.QueryType(c.QueryType) {
	case "", ingest.QueryJQL, ingest.QueryProject:
	default:
		return fmt.Errorf("query_type must be %q or %q, got %q", ingest.QueryJQL, ingest.QueryProject, c.QueryType)
	}
	switch c.Output {
	case "json", "yaml":
	default:
		return fmt.Errorf("output must be json or yaml, got %q", c.Output)
	}
	if _, err := c.Filter(); err != nil {
		return err
	}
	return nil
}

// Connection returns the Jira credentials.
func (c *Config) Connection() jira.Connection {
	return jira.Connection{BaseURL: c.JiraURL, Email: c.JiraEmail, Token: c.JiraToken}
}

// Filter returns the ingestion filter described by the config.
func (c *Config) Filter() (ingest.Filter, error) {
	from, err := ingest.ParseDate(c.CreatedFrom)
	if err != nil {
		return ingest.Filter{}, fmt.Errorf("created_from: %w", err)
	}
	to, err := ingest.ParseDate(c.CreatedTo)
	if err != nil {
		return ingest.Filter{}, fmt.Errorf("created_to: %w", err)
	}
	return ingest.Filter{
		QueryType: ingest.QueryType(c.QueryType),
		JQL:       c.JQL,
		Project:   c.Project,
		IssueType: c.IssueType,
		DateRange: ingest.DateRange{From: from, To: to},
	}, nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
