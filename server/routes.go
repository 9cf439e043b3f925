// Package server exposes the issue snapshot to the dashboard over HTTP.
package server

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/kalverra/jira-insights/ingest"
	"github.com/kalverra/jira-insights/issues"
	"github.com/kalverra/jira-insights/jira"
	"github.com/kalverra/jira-insights/store"
)

// Fetcher runs ingestions. *ingest.Pipeline implements it.
type Fetcher interface {
	FetchIssues(ctx context.Context, conn jira.Connection, filter ingest.Filter) ingest.Result[[]issues.Issue]
	ListProjects(ctx context.Context, conn jira.Connection) ingest.Result[[]jira.Project]
}

// NewRouter creates the HTTP router. conn is used for every Jira call and
// defaults is the filter applied when a fetch request has no body.
func NewRouter(
	fetcher Fetcher,
	st *store.Store,
	conn jira.Connection,
	defaults ingest.Filter,
	logger zerolog.Logger,
) http.Handler {
	l := logger.With().Str("component", "server").Logger()
	root := http.NewServeMux()

	// Health checks (no logging)
	root.Handle("GET /healthz", Healthz())

	api := http.NewServeMux()
	api.Handle("GET /issues", IssuesHandler(st))
	api.Handle("POST /fetch", FetchHandler(fetcher, st, conn, defaults, l))
	api.Handle("GET /projects", ProjectsHandler(fetcher, conn))

	root.Handle("/api/v1/", http.StripPrefix("/api/v1", Logging(api, l)))
	return root
}
