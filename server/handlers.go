package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/kalverra/jira-insights/ingest"
	"github.com/kalverra/jira-insights/issues"
	"github.com/kalverra/jira-insights/jira"
	"github.com/kalverra/jira-insights/store"
)

// Healthz handles the /healthz endpoint.
func Healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok")) //nolint:errcheck
	}
}

// IssuesHandler serves the latest snapshot.
func IssuesHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := st.Current()
		if snap == nil {
			writeResult(w, ingest.Ok([]issues.Issue{}, "no issues fetched yet"))
			return
		}
		w.Header().Set("X-Snapshot-Generation", strconv.FormatUint(snap.Generation, 10))
		w.Header().Set("Last-Modified", snap.FetchedAt.UTC().Format(http.TimeFormat))
		writeResult(w, ingest.Ok(snap.Issues, snap.Message))
	}
}

// fetchRequest is the body of POST /fetch. Dates are YYYY-MM-DD.
type fetchRequest struct {
	QueryType string `json:"queryType"`
	JQL       string `json:"jql"`
	Project   string `json:"project"`
	IssueType string `json:"issueType"`
	DateRange struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"dateRange"`
}

func (r fetchRequest) filter() (ingest.Filter, error) {
	from, err := ingest.ParseDate(r.DateRange.From)
	if err != nil {
		return ingest.Filter{}, err
	}
	to, err := ingest.ParseDate(r.DateRange.To)
	if err != nil {
		return ingest.Filter{}, err
	}
	return ingest.Filter{
		QueryType: ingest.QueryType(r.QueryType),
		JQL:       r.JQL,
		Project:   r.Project,
		IssueType: r.IssueType,
		DateRange: ingest.DateRange{From: from, To: to},
	}, nil
}

// FetchHandler runs an ingestion and stores the result. An empty body
// fetches with the default filter.
func FetchHandler(
	fetcher Fetcher,
	st *store.Store,
	conn jira.Connection,
	defaults ingest.Filter,
	logger zerolog.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := defaults
		var req fetchRequest
		err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req)
		switch {
		case errors.Is(err, io.EOF):
		case err != nil:
			writeResult(w, ingest.Fail[[]issues.Issue](
				&jira.ValidationError{Field: "body", Reason: "is not valid JSON: " + err.Error()},
			))
			return
		default:
			if filter, err = req.filter(); err != nil {
				writeResult(w, ingest.Fail[[]issues.Issue](err))
				return
			}
		}

		jql, err := ingest.BuildJQL(filter)
		if err != nil {
			writeResult(w, ingest.Fail[[]issues.Issue](err))
			return
		}

		start := time.Now()
		result := st.Refresh(r.Context(), jql, func(ctx context.Context) ingest.Result[[]issues.Issue] {
			return fetcher.FetchIssues(ctx, conn, filter)
		})
		logger.Debug().
			Bool("success", result.Success).
			Dur("elapsed", time.Since(start)).
			Msg("fetch request handled")
		writeResult(w, result)
	}
}

// ProjectsHandler lists the projects visible to the configured credential.
func ProjectsHandler(fetcher Fetcher, conn jira.Connection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, fetcher.ListProjects(r.Context(), conn))
	}
}

func writeResult[T any](w http.ResponseWriter, result ingest.Result[T]) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(result.Success, result.Kind))
	json.NewEncoder(w).Encode(result) //nolint:errcheck
}

func statusFor(success bool, kind ingest.ErrorKind) int {
	if success {
		return http.StatusOK
	}
	switch kind {
	case ingest.KindValidation:
		return http.StatusBadRequest
	case ingest.KindAPI, ingest.KindNetwork:
		return http.StatusBadGateway
	case ingest.KindCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
