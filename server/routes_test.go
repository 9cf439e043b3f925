package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalverra/jira-insights/ingest"
	"github.com/kalverra/jira-insights/issues"
	"github.com/kalverra/jira-insights/jira"
	"github.com/kalverra/jira-insights/server"
	"github.com/kalverra/jira-insights/store"
)

type fakeFetcher struct {
	mu       sync.Mutex
	filters  []ingest.Filter
	issues   []issues.Issue
	err      error
	projects []jira.Project
}

func (f *fakeFetcher) FetchIssues(
	_ context.Context,
	_ jira.Connection,
	filter ingest.Filter,
) ingest.Result[[]issues.Issue] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return ingest.Fail[[]issues.Issue](f.err)
	}
	return ingest.Ok(f.issues, "fetched")
}

func (f *fakeFetcher) ListProjects(context.Context, jira.Connection) ingest.Result[[]jira.Project] {
	if f.err != nil {
		return ingest.Fail[[]jira.Project](f.err)
	}
	return ingest.Ok(f.projects, "projects")
}

var (
	testConn     = jira.Connection{BaseURL: "https://example.atlassian.net", Email: "a@b.c", Token: "t"}
	testDefaults = ingest.Filter{QueryType: ingest.QueryProject, Project: "PROJ"}
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestNewRouter(t *testing.T) {
	t.Parallel()

	t.Run("GET /healthz", func(t *testing.T) {
		t.Parallel()

		router := server.NewRouter(&fakeFetcher{}, store.New(zerolog.Nop()), testConn, testDefaults, zerolog.Nop())
		rec, _ := do(t, router, http.MethodGet, "/healthz", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
	})

	t.Run("GET /api/v1/issues before any fetch", func(t *testing.T) {
		t.Parallel()

		router := server.NewRouter(&fakeFetcher{}, store.New(zerolog.Nop()), testConn, testDefaults, zerolog.Nop())
		rec, env := do(t, router, http.MethodGet, "/api/v1/issues", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, env.Success)
		assert.JSONEq(t, `[]`, string(env.Data))
	})

	t.Run("POST /api/v1/fetch then GET /api/v1/issues", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{issues: []issues.Issue{{ID: "PROJ-1"}, {ID: "PROJ-2"}}}
		router := server.NewRouter(fetcher, store.New(zerolog.Nop()), testConn, testDefaults, zerolog.Nop())

		body := `{"queryType":"project","project":"ABC","issueType":"Bug","dateRange":{"from":"2024-01-01"}}`
		rec, env := do(t, router, http.MethodPost, "/api/v1/fetch", body)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, env.Success)
		assert.Equal(t, "fetched", env.Message)

		require.Len(t, fetcher.filters, 1)
		got := fetcher.filters[0]
		assert.Equal(t, "ABC", got.Project)
		assert.Equal(t, "Bug", got.IssueType)
		require.NotNil(t, got.DateRange.From)
		assert.Equal(t, "2024-01-01", got.DateRange.From.Format("2006-01-02"))
		assert.Nil(t, got.DateRange.To)

		rec, env = do(t, router, http.MethodGet, "/api/v1/issues", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("X-Snapshot-Generation"))
		var ids []struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &ids))
		require.Len(t, ids, 2)
		assert.Equal(t, "PROJ-1", ids[0].ID)
	})

	t.Run("POST /api/v1/fetch without body uses defaults", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{}
		router := server.NewRouter(fetcher, store.New(zerolog.Nop()), testConn, testDefaults, zerolog.Nop())
		rec, _ := do(t, router, http.MethodPost, "/api/v1/fetch", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, fetcher.filters, 1)
		assert.Equal(t, testDefaults, fetcher.filters[0])
	})

	t.Run("POST /api/v1/fetch with invalid input", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			body string
		}{
			{name: "malformed json", body: `{"queryType":`},
			{name: "bad date", body: `{"project":"ABC","dateRange":{"from":"01/02/2024"}}`},
			{name: "blank jql", body: `{"queryType":"jql","jql":"  "}`},
			{name: "unknown mode", body: `{"queryType":"board"}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				fetcher := &fakeFetcher{}
				router := server.NewRouter(fetcher, store.New(zerolog.Nop()), testConn, testDefaults, zerolog.Nop())
				rec, env := do(t, router, http.MethodPost, "/api/v1/fetch", tt.body)

				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.False(t, env.Success)
				assert.Contains(t, env.Error, "validation error")
				assert.Empty(t, fetcher.filters, "no fetch on invalid input")
			})
		}
	})

	t.Run("POST /api/v1/fetch failure keeps snapshot", func(t *testing.T) {
		t.Parallel()

		st := store.New(zerolog.Nop())
		st.Refresh(context.Background(), "seed", func(context.Context) ingest.Result[[]issues.Issue] {
			return ingest.Ok([]issues.Issue{{ID: "OLD-1"}}, "seed")
		})
		fetcher := &fakeFetcher{err: &jira.APIError{StatusCode: 401, Status: "Unauthorized"}}
		router := server.NewRouter(fetcher, st, testConn, testDefaults, zerolog.Nop())

		rec, env := do(t, router, http.MethodPost, "/api/v1/fetch", "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, env.Error, "401")

		require.NotNil(t, st.Current())
		assert.Equal(t, "OLD-1", st.Current().Issues[0].ID)
	})

	t.Run("GET /api/v1/projects", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{projects: []jira.Project{{ID: "1", Key: "ABC", Name: "Alpha"}}}
		router := server.NewRouter(fetcher, store.New(zerolog.Nop()), testConn, testDefaults, zerolog.Nop())
		rec, env := do(t, router, http.MethodGet, "/api/v1/projects", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, env.Success)
		assert.Contains(t, string(env.Data), `"ABC"`)
	})

	t.Run("GET /api/v1/projects network failure", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{err: &jira.NetworkError{URL: "https://x", Err: errors.New("dial tcp: refused")}}
		router := server.NewRouter(fetcher, store.New(zerolog.Nop()), testConn, testDefaults, zerolog.Nop())
		rec, env := do(t, router, http.MethodGet, "/api/v1/projects", "")

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, env.Error, "network error")
	})

	t.Run("wrong method", func(t *testing.T) {
		t.Parallel()

		router := server.NewRouter(&fakeFetcher{}, store.New(zerolog.Nop()), testConn, testDefaults, zerolog.Nop())
		rec, _ := do(t, router, http.MethodGet, "/api/v1/fetch", "")

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}
