package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/andygrunwald/go-jira/v2/cloud"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"resty.dev/v3"
)

const instrumentationScope = "github.com/kalverra/jira-insights/jira"

// Connection holds what is needed to reach a Jira instance.
type Connection struct {
	BaseURL string
	Email   string
	Token   string
}

// Validate checks that all connection parameters are present and normalises
// the base URL.
func (c *Connection) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return &ValidationError{Field: "jira_url", Reason: "is required"}
	}
	if strings.TrimSpace(c.Email) == "" {
		return &ValidationError{Field: "jira_email", Reason: "is required"}
	}
	if strings.TrimSpace(c.Token) == "" {
		return &ValidationError{Field: "jira_token", Reason: "is required"}
	}
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		c.BaseURL = "https://" + c.BaseURL
	}
	return nil
}

// Client reads issues and projects from the Jira REST API v2.
// Searches go through resty; the project list goes through the go-jira
// cloud client.
type Client struct {
	baseURL string
	http    *resty.Client
	cloud   *cloud.Client
	logger  zerolog.Logger
}

// NewClient creates a new Jira API client. The connection must be valid.
func NewClient(conn Connection, logger zerolog.Logger) (*Client, error) {
	if err := conn.Validate(); err != nil {
		return nil, err
	}
	l := logger.With().Str("component", "jira").Logger()
	r := resty.New().
		SetBaseURL(conn.BaseURL).
		SetBasicAuth(conn.Email, conn.Token).
		SetHeader("Accept", "application/json").
		AddRequestMiddleware(func(_ *resty.Client, req *resty.Request) error {
			req.SetHeader("X-Request-Id", uuid.New().String())
			return nil
		}).
		AddResponseMiddleware(func(_ *resty.Client, resp *resty.Response) error {
			req := resp.Request
			l.Trace().
				Str("method", req.Method).
				Func(func(e *zerolog.Event) {
					if req.RawRequest != nil {
						e.Str("url", req.RawRequest.URL.String())
					}
					if req.Body != nil {
						if b, err := json.Marshal(req.Body); err == nil {
							e.RawJSON("req_body", b)
						}
					}
				}).
				Int("status", resp.StatusCode()).
				Dur("elapsed", resp.Duration()).
				Str("resp_body", truncate(resp.String(), 2048)).
				Msg("http round trip")
			if resp.IsError() {
				return newAPIError(resp.StatusCode(), []byte(resp.String()))
			}
			return nil
		})

	tp := cloud.BasicAuthTransport{
		Username: conn.Email,
		APIToken: conn.Token,
	}
	jc, err := cloud.NewClient(conn.BaseURL, tp.Client())
	if err != nil {
		return nil, fmt.Errorf("create jira cloud client: %w", err)
	}

	return &Client{
		baseURL: conn.BaseURL,
		http:    r,
		cloud:   jc,
		logger:  l,
	}, nil
}

func apiPath(path string) string {
	return "/rest/api/2" + path
}

// SearchPage fetches a single page of search results.
func (c *Client) SearchPage(
	ctx context.Context,
	req SearchRequest,
) (*SearchResponse, error) {
	ctx, span := otel.Tracer(instrumentationScope).Start(ctx, "jira.search.page")
	defer span.End()
	span.SetAttributes(
		attribute.Int("jira.start_at", req.StartAt),
		attribute.Int("jira.max_results", req.MaxResults),
	)

	var page SearchResponse
	_, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&page).
		Post(apiPath("/search"))
	if err != nil {
		err = asNetworkError(c.baseURL, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("jira.total", page.Total),
		attribute.Int("jira.returned", len(page.Issues)),
	)
	return &page, nil
}

// SearchAll returns every issue matching jql. Pages are requested one at a
// time; startAt advances by the number of issues actually returned, and the
// loop stops once total is reached or a page comes back empty. Any error
// discards the pages already read.
func (c *Client) SearchAll(
	ctx context.Context,
	jql string,
	fields []string,
) ([]RawIssue, error) {
	var allIssues []RawIssue
	startAt := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := c.SearchPage(ctx, SearchRequest{
			JQL:        jql,
			Fields:     fields,
			Expand:     []string{"changelog"},
			StartAt:    startAt,
			MaxResults: PageSize,
		})
		if err != nil {
			return nil, err
		}
		pagesFetched.Add(ctx, 1)

		allIssues = append(allIssues, page.Issues...)
		c.logger.Debug().
			Int("start_at", startAt).
			Int("returned", len(page.Issues)).
			Int("total", page.Total).
			Msg("fetched search page")

		if len(page.Issues) == 0 || len(allIssues) >= page.Total {
			break
		}
		startAt += len(page.Issues)
	}

	if allIssues == nil {
		allIssues = []RawIssue{}
	}
	return allIssues, nil
}

// ListProjects returns every project visible to the credential in a
// single, unpaginated call.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	ctx, span := otel.Tracer(instrumentationScope).Start(ctx, "jira.projects")
	defer span.End()

	req, err := c.cloud.NewRequest(ctx, http.MethodGet, "rest/api/2/project", nil)
	if err != nil {
		return nil, fmt.Errorf("build project request: %w", err)
	}

	var list []cloud.Project
	resp, err := c.cloud.Do(req, &list)
	if err != nil {
		if resp != nil && resp.Response != nil && resp.StatusCode >= http.StatusBadRequest {
			err = newAPIError(resp.StatusCode, readBody(resp.Response))
		} else {
			err = asNetworkError(c.baseURL, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	projects := make([]Project, 0, len(list))
	for _, p := range list {
		projects = append(projects, Project{
			ID:          p.ID,
			Key:         p.Key,
			Name:        p.Name,
			Self:        p.Self,
			Description: p.Description,
		})
	}
	c.logger.Debug().Int("count", len(projects)).Msg("fetched projects")
	return projects, nil
}
