package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/kalverra/jira-insights/jira"
)

// QueryType selects how a Filter becomes JQL.
type QueryType string

const (
	QueryJQL     QueryType = "jql"
	QueryProject QueryType = "project"
)

// AllIssueTypes disables the issue type filter.
const AllIssueTypes = "all"

const dateLayout = "2006-01-02"

// DateRange bounds the created date of issues. Either end may be nil.
type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// Filter describes which issues to fetch: raw JQL, or a project key with an
// optional created-date range. IssueType applies in both modes.
type Filter struct {
	QueryType QueryType `json:"queryType"`
	JQL       string    `json:"jql,omitempty"`
	Project   string    `json:"project,omitempty"`
	IssueType string    `json:"issueType,omitempty"`
	DateRange DateRange `json:"dateRange"`
}

// BuildJQL turns a filter into a JQL query. In JQL mode the query is used
// verbatim; in project mode it is assembled from the project key and date
// bounds.
func BuildJQL(f Filter) (string, error) {
	mode := f.QueryType
	if mode == "" {
		mode = QueryProject
		if strings.TrimSpace(f.JQL) != "" {
			mode = QueryJQL
		}
	}

	var clauses []string
	switch mode {
	case QueryJQL:
		if strings.TrimSpace(f.JQL) == "" {
			return "", &jira.ValidationError{Field: "jql", Reason: "is required in jql mode"}
		}
		clauses = append(clauses, f.JQL)
	case QueryProject:
		project := strings.TrimSpace(f.Project)
		if project == "" {
			return "", &jira.ValidationError{Field: "project", Reason: "or jql is required"}
		}
		clauses = append(clauses, "project = "+quote(project))
		if f.DateRange.From != nil {
			clauses = append(clauses, "created >= "+quote(f.DateRange.From.Format(dateLayout)))
		}
		if f.DateRange.To != nil {
			clauses = append(clauses, "created <= "+quote(f.DateRange.To.Format(dateLayout)))
		}
	default:
		return "", &jira.ValidationError{
			Field:  "query_type",
			Reason: fmt.Sprintf("must be %q or %q, got %q", QueryJQL, QueryProject, f.QueryType),
		}
	}

	if t := strings.TrimSpace(f.IssueType); t != "" && !strings.EqualFold(t, AllIssueTypes) {
		clauses = append(clauses, "issuetype = "+quote(t))
	}
	return strings.Join(clauses, " AND "), nil
}

// ParseDate parses a YYYY-MM-DD date. An empty string yields nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, &jira.ValidationError{Field: "date", Reason: fmt.Sprintf("%q is not YYYY-MM-DD", s)}
	}
	return &t, nil
}

func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}
