package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalverra/jira-insights/jira"
)

func date(t *testing.T, s string) *time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestBuildJQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		filter    Filter
		want      string
		wantField string
	}{
		{
			name:   "project with from date",
			filter: Filter{QueryType: QueryProject, Project: "PROJ", DateRange: DateRange{From: date(t, "2024-01-01")}},
			want:   `project = "PROJ" AND created >= "2024-01-01"`,
		},
		{
			name: "project with from date and issue type",
			filter: Filter{
				QueryType: QueryProject, Project: "PROJ", IssueType: "Bug",
				DateRange: DateRange{From: date(t, "2024-01-01")},
			},
			want: `project = "PROJ" AND created >= "2024-01-01" AND issuetype = "Bug"`,
		},
		{
			name: "project with full range",
			filter: Filter{
				QueryType: QueryProject, Project: "PROJ",
				DateRange: DateRange{From: date(t, "2024-01-01"), To: date(t, "2024-03-31")},
			},
			want: `project = "PROJ" AND created >= "2024-01-01" AND created <= "2024-03-31"`,
		},
		{
			name:   "project only",
			filter: Filter{QueryType: QueryProject, Project: "PROJ"},
			want:   `project = "PROJ"`,
		},
		{
			name:   "issue type all is ignored",
			filter: Filter{QueryType: QueryProject, Project: "PROJ", IssueType: "all"},
			want:   `project = "PROJ"`,
		},
		{
			name:   "jql verbatim",
			filter: Filter{QueryType: QueryJQL, JQL: "assignee = currentUser() ORDER BY updated DESC", Project: "IGNORED"},
			want:   "assignee = currentUser() ORDER BY updated DESC",
		},
		{
			name:   "jql with issue type",
			filter: Filter{QueryType: QueryJQL, JQL: "sprint in openSprints()", IssueType: "Story"},
			want:   `sprint in openSprints() AND issuetype = "Story"`,
		},
		{
			name:   "mode inferred from jql",
			filter: Filter{JQL: "labels = x"},
			want:   "labels = x",
		},
		{
			name:   "quotes are escaped",
			filter: Filter{QueryType: QueryProject, Project: `A"B`, IssueType: `Sub "task"`},
			want:   `project = "A\"B" AND issuetype = "Sub \"task\""`,
		},
		{
			name:      "missing project and jql",
			filter:    Filter{},
			wantField: "project",
		},
		{
			name:      "jql mode without jql",
			filter:    Filter{QueryType: QueryJQL, Project: "PROJ"},
			wantField: "jql",
		},
		{
			name:      "unknown mode",
			filter:    Filter{QueryType: "board", Project: "PROJ"},
			wantField: "query_type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := BuildJQL(tt.filter)
			if tt.wantField != "" {
				var vErr *jira.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, tt.wantField, vErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	got, err := ParseDate("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), *got)

	_, err = ParseDate("29/02/2024")
	var vErr *jira.ValidationError
	assert.ErrorAs(t, err, &vErr)
}
