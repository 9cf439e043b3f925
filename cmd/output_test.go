package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalverra/jira-insights/ingest"
	"github.com/kalverra/jira-insights/issues"
	"github.com/kalverra/jira-insights/jira"
)

func TestWriteResult(t *testing.T) {
	t.Parallel()

	ok := ingest.Ok([]issues.Issue{{ID: "ABC-1", Summary: "Fix login"}}, "1 issues fetched (JQL: project = \"ABC\")")
	failed := ingest.Fail[[]issues.Issue](&jira.ValidationError{Field: "jira_url", Reason: "is required"})

	tests := []struct {
		name     string
		format   string
		result   ingest.Result[[]issues.Issue]
		contains []string
		wantErr  bool
	}{
		{
			name:     "json success",
			format:   "json",
			result:   ok,
			contains: []string{`"success": true`, `"id": "ABC-1"`, `"message": "1 issues fetched`},
		},
		{
			name:     "yaml success",
			format:   "yaml",
			result:   ok,
			contains: []string{"success: true", "id: ABC-1", "summary: Fix login"},
		},
		{
			name:     "json failure",
			format:   "json",
			result:   failed,
			contains: []string{`"success": false`, `"error": "validation error: jira_url is required"`},
			wantErr:  true,
		},
		{
			name:     "yaml failure",
			format:   "yaml",
			result:   failed,
			contains: []string{"success: false", "validation error: jira_url is required"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			err := writeResult(&buf, tt.format, tt.result)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.result.Error, err.Error())
			} else {
				require.NoError(t, err)
			}
			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteResultWriterError(t *testing.T) {
	t.Parallel()

	err := writeResult(failingWriter{}, "json", ingest.Ok([]jira.Project{}, ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
