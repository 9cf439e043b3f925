package jira

import (
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var pagesFetched, _ = otel.Meter(instrumentationScope).Int64Counter(
	"jira.search.pages",
	metric.WithDescription("Search result pages read from Jira"),
)

func readBody(resp *http.Response) []byte {
	if resp.Body == nil {
		return nil
	}
	defer resp.Body.Close() //nolint:errcheck
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return b
}
