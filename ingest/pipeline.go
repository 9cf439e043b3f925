// Package ingest turns a filter into a normalized issue snapshot: it builds
// the JQL, pages through the search endpoint and normalizes every issue.
package ingest

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kalverra/jira-insights/issues"
	"github.com/kalverra/jira-insights/jira"
)

const instrumentationScope = "github.com/kalverra/jira-insights/ingest"

// Searcher is the part of the Jira client the pipeline needs.
type Searcher interface {
	SearchAll(ctx context.Context, jql string, fields []string) ([]jira.RawIssue, error)
	ListProjects(ctx context.Context) ([]jira.Project, error)
}

// ClientFactory builds a Searcher for a validated connection.
type ClientFactory func(conn jira.Connection, logger zerolog.Logger) (Searcher, error)

// Pipeline fetches and normalizes issues. One Pipeline may serve many
// connections; a client is built per call.
type Pipeline struct {
	newClient  ClientFactory
	extensions []string
	normalizer *issues.Normalizer
	tracer     trace.Tracer
	base       zerolog.Logger
	logger     zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithExtensionFields sets the custom fields copied into Issue.Extensions.
func WithExtensionFields(fields []string) Option {
	return func(p *Pipeline) { p.extensions = slices.Clone(fields) }
}

// WithClientFactory replaces how Jira clients are built.
func WithClientFactory(f ClientFactory) Option {
	return func(p *Pipeline) { p.newClient = f }
}

// WithTracerProvider records spans on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Pipeline) { p.tracer = tp.Tracer(instrumentationScope) }
}

// NewPipeline creates a pipeline. Without options it requests
// jira.DefaultExtensionFields and talks to Jira through jira.Client.
func NewPipeline(logger zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		newClient: func(conn jira.Connection, logger zerolog.Logger) (Searcher, error) {
			return jira.NewClient(conn, logger)
		},
		extensions: slices.Clone(jira.DefaultExtensionFields),
		tracer:     otel.Tracer(instrumentationScope),
		base:       logger,
		logger:     logger.With().Str("component", "ingest").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.normalizer = issues.NewNormalizer(p.extensions, logger)
	return p
}

// FetchIssues validates the connection and filter, fetches every matching
// issue and normalizes it. Validation happens before any request is sent.
// An error on any page discards the whole fetch.
func (p *Pipeline) FetchIssues(
	ctx context.Context,
	conn jira.Connection,
	filter Filter,
) (result Result[[]issues.Issue]) {
	ctx, span := p.tracer.Start(ctx, "ingest.fetch")
	defer span.End()
	defer setStatus(span, &result)
	defer recoverInto(&result, p.logger)

	if err := conn.Validate(); err != nil {
		return Fail[[]issues.Issue](err)
	}
	jql, err := BuildJQL(filter)
	if err != nil {
		return Fail[[]issues.Issue](err)
	}
	span.SetAttributes(attribute.String("jira.jql", jql))

	client, err := p.newClient(conn, p.base)
	if err != nil {
		return Fail[[]issues.Issue](err)
	}

	p.logger.Debug().Str("jql", jql).Msg("fetching issues")
	raws, err := client.SearchAll(ctx, jql, jira.RequestFields(p.extensions))
	if err != nil {
		p.logger.Error().Err(err).Str("jql", jql).Msg("fetch failed")
		return Fail[[]issues.Issue](err)
	}

	normalized := p.normalizer.NormalizeAll(ctx, raws)
	span.SetAttributes(attribute.Int("issues.count", len(normalized)))
	p.logger.Info().
		Int("count", len(normalized)).
		Str("jql", jql).
		Msg("issues fetched")
	return Ok(normalized, fmt.Sprintf("%d issues fetched (JQL: %s)", len(normalized), jql))
}

// ListProjects returns every project visible to the connection's
// credential.
func (p *Pipeline) ListProjects(
	ctx context.Context,
	conn jira.Connection,
) (result Result[[]jira.Project]) {
	ctx, span := p.tracer.Start(ctx, "ingest.projects")
	defer span.End()
	defer setStatus(span, &result)
	defer recoverInto(&result, p.logger)

	if err := conn.Validate(); err != nil {
		return Fail[[]jira.Project](err)
	}
	client, err := p.newClient(conn, p.base)
	if err != nil {
		return Fail[[]jira.Project](err)
	}
	projects, err := client.ListProjects(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("list projects failed")
		return Fail[[]jira.Project](err)
	}
	return Ok(projects, fmt.Sprintf("%d projects fetched", len(projects)))
}

// setStatus marks span as failed with the final result's error. It must be
// deferred before recoverInto so it sees the recovered result.
func setStatus[T any](span trace.Span, result *Result[T]) {
	if !result.Success {
		span.SetStatus(codes.Error, result.Error)
	}
}

// recoverInto turns a panic below an entry point into a failed result.
func recoverInto[T any](result *Result[T], logger zerolog.Logger) {
	r := recover()
	if r == nil {
		return
	}
	logger.Error().Interface("panic", r).Msg("recovered from panic")
	*result = Fail[T](fmt.Errorf("%v", r))
}
