package issues

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"slices"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/kalverra/jira-insights/jira"
	"github.com/kalverra/jira-insights/sprint"
)

const instrumentationScope = "github.com/kalverra/jira-insights/issues"

var meter = otel.Meter(instrumentationScope)

var normalizedCount, _ = meter.Int64Counter(
	"issues.normalized",
	metric.WithDescription("Issues mapped to the normalized record"),
)

var sprintFailures, _ = meter.Int64Counter(
	"issues.sprint_parse_failures",
	metric.WithDescription("Sprint field elements that could not be decoded"),
)

// Normalizer maps raw search results to Issue values. It holds no mutable
// state and is safe for concurrent use.
type Normalizer struct {
	extensions []string
	decoder    sprint.Decoder
	logger     zerolog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithDecoder replaces the decoder used for string-encoded sprints.
func WithDecoder(d sprint.Decoder) Option {
	return func(n *Normalizer) { n.decoder = d }
}

// NewNormalizer creates a Normalizer that copies the given custom fields
// into Issue.Extensions.
func NewNormalizer(extensions []string, logger zerolog.Logger, opts ...Option) *Normalizer {
	n := &Normalizer{
		extensions: slices.Clone(extensions),
		decoder:    sprint.LegacyDecoder{},
		logger:     logger.With().Str("component", "normalizer").Logger(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize maps one raw issue.
func (n *Normalizer) Normalize(raw jira.RawIssue) Issue {
	issue, _ := n.normalize(raw)
	return issue
}

// NormalizeAll maps every raw issue, preserving order.
func (n *Normalizer) NormalizeAll(ctx context.Context, raws []jira.RawIssue) []Issue {
	out := make([]Issue, 0, len(raws))
	failures := 0
	for _, raw := range raws {
		issue, discarded := n.normalize(raw)
		failures += discarded
		out = append(out, issue)
	}
	normalizedCount.Add(ctx, int64(len(out)))
	if failures > 0 {
		sprintFailures.Add(ctx, int64(failures))
		n.logger.Warn().Int("count", failures).Msg("discarded undecodable sprint references")
	}
	return out
}

func (n *Normalizer) normalize(raw jira.RawIssue) (Issue, int) {
	f := raw.Fields
	issue := Issue{
		ID:          raw.Key,
		Self:        raw.Self,
		Summary:     stringField(f, "summary"),
		Description: rawField(f, "description"),

		Status:   objectField[Status](f, "status"),
		Type:     objectField[IssueType](f, "issuetype"),
		Project:  objectField[Project](f, "project"),
		Priority: objectField[Priority](f, "priority"),
		Assignee: userField(f, "assignee"),
		Reporter: userField(f, "reporter"),

		Labels:     listField[string](f, "labels"),
		Components: listField[Component](f, "components"),

		Created:        stringField(f, "created"),
		Updated:        stringField(f, "updated"),
		ResolutionDate: stringField(f, "resolutiondate"),
		DueDate:        stringField(f, "duedate"),
		StartDate:      stringField(f, jira.StartDateField),

		TimeOriginalEstimate:          secondsField(f, "timeoriginalestimate"),
		TimeSpent:                     secondsField(f, "timespent"),
		TimeEstimate:                  secondsField(f, "timeestimate"),
		AggregateTimeOriginalEstimate: secondsField(f, "aggregatetimeoriginalestimate"),
		AggregateTimeSpent:            secondsField(f, "aggregatetimespent"),
		AggregateTimeEstimate:         secondsField(f, "aggregatetimeestimate"),

		Worklog:   rawField(f, "worklog"),
		Changelog: cloneRaw(raw.Changelog),
		Parent:    parentField(f, "parent"),

		StoryPoints: numberField(f, jira.StoryPointsField),
	}
	if issue.ID == "" {
		issue.ID = raw.ID
	}

	sprints, discarded := n.sprints(raw.Key, f[jira.SprintField])
	issue.Sprint = sprint.Select(sprints)
	issue.ClosedSprints = sprint.Closed(sprints)

	for _, key := range n.extensions {
		v, ok := f[key]
		if !ok {
			continue
		}
		if issue.Extensions == nil {
			issue.Extensions = make(map[string]json.RawMessage, len(n.extensions))
		}
		issue.Extensions[key] = cloneRaw(v)
	}
	return issue, discarded
}

// sprints decodes the sprint field. Elements that cannot be decoded are
// logged and skipped.
func (n *Normalizer) sprints(key string, raw json.RawMessage) ([]sprint.Sprint, int) {
	if isNull(raw) {
		return nil, 0
	}
	var elems []any
	if err := json.Unmarshal(raw, &elems); err != nil {
		var single any
		if err := json.Unmarshal(raw, &single); err != nil {
			n.logger.Debug().Err(err).Str("issue", key).Msg("sprint field is not JSON")
			return nil, 1
		}
		elems = []any{single}
	}

	out := make([]sprint.Sprint, 0, len(elems))
	discarded := 0
	for _, elem := range elems {
		switch v := elem.(type) {
		case string:
			sp, err := n.decoder.Decode(v)
			if err != nil {
				n.logger.Debug().Err(err).Str("issue", key).Msg("skipping sprint reference")
				discarded++
				continue
			}
			out = append(out, sp)
		case map[string]any:
			sp, ok := sprint.FromObject(v)
			if !ok {
				n.logger.Debug().Str("issue", key).Msg("skipping incomplete sprint object")
				discarded++
				continue
			}
			out = append(out, sp)
		default:
			discarded++
		}
	}
	return out, discarded
}

type rawUser struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

type rawParent struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Summary string  `json:"summary"`
		Status  *Status `json:"status"`
	} `json:"fields"`
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return slices.Clone(raw)
}

func rawField(f map[string]json.RawMessage, key string) json.RawMessage {
	raw := f[key]
	if isNull(raw) {
		return nil
	}
	return cloneRaw(raw)
}

func stringField(f map[string]json.RawMessage, key string) string {
	raw := f[key]
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func objectField[T any](f map[string]json.RawMessage, key string) *T {
	raw := f[key]
	if isNull(raw) {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

func listField[T any](f map[string]json.RawMessage, key string) []T {
	out := []T{}
	raw := f[key]
	if isNull(raw) {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return []T{}
	}
	return out
}

func userField(f map[string]json.RawMessage, key string) *User {
	u := objectField[rawUser](f, key)
	if u == nil {
		return nil
	}
	return &User{
		AccountID:   u.AccountID,
		DisplayName: u.DisplayName,
		Email:       u.EmailAddress,
	}
}

func parentField(f map[string]json.RawMessage, key string) *ParentRef {
	p := objectField[rawParent](f, key)
	if p == nil {
		return nil
	}
	id := p.Key
	if id == "" {
		id = p.ID
	}
	return &ParentRef{
		ID:      id,
		Summary: p.Fields.Summary,
		Status:  p.Fields.Status,
	}
}

func numberField(f map[string]json.RawMessage, key string) *float64 {
	v := objectField[float64](f, key)
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}

// secondsField reads an effort value. Negative, non-numeric or
// out-of-range values are treated as unset.
func secondsField(f map[string]json.RawMessage, key string) *int64 {
	v := numberField(f, key)
	if v == nil || *v < 0 || *v >= math.MaxInt64 {
		return nil
	}
	s := int64(*v)
	return &s
}
