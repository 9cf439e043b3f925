// Package issues maps raw Jira search results onto the flat issue record
// the dashboard views consume.
package issues

import (
	"encoding/json"
	"slices"

	"github.com/kalverra/jira-insights/jira"
	"github.com/kalverra/jira-insights/sprint"
)

// Issue is a normalized Jira issue.
type Issue struct {
	ID          string          `json:"id"`
	Self        string          `json:"selfUrl,omitempty"`
	Summary     string          `json:"summary"`
	Description json.RawMessage `json:"description,omitempty"`

	Status   *Status    `json:"status,omitempty"`
	Type     *IssueType `json:"type,omitempty"`
	Project  *Project   `json:"project,omitempty"`
	Priority *Priority  `json:"priority,omitempty"`

	Assignee *User `json:"assignee,omitempty"`
	Reporter *User `json:"reporter,omitempty"`

	Labels     []string    `json:"labels"`
	Components []Component `json:"components"`

	Created        string `json:"created,omitempty"`
	Updated        string `json:"updated,omitempty"`
	ResolutionDate string `json:"resolutionDate,omitempty"`
	DueDate        string `json:"dueDate,omitempty"`
	StartDate      string `json:"startDate,omitempty"`

	// Effort in seconds. Nil when unset; never negative.
	TimeOriginalEstimate          *int64 `json:"timeOriginalEstimate"`
	TimeSpent                     *int64 `json:"timeSpent"`
	TimeEstimate                  *int64 `json:"timeEstimate"`
	AggregateTimeOriginalEstimate *int64 `json:"aggregateTimeOriginalEstimate"`
	AggregateTimeSpent            *int64 `json:"aggregateTimeSpent"`
	AggregateTimeEstimate         *int64 `json:"aggregateTimeEstimate"`

	Worklog   json.RawMessage `json:"worklog,omitempty"`
	Changelog json.RawMessage `json:"changelog,omitempty"`

	Parent *ParentRef `json:"parent,omitempty"`

	Sprint        *sprint.Sprint  `json:"sprint"`
	ClosedSprints []sprint.Sprint `json:"closedSprints"`
	StoryPoints   *float64        `json:"storyPoints"`

	// Extensions holds the requested custom fields verbatim, keyed by
	// field id.
	Extensions map[string]json.RawMessage `json:"extensions,omitempty"`
}

// DescriptionText returns the description as plain text.
func (i *Issue) DescriptionText() string {
	return jira.DescriptionText(i.Description)
}

// Status, IssueType, Project and Priority expose the fields the views read
// and keep the object Jira sent. They marshal back to that object verbatim,
// so fields like iconUrl or avatarUrls survive normalization.

// Status is the workflow status of an issue.
type Status struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	StatusCategory *StatusCategory `json:"statusCategory,omitempty"`

	raw json.RawMessage
}

// StatusCategory groups statuses into to do, in progress and done.
type StatusCategory struct {
	ID   int    `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// IssueType is the type of an issue.
type IssueType struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subtask bool   `json:"subtask,omitempty"`

	raw json.RawMessage
}

// Project is the project an issue belongs to.
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`

	raw json.RawMessage
}

// Priority is the priority of an issue.
type Priority struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	raw json.RawMessage
}

// User is a Jira account.
type User struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
}

// Component is a project component.
type Component struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ParentRef points at the parent issue. It is a reference only.
type ParentRef struct {
	ID      string  `json:"id"`
	Summary string  `json:"summary,omitempty"`
	Status  *Status `json:"status,omitempty"`
}

type (
	statusFields    Status
	issueTypeFields IssueType
	projectFields   Project
	priorityFields  Priority
)

func (s *Status) UnmarshalJSON(b []byte) error {
	return unmarshalVerbatim(b, (*statusFields)(s), &s.raw)
}

func (s Status) MarshalJSON() ([]byte, error) {
	return marshalVerbatim(s.raw, statusFields(s))
}

func (t *IssueType) UnmarshalJSON(b []byte) error {
	return unmarshalVerbatim(b, (*issueTypeFields)(t), &t.raw)
}

func (t IssueType) MarshalJSON() ([]byte, error) {
	return marshalVerbatim(t.raw, issueTypeFields(t))
}

func (p *Project) UnmarshalJSON(b []byte) error {
	return unmarshalVerbatim(b, (*projectFields)(p), &p.raw)
}

func (p Project) MarshalJSON() ([]byte, error) {
	return marshalVerbatim(p.raw, projectFields(p))
}

func (p *Priority) UnmarshalJSON(b []byte) error {
	return unmarshalVerbatim(b, (*priorityFields)(p), &p.raw)
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return marshalVerbatim(p.raw, priorityFields(p))
}

func unmarshalVerbatim[T any](b []byte, fields *T, raw *json.RawMessage) error {
	if err := json.Unmarshal(b, fields); err != nil {
		return err
	}
	*raw = slices.Clone(b)
	return nil
}

func marshalVerbatim[T any](raw json.RawMessage, fields T) ([]byte, error) {
	if len(raw) > 0 {
		return raw, nil
	}
	return json.Marshal(fields)
}
