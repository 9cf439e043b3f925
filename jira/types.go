// Package jira provides a read-only client for the Jira REST API.
package jira

import "encoding/json"

// RawIssue is an issue as returned by the search endpoint. Fields are kept
// as raw JSON so that instance-specific custom fields survive untouched
// until they are normalized.
type RawIssue struct {
	ID        string                     `json:"id"`
	Key       string                     `json:"key"`
	Self      string                     `json:"self"`
	Fields    map[string]json.RawMessage `json:"fields"`
	Changelog json.RawMessage            `json:"changelog,omitempty"`
}

// SearchRequest is the body of a POST to the search endpoint.
type SearchRequest struct {
	JQL        string   `json:"jql"`
	Fields     []string `json:"fields"`
	Expand     []string `json:"expand"`
	StartAt    int      `json:"startAt"`
	MaxResults int      `json:"maxResults"`
}

// SearchResponse is one page of a JQL search.
type SearchResponse struct {
	Issues     []RawIssue `json:"issues"`
	MaxResults int        `json:"maxResults"`
	Total      int        `json:"total"`
	StartAt    int        `json:"startAt"`
}

// Project is a Jira project visible to the authenticated user.
type Project struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Self        string `json:"self,omitempty"`
	Description string `json:"description,omitempty"`
}

// errorBody is the error payload Jira attaches to non-2xx responses.
type errorBody struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
	Message       string            `json:"message"`
}
