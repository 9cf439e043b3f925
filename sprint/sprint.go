// Package sprint decodes Jira sprint references and picks the current sprint
// of an issue.
package sprint

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// State is the lifecycle state of a sprint.
type State string

const (
	StateActive State = "active"
	StateClosed State = "closed"
	StateFuture State = "future"
)

// Sprint is a snapshot of a sprint as seen on an issue at fetch time.
type Sprint struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	State        State  `json:"state"`
	StartDate    string `json:"startDate,omitempty"`
	EndDate      string `json:"endDate,omitempty"`
	CompleteDate string `json:"completeDate,omitempty"`
	BoardID      *int   `json:"boardId,omitempty"`
}

// ParseError reports a sprint element that could not be decoded.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse sprint %q: %s", truncate(e.Input, 80), e.Reason)
}

// Decoder turns a string-encoded sprint reference into a Sprint.
type Decoder interface {
	Decode(s string) (Sprint, error)
}

// FromObject decodes a well-formed sprint object. It reports false unless
// id, name and state are all present and non-empty.
func FromObject(obj map[string]any) (Sprint, bool) {
	id, ok := intValue(obj["id"])
	if !ok {
		return Sprint{}, false
	}
	name, _ := obj["name"].(string)
	state, _ := obj["state"].(string)
	if name == "" || state == "" {
		return Sprint{}, false
	}
	sp := Sprint{
		ID:           id,
		Name:         name,
		State:        State(strings.ToLower(state)),
		StartDate:    stringValue(obj["startDate"]),
		EndDate:      stringValue(obj["endDate"]),
		CompleteDate: stringValue(obj["completeDate"]),
	}
	board := obj["boardId"]
	if board == nil {
		board = obj["originBoardId"]
	}
	if b, ok := intValue(board); ok {
		sp.BoardID = &b
	}
	return sp, true
}

// Select returns the current sprint: the first active one, else the first
// future one, else the one that finished last. Finish time is completeDate,
// or endDate when completeDate is absent; ties keep the earlier element.
func Select(sprints []Sprint) *Sprint {
	if len(sprints) == 0 {
		return nil
	}
	for _, st := range []State{StateActive, StateFuture} {
		for i := range sprints {
			if sprints[i].State == st {
				sp := sprints[i]
				return &sp
			}
		}
	}
	best := -1
	var bestAt time.Time
	for i := range sprints {
		at := sprints[i].finishedAt()
		if best == -1 || at.After(bestAt) {
			best, bestAt = i, at
		}
	}
	sp := sprints[best]
	return &sp
}

// Closed returns the closed sprints in their original order.
func Closed(sprints []Sprint) []Sprint {
	closed := make([]Sprint, 0, len(sprints))
	for _, sp := range sprints {
		if sp.State == StateClosed {
			closed = append(closed, sp)
		}
	}
	return closed
}

func (s Sprint) finishedAt() time.Time {
	if t, ok := parseTime(s.CompleteDate); ok {
		return t
	}
	t, _ := parseTime(s.EndDate)
	return t
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

func stringValue(v any) string {
	s, _ := v.(string)
	if s == nullToken {
		return ""
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
