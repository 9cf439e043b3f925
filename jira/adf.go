package jira

import (
	"encoding/json"
	"strings"
)

// adfNode is a recursive node in an Atlassian Document Format document.
type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text,omitempty"`
	Content []adfNode `json:"content,omitempty"`
}

// DescriptionText renders an issue description as plain text. API v2
// returns a JSON string, API v3 an ADF document; top-level ADF blocks are
// joined with newlines. Anything else is returned as raw JSON text.
func DescriptionText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var doc adfNode
	if err := json.Unmarshal(raw, &doc); err != nil || doc.Type != "doc" {
		return string(raw)
	}
	lines := make([]string, 0, len(doc.Content))
	for _, block := range doc.Content {
		lines = append(lines, extractText(block))
	}
	return strings.Join(lines, "\n")
}

func extractText(node adfNode) string {
	if node.Type == "text" {
		return node.Text
	}
	if node.Type == "hardBreak" {
		return "\n"
	}
	parts := make([]string, 0, len(node.Content))
	for _, child := range node.Content {
		if t := extractText(child); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "")
}
