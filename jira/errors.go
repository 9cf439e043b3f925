package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

const maxErrorBody = 200

// ValidationError reports missing or invalid input detected before any
// request is sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// APIError is a non-2xx response from Jira.
type APIError struct {
	StatusCode int
	Status     string
	Messages   []string
	// Body holds the raw response, truncated, when no structured message
	// could be extracted.
	Body string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Jira API error %d %s", e.StatusCode, e.Status)
	switch {
	case len(e.Messages) > 0:
		b.WriteString(": " + strings.Join(e.Messages, "; "))
	case e.Body != "":
		b.WriteString(": " + e.Body)
	}
	return b.String()
}

// NetworkError is a transport failure: the request never got a response.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("cannot reach jira at %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// newAPIError builds an APIError from a status code and response body.
func newAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		Status:     http.StatusText(statusCode),
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		apiErr.Messages = append(apiErr.Messages, eb.ErrorMessages...)
		for _, field := range slices.Sorted(maps.Keys(eb.Errors)) {
			apiErr.Messages = append(apiErr.Messages, field+": "+eb.Errors[field])
		}
		if eb.Message != "" {
			apiErr.Messages = append(apiErr.Messages, eb.Message)
		}
	}
	if len(apiErr.Messages) == 0 {
		apiErr.Body = truncate(strings.TrimSpace(string(body)), maxErrorBody)
	}
	return apiErr
}

var networkMarkers = []string{
	"fetch", "network", "dns", "no such host", "connection refused",
	"connection reset", "dial tcp", "i/o timeout", "tls handshake",
}

// asNetworkError wraps err in a NetworkError when it looks like a transport
// failure, and returns it unchanged otherwise.
func asNetworkError(rawURL string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if IsNetworkError(err) {
		return &NetworkError{URL: rawURL, Err: err}
	}
	return err
}

// IsNetworkError reports whether err is a transport-level failure.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var dnsErr *net.DNSError
	var opErr *net.OpError
	var urlErr *url.Error
	var nErr net.Error
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) ||
		errors.As(err, &urlErr) || errors.As(err, &nErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range networkMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
