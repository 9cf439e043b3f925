package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kalverra/jira-insights/jira"
)

// Result is what every ingestion entry point returns: either data with an
// optional message, or an error message. Callers never get a bare error.
type Result[T any] struct {
	Success bool
	Data    T
	Message string
	Error   string
	// Kind is set on failed results. It is not serialized.
	Kind ErrorKind
}

// ErrorKind classifies a failed result.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindAPI        ErrorKind = "api"
	KindNetwork    ErrorKind = "network"
	KindCanceled   ErrorKind = "canceled"
	KindInternal   ErrorKind = "internal"
)

// Ok returns a successful result.
func Ok[T any](data T, message string) Result[T] {
	return Result[T]{Success: true, Data: data, Message: message}
}

// Fail returns a failed result carrying the classified error message.
func Fail[T any](err error) Result[T] {
	kind, msg := classify(err)
	return Result[T]{Error: msg, Kind: kind}
}

// MarshalJSON encodes {success, data, message} or {success, error}.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}{false, r.Error})
	}
	return json.Marshal(struct {
		Success bool   `json:"success"`
		Data    T      `json:"data"`
		Message string `json:"message,omitempty"`
	}{true, r.Data, r.Message})
}

// Classify turns an error into the message shown to the user, keeping
// validation, API, network and cancellation failures apart.
func Classify(err error) string {
	_, msg := classify(err)
	return msg
}

func classify(err error) (ErrorKind, string) {
	if err == nil {
		return "", ""
	}
	var (
		validationErr *jira.ValidationError
		apiErr        *jira.APIError
		netErr        *jira.NetworkError
	)
	switch {
	case errors.As(err, &validationErr):
		return KindValidation, "validation error: " + validationErr.Error()
	case errors.Is(err, context.Canceled):
		return KindCanceled, "fetch canceled"
	case errors.As(err, &apiErr):
		return KindAPI, apiErr.Error()
	case errors.As(err, &netErr), jira.IsNetworkError(err):
		return KindNetwork, fmt.Sprintf(
			"network error: %v. Check the Jira URL, your network connection, "+
				"and that the API token has access to this instance",
			err,
		)
	default:
		return KindInternal, "internal error: " + err.Error()
	}
}
