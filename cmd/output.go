package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/kalverra/jira-insights/ingest"
)

// writeResult prints result in the configured format and turns a failed
// result into an error so the process exits non-zero.
func writeResult[T any](w io.Writer, format string, result ingest.Result[T]) error {
	if err := encode(w, format, result); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	if !result.Success {
		return errors.New(result.Error)
	}
	return nil
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		// Round-trip through JSON so YAML keys follow the JSON tags.
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}
