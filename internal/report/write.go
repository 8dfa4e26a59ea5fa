package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// WriteJSON writes r to path as indented JSON.
func WriteJSON(path string, r *SyncReport) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode sync report: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write sync report: %w", err)
	}
	return nil
}

// ReadJSON reads a sync report written by WriteJSON.
func ReadJSON(path string) (*SyncReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r SyncReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse sync report %s: %w", path, err)
	}
	return &r, nil
}

// GitHubOutputs returns the step outputs published for a sync report, in
// the order they are written.
func GitHubOutputs(r *SyncReport) [][2]string {
	return [][2]string{
		{"new_count", fmt.Sprint(r.NewCount())},
		{"missing_count", fmt.Sprint(r.MissingCount())},
		{"has_missing", fmt.Sprint(!r.OK())},
		{"has_new", fmt.Sprint(r.NewCount() > 0)},
	}
}

// WriteGitHubOutput appends the report's step outputs to the file named by
// $GITHUB_OUTPUT (passed as path) in key=value form.
func WriteGitHubOutput(path string, r *SyncReport) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open github output: %w", err)
	}
	defer f.Close()

	for _, kv := range GitHubOutputs(r) {
		if _, err := fmt.Fprintf(f, "%s=%s\n", kv[0], kv[1]); err != nil {
			return fmt.Errorf("write github output: %w", err)
		}
	}
	return f.Close()
}
