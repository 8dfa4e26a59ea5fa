// Package report defines the documents stableid writes after a run.
//
// The sync report is written after every reconciliation. It is consumed by
// tooling outside this repository (a markdown formatter that groups entries
// by class), so its JSON shape is a wire contract: field names are snake
// case and each similarity suggestion is a two element array
// [candidate, ratio].
package report

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimestampLayout formats the sync report timestamp: UTC, no zone suffix,
// microsecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// SyncReport is the result of one reconciliation run.
type SyncReport struct {
	// Timestamp is when the run started, formatted with TimestampLayout.
	Timestamp string `json:"timestamp" yaml:"timestamp"`

	// NewIDs lists the bindings minted during the run, in mint order.
	NewIDs []NewID `json:"new_ids" yaml:"new_ids"`

	// MissingIDs lists registry entries whose semantic identifier no longer
	// appears in the sources. Sorted by class, then stable identifier.
	MissingIDs []MissingID `json:"missing_ids" yaml:"missing_ids"`
}

// NewID is a binding created during reconciliation.
type NewID struct {
	Class      string `json:"class" yaml:"class"`
	UUID       string `json:"uuid" yaml:"uuid"`
	SemanticID string `json:"semantic_id" yaml:"semantic_id"`
}

// MissingID is a registry entry absent from the current sources.
type MissingID struct {
	Class      string `json:"class" yaml:"class"`
	UUID       string `json:"uuid" yaml:"uuid"`
	SemanticID string `json:"semantic_id" yaml:"semantic_id"`

	// Similar holds the current identifiers of the same class that look like
	// a rename of SemanticID, best match first.
	Similar []Suggestion `json:"similar" yaml:"similar"`
}

// Suggestion is a candidate rename and its similarity ratio in [0, 1].
type Suggestion struct {
	Candidate string  `yaml:"candidate"`
	Ratio     float64 `yaml:"ratio"`
}

// MarshalJSON encodes the suggestion as [candidate, ratio].
func (s Suggestion) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{s.Candidate, s.Ratio})
}

// UnmarshalJSON decodes a [candidate, ratio] pair.
func (s *Suggestion) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("suggestion: expected [candidate, ratio], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &s.Candidate); err != nil {
		return fmt.Errorf("suggestion candidate: %w", err)
	}
	if err := json.Unmarshal(pair[1], &s.Ratio); err != nil {
		return fmt.Errorf("suggestion ratio: %w", err)
	}
	return nil
}

// NewSyncReport returns an empty report stamped with now.
func NewSyncReport(now time.Time) *SyncReport {
	return &SyncReport{
		Timestamp:  now.UTC().Format(TimestampLayout),
		NewIDs:     []NewID{},
		MissingIDs: []MissingID{},
	}
}

// OK reports whether the run found no missing identifiers.
func (r *SyncReport) OK() bool {
	return len(r.MissingIDs) == 0
}

// NewCount returns the number of minted bindings.
func (r *SyncReport) NewCount() int {
	return len(r.NewIDs)
}

// MissingCount returns the number of missing identifiers.
func (r *SyncReport) MissingCount() int {
	return len(r.MissingIDs)
}

// MissingByClass groups missing identifiers by class, preserving order.
func (r *SyncReport) MissingByClass() map[string][]MissingID {
	out := make(map[string][]MissingID)
	for _, m := range r.MissingIDs {
		out[m.Class] = append(out[m.Class], m)
	}
	return out
}
