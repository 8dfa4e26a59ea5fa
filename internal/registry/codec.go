package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Marshal encodes a registry mapping as the canonical registry document:
// a JSON object keyed by class, each class an object keyed by stable id.
// Keys are sorted and indentation is fixed, so re-saving an unchanged
// registry produces identical bytes.
func Marshal(m map[string]map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]map[string]string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	// encoding/json sorts map keys
	if err := enc.Encode(normalize(m)); err != nil {
		return nil, fmt.Errorf("encode registry: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a registry document.
func Unmarshal(data []byte) (map[string]map[string]string, error) {
	m := map[string]map[string]string{}
	if len(bytes.TrimSpace(data)) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	return normalize(m), nil
}

// normalize replaces null class objects with empty ones so that empty classes
// survive a round trip as {}.
func normalize(m map[string]map[string]string) map[string]map[string]string {
	for class, ids := range m {
		if ids == nil {
			m[class] = map[string]string{}
		}
	}
	return m
}
