package cmd

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestNormalizeToolName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"lookup", "sid_lookup"},
		{"sid_lookup", "sid_lookup"},
		{"reverse", "sid_reverse"},
		{"class", "sid_class"},
		{"classes", "sid_classes"},
		{"nonexistent", "sid_nonexistent"},
	}

	for _, tt := range tests {
		got := normalizeToolName(tt.input)
		if got != tt.want {
			t.Errorf("normalizeToolName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseCallArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    map[string]interface{}
		wantErr bool
	}{
		{"none", nil, map[string]interface{}{}, false},
		{"pairs", []string{"class=Action", "semantic_id=run=fast"}, map[string]interface{}{"class": "Action", "semantic_id": "run=fast"}, false},
		{"json", []string{`{"class":"Action"}`}, map[string]interface{}{"class": "Action"}, false},
		{"bad json", []string{`{"class":`}, nil, true},
		{"missing equals", []string{"class"}, nil, true},
		{"empty key", []string{"=x"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCallArgs(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCallArgs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseCallArgs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCallCmdRequiresToolOrFlag(t *testing.T) {
	setupWorkspace(t, nil)

	// runCall with no args and no flags should error
	err := runCall(callCmd, []string{})
	if err == nil {
		t.Error("runCall with no args should return error")
	}
}

func TestCallList(t *testing.T) {
	setupWorkspace(t, nil)
	callList = true

	var buf bytes.Buffer
	callCmd.SetOut(&buf)
	if err := runCall(callCmd, nil); err != nil {
		t.Fatalf("runCall --list: %v", err)
	}

	var schemas []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(buf.Bytes(), &schemas); err != nil {
		t.Fatalf("--list output is not JSON: %v\n%s", err, buf.String())
	}
	if len(schemas) != 4 || schemas[0].Name != "sid_class" {
		t.Errorf("schemas = %+v", schemas)
	}
}

func TestCallSingleAndPipe(t *testing.T) {
	setupWorkspace(t, map[string]string{
		"config/uuid_mapping.json": `{"Action": {"mbo_1": "run"}}`,
	})

	var buf bytes.Buffer
	callCmd.SetOut(&buf)
	if err := runCall(callCmd, []string{"lookup", "class=Action", "semantic_id=run"}); err != nil {
		t.Fatalf("runCall: %v", err)
	}
	if !strings.Contains(buf.String(), `"uuid": "mbo_1"`) {
		t.Errorf("unexpected result:\n%s", buf.String())
	}

	buf.Reset()
	callPipe = true
	callCmd.SetIn(strings.NewReader("{\"tool\":\"reverse\",\"args\":{\"class\":\"Action\",\"uuid\":\"mbo_1\"}}\n\nnot json\n{\"tool\":\"bogus\"}\n"))
	if err := runCall(callCmd, nil); err != nil {
		t.Fatalf("runCall --pipe: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d response lines, want 3:\n%s", len(lines), buf.String())
	}
	var first pipeResponse
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil || first.Error != "" {
		t.Fatalf("first response = %s (%v)", lines[0], err)
	}
	if !strings.Contains(string(first.Result), `"semantic_id":"run"`) {
		t.Errorf("reverse result = %s", first.Result)
	}
	if !strings.Contains(lines[1], "invalid JSON") || !strings.Contains(lines[2], "unknown tool") {
		t.Errorf("error responses = %s / %s", lines[1], lines[2])
	}
}
