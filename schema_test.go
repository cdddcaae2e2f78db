package taskspec

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONSchemaForBreakdown(t *testing.T) {
	schema := jsonSchemaFor[Breakdown]()

	var parsed struct {
		Type       string                    `json:"type"`
		Properties map[string]map[string]any `json:"properties"`
		Required   []string                  `json:"required"`
	}
	if err := json.Unmarshal([]byte(schema), &parsed); err != nil {
		t.Fatalf("Schema is not valid JSON: %v", err)
	}

	if parsed.Type != "object" {
		t.Errorf("Expected object schema, got %s", parsed.Type)
	}
	for _, name := range []string{"objective", "mid_level_objectives", "subtasks"} {
		if _, ok := parsed.Properties[name]; !ok {
			t.Errorf("Missing property %s", name)
		}
	}
	if parsed.Properties["objective"]["type"] != "string" {
		t.Errorf("objective should be a string, got %v", parsed.Properties["objective"]["type"])
	}
	if parsed.Properties["subtasks"]["type"] != "array" {
		t.Errorf("subtasks should be an array, got %v", parsed.Properties["subtasks"]["type"])
	}
	if desc, ok := parsed.Properties["objective"]["description"]; !ok || desc == "" {
		t.Error("desc tags should surface as descriptions")
	}
}

func TestJSONSchemaForVerdict(t *testing.T) {
	schema := jsonSchemaFor[ValidationVerdict]()

	if !strings.Contains(schema, `"passed"`) || !strings.Contains(schema, `"issues"`) {
		t.Errorf("Verdict schema missing fields:\n%s", schema)
	}
	// Iteration carries json:"-" and must not leak into the schema.
	if strings.Contains(schema, "iteration") {
		t.Errorf("Excluded field leaked into schema:\n%s", schema)
	}
}

func TestJSONSchemaOmitemptyNotRequired(t *testing.T) {
	type sample struct {
		Always    string `json:"always"`
		Sometimes string `json:"sometimes,omitempty"`
	}
	schema := jsonSchemaFor[sample]()

	var parsed struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal([]byte(schema), &parsed); err != nil {
		t.Fatalf("Schema is not valid JSON: %v", err)
	}
	for _, name := range parsed.Required {
		if name == "sometimes" {
			t.Error("omitempty fields must not be required")
		}
	}
	if len(parsed.Required) != 1 || parsed.Required[0] != "always" {
		t.Errorf("Unexpected required list: %v", parsed.Required)
	}
}
