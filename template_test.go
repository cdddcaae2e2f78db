package taskspec

import (
	"strings"
	"testing"
)

func TestDefaultTemplate(t *testing.T) {
	tmpl := DefaultTemplate()

	placeholders := tmpl.Placeholders()
	if len(placeholders) != len(requiredPlaceholders) {
		t.Errorf("Expected %d placeholders, got %d", len(requiredPlaceholders), len(placeholders))
	}
	if placeholders[0] != "high_level_objective" {
		t.Errorf("Placeholders must be in document order, got %v", placeholders)
	}
}

func TestParseTemplateMissingPlaceholder(t *testing.T) {
	_, err := ParseTemplate("# Spec\n{high_level_objective}\n{low_level_tasks}")
	if err == nil {
		t.Fatal("Expected error for template missing required placeholders")
	}
	if !strings.Contains(err.Error(), "mid_level_objectives") {
		t.Errorf("Error should name the missing placeholder: %v", err)
	}
}

func TestTemplateRenderDeterministic(t *testing.T) {
	tmpl := DefaultTemplate()
	values := map[string]string{
		"high_level_objective": "Reverse a string",
		"mid_level_objectives": "- parse\n- reverse",
		"implementation_notes": "- use runes",
		"beginning_context":    "- main.go",
		"ending_context":       "- main.go\n- reverse.go",
		"low_level_tasks":      "1. Write reverse()",
	}

	first := tmpl.Render(values)
	second := tmpl.Render(values)
	if first != second {
		t.Error("Rendering the same values must be deterministic")
	}
	if strings.Contains(first, "{") {
		t.Errorf("No placeholder markers may survive rendering:\n%s", first)
	}
	if !strings.Contains(first, "Reverse a string") {
		t.Error("Objective missing from render")
	}
}

func TestTemplateRenderDefaults(t *testing.T) {
	rendered := DefaultTemplate().Render(map[string]string{
		"high_level_objective": "Something",
	})
	if !strings.Contains(rendered, "[Mid level objective]") {
		t.Error("Missing values must fall back to bracketed defaults")
	}
	if strings.Contains(rendered, "{mid_level_objectives}") {
		t.Error("Raw placeholder leaked into render")
	}
}

func TestExtractComponentsRoundTrip(t *testing.T) {
	values := map[string]string{
		"high_level_objective": "Reverse a string",
		"mid_level_objectives": "- parse args\n- reverse input",
		"implementation_notes": "- rune safe",
		"beginning_context":    "- main.go",
		"ending_context":       "- main.go",
		"low_level_tasks":      "1. Write reverse()\n2. Wire main",
	}
	rendered := DefaultTemplate().Render(values)

	// Sections carry template chrome (leading "- ", blockquote hints), so
	// check containment rather than equality.
	components := ExtractComponents(rendered)
	for name, want := range values {
		if !strings.Contains(components[name], want) {
			t.Errorf("Component %s: expected to contain %q, got %q", name, want, components[name])
		}
	}
}

func TestExtractComponentsMissingSections(t *testing.T) {
	components := ExtractComponents("# Not a spec at all")
	for name, value := range components {
		if value != "" {
			t.Errorf("Component %s should be empty, got %q", name, value)
		}
	}
}

func TestTemplateSkeleton(t *testing.T) {
	source := defaultTemplateSource
	tmpl, err := ParseTemplate(source)
	if err != nil {
		t.Fatalf("ParseTemplate failed: %v", err)
	}
	if tmpl.Skeleton() != source {
		t.Error("Skeleton must return the raw source")
	}
}
