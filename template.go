package taskspec

import (
	"fmt"
	"regexp"
	"strings"
)

// defaultTemplateSource is the built-in specification skeleton.
const defaultTemplateSource = `# Specification Template
> Ingest the information from this file, implement the Low-Level Tasks, and generate the code that will satisfy the High and Mid-Level Objectives.
## High-Level Objective
- {high_level_objective}
## Mid-Level Objective
{mid_level_objectives}
## Implementation Notes
{implementation_notes}
## Context
### Beginning context
{beginning_context}
### Ending context
{ending_context}
## Low-Level Tasks
> Ordered from start to finish
{low_level_tasks}
`

// requiredPlaceholders must all appear in a usable template.
var requiredPlaceholders = []string{
	"high_level_objective",
	"mid_level_objectives",
	"implementation_notes",
	"beginning_context",
	"ending_context",
	"low_level_tasks",
}

// placeholderDefaults fill sections the pipeline produced no value for, so
// a render never emits a bare marker.
var placeholderDefaults = map[string]string{
	"high_level_objective": "[High level goal]",
	"mid_level_objectives": "- [Mid level objective]",
	"implementation_notes": "- [Implementation note]",
	"beginning_context":    "- [Beginning context]",
	"ending_context":       "- [Ending context]",
	"low_level_tasks":      "1. [First task]",
}

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// SpecTemplate is the output template treated as data: an ordered list of
// named sections, each filled from one placeholder. Rendering is a pure
// merge of values into the structure, with no LLM involvement, which keeps
// assembly deterministic and testable.
type SpecTemplate struct {
	source       string
	placeholders []string
}

// DefaultTemplate returns the built-in specification template.
func DefaultTemplate() *SpecTemplate {
	t, err := ParseTemplate(defaultTemplateSource)
	if err != nil {
		// The built-in source always validates.
		panic(err)
	}
	return t
}

// ParseTemplate parses a markdown template with {placeholder} markers and
// validates that every required placeholder is present.
func ParseTemplate(source string) (*SpecTemplate, error) {
	var found []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(source, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			found = append(found, m[1])
		}
	}
	for _, required := range requiredPlaceholders {
		if !seen[required] {
			return nil, fmt.Errorf("invalid template: missing placeholder {%s}", required)
		}
	}
	return &SpecTemplate{source: source, placeholders: found}, nil
}

// Placeholders returns the placeholder names in document order.
func (t *SpecTemplate) Placeholders() []string {
	out := make([]string, len(t.placeholders))
	copy(out, t.placeholders)
	return out
}

// Skeleton returns the raw template source, suitable for embedding in a
// formatting prompt.
func (t *SpecTemplate) Skeleton() string { return t.source }

// Render merges values into the template. Placeholders without a value fall
// back to a bracketed default. Rendering the same values always produces
// the same text.
func (t *SpecTemplate) Render(values map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(t.source, func(marker string) string {
		name := marker[1 : len(marker)-1]
		if v, ok := values[name]; ok && v != "" {
			return v
		}
		if d, ok := placeholderDefaults[name]; ok {
			return d
		}
		return marker
	})
}

// sectionPattern matches one "## Heading" block up to the next heading.
func sectionPattern(heading string, level int) *regexp.Regexp {
	marker := strings.Repeat("#", level)
	return regexp.MustCompile(`(?s)` + marker + `\s+` + regexp.QuoteMeta(heading) + `\s*\n(.*?)(?:\n#{1,` + fmt.Sprint(level) + `}\s|\z)`)
}

// ExtractComponents pulls the named sections back out of a rendered
// specification document. Missing sections yield empty strings.
func ExtractComponents(spec string) map[string]string {
	components := map[string]string{
		"high_level_objective": "",
		"mid_level_objectives": "",
		"implementation_notes": "",
		"beginning_context":    "",
		"ending_context":       "",
		"low_level_tasks":      "",
	}

	extract := func(heading string, level int) string {
		if m := sectionPattern(heading, level).FindStringSubmatch(spec); m != nil {
			return strings.TrimSpace(m[1])
		}
		return ""
	}

	components["high_level_objective"] = extract("High-Level Objective", 2)
	components["mid_level_objectives"] = extract("Mid-Level Objective", 2)
	components["implementation_notes"] = extract("Implementation Notes", 2)
	components["beginning_context"] = extract("Beginning context", 3)
	components["ending_context"] = extract("Ending context", 3)
	components["low_level_tasks"] = extract("Low-Level Tasks", 2)

	return components
}
