package taskspec

import (
	"fmt"
	"strings"
)

// Prompt represents a structured LLM prompt with consistent formatting.
// It enforces a canonical section order across all pipeline steps, which
// keeps rendered prompts, and therefore cache fingerprints, stable.
type Prompt struct {
	Task        string    // Required: what the LLM should do
	Input       string    // Required: the main content to process
	Context     string    // Optional: additional context
	Conventions string    // Optional: user coding standards and preferences
	Search      []string  // Optional: pre-fetched web search snippets
	Subtasks    []Subtask // Optional: decomposed subtasks to reference
	Template    string    // Optional: output template skeleton to follow
	Schema      string    // Optional: JSON schema for structured responses
	Constraints []string  // Optional: rules and constraints
}

// Render converts the structured prompt to a string for the LLM.
// Section order is fixed; identical prompts render identically.
func (p *Prompt) Render() string {
	var sections []string

	// Task is always first
	if p.Task != "" {
		sections = append(sections, "Task: "+p.Task)
	}

	// Input is always second
	if p.Input != "" {
		sections = append(sections, "Input:\n"+p.Input)
	}

	// Optional context
	if p.Context != "" {
		sections = append(sections, "Context:\n"+p.Context)
	}

	// User conventions
	if p.Conventions != "" {
		sections = append(sections, "Conventions:\n"+p.Conventions)
	}

	// Pre-fetched search snippets
	if len(p.Search) > 0 {
		search := "Additional context from web search:\n"
		for _, snippet := range p.Search {
			search += "- " + snippet + "\n"
		}
		sections = append(sections, strings.TrimSpace(search))
	}

	// Subtask listing (for elaboration steps)
	if len(p.Subtasks) > 0 {
		list := "Subtasks:\n"
		for i, st := range p.Subtasks {
			list += fmt.Sprintf("  %d. %s: %s\n", i+1, st.Title, st.Description)
		}
		sections = append(sections, strings.TrimSpace(list))
	}

	// Output template skeleton
	if p.Template != "" {
		sections = append(sections, "Format the output using this template:\n```markdown\n"+p.Template+"\n```")
	}

	// Schema for structured responses
	if p.Schema != "" {
		sections = append(sections, "Return JSON:\n"+p.Schema)
	}

	// Constraints - always last
	if len(p.Constraints) > 0 {
		con := "Constraints:\n"
		for _, c := range p.Constraints {
			con += "- " + c + "\n"
		}
		sections = append(sections, strings.TrimSpace(con))
	}

	return strings.Join(sections, "\n\n")
}

// Validate checks if the prompt has required fields.
func (p *Prompt) Validate() error {
	if p.Task == "" {
		return fmt.Errorf("prompt missing required Task field")
	}
	if p.Input == "" && len(p.Subtasks) == 0 {
		return fmt.Errorf("prompt missing required Input or Subtasks field")
	}
	return nil
}
