package taskspec

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zoobzio/capitan"
)

// Breakdown is the structured output of the decomposition step: the
// template components plus the ordered subtask list.
type Breakdown struct {
	Objective           string    `json:"objective" desc:"one-line high-level objective"`
	MidLevelObjectives  []string  `json:"mid_level_objectives" desc:"measurable steps toward the objective"`
	ImplementationNotes []string  `json:"implementation_notes" desc:"technical details, dependencies, standards"`
	BeginningContext    []string  `json:"beginning_context" desc:"files that exist at the start"`
	EndingContext       []string  `json:"ending_context" desc:"files that exist at the end"`
	Subtasks            []Subtask `json:"subtasks" desc:"ordered subtasks, dependencies before dependents"`
}

// Request carries the collaborator-supplied inputs for one analysis run.
// Conventions text and search snippets arrive pre-fetched: the pipeline
// performs no file or network I/O of its own beyond provider calls.
type Request struct {
	Task        string
	Conventions string
	Search      []string
	Template    *SpecTemplate // nil uses the default template
	Refine      bool          // extra polish pass over the assembled draft
}

// Result is the outcome of one analysis run.
type Result struct {
	RunID     string
	State     State
	Spec      string
	Subtasks  []Subtask
	Verdicts  []ValidationVerdict
	Validated bool // true when a verdict passed (or validation was disabled)
}

// Analyzer drives the multi-step analysis pipeline:
//
//	Start → Decompose → Elaborate(subtask..) → Assemble → (Validate → Revise)* → Done | Failed
//
// Each run owns its TaskContext; only the cache behind the gateway is
// shared with concurrent runs.
type Analyzer struct {
	executor   *Executor
	validation ValidationConfig
}

// NewAnalyzer creates an Analyzer over the given gateway.
func NewAnalyzer(gateway *Gateway, cfg *Config) *Analyzer {
	return &Analyzer{
		executor:   NewExecutor(gateway),
		validation: cfg.Validation,
	}
}

// Run executes the full pipeline for one task description.
func (a *Analyzer) Run(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Task) == "" {
		return nil, fmt.Errorf("task description is empty")
	}
	tmpl := req.Template
	if tmpl == nil {
		tmpl = DefaultTemplate()
	}

	tc := NewTaskContext(req.Task)
	tc.Conventions = req.Conventions
	tc.Search = req.Search

	capitan.Info(ctx, RunStarted, RunIDKey.Field(tc.RunID))

	run := func() error {
		tc.State = StateDecompose
		breakdown, err := a.decompose(ctx, tc)
		if err != nil {
			return err
		}

		tc.State = StateElaborate
		if err := a.elaborate(ctx, tc); err != nil {
			return err
		}

		tc.State = StateAssemble
		tc.Draft = assemble(tmpl, breakdown, tc)

		if req.Refine {
			if err := a.refine(ctx, tc); err != nil {
				return err
			}
		}

		if a.validation.Enabled {
			final, verdicts, err := a.validateAndRevise(ctx, tc, a.validation.MaxIterations)
			if err != nil {
				return err
			}
			tc.Draft = final
			tc.Verdicts = verdicts
			if a.validation.Required && !lastPassed(verdicts) {
				return fmt.Errorf("validation did not pass within %d iterations", a.validation.MaxIterations)
			}
		}
		return nil
	}

	if err := run(); err != nil {
		tc.State = StateFailed
		capitan.Error(ctx, RunFailed,
			RunIDKey.Field(tc.RunID),
			StateKey.Field(string(tc.State)),
			ErrorKey.Field(err.Error()),
		)
		return nil, err
	}

	tc.State = StateDone
	capitan.Info(ctx, RunCompleted,
		RunIDKey.Field(tc.RunID),
		SubtaskCountKey.Field(len(tc.Subtasks)),
	)

	return &Result{
		RunID:     tc.RunID,
		State:     tc.State,
		Spec:      tc.Draft,
		Subtasks:  tc.Subtasks,
		Verdicts:  tc.Verdicts,
		Validated: !a.validation.Enabled || lastPassed(tc.Verdicts),
	}, nil
}

// decompose runs the decomposition step and records the breakdown.
func (a *Analyzer) decompose(ctx context.Context, tc *TaskContext) (*Breakdown, error) {
	var breakdown Breakdown

	step := Step{
		Name:        "decompose",
		System:      analysisSystemPrompt,
		Temperature: DefaultTemperatureBreakdown,
		Build: func(tc *TaskContext) (*Prompt, error) {
			return &Prompt{
				Task:        decomposeTask,
				Input:       tc.Task,
				Conventions: tc.Conventions,
				Search:      tc.Search,
				Schema:      jsonSchemaFor[Breakdown](),
				Constraints: []string{
					"subtasks: at least one, ordered so dependencies appear first",
					"dependencies: only ids of earlier subtasks",
				},
			}, nil
		},
		Parse: func(response string, tc *TaskContext) error {
			if err := parseJSON(response, &breakdown); err != nil {
				return err
			}
			if len(breakdown.Subtasks) == 0 {
				return fmt.Errorf("decomposition produced no subtasks")
			}
			ordered, err := orderByDependencies(breakdown.Subtasks)
			if err != nil {
				return err
			}
			for i := range ordered {
				ordered[i].Status = SubtaskPending
			}
			tc.Subtasks = ordered
			return nil
		},
	}

	if _, err := a.executor.Run(ctx, step, tc); err != nil {
		return nil, err
	}
	return &breakdown, nil
}

// elaborate runs one elaboration step per subtask, sequentially in
// dependency order. A subtask's prompt may reference the descriptions of
// all subtasks but only the elaborated content of its dependencies, which
// keeps ordering deterministic and reproducible.
func (a *Analyzer) elaborate(ctx context.Context, tc *TaskContext) error {
	for i := range tc.Subtasks {
		st := &tc.Subtasks[i]

		step := Step{
			Name:        "elaborate:" + st.ID,
			System:      analysisSystemPrompt,
			Temperature: DefaultTemperatureBreakdown,
			Build: func(tc *TaskContext) (*Prompt, error) {
				return &Prompt{
					Task:        elaborateTask,
					Input:       fmt.Sprintf("%s: %s\n\n%s", st.ID, st.Title, st.Description),
					Context:     elaborationContext(tc, st),
					Conventions: tc.Conventions,
				}, nil
			},
			Parse: func(response string, tc *TaskContext) error {
				if strings.TrimSpace(response) == "" {
					return fmt.Errorf("empty elaboration for %s", st.ID)
				}
				tc.Elaborations[st.ID] = strings.TrimSpace(response)
				return nil
			},
		}

		if _, err := a.executor.Run(ctx, step, tc); err != nil {
			return err
		}
		st.Status = SubtaskElaborated

		capitan.Emit(ctx, StepCompleted,
			RunIDKey.Field(tc.RunID),
			SubtaskIDKey.Field(st.ID),
		)
	}
	return nil
}

// refine rewrites the assembled draft in place. It runs before validation,
// so refinement output is still subject to the critique loop.
func (a *Analyzer) refine(ctx context.Context, tc *TaskContext) error {
	step := Step{
		Name:        "refine",
		System:      analysisSystemPrompt,
		Temperature: DefaultTemperatureRefinement,
		Build: func(tc *TaskContext) (*Prompt, error) {
			return &Prompt{
				Task:        refineTask,
				Input:       tc.Draft,
				Conventions: tc.Conventions,
				Constraints: []string{"Return the full revised document, nothing else."},
			}, nil
		},
		Parse: func(response string, tc *TaskContext) error {
			if strings.TrimSpace(response) == "" {
				return fmt.Errorf("empty refinement response")
			}
			tc.Draft = strings.TrimSpace(response)
			return nil
		},
	}
	_, err := a.executor.Run(ctx, step, tc)
	return err
}

// elaborationContext builds the context block for one subtask: the overall
// task, every subtask description, and the finished elaborations of the
// subtask's dependencies only.
func elaborationContext(tc *TaskContext, st *Subtask) string {
	var b strings.Builder
	b.WriteString("Overall task: " + tc.Task + "\n\nAll subtasks:\n")
	for _, other := range tc.Subtasks {
		fmt.Fprintf(&b, "- %s: %s. %s\n", other.ID, other.Title, other.Description)
	}
	for _, dep := range st.Dependencies {
		if content, ok := tc.Elaborations[dep]; ok {
			fmt.Fprintf(&b, "\nCompleted dependency %s:\n%s\n", dep, content)
		}
	}
	return strings.TrimSpace(b.String())
}

// assemble merges the breakdown and elaborations into the template. This is
// a pure function of its inputs, with no LLM call, so the same decomposition
// always yields the same draft, with one section per subtask.
func assemble(tmpl *SpecTemplate, breakdown *Breakdown, tc *TaskContext) string {
	var tasks strings.Builder
	for i, st := range tc.Subtasks {
		fmt.Fprintf(&tasks, "### %d. %s (%s)\n\n", i+1, st.Title, st.ID)
		if content, ok := tc.Elaborations[st.ID]; ok {
			tasks.WriteString(content)
		} else {
			tasks.WriteString(st.Description)
		}
		tasks.WriteString("\n\n")
	}

	objective := breakdown.Objective
	if objective == "" {
		objective = tc.Task
	}

	return tmpl.Render(map[string]string{
		"high_level_objective": objective,
		"mid_level_objectives": bulletList(breakdown.MidLevelObjectives),
		"implementation_notes": bulletList(breakdown.ImplementationNotes),
		"beginning_context":    bulletList(breakdown.BeginningContext),
		"ending_context":       bulletList(breakdown.EndingContext),
		"low_level_tasks":      strings.TrimSpace(tasks.String()),
	})
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- " + item + "\n")
	}
	return strings.TrimSpace(b.String())
}

// lastPassed reports whether the final verdict passed.
func lastPassed(verdicts []ValidationVerdict) bool {
	if len(verdicts) == 0 {
		return false
	}
	return verdicts[len(verdicts)-1].Passed
}

// orderByDependencies sorts subtasks so that every dependency precedes its
// dependents, preserving the declared order among independent subtasks.
// Unknown dependency ids and cycles are rejected.
func orderByDependencies(subtasks []Subtask) ([]Subtask, error) {
	index := make(map[string]int, len(subtasks))
	for i, st := range subtasks {
		if _, dup := index[st.ID]; dup {
			return nil, fmt.Errorf("duplicate subtask id %q", st.ID)
		}
		index[st.ID] = i
	}

	indegree := make([]int, len(subtasks))
	dependents := make([][]int, len(subtasks))
	for i, st := range subtasks {
		for _, dep := range st.Dependencies {
			j, ok := index[dep]
			if !ok {
				return nil, fmt.Errorf("subtask %q depends on unknown id %q", st.ID, dep)
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	// Kahn's algorithm with a sorted frontier keeps the output stable.
	var frontier []int
	for i, d := range indegree {
		if d == 0 {
			frontier = append(frontier, i)
		}
	}

	ordered := make([]Subtask, 0, len(subtasks))
	for len(frontier) > 0 {
		// Lowest original index first.
		min := 0
		for k := 1; k < len(frontier); k++ {
			if frontier[k] < frontier[min] {
				min = k
			}
		}
		i := frontier[min]
		frontier = append(frontier[:min], frontier[min+1:]...)

		ordered = append(ordered, subtasks[i])
		for _, j := range dependents[i] {
			indegree[j]--
			if indegree[j] == 0 {
				frontier = append(frontier, j)
			}
		}
	}

	if len(ordered) != len(subtasks) {
		return nil, fmt.Errorf("dependency cycle among subtasks")
	}
	return ordered, nil
}

// parseJSON decodes a structured step response, tolerating surrounding
// prose or markdown fences around the JSON object.
func parseJSON(response string, out any) error {
	text := strings.TrimSpace(response)
	if err := json.Unmarshal([]byte(text), out); err == nil {
		return nil
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return fmt.Errorf("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
