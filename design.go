package taskspec

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zoobzio/capitan"
)

// ErrElicitationDone is returned by an AnswerSource to end an interactive
// design session early, before the question budget is spent.
var ErrElicitationDone = errors.New("elicitation session done")

// AnswerSource supplies user answers during interactive design elicitation.
// Each call presents one question and blocks until an answer (or
// ErrElicitationDone) is available.
type AnswerSource interface {
	Answer(ctx context.Context, question string) (string, error)
}

// AnswerFunc adapts a function to the AnswerSource interface.
type AnswerFunc func(ctx context.Context, question string) (string, error)

// Answer calls f.
func (f AnswerFunc) Answer(ctx context.Context, question string) (string, error) {
	return f(ctx, question)
}

// Phase is one implementation phase extracted from a design document.
type Phase struct {
	Name           string   `json:"name" desc:"short phase name"`
	Description    string   `json:"description" desc:"purpose of this phase"`
	Components     []string `json:"components" desc:"key components built in this phase"`
	Dependencies   []string `json:"dependencies" desc:"names of phases this one builds on"`
	Considerations []string `json:"considerations" desc:"technical considerations and risks"`
}

// DesignResult is the outcome of one design pipeline run.
type DesignResult struct {
	RunID     string
	State     State
	Document  string
	Phases    []Phase
	Subtasks  []Subtask
	Verdicts  []ValidationVerdict
	Validated bool
}

// Designer drives the design pipeline: phase extraction and subtask
// planning over an existing design document, or interactive elicitation
// that builds the document from a dialogue. Extracted subtasks can be fed
// back through fresh Analysis Pipeline runs via AnalyzeSubtasks.
type Designer struct {
	executor   *Executor
	analyzer   *Analyzer
	validation ValidationConfig

	// MaxQuestions bounds the interactive elicitation dialogue. The
	// session also ends when the AnswerSource returns ErrElicitationDone.
	MaxQuestions int
}

const defaultMaxQuestions = 5

// NewDesigner creates a Designer over the given gateway.
func NewDesigner(gateway *Gateway, cfg *Config) *Designer {
	return &Designer{
		executor:     NewExecutor(gateway),
		analyzer:     NewAnalyzer(gateway, cfg),
		validation:   cfg.Validation,
		MaxQuestions: defaultMaxQuestions,
	}
}

// phaseList and subtaskList wrap slices so structured steps have a single
// JSON object to parse.
type phaseList struct {
	Phases []Phase `json:"phases" desc:"implementation phases in build order"`
}

type subtaskList struct {
	Subtasks []Subtask `json:"subtasks" desc:"ordered subtasks, dependencies before dependents"`
}

// AnalyzeDesign breaks an existing design document into implementation
// phases and generates the subtasks for each phase, sequentially in phase
// order. Subtask ids are namespaced per phase so ids generated for
// different phases cannot collide.
func (d *Designer) AnalyzeDesign(ctx context.Context, document string) (*DesignResult, error) {
	if strings.TrimSpace(document) == "" {
		return nil, fmt.Errorf("design document is empty")
	}

	tc := NewTaskContext(document)
	capitan.Info(ctx, RunStarted, RunIDKey.Field(tc.RunID))

	phases, err := d.extractPhases(ctx, tc, document)
	if err != nil {
		tc.State = StateFailed
		capitan.Error(ctx, RunFailed,
			RunIDKey.Field(tc.RunID),
			ErrorKey.Field(err.Error()),
		)
		return nil, err
	}

	var all []Subtask
	for i, phase := range phases {
		subtasks, err := d.phaseSubtasks(ctx, tc, i+1, phase)
		if err != nil {
			tc.State = StateFailed
			capitan.Error(ctx, RunFailed,
				RunIDKey.Field(tc.RunID),
				ErrorKey.Field(err.Error()),
			)
			return nil, err
		}
		all = append(all, subtasks...)
	}
	tc.Subtasks = all
	tc.State = StateDone

	capitan.Info(ctx, RunCompleted,
		RunIDKey.Field(tc.RunID),
		PhaseCountKey.Field(len(phases)),
		SubtaskCountKey.Field(len(all)),
	)

	return &DesignResult{
		RunID:     tc.RunID,
		State:     tc.State,
		Document:  document,
		Phases:    phases,
		Subtasks:  all,
		Validated: true,
	}, nil
}

// extractPhases runs the phase extraction step over the document.
func (d *Designer) extractPhases(ctx context.Context, tc *TaskContext, document string) ([]Phase, error) {
	var list phaseList

	step := Step{
		Name:        "extract-phases",
		System:      designSystemPrompt,
		Temperature: DefaultTemperatureBreakdown,
		Build: func(*TaskContext) (*Prompt, error) {
			return &Prompt{
				Task:   extractPhasesTask,
				Input:  document,
				Schema: jsonSchemaFor[phaseList](),
				Constraints: []string{
					"phases: at least one, in build order",
					"dependencies: only names of earlier phases",
				},
			}, nil
		},
		Parse: func(response string, _ *TaskContext) error {
			if err := parseJSON(response, &list); err != nil {
				return err
			}
			if len(list.Phases) == 0 {
				return fmt.Errorf("phase extraction produced no phases")
			}
			return nil
		},
	}

	if _, err := d.executor.Run(ctx, step, tc); err != nil {
		return nil, err
	}
	return list.Phases, nil
}

// phaseSubtasks runs the subtask generation step for one phase. Generated
// ids and their dependency references are rewritten with a phase prefix.
func (d *Designer) phaseSubtasks(ctx context.Context, tc *TaskContext, number int, phase Phase) ([]Subtask, error) {
	var list subtaskList

	step := Step{
		Name:        fmt.Sprintf("phase-subtasks:%d", number),
		System:      designSystemPrompt,
		Temperature: DefaultTemperatureBreakdown,
		Build: func(*TaskContext) (*Prompt, error) {
			return &Prompt{
				Task:   phaseSubtasksTask,
				Input:  phasePrompt(phase),
				Schema: jsonSchemaFor[subtaskList](),
				Constraints: []string{
					"subtasks: at least one, ordered so dependencies appear first",
					"dependencies: only ids of subtasks within this phase",
				},
			}, nil
		},
		Parse: func(response string, _ *TaskContext) error {
			if err := parseJSON(response, &list); err != nil {
				return err
			}
			if len(list.Subtasks) == 0 {
				return fmt.Errorf("phase %q produced no subtasks", phase.Name)
			}
			ordered, err := orderByDependencies(list.Subtasks)
			if err != nil {
				return err
			}
			list.Subtasks = ordered
			return nil
		},
	}

	if _, err := d.executor.Run(ctx, step, tc); err != nil {
		return nil, err
	}

	prefix := fmt.Sprintf("p%d-", number)
	for i := range list.Subtasks {
		list.Subtasks[i].ID = prefix + list.Subtasks[i].ID
		list.Subtasks[i].Status = SubtaskPending
		for j, dep := range list.Subtasks[i].Dependencies {
			list.Subtasks[i].Dependencies[j] = prefix + dep
		}
	}
	return list.Subtasks, nil
}

// phasePrompt renders one phase as step input.
func phasePrompt(phase Phase) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Phase: %s\n%s\n", phase.Name, phase.Description)
	if len(phase.Components) > 0 {
		b.WriteString("Key components:\n" + bulletList(phase.Components) + "\n")
	}
	if len(phase.Considerations) > 0 {
		b.WriteString("Considerations:\n" + bulletList(phase.Considerations) + "\n")
	}
	return strings.TrimSpace(b.String())
}

// Elicit conducts an interactive design dialogue: the opening question,
// follow-up questions generated from the answers so far, a threat modeling
// pass, acceptance criteria, and finally the assembled design document.
// The dialogue ends after MaxQuestions answers or when the AnswerSource
// returns ErrElicitationDone; at least one answer is required.
func (d *Designer) Elicit(ctx context.Context, answers AnswerSource) (*DesignResult, error) {
	tc := NewTaskContext("interactive design session")
	capitan.Info(ctx, RunStarted, RunIDKey.Field(tc.RunID))

	result, err := d.elicit(ctx, tc, answers)
	if err != nil {
		tc.State = StateFailed
		capitan.Error(ctx, RunFailed,
			RunIDKey.Field(tc.RunID),
			StateKey.Field(string(tc.State)),
			ErrorKey.Field(err.Error()),
		)
		return nil, err
	}

	capitan.Info(ctx, RunCompleted, RunIDKey.Field(tc.RunID))
	return result, nil
}

func (d *Designer) elicit(ctx context.Context, tc *TaskContext, answers AnswerSource) (*DesignResult, error) {
	question := elicitationOpening
	answered := 0

	for answered < d.MaxQuestions {
		answer, err := answers.Answer(ctx, question)
		if errors.Is(err, ErrElicitationDone) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("elicitation answer: %w", err)
		}
		if strings.TrimSpace(answer) == "" {
			break
		}
		tc.Append(RoleAssistant, question)
		tc.Append(RoleUser, answer)
		answered++

		if answered == d.MaxQuestions {
			break
		}
		question, err = d.nextQuestion(ctx, tc)
		if err != nil {
			return nil, err
		}
	}
	if answered == 0 {
		return nil, fmt.Errorf("elicitation session ended with no answers")
	}

	threats, err := d.sideStep(ctx, tc, "threat-model", threatModelTask, DefaultTemperatureElicitation)
	if err != nil {
		return nil, err
	}
	tc.Bind("threats", threats)

	criteria, err := d.sideStep(ctx, tc, "acceptance-criteria", acceptanceCriteriaTask, DefaultTemperatureBreakdown)
	if err != nil {
		return nil, err
	}
	tc.Bind("criteria", criteria)

	document, err := d.assembleDocument(ctx, tc)
	if err != nil {
		return nil, err
	}
	tc.Draft = document

	if d.validation.Enabled {
		final, verdicts, err := validateAndRevise(ctx, d.executor, designSystemPrompt, tc, d.validation.MaxIterations)
		if err != nil {
			return nil, err
		}
		tc.Draft = final
		tc.Verdicts = verdicts
		if d.validation.Required && !lastPassed(verdicts) {
			return nil, fmt.Errorf("validation did not pass within %d iterations", d.validation.MaxIterations)
		}
	}

	tc.State = StateDone
	return &DesignResult{
		RunID:     tc.RunID,
		State:     tc.State,
		Document:  tc.Draft,
		Verdicts:  tc.Verdicts,
		Validated: !d.validation.Enabled || lastPassed(tc.Verdicts),
	}, nil
}

// nextQuestion generates the next elicitation question from the dialogue
// transcript.
func (d *Designer) nextQuestion(ctx context.Context, tc *TaskContext) (string, error) {
	step := Step{
		Name:        "next-question",
		System:      elicitationSystemPrompt,
		Temperature: DefaultTemperatureElicitation,
		Build: func(tc *TaskContext) (*Prompt, error) {
			return &Prompt{
				Task:  nextQuestionTask,
				Input: transcript(tc),
			}, nil
		},
	}
	response, err := d.executor.Run(ctx, step, tc)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response), nil
}

// sideStep runs one transcript-driven step whose output is the response
// text itself.
func (d *Designer) sideStep(ctx context.Context, tc *TaskContext, name, task string, temperature float32) (string, error) {
	step := Step{
		Name:        name,
		System:      elicitationSystemPrompt,
		Temperature: temperature,
		Build: func(tc *TaskContext) (*Prompt, error) {
			return &Prompt{
				Task:  task,
				Input: transcript(tc),
			}, nil
		},
	}
	response, err := d.executor.Run(ctx, step, tc)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response), nil
}

// assembleDocument closes the session, producing the design document from
// the transcript plus the bound threat model and acceptance criteria.
func (d *Designer) assembleDocument(ctx context.Context, tc *TaskContext) (string, error) {
	step := Step{
		Name:        "assemble-design",
		System:      designSystemPrompt,
		Bindings:    []string{"threats", "criteria"},
		Temperature: DefaultTemperatureRefinement,
		Build: func(tc *TaskContext) (*Prompt, error) {
			threats, _ := tc.Binding("threats")
			criteria, _ := tc.Binding("criteria")
			return &Prompt{
				Task:  assembleDesignTask,
				Input: transcript(tc),
				Context: "Security threats identified:\n" + threats +
					"\n\nAcceptance criteria:\n" + criteria,
			}, nil
		},
	}
	response, err := d.executor.Run(ctx, step, tc)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response), nil
}

// transcript renders the dialogue history as step context.
func transcript(tc *TaskContext) string {
	var b strings.Builder
	for _, m := range tc.Messages {
		switch m.Role {
		case RoleAssistant:
			b.WriteString("Q: " + m.Content + "\n")
		case RoleUser:
			b.WriteString("A: " + m.Content + "\n")
		}
	}
	return strings.TrimSpace(b.String())
}

// AnalyzeSubtasks runs a fresh Analysis Pipeline over each subtask,
// sequentially for deterministic output ordering. Each run gets its own
// TaskContext; only the cache behind the gateway is shared.
func (d *Designer) AnalyzeSubtasks(ctx context.Context, subtasks []Subtask, conventions string) ([]*Result, error) {
	results := make([]*Result, 0, len(subtasks))
	for _, st := range subtasks {
		task := st.Title
		if st.Description != "" {
			task += "\n\n" + st.Description
		}
		result, err := d.analyzer.Run(ctx, Request{
			Task:        task,
			Conventions: conventions,
		})
		if err != nil {
			return results, fmt.Errorf("subtask %s: %w", st.ID, err)
		}
		results = append(results, result)
	}
	return results, nil
}
