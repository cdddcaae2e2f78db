package taskspec

import "github.com/google/uuid"

// State identifies the analysis pipeline position. A run moves through the
// states in order, looping between validate and revise until the verdict
// passes or the iteration budget runs out.
type State string

const (
	StateStart     State = "start"
	StateDecompose State = "decompose"
	StateElaborate State = "elaborate"
	StateAssemble  State = "assemble"
	StateValidate  State = "validate"
	StateRevise    State = "revise"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// SubtaskStatus tracks a subtask's progress through elaboration.
type SubtaskStatus string

const (
	SubtaskPending    SubtaskStatus = "pending"
	SubtaskElaborated SubtaskStatus = "elaborated"
)

// Subtask is one unit of the decomposed task. Dependencies reference other
// subtask IDs and constrain elaboration order.
type Subtask struct {
	ID           string        `json:"id" desc:"stable identifier, e.g. task-1"`
	Title        string        `json:"title" desc:"short imperative title"`
	Description  string        `json:"description" desc:"what this subtask covers"`
	Dependencies []string      `json:"dependencies" desc:"ids of subtasks this one builds on"`
	Status       SubtaskStatus `json:"-"`
}

// ValidationVerdict is the structured pass/fail judgment produced by one
// validation iteration.
type ValidationVerdict struct {
	Passed    bool     `json:"passed" desc:"true when the draft meets every criterion"`
	Issues    []string `json:"issues" desc:"itemized problems, empty when passed"`
	Iteration int      `json:"-"`
}

// TaskContext is the mutable accumulator threaded through one pipeline run.
// It is owned exclusively by that run and never shared across concurrent
// runs; only the cache behind the gateway is shared state.
type TaskContext struct {
	RunID string
	State State

	// Inputs
	Task        string
	Conventions string   // user coding standards, pre-read by the caller
	Search      []string // pre-fetched web search snippets

	// Accumulated outputs
	Subtasks     []Subtask
	Elaborations map[string]string // subtask ID -> elaborated content
	Draft        string
	Verdicts     []ValidationVerdict
	Iteration    int

	// Conversation history for steps that build on earlier responses.
	Messages []Message

	// Values bound by steps for later steps to consume.
	bindings map[string]string
}

// NewTaskContext creates a context for one pipeline run.
func NewTaskContext(task string) *TaskContext {
	return &TaskContext{
		RunID:        uuid.New().String(),
		State:        StateStart,
		Task:         task,
		Elaborations: make(map[string]string),
		bindings:     make(map[string]string),
	}
}

// Bind stores a named value for later steps.
func (tc *TaskContext) Bind(name, value string) {
	tc.bindings[name] = value
}

// Binding returns the named value and whether it has been bound.
func (tc *TaskContext) Binding(name string) (string, bool) {
	v, ok := tc.bindings[name]
	return v, ok
}

// Append records one conversation exchange.
func (tc *TaskContext) Append(role, content string) {
	tc.Messages = append(tc.Messages, Message{Role: role, Content: content})
}

// Subtask returns the subtask with the given ID.
func (tc *TaskContext) Subtask(id string) (*Subtask, bool) {
	for i := range tc.Subtasks {
		if tc.Subtasks[i].ID == id {
			return &tc.Subtasks[i], true
		}
	}
	return nil, false
}
