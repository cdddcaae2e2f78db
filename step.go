package taskspec

import (
	"context"
	"errors"
	"fmt"

	"github.com/zoobzio/capitan"
)

// ErrMissingBinding reports that a step referenced a context binding that no
// earlier step produced. This is a programming error in the pipeline
// definition: fatal, never retried.
var ErrMissingBinding = errors.New("missing context binding")

// Step is one named, stateless pipeline stage: a prompt built from the task
// context, one gateway call, and a parser for the raw response.
type Step struct {
	Name        string
	System      string   // system prompt for the call
	Bindings    []string // context bindings that must exist before the step runs
	Temperature float32
	History     bool // include and extend the context's conversation history

	// Build renders the prompt from the subset of context the step needs.
	Build func(tc *TaskContext) (*Prompt, error)

	// Parse applies the step's output parser to the raw response text,
	// recording results on the context. A parse failure fails the step.
	Parse func(response string, tc *TaskContext) error
}

// Executor runs Steps against the LLM Gateway. Retry policy deliberately
// lives in the calling pipeline, not here: a failed step surfaces as a
// *StepExecutionError and the pipeline decides whether to re-invoke.
type Executor struct {
	gateway *Gateway
}

// NewExecutor creates an Executor over the given gateway.
func NewExecutor(gateway *Gateway) *Executor {
	return &Executor{gateway: gateway}
}

// Run executes one step: resolve bindings, render the prompt, call the
// gateway, parse the output. The response text is returned for steps whose
// output is the text itself; structured steps record results on the context
// through their Parse func.
func (e *Executor) Run(ctx context.Context, step Step, tc *TaskContext) (string, error) {
	for _, name := range step.Bindings {
		if _, ok := tc.Binding(name); !ok {
			return "", &StepExecutionError{
				Step: step.Name,
				Err:  fmt.Errorf("%w: %q", ErrMissingBinding, name),
			}
		}
	}

	prompt, err := step.Build(tc)
	if err != nil {
		return "", &StepExecutionError{Step: step.Name, Err: err}
	}
	if err := prompt.Validate(); err != nil {
		return "", &StepExecutionError{Step: step.Name, Err: err}
	}

	capitan.Info(ctx, StepStarted,
		RunIDKey.Field(tc.RunID),
		StepNameKey.Field(step.Name),
	)

	rendered := prompt.Render()
	messages := e.buildMessages(step, tc, rendered)

	response, err := e.gateway.Call(ctx, messages, Params{Temperature: step.Temperature})
	if err != nil {
		capitan.Error(ctx, StepFailed,
			RunIDKey.Field(tc.RunID),
			StepNameKey.Field(step.Name),
			ErrorKey.Field(err.Error()),
		)
		return "", &StepExecutionError{Step: step.Name, Err: err}
	}

	if step.Parse != nil {
		if err := step.Parse(response, tc); err != nil {
			capitan.Error(ctx, StepFailed,
				RunIDKey.Field(tc.RunID),
				StepNameKey.Field(step.Name),
				ErrorKey.Field(err.Error()),
				ErrorTypeKey.Field("parse_error"),
			)
			return "", &StepExecutionError{Step: step.Name, Err: err}
		}
	}

	// History is extended only after parse succeeds, so a failed step
	// never pollutes the conversation a retry would build on.
	if step.History {
		tc.Append(RoleUser, rendered)
		tc.Append(RoleAssistant, response)
	}

	capitan.Info(ctx, StepCompleted,
		RunIDKey.Field(tc.RunID),
		StepNameKey.Field(step.Name),
	)
	return response, nil
}

// buildMessages assembles the conversation for one call: the system prompt,
// prior history when the step opts in, and the rendered prompt last.
func (e *Executor) buildMessages(step Step, tc *TaskContext, rendered string) []Message {
	var messages []Message
	if step.System != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: step.System})
	}
	if step.History {
		messages = append(messages, tc.Messages...)
	}
	return append(messages, Message{Role: RoleUser, Content: rendered})
}
