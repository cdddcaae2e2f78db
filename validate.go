package taskspec

import (
	"context"
	"fmt"

	"github.com/zoobzio/capitan"
)

// validateAndRevise repeatedly critiques and regenerates tc.Draft until a
// verdict passes or the iteration budget is exhausted. It returns the final
// candidate and the full verdict history.
//
// A passing verdict short-circuits the loop with no revision call, so a
// draft that passes first time costs exactly one critique call. A draft
// that never passes costs exactly maxIterations critiques and at most
// maxIterations revisions. Budget exhaustion is not an error here; the
// caller decides whether a non-passing final draft blocks output.
func (a *Analyzer) validateAndRevise(ctx context.Context, tc *TaskContext, maxIterations int) (string, []ValidationVerdict, error) {
	return validateAndRevise(ctx, a.executor, analysisSystemPrompt, tc, maxIterations)
}

func validateAndRevise(ctx context.Context, ex *Executor, system string, tc *TaskContext, maxIterations int) (string, []ValidationVerdict, error) {
	current := tc.Draft
	verdicts := make([]ValidationVerdict, 0, maxIterations)

	for i := 1; i <= maxIterations; i++ {
		tc.State = StateValidate
		tc.Iteration = i

		verdict, err := critique(ctx, ex, system, current, i, tc)
		if err != nil {
			return current, verdicts, err
		}
		verdicts = append(verdicts, verdict)

		if verdict.Passed {
			capitan.Info(ctx, ValidationPassed,
				RunIDKey.Field(tc.RunID),
				IterationKey.Field(i),
			)
			return current, verdicts, nil
		}

		capitan.Info(ctx, ValidationFailed,
			RunIDKey.Field(tc.RunID),
			IterationKey.Field(i),
			IssueCountKey.Field(len(verdict.Issues)),
		)

		if i == maxIterations {
			break
		}

		tc.State = StateRevise
		revised, err := revise(ctx, ex, system, current, verdict, tc)
		if err != nil {
			return current, verdicts, err
		}
		current = revised
	}

	capitan.Info(ctx, ValidationExhausted,
		RunIDKey.Field(tc.RunID),
		IterationKey.Field(maxIterations),
	)
	return current, verdicts, nil
}

// critique runs one validation step and parses the verdict.
func critique(ctx context.Context, ex *Executor, system, draft string, iteration int, tc *TaskContext) (ValidationVerdict, error) {
	var verdict ValidationVerdict

	step := Step{
		Name:        fmt.Sprintf("validate:%d", iteration),
		System:      system,
		Temperature: DefaultTemperatureRefinement,
		Build: func(*TaskContext) (*Prompt, error) {
			return &Prompt{
				Task:   validateTask,
				Input:  draft,
				Schema: jsonSchemaFor[ValidationVerdict](),
				Constraints: []string{
					"passed: true only when every criterion is met",
					"issues: empty when passed, otherwise one entry per problem",
				},
			}, nil
		},
		Parse: func(response string, _ *TaskContext) error {
			return parseJSON(response, &verdict)
		},
	}

	if _, err := ex.Run(ctx, step, tc); err != nil {
		return ValidationVerdict{}, err
	}
	verdict.Iteration = iteration
	return verdict, nil
}

// revise runs one revision step, regenerating the draft with the verdict's
// issues incorporated.
func revise(ctx context.Context, ex *Executor, system, draft string, verdict ValidationVerdict, tc *TaskContext) (string, error) {
	step := Step{
		Name:        fmt.Sprintf("revise:%d", verdict.Iteration),
		System:      system,
		Temperature: DefaultTemperatureRefinement,
		Build: func(*TaskContext) (*Prompt, error) {
			return &Prompt{
				Task:        reviseTask,
				Input:       draft,
				Constraints: append([]string{"Address every issue below:"}, verdict.Issues...),
			}, nil
		},
	}

	response, err := ex.Run(ctx, step, tc)
	if err != nil {
		return "", err
	}
	return response, nil
}
