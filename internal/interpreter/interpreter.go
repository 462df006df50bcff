// File: internal/interpreter/interpreter.go
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/planpilot-cli/api/schemas"
)

// Driver is the capability set the interpreter needs from a browser
// session: one blocking operation per tool. A Session from internal/browser
// satisfies it; tests substitute a scripted fake.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string, clear bool) error
	WaitFor(ctx context.Context, selector string, state schemas.ElementState) error
	ExtractText(ctx context.Context, selector string) (string, error)
}

// Interpreter executes a plan's steps in order against a driver,
// accumulating named extracted values and converting the first failure into
// the report's error field. Whatever was extracted before a failing step is
// preserved and reported, not discarded.
type Interpreter struct {
	logger      *zap.Logger
	stepTimeout time.Duration
}

// New creates an Interpreter. stepTimeout bounds each individual driver
// operation; zero or negative falls back to 30s.
func New(logger *zap.Logger, stepTimeout time.Duration) *Interpreter {
	if stepTimeout <= 0 {
		stepTimeout = 30 * time.Second
	}
	return &Interpreter{
		logger:      logger.Named("interpreter"),
		stepTimeout: stepTimeout,
	}
}

// stepOutcome is the per-step result-or-error value the loop accumulates.
type stepOutcome struct {
	result    string
	hasResult bool
	err       error
}

// Execute runs plan.Steps in order against drv. Validation is lazy, per
// step: a malformed later step does not prevent earlier steps from running.
// The first validation or operation failure aborts the remaining steps. The
// returned report is always well formed, whatever happened.
func (it *Interpreter) Execute(ctx context.Context, plan *schemas.Plan, drv Driver) *schemas.ExecutionReport {
	extracted := schemas.NewExtractedValues()
	var stepErr *schemas.StepError

	for i, raw := range plan.Steps {
		if err := ctx.Err(); err != nil {
			stepErr = &schemas.StepError{StepIndex: i, Message: fmt.Sprintf("run canceled: %v", err)}
			break
		}

		step, err := schemas.ParseStep(raw, i)
		if err != nil {
			var vErr *schemas.ValidationError
			detail := err.Error()
			if errors.As(err, &vErr) {
				detail = vErr.Detail
			}
			it.logger.Warn("Step failed validation, aborting remaining steps.",
				zap.Int("step_index", i), zap.String("detail", detail))
			stepErr = &schemas.StepError{StepIndex: i, Message: detail}
			break
		}

		it.logger.Info("Executing step.",
			zap.Int("step_index", i),
			zap.String("tool", string(step.Tool)),
		)

		outcome := it.dispatch(ctx, step, drv)
		if outcome.err != nil {
			it.logger.Warn("Step failed, aborting remaining steps.",
				zap.Int("step_index", i),
				zap.String("tool", string(step.Tool)),
				zap.Error(outcome.err),
			)
			stepErr = &schemas.StepError{StepIndex: i, Message: outcome.err.Error()}
			break
		}

		// A capture id is tolerated on any step, but a value is stored only
		// when the operation naturally produced one. Re-capturing an id
		// overwrites the earlier value.
		if step.ID != "" && outcome.hasResult {
			extracted.Set(step.ID, outcome.result)
		}
	}

	return &schemas.ExecutionReport{
		Goal:      plan.Goal,
		Extracted: extracted,
		Error:     stepErr,
	}
}

// dispatch invokes the driver operation named by the step's tool, bounded by
// the per-step timeout.
func (it *Interpreter) dispatch(ctx context.Context, step *schemas.Step, drv Driver) stepOutcome {
	stepCtx, cancel := context.WithTimeout(ctx, it.stepTimeout)
	defer cancel()

	switch step.Tool {
	case schemas.ToolNavigate:
		return stepOutcome{err: drv.Navigate(stepCtx, step.Navigate.URL)}
	case schemas.ToolClick:
		return stepOutcome{err: drv.Click(stepCtx, step.Click.Selector)}
	case schemas.ToolType:
		return stepOutcome{err: drv.Type(stepCtx, step.Type.Selector, step.Type.Text, step.Type.Clear)}
	case schemas.ToolWaitFor:
		return stepOutcome{err: drv.WaitFor(stepCtx, step.WaitFor.Selector, step.WaitFor.State)}
	case schemas.ToolExtractText:
		text, err := drv.ExtractText(stepCtx, step.Extract.Selector)
		if err != nil {
			return stepOutcome{err: err}
		}
		return stepOutcome{result: text, hasResult: true}
	default:
		// Unreachable: ParseStep already rejected unknown tools.
		return stepOutcome{err: &schemas.ValidationError{StepIndex: step.Index, Detail: fmt.Sprintf("unrecognized tool %q", string(step.Tool))}}
	}
}
