// File: internal/runner/runner.go
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/planpilot-cli/api/schemas"
	"github.com/xkilldash9x/planpilot-cli/internal/interpreter"
	"github.com/xkilldash9x/planpilot-cli/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const closeGracePeriod = 10 * time.Second

// Session is a browser session the runner can drive and release.
type Session interface {
	interpreter.Driver
	ID() string
	Close(ctx context.Context) error
}

// SessionFactory creates one session per run. The browser Manager satisfies
// it; tests substitute fakes.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// RunStore persists finished run records. Nil disables persistence.
type RunStore interface {
	SaveRun(ctx context.Context, rec *store.RunRecord) error
}

// Runner owns the lifecycle of a single plan execution: it acquires a
// browser session, hands it to the interpreter, guarantees the session is
// released on every exit path, and records the run. Independent runs may
// proceed concurrently; each gets its own session.
type Runner struct {
	factory    SessionFactory
	interp     *interpreter.Interpreter
	runStore   RunStore
	logger     *zap.Logger
	runTimeout time.Duration
}

// New creates a Runner. runStore may be nil.
func New(factory SessionFactory, interp *interpreter.Interpreter, runStore RunStore, logger *zap.Logger, runTimeout time.Duration) *Runner {
	if runTimeout <= 0 {
		runTimeout = 10 * time.Minute
	}
	return &Runner{
		factory:    factory,
		interp:     interp,
		runStore:   runStore,
		logger:     logger.Named("runner"),
		runTimeout: runTimeout,
	}
}

// Run executes one plan on a fresh browser session and returns the
// execution report. A session that cannot be created is the one failure
// that propagates as an error instead of a report: no report can be
// meaningfully built without a session. Every other failure mode comes back
// inside the report.
func (r *Runner) Run(ctx context.Context, plan *schemas.Plan) (*schemas.ExecutionReport, error) {
	runID := uuid.New().String()
	logger := r.logger.With(zap.String("run_id", runID))
	startedAt := time.Now().UTC()

	runCtx, cancel := context.WithTimeout(ctx, r.runTimeout)
	defer cancel()

	session, err := r.factory.NewSession(runCtx)
	if err != nil {
		logger.Error("Failed to acquire browser session.", zap.Error(err))
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	logger.Info("Run started.",
		zap.String("goal", plan.Goal),
		zap.Int("steps", len(plan.Steps)),
		zap.String("session_id", session.ID()),
	)

	// Guaranteed release on every exit path. The close context is detached
	// from the run context so teardown still happens after cancellation.
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), closeGracePeriod)
		defer closeCancel()
		if closeErr := session.Close(closeCtx); closeErr != nil {
			logger.Warn("Error releasing browser session.", zap.Error(closeErr))
		}
	}()

	report := r.interp.Execute(runCtx, plan, session)

	if report.Failed() {
		logger.Warn("Run stopped early.",
			zap.Int("failed_step", report.Error.StepIndex),
			zap.String("message", report.Error.Message),
		)
	} else {
		logger.Info("Run completed.", zap.Int("extracted", report.Extracted.Len()))
	}

	r.persist(runID, plan, report, startedAt, logger)
	return report, nil
}

// persist writes the run record when a store is configured. Persistence is
// best-effort: a storage failure never affects the report handed back to
// the caller.
func (r *Runner) persist(runID string, plan *schemas.Plan, report *schemas.ExecutionReport, startedAt time.Time, logger *zap.Logger) {
	if r.runStore == nil {
		return
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		logger.Error("Failed to serialize report for persistence.", zap.Error(err))
		return
	}

	rec := &store.RunRecord{
		RunID:         runID,
		Goal:          plan.Goal,
		Report:        reportJSON,
		StepsTotal:    len(plan.Steps),
		StepsExecuted: report.StepsExecuted(len(plan.Steps)),
		Failed:        report.Failed(),
		StartedAt:     startedAt,
		FinishedAt:    time.Now().UTC(),
	}

	// Persist with a background context so a canceled run is still recorded.
	persistCtx, persistCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer persistCancel()

	if err := r.runStore.SaveRun(persistCtx, rec); err != nil {
		logger.Error("Failed to persist run record.", zap.Error(err))
		return
	}
	logger.Debug("Run record persisted.", zap.String("run_id", runID))
}
