package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clarvis-be/internal/pkg/logger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const module = "WORKFLOW"

// Listener is notified once a run reaches a terminal status.
type Listener interface {
	RunFinished(ctx context.Context, run *Run)
}

// ProgressListener is an optional extension of Listener, called after every
// recorded step.
type ProgressListener interface {
	StepRecorded(ctx context.Context, run *Run)
}

type Option func(*Engine)

// WithSleep replaces the backoff sleeper, mainly for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleep = fn }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLease(l Lease, ttl time.Duration) Option {
	return func(e *Engine) {
		e.lease = l
		e.leaseTTL = ttl
	}
}

func WithListener(l Listener) Option {
	return func(e *Engine) { e.listeners = append(e.listeners, l) }
}

// Engine executes registered definitions against persisted runs. A run's
// recorded steps are never executed again, so Execute may be called
// repeatedly for the same instance to resume it.
type Engine struct {
	store       RunStore
	logger      logger.ILogger
	definitions map[string]*Definition
	lease       Lease
	leaseTTL    time.Duration
	listeners   []Listener
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

func NewEngine(store RunStore, logger logger.ILogger, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		logger:      logger,
		definitions: map[string]*Definition{},
		lease:       NewMemoryLease(),
		leaseTTL:    15 * time.Minute,
		sleep:       sleepCtx,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Register(def *Definition) error {
	if err := def.validate(); err != nil {
		return err
	}
	e.definitions[def.Name] = def
	return nil
}

func (e *Engine) Definition(name string) (*Definition, bool) {
	def, ok := e.definitions[name]
	return def, ok
}

// Create persists a queued run and returns it. It does not execute anything.
func (e *Engine) Create(ctx context.Context, workflowName string, params any) (*Run, error) {
	if _, ok := e.definitions[workflowName]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDefinition, workflowName)
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	run := &Run{
		InstanceID: uuid.NewString(),
		Workflow:   workflowName,
		Params:     raw,
		Status:     StatusQueued,
		Steps:      []StepRecord{},
		CreatedAt:  e.now().UTC(),
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	e.logger.Info(module, "Run created", map[string]interface{}{
		"instance_id": run.InstanceID,
		"workflow":    workflowName,
	})
	return run, nil
}

func (e *Engine) Status(ctx context.Context, instanceID string) (*Run, error) {
	return e.store.GetRun(ctx, instanceID)
}

// Terminate moves a non-terminal run to terminated. Terminal runs are returned unchanged.
func (e *Engine) Terminate(ctx context.Context, instanceID string) (*Run, error) {
	run, err := e.store.GetRun(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if run.Status.Terminal() {
		return run, nil
	}
	if err := e.store.UpdateStatus(ctx, instanceID, StatusTerminated, nil, "terminated"); err != nil {
		return nil, err
	}
	run, err = e.store.GetRun(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	e.notify(ctx, run)
	return run, nil
}

// Execute drives a run to a terminal status. Step failures end in an errored
// run and a nil return; errors are returned only when the run could not be
// driven at all (store failure, lease held elsewhere, ctx cancelled).
func (e *Engine) Execute(ctx context.Context, instanceID string) error {
	claim, ok, err := e.lease.Acquire(ctx, "workflow:run:"+instanceID, e.leaseTTL)
	if err != nil {
		return fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		return ErrRunLeased
	}
	defer claim.Release()

	run, err := e.store.GetRun(ctx, instanceID)
	if err != nil {
		return err
	}
	if run.Status.Terminal() {
		return nil
	}
	def, ok := e.definitions[run.Workflow]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDefinition, run.Workflow)
	}
	if len(run.Steps) > len(def.Steps) {
		return fmt.Errorf("run %s has more recorded steps than %q defines", instanceID, def.Name)
	}
	for i, rec := range run.Steps {
		if def.Steps[i].Name != rec.Name {
			return fmt.Errorf("run %s step log diverges at %d: recorded %q, defined %q", instanceID, i, rec.Name, def.Steps[i].Name)
		}
	}

	if run.Status == StatusQueued {
		if err := e.store.UpdateStatus(ctx, instanceID, StatusRunning, nil, ""); err != nil {
			return err
		}
		run.Status = StatusRunning
	}

	rc := newRunContext(run)
	for _, step := range def.Steps[len(run.Steps):] {
		// Each step starts with a full TTL, so the TTL only has to cover one
		// step including its retries.
		if err := e.renew(ctx, claim, instanceID); err != nil {
			return err
		}

		// A terminate issued while a previous step was running wins.
		current, err := e.store.GetRun(ctx, instanceID)
		if err != nil {
			return err
		}
		if current.Status.Terminal() {
			e.logger.Info(module, "Run stopped externally", map[string]interface{}{
				"instance_id": instanceID,
				"status":      string(current.Status),
			})
			return nil
		}

		out, attempts, stepErr := e.runStep(ctx, run, step, rc)
		if stepErr != nil {
			if ctx.Err() != nil {
				// Process is going away; leave the run running so it can be resumed.
				return ctx.Err()
			}
			return e.fail(ctx, instanceID, &StepFailedError{Step: step.Name, Attempts: attempts, Err: stepErr})
		}

		raw, err := json.Marshal(out)
		if err != nil {
			return e.fail(ctx, instanceID, &StepFailedError{Step: step.Name, Attempts: attempts, Err: fmt.Errorf("encode output: %w", err)})
		}
		rec := StepRecord{Name: step.Name, Output: raw, Attempts: attempts, CompletedAt: e.now().UTC()}
		if err := e.store.AppendStep(ctx, instanceID, rec); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				// terminated while the step ran
				return nil
			}
			return err
		}
		rc.outputs[step.Name] = raw
		run.Steps = append(run.Steps, rec)
		e.progress(ctx, run)

		e.logger.Debug(module, "Step completed", map[string]interface{}{
			"instance_id": instanceID,
			"step":        step.Name,
			"attempts":    attempts,
		})
	}

	var result json.RawMessage
	if def.ResultStep != "" {
		result = rc.outputs[def.ResultStep]
	}
	if err := e.store.UpdateStatus(ctx, instanceID, StatusComplete, result, ""); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil
		}
		return err
	}
	e.logger.Info(module, "Run complete", map[string]interface{}{"instance_id": instanceID})
	e.finished(ctx, instanceID)
	return nil
}

// ResumeIncomplete re-executes queued and running runs, e.g. after a restart.
func (e *Engine) ResumeIncomplete(ctx context.Context, limit int) (int, error) {
	runs, err := e.store.ListRuns(ctx, []Status{StatusQueued, StatusRunning}, limit)
	if err != nil {
		return 0, err
	}
	resumed := 0
	for _, run := range runs {
		if err := e.Execute(ctx, run.InstanceID); err != nil {
			if ctx.Err() != nil {
				return resumed, ctx.Err()
			}
			if errors.Is(err, ErrRunLeased) {
				e.logger.Debug(module, "Run already executing elsewhere", map[string]interface{}{
					"instance_id": run.InstanceID,
				})
				continue
			}
			e.logger.Warn(module, "Resume failed", map[string]interface{}{
				"instance_id": run.InstanceID,
				"error":       err.Error(),
			})
			continue
		}
		resumed++
	}
	return resumed, nil
}

// renew extends the lease. A lost lease stops this executor with ErrRunLeased;
// a lease backend error is logged and the run continues on the current TTL.
func (e *Engine) renew(ctx context.Context, claim Claim, instanceID string) error {
	ok, err := claim.Renew(ctx, e.leaseTTL)
	if err != nil {
		e.logger.Warn(module, "Lease renewal failed", map[string]interface{}{
			"instance_id": instanceID,
			"error":       err.Error(),
		})
		return nil
	}
	if !ok {
		e.logger.Warn(module, "Lease lost, leaving run to its new owner", map[string]interface{}{
			"instance_id": instanceID,
		})
		return fmt.Errorf("lease lost: %w", ErrRunLeased)
	}
	return nil
}

func (e *Engine) fail(ctx context.Context, instanceID string, stepErr *StepFailedError) error {
	e.logger.Error(module, "Run errored", map[string]interface{}{
		"instance_id": instanceID,
		"step":        stepErr.Step,
		"attempts":    stepErr.Attempts,
		"error":       stepErr.Err.Error(),
	})
	if err := e.store.UpdateStatus(ctx, instanceID, StatusErrored, nil, stepErr.Error()); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil
		}
		return err
	}
	e.finished(ctx, instanceID)
	return nil
}

func (e *Engine) finished(ctx context.Context, instanceID string) {
	run, err := e.store.GetRun(ctx, instanceID)
	if err != nil {
		return
	}
	e.notify(ctx, run)
}

func (e *Engine) notify(ctx context.Context, run *Run) {
	for _, l := range e.listeners {
		l.RunFinished(ctx, run)
	}
}

func (e *Engine) progress(ctx context.Context, run *Run) {
	for _, l := range e.listeners {
		pl, ok := l.(ProgressListener)
		if !ok {
			continue
		}
		snapshot := *run
		snapshot.Steps = append([]StepRecord(nil), run.Steps...)
		pl.StepRecorded(ctx, &snapshot)
	}
}

func (e *Engine) runStep(ctx context.Context, run *Run, step Step, rc *RunContext) (any, int, error) {
	maxAttempts := step.Retry.attempts()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err := e.attempt(ctx, run, step, rc, attempt)
		if err == nil {
			return out, attempt, nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == maxAttempts {
			return nil, attempt, lastErr
		}
		delay := step.Retry.Backoff(attempt)
		e.logger.Warn(module, "Step attempt failed, retrying", map[string]interface{}{
			"instance_id": run.InstanceID,
			"step":        step.Name,
			"attempt":     attempt,
			"delay":       delay.String(),
			"error":       err.Error(),
		})
		if err := e.sleep(ctx, delay); err != nil {
			return nil, attempt, err
		}
	}
	return nil, maxAttempts, lastErr
}

func (e *Engine) attempt(ctx context.Context, run *Run, step Step, rc *RunContext, attempt int) (any, error) {
	ctx, span := otel.Tracer("clarvis-be/workflow").Start(ctx, "workflow.step."+step.Name)
	defer span.End()
	span.SetAttributes(
		attribute.String("workflow.instance_id", run.InstanceID),
		attribute.String("workflow.name", run.Workflow),
		attribute.Int("workflow.attempt", attempt),
	)

	out, err := safeRun(ctx, step, rc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func safeRun(ctx context.Context, step Step, rc *RunContext) (any, error) {
	run := func(ctx context.Context) (out any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("step %q panicked: %v", step.Name, r)
			}
		}()
		return step.Run(ctx, rc)
	}
	if step.Timeout <= 0 {
		return run(ctx)
	}

	tctx, cancel := context.WithTimeout(ctx, step.Timeout)
	defer cancel()
	type result struct {
		v   any
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := run(tctx)
		ch <- result{v, err}
	}()
	select {
	case <-tctx.Done():
	case r := <-ch:
		if r.err == nil || tctx.Err() == nil {
			return r.v, r.err
		}
	}
	return nil, fmt.Errorf("step %q timed out after %s: %w", step.Name, step.Timeout, tctx.Err())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
