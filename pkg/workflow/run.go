package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusRunning    Status = "running"
	StatusComplete   Status = "complete"
	StatusErrored    Status = "errored"
	StatusTerminated Status = "terminated"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusErrored || s == StatusTerminated
}

// CanTransition enforces queued -> running -> {complete|errored|terminated}.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusQueued:
		return to == StatusRunning || to == StatusErrored || to == StatusTerminated
	case StatusRunning:
		return to.Terminal()
	default:
		return false
	}
}

var (
	ErrRunNotFound       = errors.New("workflow run not found")
	ErrUnknownDefinition = errors.New("unknown workflow definition")
	ErrRunLeased         = errors.New("workflow run is being executed elsewhere")
	ErrInvalidTransition = errors.New("invalid workflow status transition")
)

// StepRecord is one entry of a run's append-only step log.
type StepRecord struct {
	Name        string          `json:"name"`
	Output      json.RawMessage `json:"output,omitempty"`
	Attempts    int             `json:"attempts"`
	CompletedAt time.Time       `json:"completedAt"`
}

// Run is the persisted record of one workflow execution.
type Run struct {
	InstanceID string          `json:"instanceId"`
	Workflow   string          `json:"workflow"`
	Params     json.RawMessage `json:"params"`
	Status     Status          `json:"status"`
	Steps      []StepRecord    `json:"steps"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	FinishedAt *time.Time      `json:"finishedAt,omitempty"`
}

// CompletedSteps is the progress signal exposed to status readers.
func (r *Run) CompletedSteps() int {
	return len(r.Steps)
}

// StepFailedError is recorded on a run when a step exhausts its attempts.
type StepFailedError struct {
	Step     string
	Attempts int
	Err      error
}

func (e *StepFailedError) Error() string {
	return fmt.Sprintf("step %q failed after %d attempt(s): %v", e.Step, e.Attempts, e.Err)
}

func (e *StepFailedError) Unwrap() error {
	return e.Err
}

// RunStore persists runs. Implementations must keep the step log append-only
// and refuse transitions out of a terminal status.
type RunStore interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, instanceID string) (*Run, error)
	AppendStep(ctx context.Context, instanceID string, step StepRecord) error
	UpdateStatus(ctx context.Context, instanceID string, status Status, output json.RawMessage, errMsg string) error
	ListRuns(ctx context.Context, statuses []Status, limit int) ([]*Run, error)
}
