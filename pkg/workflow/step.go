package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// RetryPolicy bounds how often a step is attempted. MaxAttempts counts the
// first attempt, so 3 means two retries.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Exponential bool
	MaxDelay    time.Duration
}

// NoRetry is used by local, deterministic steps.
var NoRetry = RetryPolicy{MaxAttempts: 1}

func (r RetryPolicy) attempts() int {
	if r.MaxAttempts < 1 {
		return 1
	}
	return r.MaxAttempts
}

// Backoff returns the wait before the attempt following `attempt`.
func (r RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := r.Delay
	if r.Exponential {
		d = time.Duration(float64(r.Delay) * math.Pow(2, float64(attempt-1)))
	}
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	return d
}

// StepFunc produces a step output. The output must be JSON encodable.
type StepFunc func(ctx context.Context, rc *RunContext) (any, error)

type Step struct {
	Name        string
	Description string
	Retry       RetryPolicy
	Timeout     time.Duration // per attempt, zero means unbounded
	Run         StepFunc
}

// Definition is a fixed ordered pipeline. The output of ResultStep becomes the run output.
type Definition struct {
	Name       string
	Steps      []Step
	ResultStep string
}

// Labels returns the human-readable step descriptions in pipeline order.
func (d *Definition) Labels() []string {
	out := make([]string, len(d.Steps))
	for i, s := range d.Steps {
		out[i] = s.Description
		if out[i] == "" {
			out[i] = s.Name
		}
	}
	return out
}

func (d *Definition) validate() error {
	if d.Name == "" || len(d.Steps) == 0 {
		return fmt.Errorf("workflow definition %q has no steps", d.Name)
	}
	seen := map[string]bool{}
	for _, s := range d.Steps {
		if s.Name == "" || s.Run == nil {
			return fmt.Errorf("workflow %q: step missing name or func", d.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("workflow %q: duplicate step %q", d.Name, s.Name)
		}
		seen[s.Name] = true
	}
	if d.ResultStep != "" && !seen[d.ResultStep] {
		return fmt.Errorf("workflow %q: result step %q not defined", d.Name, d.ResultStep)
	}
	return nil
}

// RunContext gives steps access to the run params and earlier step outputs.
type RunContext struct {
	InstanceID string
	params     json.RawMessage
	outputs    map[string]json.RawMessage
}

func newRunContext(run *Run) *RunContext {
	rc := &RunContext{
		InstanceID: run.InstanceID,
		params:     run.Params,
		outputs:    make(map[string]json.RawMessage, len(run.Steps)),
	}
	for _, s := range run.Steps {
		rc.outputs[s.Name] = s.Output
	}
	return rc
}

func (rc *RunContext) Params(v any) error {
	return json.Unmarshal(rc.params, v)
}

// Output decodes the recorded output of an earlier step.
func (rc *RunContext) Output(step string, v any) error {
	raw, ok := rc.outputs[step]
	if !ok {
		return fmt.Errorf("no output recorded for step %q", step)
	}
	return json.Unmarshal(raw, v)
}
