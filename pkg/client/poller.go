package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clarvis-be/pkg/studymaterial"
)

const (
	DefaultMaxAttempts  = 60
	DefaultPollInterval = 2 * time.Second

	defaultFailureMessage = "Workflow failed"
)

// ErrWorkflowTimeout means the poller gave up. The run itself may still finish.
var ErrWorkflowTimeout = errors.New("workflow timeout: study material generation took too long")

// WorkflowFailedError is a run that ended errored or terminated.
type WorkflowFailedError struct {
	InstanceId string
	Status     string
	Message    string
}

func (e *WorkflowFailedError) Error() string {
	return e.Message
}

// StatusSource is the one backend call the poller needs.
type StatusSource interface {
	Status(ctx context.Context, instanceId string) (*WorkflowStatus, error)
}

type Poller struct {
	source      StatusSource
	maxAttempts int
	interval    time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

type PollerOption func(*Poller)

func WithMaxAttempts(n int) PollerOption {
	return func(p *Poller) { p.maxAttempts = n }
}

func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) { p.interval = d }
}

// WithSleep replaces the wait between attempts, mainly for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) PollerOption {
	return func(p *Poller) { p.sleep = fn }
}

func NewPoller(source StatusSource, opts ...PollerOption) *Poller {
	p := &Poller{
		source:      source,
		maxAttempts: DefaultMaxAttempts,
		interval:    DefaultPollInterval,
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll queries the run until it completes, fails or the attempts run out.
// onProgress sees every status, including the final one.
func (p *Poller) Poll(ctx context.Context, instanceId string, onProgress func(*WorkflowStatus)) (*studymaterial.StudyMaterial, error) {
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		status, err := p.source.Status(ctx, instanceId)
		if err != nil {
			return nil, err
		}
		if onProgress != nil {
			onProgress(status)
		}

		switch status.Status {
		case "complete":
			if status.Output != nil {
				return status.Output, nil
			}
		case "errored", "terminated", "failed":
			msg := status.Error
			if msg == "" {
				msg = defaultFailureMessage
			}
			return nil, &WorkflowFailedError{InstanceId: instanceId, Status: status.Status, Message: msg}
		}

		if err := p.sleep(ctx, p.interval); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w (%s)", ErrWorkflowTimeout, instanceId)
}

// ProgressText renders a status the way the UI shows it.
func ProgressText(s *WorkflowStatus) string {
	if s.CurrentStepDescription == "" {
		if s.Status == "running" {
			return "Generating comprehensive study materials..."
		}
		return ""
	}
	text := s.CurrentStepDescription
	if s.Progress != nil {
		text += fmt.Sprintf(" (%d%%)", *s.Progress)
	}
	if s.EstimatedTimeRemaining != "" {
		text += " • ~" + strings.TrimPrefix(s.EstimatedTimeRemaining, "~") + " remaining"
	}
	return text
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
