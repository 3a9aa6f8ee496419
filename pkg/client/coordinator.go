package client

import (
	"context"
	"errors"
	"time"

	"clarvis-be/pkg/client/store"
	"clarvis-be/pkg/studymaterial"
)

const resumingText = "Resuming study material generation..."

// Generator starts generation runs.
type Generator interface {
	Generate(ctx context.Context, pc studymaterial.PageContext, opts GenerateOptions) (*GenerateResult, error)
}

// Coordinator ties generation runs to conversations through persisted
// PollStates so a later process can pick up a run it did not start.
type Coordinator struct {
	api    Generator
	poller *Poller
	store  *store.Store
	now    func() time.Time
}

func NewCoordinator(api Generator, poller *Poller, st *store.Store) *Coordinator {
	return &Coordinator{api: api, poller: poller, store: st, now: time.Now}
}

// Generate produces the study material of a conversation. An in-flight run
// already recorded for the conversation is re-attached instead of starting
// another one. Cancelling ctx abandons the wait and keeps the PollState.
func (c *Coordinator) Generate(ctx context.Context, conversationId string, pc studymaterial.PageContext, opts GenerateOptions, onProgress func(text string)) (*studymaterial.StudyMaterial, error) {
	ps, err := c.store.PollState(ctx, conversationId)
	if err != nil {
		return nil, err
	}

	if ps == nil || !ps.IsGenerating {
		res, err := c.api.Generate(ctx, pc, opts)
		if err != nil {
			return nil, err
		}
		ps = &store.PollState{
			InstanceId:     res.InstanceId,
			ConversationId: conversationId,
			IsGenerating:   true,
			ProgressText:   "Analyzing page content...",
			StartedAt:      c.now().UTC(),
		}
		if err := c.store.SavePollState(ctx, ps); err != nil {
			return nil, err
		}
	} else {
		ps.ProgressText = resumingText
	}

	if onProgress != nil {
		onProgress(ps.ProgressText)
	}
	return c.follow(ctx, ps, onProgress)
}

// ResumePending re-attaches to every persisted run, one after another.
// Failures of individual runs are reported through onDone and do not stop
// the others.
func (c *Coordinator) ResumePending(ctx context.Context, onProgress func(ps *store.PollState, text string), onDone func(ps *store.PollState, material *studymaterial.StudyMaterial, err error)) error {
	pending, err := c.store.PollStates(ctx)
	if err != nil {
		return err
	}
	for _, ps := range pending {
		ps := ps
		var progress func(string)
		if onProgress != nil {
			progress = func(text string) { onProgress(ps, text) }
			progress(resumingText)
		}
		material, err := c.follow(ctx, ps, progress)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if onDone != nil {
			onDone(ps, material, err)
		}
	}
	return nil
}

func (c *Coordinator) follow(ctx context.Context, ps *store.PollState, onProgress func(text string)) (*studymaterial.StudyMaterial, error) {
	material, err := c.poller.Poll(ctx, ps.InstanceId, func(status *WorkflowStatus) {
		text := ProgressText(status)
		if text == "" {
			return
		}
		// progress is best effort; the poll continues without it
		_ = c.store.UpdateProgress(ctx, ps.ConversationId, text)
		if onProgress != nil {
			onProgress(text)
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var httpErr *HTTPError
		if !isTerminal(err) && !(errors.As(err, &httpErr) && httpErr.Status == 404) {
			// transport trouble; the run may still be alive
			return nil, err
		}
		if clearErr := c.store.ClearPollState(context.WithoutCancel(ctx), ps.ConversationId); clearErr != nil {
			return nil, errors.Join(err, clearErr)
		}
		return nil, err
	}

	// the conversation may have been deleted meanwhile; the run is still done
	if _, err := c.store.AttachStudyMaterial(ctx, ps.ConversationId, material); err != nil && !errors.Is(err, store.ErrConversationNotFound) {
		return nil, err
	}
	if err := c.store.ClearPollState(ctx, ps.ConversationId); err != nil {
		return nil, err
	}
	return material, nil
}

func isTerminal(err error) bool {
	var failed *WorkflowFailedError
	return errors.As(err, &failed) || errors.Is(err, ErrWorkflowTimeout)
}
