package store

import (
	"context"
	"strings"
	"time"
)

const pollStatePrefix = "poll_state:"

// PollState points at a generation run the client has not yet seen finish.
// There is at most one per conversation.
type PollState struct {
	InstanceId     string    `json:"instanceId"`
	ConversationId string    `json:"conversationId"`
	IsGenerating   bool      `json:"isGenerating"`
	ProgressText   string    `json:"progressText"`
	StartedAt      time.Time `json:"startedAt"`
}

func pollStateKey(conversationId string) string {
	return pollStatePrefix + conversationId
}

func (s *Store) SavePollState(ctx context.Context, ps *PollState) error {
	return s.kv.Set(ctx, pollStateKey(ps.ConversationId), ps)
}

// PollState returns the state stored for a conversation, or nil.
func (s *Store) PollState(ctx context.Context, conversationId string) (*PollState, error) {
	var ps PollState
	found, err := s.kv.Get(ctx, pollStateKey(conversationId), &ps)
	if err != nil || !found {
		return nil, err
	}
	return &ps, nil
}

// UpdateProgress rewrites the progress text of a stored state. A missing
// state is left missing.
func (s *Store) UpdateProgress(ctx context.Context, conversationId, text string) error {
	ps, err := s.PollState(ctx, conversationId)
	if err != nil || ps == nil {
		return err
	}
	ps.ProgressText = text
	return s.SavePollState(ctx, ps)
}

func (s *Store) ClearPollState(ctx context.Context, conversationId string) error {
	return s.kv.Delete(ctx, pollStateKey(conversationId))
}

// PollStates lists every stored state that is still generating.
func (s *Store) PollStates(ctx context.Context) ([]*PollState, error) {
	keys, err := s.kv.Keys(ctx, pollStatePrefix)
	if err != nil {
		return nil, err
	}
	out := make([]*PollState, 0, len(keys))
	for _, key := range keys {
		ps, err := s.PollState(ctx, strings.TrimPrefix(key, pollStatePrefix))
		if err != nil {
			return nil, err
		}
		if ps != nil && ps.IsGenerating {
			out = append(out, ps)
		}
	}
	return out, nil
}
