// Package workflowtest provides an in-memory workflow.RunStore for tests.
package workflowtest

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"clarvis-be/pkg/workflow"
)

// MemoryStore keeps runs in a map. Terminal runs get a fixed FinishedAt so
// repeated reads compare equal.
type MemoryStore struct {
	mu   sync.Mutex
	runs map[string]*workflow.Run
}

var _ workflow.RunStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: map[string]*workflow.Run{}}
}

func clone(r *workflow.Run) *workflow.Run {
	cp := *r
	cp.Steps = append([]workflow.StepRecord{}, r.Steps...)
	return &cp
}

func (m *MemoryStore) CreateRun(_ context.Context, run *workflow.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.InstanceID] = clone(run)
	return nil
}

func (m *MemoryStore) GetRun(_ context.Context, id string) (*workflow.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, workflow.ErrRunNotFound
	}
	return clone(r), nil
}

func (m *MemoryStore) AppendStep(_ context.Context, id string, step workflow.StepRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return workflow.ErrRunNotFound
	}
	if r.Status.Terminal() {
		return workflow.ErrInvalidTransition
	}
	r.Steps = append(r.Steps, step)
	return nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id string, status workflow.Status, output json.RawMessage, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return workflow.ErrRunNotFound
	}
	if !r.Status.CanTransition(status) {
		return workflow.ErrInvalidTransition
	}
	r.Status = status
	r.Output = output
	r.Error = errMsg
	if status.Terminal() {
		now := time.Unix(1700000000, 0).UTC()
		r.FinishedAt = &now
	}
	return nil
}

func (m *MemoryStore) ListRuns(_ context.Context, statuses []workflow.Status, limit int) ([]*workflow.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*workflow.Run
	for _, r := range m.runs {
		for _, s := range statuses {
			if r.Status == s {
				out = append(out, clone(r))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
