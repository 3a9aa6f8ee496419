package client_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"clarvis-be/pkg/client"
	"clarvis-be/pkg/client/store"
	"clarvis-be/pkg/studymaterial"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageFixture() studymaterial.PageContext {
	return studymaterial.PageContext{Title: "Raft", URL: "https://raft.github.io", MainContent: "consensus"}
}

type generatorStub struct {
	calls int
	err   error
}

func (g *generatorStub) Generate(context.Context, studymaterial.PageContext, client.GenerateOptions) (*client.GenerateResult, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &client.GenerateResult{InstanceId: "run-new"}, nil
}

// recordingSource remembers which instance ids were polled.
type recordingSource struct {
	scriptedSource
	polled []string
}

func (r *recordingSource) Status(ctx context.Context, instanceId string) (*client.WorkflowStatus, error) {
	r.polled = append(r.polled, instanceId)
	return r.scriptedSource.Status(ctx, instanceId)
}

type coordinatorFixture struct {
	store  *store.Store
	gen    *generatorStub
	source *recordingSource
	coord  *client.Coordinator
	convId string
}

func newCoordinatorFixture(t *testing.T, statuses ...*client.WorkflowStatus) *coordinatorFixture {
	t.Helper()
	st := store.New(store.NewMemoryKV())
	conv, err := st.CreateConversation(context.Background(), "", nil)
	require.NoError(t, err)

	f := &coordinatorFixture{
		store:  st,
		gen:    &generatorStub{},
		source: &recordingSource{scriptedSource: scriptedSource{statuses: statuses}},
		convId: conv.Id,
	}
	poller := client.NewPoller(f.source, client.WithMaxAttempts(5), client.WithSleep((&sleepCounter{}).sleep))
	f.coord = client.NewCoordinator(f.gen, poller, st)
	return f
}

func TestGenerateStartsRunAndAttachesMaterial(t *testing.T) {
	f := newCoordinatorFixture(t, running(11), completed("Raft summary"))
	ctx := context.Background()

	var progress []string
	material, err := f.coord.Generate(ctx, f.convId, pageFixture(), client.GenerateOptions{}, func(text string) {
		progress = append(progress, text)
	})
	require.NoError(t, err)
	assert.Equal(t, "Raft summary", material.Summary)
	assert.Equal(t, 1, f.gen.calls)
	assert.Equal(t, []string{"run-new", "run-new"}, f.source.polled)
	assert.Equal(t, []string{"Analyzing page content...", "generate summary (11%)"}, progress[:2])

	conv, err := f.store.Conversation(ctx, f.convId)
	require.NoError(t, err)
	require.NotNil(t, conv.StudyMaterial)
	assert.Equal(t, "Raft summary", conv.StudyMaterial.Summary)

	ps, err := f.store.PollState(ctx, f.convId)
	require.NoError(t, err)
	assert.Nil(t, ps)
}

func TestGenerateReattachesToPersistedRun(t *testing.T) {
	f := newCoordinatorFixture(t, running(56), completed("resumed"))
	ctx := context.Background()
	require.NoError(t, f.store.SavePollState(ctx, &store.PollState{
		InstanceId: "run-old", ConversationId: f.convId, IsGenerating: true,
	}))

	material, err := f.coord.Generate(ctx, f.convId, pageFixture(), client.GenerateOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "resumed", material.Summary)
	assert.Zero(t, f.gen.calls)
	assert.Equal(t, []string{"run-old", "run-old"}, f.source.polled)
}

func TestGenerateFailureClearsPollState(t *testing.T) {
	f := newCoordinatorFixture(t, &client.WorkflowStatus{Status: "errored", Error: "step failed"})
	ctx := context.Background()

	_, err := f.coord.Generate(ctx, f.convId, pageFixture(), client.GenerateOptions{}, nil)
	var failed *client.WorkflowFailedError
	require.ErrorAs(t, err, &failed)

	ps, err := f.store.PollState(ctx, f.convId)
	require.NoError(t, err)
	assert.Nil(t, ps)
	conv, err := f.store.Conversation(ctx, f.convId)
	require.NoError(t, err)
	assert.Nil(t, conv.StudyMaterial)
}

func TestGenerateTimeoutClearsPollState(t *testing.T) {
	f := newCoordinatorFixture(t, running(11))
	ctx := context.Background()

	_, err := f.coord.Generate(ctx, f.convId, pageFixture(), client.GenerateOptions{}, nil)
	assert.ErrorIs(t, err, client.ErrWorkflowTimeout)

	ps, err := f.store.PollState(ctx, f.convId)
	require.NoError(t, err)
	assert.Nil(t, ps)
}

func TestAbandonedGenerateKeepsPollState(t *testing.T) {
	f := newCoordinatorFixture(t, running(11))
	ctx, cancel := context.WithCancel(context.Background())

	coord := client.NewCoordinator(f.gen, client.NewPoller(f.source, client.WithSleep(func(c context.Context, _ time.Duration) error {
		cancel()
		return c.Err()
	})), f.store)

	_, err := coord.Generate(ctx, f.convId, pageFixture(), client.GenerateOptions{}, nil)
	assert.ErrorIs(t, err, context.Canceled)

	ps, err := f.store.PollState(context.Background(), f.convId)
	require.NoError(t, err)
	require.NotNil(t, ps)
	assert.Equal(t, "run-new", ps.InstanceId)
	assert.Equal(t, "generate summary (11%)", ps.ProgressText)
}

func TestGenerateStartFailureLeavesNoPollState(t *testing.T) {
	f := newCoordinatorFixture(t, running(11))
	f.gen.err = errors.New("backend down")
	ctx := context.Background()

	_, err := f.coord.Generate(ctx, f.convId, pageFixture(), client.GenerateOptions{}, nil)
	assert.EqualError(t, err, "backend down")

	ps, err := f.store.PollState(ctx, f.convId)
	require.NoError(t, err)
	assert.Nil(t, ps)
}

func TestResumePendingFinishesEveryRun(t *testing.T) {
	f := newCoordinatorFixture(t, completed("done"))
	ctx := context.Background()
	other, err := f.store.CreateConversation(ctx, "Other", nil)
	require.NoError(t, err)
	require.NoError(t, f.store.SavePollState(ctx, &store.PollState{InstanceId: "run-a", ConversationId: f.convId, IsGenerating: true}))
	require.NoError(t, f.store.SavePollState(ctx, &store.PollState{InstanceId: "run-b", ConversationId: other.Id, IsGenerating: true}))

	done := map[string]string{}
	err = f.coord.ResumePending(ctx, nil, func(ps *store.PollState, material *studymaterial.StudyMaterial, err error) {
		require.NoError(t, err)
		done[ps.InstanceId] = material.Summary
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"run-a": "done", "run-b": "done"}, done)
	assert.Zero(t, f.gen.calls)

	pending, err := f.store.PollStates(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
