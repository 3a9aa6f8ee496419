package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"clarvis-be/internal/dto"
	"clarvis-be/internal/pkg/logger"
	"clarvis-be/internal/repository/implementation"
	"clarvis-be/internal/repository/unitofwork"
	"clarvis-be/internal/service"
	"clarvis-be/pkg/events"
	"clarvis-be/pkg/studymaterial"
	"clarvis-be/pkg/workflow"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatchRecorder struct {
	ids []string
	err error
}

func (d *dispatchRecorder) Dispatch(_ context.Context, instanceId string) error {
	d.ids = append(d.ids, instanceId)
	return d.err
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) Publish(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType()
	}
	return out
}

type progressSink struct {
	mu     sync.Mutex
	frames []dto.RunProgressMessage
}

func (s *progressSink) Publish(_ string, data []byte, _ bool) {
	var msg dto.RunProgressMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, msg)
}

func (s *progressSink) percents() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.frames))
	for i, f := range s.frames {
		out[i] = f.ProgressPercent
	}
	return out
}

type studyFixture struct {
	engine   *workflow.Engine
	uow      unitofwork.RepositoryFactory
	labels   []string
	events   *eventRecorder
	progress *progressSink
}

func newStudyFixture(t *testing.T) *studyFixture {
	t.Helper()
	db := newTestDB(t)
	uow := unitofwork.NewRepositoryFactory(db)
	def := studymaterial.NewPipeline(studymaterial.Placeholder{}, service.NewStudyMaterialRecorder(uow), logger.NewNopLogger()).Definition()

	f := &studyFixture{uow: uow, labels: def.Labels(), events: &eventRecorder{}, progress: &progressSink{}}
	f.engine = workflow.NewEngine(
		implementation.NewWorkflowRunRepository(db),
		logger.NewNopLogger(),
		workflow.WithListener(service.NewRunEventNotifier(f.events, logger.NewNopLogger())),
		workflow.WithListener(service.NewRunProgressNotifier(f.progress, f.labels, logger.NewNopLogger())),
	)
	require.NoError(t, f.engine.Register(def))
	return f
}

func pageRequest() *dto.GenerateStudyMaterialRequest {
	return &dto.GenerateStudyMaterialRequest{
		PageContext: &studymaterial.PageContext{
			Title:       "Raft Consensus",
			URL:         "https://raft.github.io",
			MainContent: "Raft is a consensus algorithm designed to be easy to understand.",
		},
	}
}

func TestStartPersistsQueuedRunWithDefaults(t *testing.T) {
	f := newStudyFixture(t)
	dispatcher := &dispatchRecorder{}
	svc, err := service.NewStudyMaterialService(f.engine, f.uow, dispatcher, logger.NewNopLogger())
	require.NoError(t, err)

	res, err := svc.Start(context.Background(), "identity-user", pageRequest())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "/study-materials/status/"+res.InstanceId, res.StatusUrl)
	assert.Equal(t, []string{res.InstanceId}, dispatcher.ids)

	status, err := svc.Status(context.Background(), res.InstanceId)
	require.NoError(t, err)
	assert.Equal(t, "queued", status.Status)
	assert.Equal(t, 0, status.ProgressPercent)
	assert.Equal(t, workflow.BannerInitializing, status.CurrentStepDescription)
	assert.Empty(t, status.CompletedSteps)
	assert.Nil(t, status.Output)

	run, err := f.engine.Status(context.Background(), res.InstanceId)
	require.NoError(t, err)
	var params studymaterial.Params
	require.NoError(t, json.Unmarshal(run.Params, &params))
	assert.Equal(t, "identity-user", params.UserID)
	assert.Equal(t, studymaterial.DifficultyIntermediate, params.Difficulty)
	assert.Equal(t, studymaterial.DefaultMaterialTypes(), params.MaterialTypes)
}

func TestStartRequestUserWinsOverIdentity(t *testing.T) {
	f := newStudyFixture(t)
	svc, err := service.NewStudyMaterialService(f.engine, f.uow, &dispatchRecorder{}, logger.NewNopLogger())
	require.NoError(t, err)

	req := pageRequest()
	req.UserId = "u-42"
	req.Difficulty = "advanced"
	res, err := svc.Start(context.Background(), "identity-user", req)
	require.NoError(t, err)

	list, err := svc.List(context.Background(), dto.StudyMaterialListQuery{})
	require.NoError(t, err)
	require.Len(t, list.Runs, 1)
	assert.Equal(t, int64(1), list.Total)
	assert.Equal(t, res.InstanceId, list.Runs[0].InstanceId)
	assert.Equal(t, "u-42", list.Runs[0].UserId)
	assert.Equal(t, "Raft Consensus", list.Runs[0].PageTitle)
}

func TestStartSurvivesDispatchFailure(t *testing.T) {
	f := newStudyFixture(t)
	svc, err := service.NewStudyMaterialService(f.engine, f.uow, &dispatchRecorder{err: errors.New("queue down")}, logger.NewNopLogger())
	require.NoError(t, err)

	res, err := svc.Start(context.Background(), "", pageRequest())
	require.NoError(t, err)

	n, err := f.engine.ResumeIncomplete(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	status, err := svc.Status(context.Background(), res.InstanceId)
	require.NoError(t, err)
	assert.Equal(t, "complete", status.Status)
}

func TestStartRequiresPageContext(t *testing.T) {
	f := newStudyFixture(t)
	svc, err := service.NewStudyMaterialService(f.engine, f.uow, &dispatchRecorder{}, logger.NewNopLogger())
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), "", &dto.GenerateStudyMaterialRequest{})
	assert.ErrorIs(t, err, service.ErrMissingPageContext)
}

func TestStatusUnknownRun(t *testing.T) {
	f := newStudyFixture(t)
	svc, err := service.NewStudyMaterialService(f.engine, f.uow, &dispatchRecorder{}, logger.NewNopLogger())
	require.NoError(t, err)

	_, err = svc.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, workflow.ErrRunNotFound)
}

func TestDispatchedRunCompletesThroughConsumer(t *testing.T) {
	f := newStudyFixture(t)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { pubSub.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumer := service.NewConsumerService(pubSub, "runs", f.engine, 2, logger.NewNopLogger())
	require.NoError(t, consumer.Consume(ctx))

	svc, err := service.NewStudyMaterialService(f.engine, f.uow, service.NewRunDispatcher(pubSub, "runs"), logger.NewNopLogger())
	require.NoError(t, err)
	res, err := svc.Start(context.Background(), "", pageRequest())
	require.NoError(t, err)

	var status *dto.WorkflowStatus
	require.Eventually(t, func() bool {
		status, err = svc.Status(context.Background(), res.InstanceId)
		return err == nil && status.Status == "complete"
	}, 10*time.Second, 10*time.Millisecond)
	consumer.Wait()

	assert.Equal(t, 100, status.ProgressPercent)
	assert.Equal(t, workflow.BannerComplete, status.CurrentStepDescription)
	assert.Equal(t, f.labels, status.CompletedSteps)
	assert.NotEmpty(t, status.Output)

	assert.Equal(t, []int{11, 22, 33, 44, 56, 67, 78, 89, 100, 100}, f.progress.percents())
	assert.Equal(t, []string{events.StudyMaterialGenerated}, f.events.types())

	records, err := f.uow.NewUnitOfWork(context.Background()).StudyMaterialRepository().FindAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestListFiltersByStatusAndRecordsByUser(t *testing.T) {
	f := newStudyFixture(t)
	svc, err := service.NewStudyMaterialService(f.engine, f.uow, &dispatchRecorder{}, logger.NewNopLogger())
	require.NoError(t, err)

	for _, user := range []string{"u1", "u2"} {
		req := pageRequest()
		req.UserId = user
		_, err := svc.Start(context.Background(), "", req)
		require.NoError(t, err)
	}
	queued, err := svc.List(context.Background(), dto.StudyMaterialListQuery{Status: "queued"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), queued.Total)

	n, err := f.engine.ResumeIncomplete(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	complete, err := svc.List(context.Background(), dto.StudyMaterialListQuery{Status: "complete", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), complete.Total)
	assert.Len(t, complete.Runs, 1)

	queued, err = svc.List(context.Background(), dto.StudyMaterialListQuery{Status: "queued"})
	require.NoError(t, err)
	assert.Zero(t, queued.Total)
	assert.Empty(t, queued.Runs)

	_, err = svc.List(context.Background(), dto.StudyMaterialListQuery{Status: "paused"})
	assert.ErrorIs(t, err, service.ErrInvalidStatus)

	records, err := svc.Records(context.Background(), "u1", 0, 0)
	require.NoError(t, err)
	require.Len(t, records.Records, 1)
	assert.Equal(t, "u1", records.Records[0].UserId)
	assert.Equal(t, "https://raft.github.io", records.Records[0].PageUrl)

	_, err = svc.Records(context.Background(), "", 0, 0)
	assert.ErrorIs(t, err, service.ErrMissingUserId)
}
