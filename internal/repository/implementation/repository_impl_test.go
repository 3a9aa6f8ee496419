package implementation_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"clarvis-be/internal/entity"
	"clarvis-be/internal/model"
	"clarvis-be/internal/repository/implementation"
	"clarvis-be/internal/repository/specification"
	"clarvis-be/pkg/database"
	"clarvis-be/pkg/studymaterial"
	"clarvis-be/pkg/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))
	return db
}

func TestWorkflowRunRepositoryLifecycle(t *testing.T) {
	repo := implementation.NewWorkflowRunRepository(newTestDB(t))
	ctx := context.Background()

	run := &workflow.Run{
		InstanceID: "run-1",
		Workflow:   "study-material",
		Params:     json.RawMessage(`{"userId":"u1"}`),
		Status:     workflow.StatusQueued,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, repo.CreateRun(ctx, run))

	got, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusQueued, got.Status)
	assert.Empty(t, got.Steps)
	assert.JSONEq(t, `{"userId":"u1"}`, string(got.Params))

	require.NoError(t, repo.UpdateStatus(ctx, "run-1", workflow.StatusRunning, nil, ""))
	for i, name := range []string{"first", "second", "third"} {
		require.NoError(t, repo.AppendStep(ctx, "run-1", workflow.StepRecord{
			Name:        name,
			Output:      json.RawMessage(`{"n":` + string(rune('0'+i)) + `}`),
			Attempts:    1,
			CompletedAt: time.Now().UTC(),
		}))
	}

	got, err = repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got.Steps, 3)
	assert.Equal(t, "first", got.Steps[0].Name)
	assert.Equal(t, "third", got.Steps[2].Name)
	assert.JSONEq(t, `{"n":1}`, string(got.Steps[1].Output))

	require.NoError(t, repo.UpdateStatus(ctx, "run-1", workflow.StatusComplete, json.RawMessage(`{"summary":"s"}`), ""))
	done, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusComplete, done.Status)
	require.NotNil(t, done.FinishedAt)

	// terminal rows are frozen
	assert.ErrorIs(t, repo.UpdateStatus(ctx, "run-1", workflow.StatusErrored, nil, "late"), workflow.ErrInvalidTransition)
	assert.ErrorIs(t, repo.AppendStep(ctx, "run-1", workflow.StepRecord{Name: "late"}), workflow.ErrInvalidTransition)

	again, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	a, _ := json.Marshal(done)
	b, _ := json.Marshal(again)
	assert.Equal(t, string(a), string(b))
}

func TestWorkflowRunRepositoryNotFound(t *testing.T) {
	repo := implementation.NewWorkflowRunRepository(newTestDB(t))
	ctx := context.Background()

	_, err := repo.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, workflow.ErrRunNotFound)
	assert.ErrorIs(t, repo.UpdateStatus(ctx, "missing", workflow.StatusRunning, nil, ""), workflow.ErrRunNotFound)
	assert.ErrorIs(t, repo.AppendStep(ctx, "missing", workflow.StepRecord{Name: "x"}), workflow.ErrRunNotFound)
}

func TestWorkflowRunRepositoryListRuns(t *testing.T) {
	repo := implementation.NewWorkflowRunRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Now().UTC()

	statuses := []workflow.Status{workflow.StatusQueued, workflow.StatusRunning, workflow.StatusQueued}
	for i, s := range statuses {
		id := []string{"a", "b", "c"}[i]
		require.NoError(t, repo.CreateRun(ctx, &workflow.Run{
			InstanceID: id, Workflow: "w", Params: json.RawMessage(`{}`), Status: workflow.StatusQueued,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
		if s == workflow.StatusRunning {
			require.NoError(t, repo.UpdateStatus(ctx, id, workflow.StatusRunning, nil, ""))
		}
	}
	require.NoError(t, repo.UpdateStatus(ctx, "c", workflow.StatusTerminated, nil, "terminated"))

	runs, err := repo.ListRuns(ctx, []workflow.Status{workflow.StatusQueued, workflow.StatusRunning}, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "a", runs[0].InstanceID)
	assert.Equal(t, "b", runs[1].InstanceID)

	recent, err := repo.FindAll(ctx, specification.OrderBy{Field: "created_at", Desc: true}, specification.Pagination{Limit: 1})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "c", recent[0].InstanceID)

	count, err := repo.Count(ctx, specification.ByWorkflow{Name: "w"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestChatMessageRepositoryNewestFirst(t *testing.T) {
	repo := implementation.NewChatMessageRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Now().UTC()

	for i, content := range []string{"one", "two", "three"} {
		require.NoError(t, repo.Create(ctx, &entity.ChatMessage{
			AgentId: "agent", Role: "user", Content: content, CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		}))
	}
	require.NoError(t, repo.Create(ctx, &entity.ChatMessage{AgentId: "other", Role: "user", Content: "x", CreatedAt: base}))

	rows, err := repo.FindAll(ctx,
		specification.ByAgentID{AgentID: "agent"},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: 2},
	)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "three", rows[0].Content)
	assert.Equal(t, "two", rows[1].Content)

	require.NoError(t, repo.DeleteByAgentId(ctx, "agent"))
	count, err := repo.Count(ctx, specification.ByAgentID{AgentID: "agent"})
	require.NoError(t, err)
	assert.Zero(t, count)
	count, err = repo.Count(ctx, specification.ByAgentID{AgentID: "other"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestAgentStateRepositoryUpsert(t *testing.T) {
	repo := implementation.NewAgentStateRepository(newTestDB(t))
	ctx := context.Background()

	missing, err := repo.FindByAgentId(ctx, "agent")
	require.NoError(t, err)
	assert.Nil(t, missing)

	pc := &studymaterial.PageContext{Title: "Foo", URL: "https://foo"}
	require.NoError(t, repo.Upsert(ctx, &entity.AgentState{AgentId: "agent", LastMessage: "hi", PageContext: pc, UpdatedAt: time.Now().UTC()}))
	require.NoError(t, repo.Upsert(ctx, &entity.AgentState{AgentId: "agent", Cleared: true, UpdatedAt: time.Now().UTC()}))

	got, err := repo.FindByAgentId(ctx, "agent")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Cleared)
	assert.Empty(t, got.LastMessage)
	assert.Nil(t, got.PageContext)
}

func TestStudyMaterialRepository(t *testing.T) {
	repo := implementation.NewStudyMaterialRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entity.StudyMaterialRecord{
		MaterialId: "study_u1_1", InstanceId: "run-1", UserId: "u1", PageUrl: "https://p", PageTitle: "P",
	}))

	got, err := repo.FindOne(ctx, specification.Filter("material_id", "study_u1_1"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "run-1", got.InstanceId)

	all, err := repo.FindAll(ctx, specification.ByUserID{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
