package studymaterial_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"clarvis-be/internal/pkg/logger"
	"clarvis-be/pkg/studymaterial"
	"clarvis-be/pkg/workflow"
	"clarvis-be/pkg/workflow/workflowtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recorderFunc func(ctx context.Context, rec studymaterial.Record) error

func (f recorderFunc) RecordMaterial(ctx context.Context, rec studymaterial.Record) error {
	return f(ctx, rec)
}

// progressStore records the projected percent after every appended step.
type progressStore struct {
	*workflowtest.MemoryStore
	labels   []string
	percents []int
}

func (s *progressStore) AppendStep(ctx context.Context, id string, step workflow.StepRecord) error {
	if err := s.MemoryStore.AppendStep(ctx, id, step); err != nil {
		return err
	}
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return err
	}
	s.percents = append(s.percents, workflow.Project(run, s.labels).ProgressPercent)
	return nil
}

// failingConcepts wraps the placeholder and fails key concept extraction.
type failingConcepts struct {
	studymaterial.Placeholder
	calls int
}

func (f *failingConcepts) KeyConcepts(context.Context, studymaterial.Params) ([]studymaterial.KeyConcept, error) {
	f.calls++
	return nil, errors.New("model overloaded")
}

func newEngine(t *testing.T, store workflow.RunStore, gen studymaterial.Generator, rec studymaterial.Recorder) (*workflow.Engine, *workflow.Definition) {
	t.Helper()
	def := studymaterial.NewPipeline(gen, rec, logger.NewNopLogger()).
		WithClock(func() time.Time { return fixedNow }).
		Definition()
	e := workflow.NewEngine(store, logger.NewNopLogger(),
		workflow.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }))
	require.NoError(t, e.Register(def))
	return e, def
}

func params() studymaterial.Params {
	return studymaterial.Params{
		PageContext: studymaterial.PageContext{Title: "Photosynthesis", URL: "https://example.com/p", MainContent: "Plants convert light."},
		UserID:      "u1",
	}.WithDefaults()
}

func TestPipelineWithPlaceholders(t *testing.T) {
	store := &progressStore{MemoryStore: workflowtest.NewMemoryStore()}
	var recorded []studymaterial.Record
	rec := recorderFunc(func(_ context.Context, r studymaterial.Record) error {
		recorded = append(recorded, r)
		return nil
	})
	e, def := newEngine(t, store, studymaterial.Placeholder{}, rec)
	store.labels = def.Labels()
	ctx := context.Background()

	run, err := e.Create(ctx, studymaterial.WorkflowName, params())
	require.NoError(t, err)
	require.NoError(t, e.Execute(ctx, run.InstanceID))

	got, err := e.Status(ctx, run.InstanceID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusComplete, got.Status)
	assert.Len(t, got.Steps, 9)
	assert.Equal(t, []int{11, 22, 33, 44, 56, 67, 78, 89, 100}, store.percents)
	assert.Equal(t, 100, workflow.Project(got, def.Labels()).ProgressPercent)

	var m studymaterial.StudyMaterial
	require.NoError(t, json.Unmarshal(got.Output, &m))
	assert.Equal(t, "Study Summary: Photosynthesis\n\nThis is a summary of the educational content from the page.", m.Summary)
	assert.Equal(t, []studymaterial.KeyConcept{{Concept: "Main Concept", Explanation: "Explanation here", Importance: "Core understanding"}}, m.KeyConcepts)
	assert.Len(t, m.StudyQuestions, 1)
	assert.Len(t, m.Flashcards, 1)
	assert.Empty(t, m.PracticeProblems, "article content without practice requested")
	assert.Equal(t, studymaterial.LearningObjectives("Photosynthesis", nil), m.LearningObjectives)
	assert.Equal(t, "5 minutes", m.EstimatedStudyTime)
	assert.Equal(t, studymaterial.Metadata{
		GeneratedAt: fixedNow, PageTitle: "Photosynthesis", PageURL: "https://example.com/p", Difficulty: "intermediate",
	}, m.Metadata)

	require.Len(t, recorded, 1)
	assert.Equal(t, "study_u1_1772366400000", recorded[0].MaterialID)
	assert.Equal(t, run.InstanceID, recorded[0].InstanceID)
}

func TestPipelineStepFailureErrorsRun(t *testing.T) {
	store := workflowtest.NewMemoryStore()
	gen := &failingConcepts{}
	recorded := 0
	rec := recorderFunc(func(context.Context, studymaterial.Record) error { recorded++; return nil })
	e, _ := newEngine(t, store, gen, rec)
	ctx := context.Background()

	run, err := e.Create(ctx, studymaterial.WorkflowName, params())
	require.NoError(t, err)
	require.NoError(t, e.Execute(ctx, run.InstanceID))

	got, err := e.Status(ctx, run.InstanceID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusErrored, got.Status)
	assert.Nil(t, got.Output)
	assert.Contains(t, got.Error, studymaterial.StepKeyConcepts)
	assert.Contains(t, got.Error, "model overloaded")
	assert.Len(t, got.Steps, 2)
	assert.Equal(t, 3, gen.calls)
	assert.Zero(t, recorded)
}

func TestPipelinePersistFailureKeepsMaterial(t *testing.T) {
	store := workflowtest.NewMemoryStore()
	rec := recorderFunc(func(context.Context, studymaterial.Record) error { return errors.New("db down") })
	e, _ := newEngine(t, store, studymaterial.Placeholder{}, rec)
	ctx := context.Background()

	run, err := e.Create(ctx, studymaterial.WorkflowName, params())
	require.NoError(t, err)
	require.NoError(t, e.Execute(ctx, run.InstanceID))

	got, err := e.Status(ctx, run.InstanceID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusComplete, got.Status)
	assert.NotEmpty(t, got.Output)
	assert.JSONEq(t, `{"stored":false}`, string(got.Steps[8].Output))
}

func TestPipelineMaterialTypesGate(t *testing.T) {
	store := workflowtest.NewMemoryStore()
	e, _ := newEngine(t, store, studymaterial.Placeholder{}, nil)
	ctx := context.Background()

	p := params()
	p.MaterialTypes = []studymaterial.MaterialType{studymaterial.MaterialSummary, studymaterial.MaterialPractice}
	run, err := e.Create(ctx, studymaterial.WorkflowName, p)
	require.NoError(t, err)
	require.NoError(t, e.Execute(ctx, run.InstanceID))

	got, err := e.Status(ctx, run.InstanceID)
	require.NoError(t, err)
	var m studymaterial.StudyMaterial
	require.NoError(t, json.Unmarshal(got.Output, &m))
	assert.NotEmpty(t, m.Summary)
	assert.Empty(t, m.KeyConcepts)
	assert.Empty(t, m.StudyQuestions)
	assert.Empty(t, m.Flashcards)
	assert.Len(t, m.PracticeProblems, 1)
}

func TestParamsWithDefaults(t *testing.T) {
	p := studymaterial.Params{PageContext: studymaterial.PageContext{Title: "x"}}.WithDefaults()
	assert.Equal(t, "default", p.UserID)
	assert.Equal(t, "intermediate", p.Difficulty)
	assert.Equal(t, []studymaterial.MaterialType{"summary", "questions", "flashcards", "key_concepts"}, p.MaterialTypes)

	kept := studymaterial.Params{UserID: "me", Difficulty: "advanced", MaterialTypes: []studymaterial.MaterialType{"practice"}}.WithDefaults()
	assert.Equal(t, "me", kept.UserID)
	assert.Equal(t, "advanced", kept.Difficulty)
	assert.Equal(t, []studymaterial.MaterialType{"practice"}, kept.MaterialTypes)
}

func TestLearningObjectivesUsesTopics(t *testing.T) {
	got := studymaterial.LearningObjectives("Go", []string{"General content", "channels", "goroutines", "select", "context"})
	assert.Len(t, got, 7)
	assert.Equal(t, "Understand the core concepts presented in Go", got[0])
	assert.Equal(t, "Explain the role of channels", got[4])
	assert.Equal(t, "Explain the role of select", got[6])
}
