package studymaterial

import (
	"context"
	"fmt"
	"time"

	"clarvis-be/internal/pkg/logger"
	"clarvis-be/pkg/workflow"
)

// WorkflowName identifies the study material definition in the engine.
const WorkflowName = "study-material"

const (
	StepAnalyze     = "analyze content"
	StepSummary     = "generate summary"
	StepKeyConcepts = "extract key concepts"
	StepQuestions   = "generate study questions"
	StepFlashcards  = "create flashcards"
	StepPractice    = "generate practice problems"
	StepObjectives  = "create learning objectives"
	StepCompile     = "compile study material"
	StepPersist     = "store study materials"
)

const defaultStudyTime = "15-20 minutes"

var modelRetry = workflow.RetryPolicy{MaxAttempts: 3, Delay: 2 * time.Second, Exponential: true}

// content types for which practice problems are generated without being asked for
var practiceContentTypes = map[string]bool{
	"tutorial":    true,
	"textbook":    true,
	"course":      true,
	"educational": true,
}

// Recorder stores the audit entry of a produced study material.
type Recorder interface {
	RecordMaterial(ctx context.Context, rec Record) error
}

type Pipeline struct {
	gen      Generator
	recorder Recorder
	logger   logger.ILogger
	now      func() time.Time
}

func NewPipeline(gen Generator, recorder Recorder, logger logger.ILogger) *Pipeline {
	return &Pipeline{gen: gen, recorder: recorder, logger: logger, now: time.Now}
}

// WithClock overrides the time source used for metadata and material ids.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Definition returns the nine step workflow.
func (p *Pipeline) Definition() *workflow.Definition {
	return &workflow.Definition{
		Name:       WorkflowName,
		ResultStep: StepCompile,
		Steps: []workflow.Step{
			{
				Name:        StepAnalyze,
				Description: "Analyzing page content and identifying key topics...",
				Retry:       modelRetry,
				Timeout:     30 * time.Second,
				Run: withParams(func(ctx context.Context, _ *workflow.RunContext, params Params) (any, error) {
					return p.gen.Analyze(ctx, params)
				}),
			},
			{
				Name:        StepSummary,
				Description: "Creating comprehensive summary...",
				Retry:       modelRetry,
				Timeout:     45 * time.Second,
				Run: withParams(func(ctx context.Context, _ *workflow.RunContext, params Params) (any, error) {
					return p.gen.Summarize(ctx, params)
				}),
			},
			{
				Name:        StepKeyConcepts,
				Description: "Extracting and explaining key concepts...",
				Retry:       modelRetry,
				Timeout:     45 * time.Second,
				Run: withParams(func(ctx context.Context, _ *workflow.RunContext, params Params) (any, error) {
					if !params.Wants(MaterialKeyConcepts) {
						return []KeyConcept{}, nil
					}
					return p.gen.KeyConcepts(ctx, params)
				}),
			},
			{
				Name:        StepQuestions,
				Description: "Generating practice questions...",
				Retry:       modelRetry,
				Timeout:     45 * time.Second,
				Run: withParams(func(ctx context.Context, _ *workflow.RunContext, params Params) (any, error) {
					if !params.Wants(MaterialQuestions) {
						return []StudyQuestion{}, nil
					}
					return p.gen.StudyQuestions(ctx, params)
				}),
			},
			{
				Name:        StepFlashcards,
				Description: "Creating flashcards for active recall...",
				Retry:       modelRetry,
				Timeout:     45 * time.Second,
				Run: withParams(func(ctx context.Context, _ *workflow.RunContext, params Params) (any, error) {
					if !params.Wants(MaterialFlashcards) {
						return []Flashcard{}, nil
					}
					return p.gen.Flashcards(ctx, params)
				}),
			},
			{
				Name:        StepPractice,
				Description: "Developing practice problems...",
				Retry:       modelRetry,
				Timeout:     45 * time.Second,
				Run: withParams(func(ctx context.Context, rc *workflow.RunContext, params Params) (any, error) {
					var analysis ContentAnalysis
					if err := rc.Output(StepAnalyze, &analysis); err != nil {
						return nil, err
					}
					if !params.Wants(MaterialPractice) && !practiceContentTypes[analysis.ContentType] {
						return []PracticeProblem{}, nil
					}
					return p.gen.PracticeProblems(ctx, params, analysis)
				}),
			},
			{
				Name:        StepObjectives,
				Description: "Defining learning objectives...",
				Retry:       workflow.NoRetry,
				Run: withParams(func(ctx context.Context, rc *workflow.RunContext, params Params) (any, error) {
					var analysis ContentAnalysis
					if err := rc.Output(StepAnalyze, &analysis); err != nil {
						return nil, err
					}
					return LearningObjectives(params.PageContext.Title, analysis.Topics), nil
				}),
			},
			{
				Name:        StepCompile,
				Description: "Compiling study materials...",
				Retry:       workflow.NoRetry,
				Run:         withParams(p.compile),
			},
			{
				Name:        StepPersist,
				Description: "Finalizing and saving study materials...",
				Retry:       workflow.NoRetry,
				Timeout:     10 * time.Second,
				Run:         withParams(p.persist),
			},
		},
	}
}

func (p *Pipeline) compile(_ context.Context, rc *workflow.RunContext, params Params) (any, error) {
	var (
		analysis   ContentAnalysis
		m          StudyMaterial
		objectives []string
	)
	outputs := []struct {
		step string
		dst  any
	}{
		{StepAnalyze, &analysis},
		{StepSummary, &m.Summary},
		{StepKeyConcepts, &m.KeyConcepts},
		{StepQuestions, &m.StudyQuestions},
		{StepFlashcards, &m.Flashcards},
		{StepPractice, &m.PracticeProblems},
		{StepObjectives, &objectives},
	}
	for _, o := range outputs {
		if err := rc.Output(o.step, o.dst); err != nil {
			return nil, err
		}
	}
	m.LearningObjectives = objectives
	m.EstimatedStudyTime = analysis.EstimatedReadTime
	if m.EstimatedStudyTime == "" {
		m.EstimatedStudyTime = defaultStudyTime
	}
	m.Metadata = Metadata{
		GeneratedAt: p.now().UTC(),
		PageTitle:   params.PageContext.Title,
		PageURL:     params.PageContext.URL,
		Difficulty:  params.Difficulty,
	}
	return m, nil
}

// persist never fails the run; the material is already compiled.
func (p *Pipeline) persist(ctx context.Context, rc *workflow.RunContext, params Params) (any, error) {
	now := p.now().UTC()
	rec := Record{
		MaterialID: fmt.Sprintf("study_%s_%d", params.UserID, now.UnixMilli()),
		InstanceID: rc.InstanceID,
		UserID:     params.UserID,
		PageURL:    params.PageContext.URL,
		PageTitle:  params.PageContext.Title,
		CreatedAt:  now,
	}
	if p.recorder == nil {
		return PersistResult{Stored: false}, nil
	}
	if err := p.recorder.RecordMaterial(ctx, rec); err != nil {
		p.logger.Warn("STUDY_MATERIAL", "Failed to record study material", map[string]interface{}{
			"instance_id": rc.InstanceID,
			"user_id":     params.UserID,
			"error":       err.Error(),
		})
		return PersistResult{Stored: false}, nil
	}
	p.logger.Info("STUDY_MATERIAL", "Study material recorded", map[string]interface{}{
		"material_id": rec.MaterialID,
		"user_id":     params.UserID,
		"page_url":    params.PageContext.URL,
	})
	return PersistResult{Stored: true, MaterialID: rec.MaterialID}, nil
}

func withParams(fn func(ctx context.Context, rc *workflow.RunContext, params Params) (any, error)) workflow.StepFunc {
	return func(ctx context.Context, rc *workflow.RunContext) (any, error) {
		var params Params
		if err := rc.Params(&params); err != nil {
			return nil, fmt.Errorf("decode params: %w", err)
		}
		return fn(ctx, rc, params.WithDefaults())
	}
}
