package service

import (
	"context"
	"encoding/json"
	"fmt"

	"clarvis-be/internal/dto"
	"clarvis-be/internal/pkg/logger"
	"clarvis-be/internal/repository/specification"
	"clarvis-be/internal/repository/unitofwork"
	"clarvis-be/pkg/studymaterial"
	"clarvis-be/pkg/workflow"
)

const (
	studyModule      = "STUDY_MATERIAL"
	defaultListLimit = 20
	maxListLimit     = 100
)

type IStudyMaterialService interface {
	// Start persists a queued run and hands it to the dispatcher. identityUserId,
	// when set, is used if the request names no user.
	Start(ctx context.Context, identityUserId string, req *dto.GenerateStudyMaterialRequest) (*dto.GenerateStudyMaterialResponse, error)
	Status(ctx context.Context, instanceId string) (*dto.WorkflowStatus, error)
	List(ctx context.Context, q dto.StudyMaterialListQuery) (*dto.StudyMaterialListResponse, error)
	// Records lists the study materials produced for one user, newest first.
	Records(ctx context.Context, userId string, limit, offset int) (*dto.StudyMaterialRecordsResponse, error)
}

type studyMaterialService struct {
	engine     *workflow.Engine
	uowFactory unitofwork.RepositoryFactory
	dispatcher RunDispatcher
	labels     []string
	logger     logger.ILogger
}

func NewStudyMaterialService(
	engine *workflow.Engine,
	uowFactory unitofwork.RepositoryFactory,
	dispatcher RunDispatcher,
	logger logger.ILogger,
) (IStudyMaterialService, error) {
	def, ok := engine.Definition(studymaterial.WorkflowName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", workflow.ErrUnknownDefinition, studymaterial.WorkflowName)
	}
	return &studyMaterialService{
		engine:     engine,
		uowFactory: uowFactory,
		dispatcher: dispatcher,
		labels:     def.Labels(),
		logger:     logger,
	}, nil
}

func (s *studyMaterialService) Start(ctx context.Context, identityUserId string, req *dto.GenerateStudyMaterialRequest) (*dto.GenerateStudyMaterialResponse, error) {
	if req == nil || req.PageContext == nil {
		return nil, ErrMissingPageContext
	}

	userId := req.UserId
	if userId == "" {
		userId = identityUserId
	}
	types := make([]studymaterial.MaterialType, len(req.MaterialTypes))
	for i, t := range req.MaterialTypes {
		types[i] = studymaterial.MaterialType(t)
	}
	params := studymaterial.Params{
		PageContext:   *req.PageContext,
		UserID:        userId,
		Difficulty:    req.Difficulty,
		MaterialTypes: types,
	}.WithDefaults()

	run, err := s.engine.Create(ctx, studymaterial.WorkflowName, params)
	if err != nil {
		return nil, err
	}

	if err := s.dispatcher.Dispatch(ctx, run.InstanceID); err != nil {
		// the run is durable; it is picked up again on the next start
		s.logger.Warn(studyModule, "Failed to dispatch run", map[string]interface{}{
			"instance_id": run.InstanceID,
			"error":       err.Error(),
		})
	}

	return &dto.GenerateStudyMaterialResponse{
		Success:    true,
		InstanceId: run.InstanceID,
		Message:    "Study material generation started",
		StatusUrl:  "/study-materials/status/" + run.InstanceID,
	}, nil
}

func (s *studyMaterialService) Status(ctx context.Context, instanceId string) (*dto.WorkflowStatus, error) {
	run, err := s.engine.Status(ctx, instanceId)
	if err != nil {
		return nil, err
	}
	return NewWorkflowStatus(run, s.labels), nil
}

func (s *studyMaterialService) List(ctx context.Context, q dto.StudyMaterialListQuery) (*dto.StudyMaterialListResponse, error) {
	filters := []specification.Specification{specification.ByWorkflow{Name: studymaterial.WorkflowName}}
	if q.Status != "" {
		if !knownStatus(workflow.Status(q.Status)) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, q.Status)
		}
		filters = append(filters, specification.Filter("status", q.Status))
	}
	limit, offset := page(q.Limit, q.Offset)

	repo := s.uowFactory.NewUnitOfWork(ctx).WorkflowRunRepository()
	runs, err := repo.FindAll(ctx, append(filters,
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)...)
	if err != nil {
		return nil, err
	}
	total, err := repo.Count(ctx, filters...)
	if err != nil {
		return nil, err
	}

	res := &dto.StudyMaterialListResponse{Runs: make([]*dto.StudyMaterialListItem, 0, len(runs)), Total: total}
	for _, run := range runs {
		params := decodeParams(run)
		res.Runs = append(res.Runs, &dto.StudyMaterialListItem{
			InstanceId: run.InstanceID,
			Status:     string(run.Status),
			UserId:     params.UserID,
			PageTitle:  params.PageContext.Title,
			PageUrl:    params.PageContext.URL,
			Progress:   workflow.Project(run, s.labels).ProgressPercent,
			CreatedAt:  run.CreatedAt,
		})
	}
	return res, nil
}

func (s *studyMaterialService) Records(ctx context.Context, userId string, limit, offset int) (*dto.StudyMaterialRecordsResponse, error) {
	if userId == "" {
		return nil, ErrMissingUserId
	}
	limit, offset = page(limit, offset)

	records, err := s.uowFactory.NewUnitOfWork(ctx).StudyMaterialRepository().FindAll(ctx,
		specification.ByUserID{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	if err != nil {
		return nil, err
	}

	res := &dto.StudyMaterialRecordsResponse{Records: make([]*dto.StudyMaterialRecordItem, 0, len(records))}
	for _, r := range records {
		res.Records = append(res.Records, &dto.StudyMaterialRecordItem{
			MaterialId: r.MaterialId,
			InstanceId: r.InstanceId,
			UserId:     r.UserId,
			PageUrl:    r.PageUrl,
			PageTitle:  r.PageTitle,
			CreatedAt:  r.CreatedAt,
		})
	}
	return res, nil
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func knownStatus(s workflow.Status) bool {
	switch s {
	case workflow.StatusQueued, workflow.StatusRunning, workflow.StatusComplete, workflow.StatusErrored, workflow.StatusTerminated:
		return true
	}
	return false
}

// NewWorkflowStatus renders a run with its projection.
func NewWorkflowStatus(run *workflow.Run, labels []string) *dto.WorkflowStatus {
	completed := make([]string, len(run.Steps))
	for i, step := range run.Steps {
		completed[i] = step.Name
	}
	status := &dto.WorkflowStatus{
		InstanceId:     run.InstanceID,
		Status:         string(run.Status),
		Error:          run.Error,
		CompletedSteps: completed,
		CreatedAt:      run.CreatedAt,
		FinishedAt:     run.FinishedAt,
		Projection:     workflow.Project(run, labels),
	}
	if run.Status == workflow.StatusComplete && len(run.Output) > 0 {
		status.Output = run.Output
	}
	return status
}

func decodeParams(run *workflow.Run) studymaterial.Params {
	var params studymaterial.Params
	_ = json.Unmarshal(run.Params, &params)
	return params
}
