package mapper

import (
	"encoding/json"

	"clarvis-be/internal/model"
	"clarvis-be/pkg/workflow"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type WorkflowMapper struct{}

func NewWorkflowMapper() *WorkflowMapper {
	return &WorkflowMapper{}
}

func (m *WorkflowMapper) RunToDomain(r *model.WorkflowRun) *workflow.Run {
	if r == nil {
		return nil
	}

	steps := make([]workflow.StepRecord, len(r.Steps))
	for i, s := range r.Steps {
		steps[i] = workflow.StepRecord{
			Name:        s.Name,
			Output:      rawOrNil(s.Output),
			Attempts:    s.Attempts,
			CompletedAt: s.CompletedAt.UTC(),
		}
	}

	run := &workflow.Run{
		InstanceID: r.Id,
		Workflow:   r.Workflow,
		Params:     rawOrNil(r.Params),
		Status:     workflow.Status(r.Status),
		Steps:      steps,
		Output:     rawOrNil(r.Output),
		Error:      r.Error,
		CreatedAt:  r.CreatedAt.UTC(),
	}
	if r.FinishedAt != nil {
		t := r.FinishedAt.UTC()
		run.FinishedAt = &t
	}
	return run
}

func (m *WorkflowMapper) RunToModel(r *workflow.Run) *model.WorkflowRun {
	if r == nil {
		return nil
	}

	return &model.WorkflowRun{
		Id:         r.InstanceID,
		Workflow:   r.Workflow,
		Params:     datatypes.JSON(r.Params),
		Status:     string(r.Status),
		Output:     datatypes.JSON(r.Output),
		Error:      r.Error,
		CreatedAt:  r.CreatedAt,
		FinishedAt: r.FinishedAt,
	}
}

func (m *WorkflowMapper) StepToModel(runId string, seq int, s workflow.StepRecord) *model.WorkflowStep {
	return &model.WorkflowStep{
		Id:          uuid.New(),
		RunId:       runId,
		Seq:         seq,
		Name:        s.Name,
		Output:      datatypes.JSON(s.Output),
		Attempts:    s.Attempts,
		CompletedAt: s.CompletedAt,
	}
}

func rawOrNil(j datatypes.JSON) json.RawMessage {
	if len(j) == 0 || string(j) == "null" {
		return nil
	}
	return json.RawMessage(j)
}
