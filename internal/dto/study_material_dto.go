package dto

import (
	"encoding/json"
	"time"

	"clarvis-be/pkg/studymaterial"
	"clarvis-be/pkg/workflow"
)

type GenerateStudyMaterialRequest struct {
	PageContext   *studymaterial.PageContext `json:"pageContext"`
	UserId        string                     `json:"userId,omitempty" validate:"omitempty,max=128"`
	Difficulty    string                     `json:"difficulty,omitempty" validate:"omitempty,oneof=beginner intermediate advanced"`
	MaterialTypes []string                   `json:"materialTypes,omitempty" validate:"omitempty,dive,oneof=summary questions flashcards practice key_concepts"`
}

type GenerateStudyMaterialResponse struct {
	Success    bool   `json:"success"`
	InstanceId string `json:"instanceId"`
	Message    string `json:"message"`
	StatusUrl  string `json:"statusUrl"`
}

// WorkflowStatus is the raw run plus its projection.
type WorkflowStatus struct {
	InstanceId     string          `json:"instanceId"`
	Status         string          `json:"status"`
	Output         json.RawMessage `json:"output,omitempty"`
	Error          string          `json:"error,omitempty"`
	CompletedSteps []string        `json:"completedSteps"`
	CreatedAt      time.Time       `json:"createdAt"`
	FinishedAt     *time.Time      `json:"finishedAt,omitempty"`
	workflow.Projection
}

type StudyMaterialStatusResponse struct {
	Status *WorkflowStatus `json:"status"`
}

type StudyMaterialListItem struct {
	InstanceId string    `json:"instanceId"`
	Status     string    `json:"status"`
	UserId     string    `json:"userId"`
	PageTitle  string    `json:"pageTitle"`
	PageUrl    string    `json:"pageUrl"`
	Progress   int       `json:"progress"`
	CreatedAt  time.Time `json:"createdAt"`
}

type StudyMaterialListQuery struct {
	Status string
	Limit  int
	Offset int
}

type StudyMaterialListResponse struct {
	Runs  []*StudyMaterialListItem `json:"runs"`
	Total int64                    `json:"total"`
}

type StudyMaterialRecordItem struct {
	MaterialId string    `json:"materialId"`
	InstanceId string    `json:"instanceId"`
	UserId     string    `json:"userId"`
	PageUrl    string    `json:"pageUrl"`
	PageTitle  string    `json:"pageTitle"`
	CreatedAt  time.Time `json:"createdAt"`
}

type StudyMaterialRecordsResponse struct {
	Records []*StudyMaterialRecordItem `json:"records"`
}

// PublishWorkflowRunMessage is the dispatch queue payload.
type PublishWorkflowRunMessage struct {
	InstanceId string `json:"instance_id"`
}

// RunProgressMessage is pushed to websocket watchers.
type RunProgressMessage struct {
	Type       string `json:"type"`
	InstanceId string `json:"instanceId"`
	Status     string `json:"status"`
	Terminal   bool   `json:"terminal"`
	workflow.Projection
}
