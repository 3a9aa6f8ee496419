package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type WorkflowRun struct {
	Id         string         `gorm:"type:varchar(64);primaryKey"`
	Workflow   string         `gorm:"type:varchar(100);not null;index"`
	Params     datatypes.JSON `gorm:"not null"`
	Status     string         `gorm:"type:varchar(20);not null;index"`
	Output     datatypes.JSON
	Error      string         `gorm:"type:text"`
	CreatedAt  time.Time      `gorm:"index"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime"`
	FinishedAt *time.Time

	Steps []WorkflowStep `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
}

func (WorkflowRun) TableName() string {
	return "workflow_runs"
}

// WorkflowStep rows are only ever inserted; (run_id, seq) is unique.
type WorkflowStep struct {
	Id          uuid.UUID      `gorm:"type:uuid;primaryKey"`
	RunId       string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_workflow_steps_run_seq,priority:1"`
	Seq         int            `gorm:"not null;uniqueIndex:idx_workflow_steps_run_seq,priority:2"`
	Name        string         `gorm:"type:varchar(100);not null"`
	Output      datatypes.JSON
	Attempts    int            `gorm:"not null"`
	CompletedAt time.Time
}

func (WorkflowStep) TableName() string {
	return "workflow_steps"
}
