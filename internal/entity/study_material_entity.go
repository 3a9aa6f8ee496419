package entity

import (
	"time"

	"github.com/google/uuid"
)

// StudyMaterialRecord is the audit trail of a produced study material.
type StudyMaterialRecord struct {
	Id         uuid.UUID
	MaterialId string
	InstanceId string
	UserId     string
	PageUrl    string
	PageTitle  string
	CreatedAt  time.Time
}
