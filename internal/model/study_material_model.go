package model

import (
	"time"

	"github.com/google/uuid"
)

type StudyMaterialRecord struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey"`
	MaterialId string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	InstanceId string    `gorm:"type:varchar(64);not null;index"`
	UserId     string    `gorm:"type:varchar(255);not null;index"`
	PageUrl    string    `gorm:"type:text"`
	PageTitle  string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (StudyMaterialRecord) TableName() string {
	return "study_material_records"
}
