package model

import (
	"time"

	"gorm.io/datatypes"
)

type AgentState struct {
	AgentId     string         `gorm:"type:varchar(255);primaryKey"`
	LastMessage string         `gorm:"type:text"`
	PageContext datatypes.JSON
	Cleared     bool           `gorm:"not null;default:false"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
}

func (AgentState) TableName() string {
	return "agent_states"
}
