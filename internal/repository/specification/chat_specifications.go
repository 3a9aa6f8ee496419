package specification

import (
	"gorm.io/gorm"
)

type ByAgentID struct {
	AgentID string
}

func (s ByAgentID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("agent_id = ?", s.AgentID)
}
