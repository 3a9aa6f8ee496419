package model

import "gorm.io/gorm"

// All returns every server table in dependency order.
func All() []interface{} {
	return []interface{}{
		&ChatMessage{},
		&AgentState{},
		&WorkflowRun{},
		&WorkflowStep{},
		&StudyMaterialRecord{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
