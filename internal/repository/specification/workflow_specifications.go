package specification

import (
	"gorm.io/gorm"
)

type ByWorkflow struct {
	Name string
}

func (s ByWorkflow) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("workflow = ?", s.Name)
}

// ByStatuses filters runs whose status is one of Statuses. Empty matches all.
type ByStatuses struct {
	Statuses []string
}

func (s ByStatuses) Apply(db *gorm.DB) *gorm.DB {
	if len(s.Statuses) == 0 {
		return db
	}
	return db.Where("status IN ?", s.Statuses)
}

type ByUserID struct {
	UserID string
}

func (s ByUserID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}
