package model

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	AgentId   string    `gorm:"type:varchar(255);not null;index:idx_chat_messages_agent_created,priority:1"`
	Role      string    `gorm:"type:varchar(50);not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"index:idx_chat_messages_agent_created,priority:2"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
