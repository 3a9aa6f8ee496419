package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one transcript row of an agent conversation.
type ChatMessage struct {
	Id        uuid.UUID
	AgentId   string
	Role      string
	Content   string
	CreatedAt time.Time
}
