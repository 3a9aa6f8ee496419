package entity

import (
	"time"

	"clarvis-be/pkg/studymaterial"
)

// AgentState is the last known state of a chat agent.
type AgentState struct {
	AgentId     string
	LastMessage string
	PageContext *studymaterial.PageContext
	Cleared     bool
	UpdatedAt   time.Time
}
