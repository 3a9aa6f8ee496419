package contract

import (
	"context"

	"clarvis-be/internal/entity"
)

type AgentStateRepository interface {
	// Upsert replaces the whole state row of the agent.
	Upsert(ctx context.Context, state *entity.AgentState) error
	FindByAgentId(ctx context.Context, agentId string) (*entity.AgentState, error)
}
