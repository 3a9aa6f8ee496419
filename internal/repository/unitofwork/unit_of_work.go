package unitofwork

import (
	"context"

	"clarvis-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ChatMessageRepository() contract.ChatMessageRepository
	AgentStateRepository() contract.AgentStateRepository
	WorkflowRunRepository() contract.WorkflowRunRepository
	StudyMaterialRepository() contract.StudyMaterialRepository
}
