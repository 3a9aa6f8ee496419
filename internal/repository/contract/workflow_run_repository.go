package contract

import (
	"context"

	"clarvis-be/internal/repository/specification"
	"clarvis-be/pkg/workflow"
)

// WorkflowRunRepository backs the workflow engine.
type WorkflowRunRepository interface {
	workflow.RunStore
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*workflow.Run, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
