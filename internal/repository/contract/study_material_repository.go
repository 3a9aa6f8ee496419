package contract

import (
	"context"

	"clarvis-be/internal/entity"
	"clarvis-be/internal/repository/specification"
)

type StudyMaterialRepository interface {
	Create(ctx context.Context, record *entity.StudyMaterialRecord) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.StudyMaterialRecord, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.StudyMaterialRecord, error)
}
