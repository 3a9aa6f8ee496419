package service

import (
	"context"

	"clarvis-be/internal/entity"
	"clarvis-be/internal/repository/unitofwork"
	"clarvis-be/pkg/studymaterial"
)

type studyMaterialRecorder struct {
	uowFactory unitofwork.RepositoryFactory
}

// NewStudyMaterialRecorder stores the audit rows written by the pipeline's persist step.
func NewStudyMaterialRecorder(uowFactory unitofwork.RepositoryFactory) studymaterial.Recorder {
	return &studyMaterialRecorder{uowFactory: uowFactory}
}

func (r *studyMaterialRecorder) RecordMaterial(ctx context.Context, rec studymaterial.Record) error {
	uow := r.uowFactory.NewUnitOfWork(ctx)
	return uow.StudyMaterialRepository().Create(ctx, &entity.StudyMaterialRecord{
		MaterialId: rec.MaterialID,
		InstanceId: rec.InstanceID,
		UserId:     rec.UserID,
		PageUrl:    rec.PageURL,
		PageTitle:  rec.PageTitle,
		CreatedAt:  rec.CreatedAt,
	})
}
