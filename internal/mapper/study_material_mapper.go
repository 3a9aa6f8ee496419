package mapper

import (
	"clarvis-be/internal/entity"
	"clarvis-be/internal/model"
)

type StudyMaterialMapper struct{}

func NewStudyMaterialMapper() *StudyMaterialMapper {
	return &StudyMaterialMapper{}
}

func (m *StudyMaterialMapper) RecordToEntity(r *model.StudyMaterialRecord) *entity.StudyMaterialRecord {
	if r == nil {
		return nil
	}
	return &entity.StudyMaterialRecord{
		Id:         r.Id,
		MaterialId: r.MaterialId,
		InstanceId: r.InstanceId,
		UserId:     r.UserId,
		PageUrl:    r.PageUrl,
		PageTitle:  r.PageTitle,
		CreatedAt:  r.CreatedAt,
	}
}

func (m *StudyMaterialMapper) RecordToModel(r *entity.StudyMaterialRecord) *model.StudyMaterialRecord {
	if r == nil {
		return nil
	}
	return &model.StudyMaterialRecord{
		Id:         r.Id,
		MaterialId: r.MaterialId,
		InstanceId: r.InstanceId,
		UserId:     r.UserId,
		PageUrl:    r.PageUrl,
		PageTitle:  r.PageTitle,
		CreatedAt:  r.CreatedAt,
	}
}
