package implementation

import (
	"context"
	"errors"

	"clarvis-be/internal/entity"
	"clarvis-be/internal/mapper"
	"clarvis-be/internal/model"
	"clarvis-be/internal/repository/contract"
	"clarvis-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StudyMaterialRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.StudyMaterialMapper
}

func NewStudyMaterialRepository(db *gorm.DB) contract.StudyMaterialRepository {
	return &StudyMaterialRepositoryImpl{
		db:     db,
		mapper: mapper.NewStudyMaterialMapper(),
	}
}

func (r *StudyMaterialRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *StudyMaterialRepositoryImpl) Create(ctx context.Context, record *entity.StudyMaterialRecord) error {
	if record.Id == uuid.Nil {
		record.Id = uuid.New()
	}
	m := r.mapper.RecordToModel(record)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*record = *r.mapper.RecordToEntity(m)
	return nil
}

func (r *StudyMaterialRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.StudyMaterialRecord, error) {
	var m model.StudyMaterialRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.RecordToEntity(&m), nil
}

func (r *StudyMaterialRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.StudyMaterialRecord, error) {
	var models []*model.StudyMaterialRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.StudyMaterialRecord, len(models))
	for i, m := range models {
		entities[i] = r.mapper.RecordToEntity(m)
	}
	return entities, nil
}
