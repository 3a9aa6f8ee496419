package implementation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"clarvis-be/internal/mapper"
	"clarvis-be/internal/model"
	"clarvis-be/internal/repository/contract"
	"clarvis-be/internal/repository/specification"
	"clarvis-be/pkg/workflow"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type WorkflowRunRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.WorkflowMapper
}

func NewWorkflowRunRepository(db *gorm.DB) contract.WorkflowRunRepository {
	return &WorkflowRunRepositoryImpl{
		db:     db,
		mapper: mapper.NewWorkflowMapper(),
	}
}

func (r *WorkflowRunRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func preloadSteps(db *gorm.DB) *gorm.DB {
	return db.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	})
}

func (r *WorkflowRunRepositoryImpl) CreateRun(ctx context.Context, run *workflow.Run) error {
	m := r.mapper.RunToModel(run)
	return r.db.WithContext(ctx).Omit("Steps").Create(m).Error
}

func (r *WorkflowRunRepositoryImpl) GetRun(ctx context.Context, instanceID string) (*workflow.Run, error) {
	var m model.WorkflowRun
	if err := preloadSteps(r.db.WithContext(ctx)).Where("id = ?", instanceID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, workflow.ErrRunNotFound
		}
		return nil, err
	}
	return r.mapper.RunToDomain(&m), nil
}

// AppendStep inserts the next step row. The (run_id, seq) unique index
// rejects a second writer racing for the same slot.
func (r *WorkflowRunRepositoryImpl) AppendStep(ctx context.Context, instanceID string, step workflow.StepRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var run model.WorkflowRun
		if err := tx.Select("id", "status").Where("id = ?", instanceID).First(&run).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return workflow.ErrRunNotFound
			}
			return err
		}
		if workflow.Status(run.Status).Terminal() {
			return workflow.ErrInvalidTransition
		}

		var seq int64
		if err := tx.Model(&model.WorkflowStep{}).Where("run_id = ?", instanceID).Count(&seq).Error; err != nil {
			return err
		}
		return tx.Create(r.mapper.StepToModel(instanceID, int(seq), step)).Error
	})
}

// UpdateStatus only moves a run forward; the WHERE clause lists the statuses
// allowed to reach the target so a terminal row is never rewritten.
func (r *WorkflowRunRepositoryImpl) UpdateStatus(ctx context.Context, instanceID string, status workflow.Status, output json.RawMessage, errMsg string) error {
	var from []string
	for _, s := range []workflow.Status{workflow.StatusQueued, workflow.StatusRunning} {
		if s.CanTransition(status) {
			from = append(from, string(s))
		}
	}
	if len(from) == 0 {
		return workflow.ErrInvalidTransition
	}

	updates := map[string]interface{}{
		"status": string(status),
		"error":  errMsg,
	}
	if output != nil {
		updates["output"] = datatypes.JSON(output)
	}
	if status.Terminal() {
		updates["finished_at"] = time.Now().UTC()
	}

	res := r.db.WithContext(ctx).Model(&model.WorkflowRun{}).
		Where("id = ? AND status IN ?", instanceID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.WorkflowRun{}).Where("id = ?", instanceID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return workflow.ErrRunNotFound
		}
		return workflow.ErrInvalidTransition
	}
	return nil
}

func (r *WorkflowRunRepositoryImpl) ListRuns(ctx context.Context, statuses []workflow.Status, limit int) ([]*workflow.Run, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	specs := []specification.Specification{
		specification.ByStatuses{Statuses: names},
		specification.OrderBy{Field: "created_at"},
	}
	if limit > 0 {
		specs = append(specs, specification.Pagination{Limit: limit})
	}
	return r.FindAll(ctx, specs...)
}

func (r *WorkflowRunRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*workflow.Run, error) {
	var models []*model.WorkflowRun
	query := r.applySpecifications(preloadSteps(r.db.WithContext(ctx)), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	runs := make([]*workflow.Run, len(models))
	for i, m := range models {
		runs[i] = r.mapper.RunToDomain(m)
	}
	return runs, nil
}

func (r *WorkflowRunRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.WorkflowRun{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
