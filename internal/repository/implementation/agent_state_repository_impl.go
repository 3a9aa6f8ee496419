package implementation

import (
	"context"
	"errors"

	"clarvis-be/internal/entity"
	"clarvis-be/internal/mapper"
	"clarvis-be/internal/model"
	"clarvis-be/internal/repository/contract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AgentStateRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewAgentStateRepository(db *gorm.DB) contract.AgentStateRepository {
	return &AgentStateRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *AgentStateRepositoryImpl) Upsert(ctx context.Context, state *entity.AgentState) error {
	m, err := r.mapper.AgentStateToModel(state)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "agent_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_message", "page_context", "cleared", "updated_at"}),
	}).Create(m).Error
	if err != nil {
		return err
	}
	*state = *r.mapper.AgentStateToEntity(m)
	return nil
}

func (r *AgentStateRepositoryImpl) FindByAgentId(ctx context.Context, agentId string) (*entity.AgentState, error) {
	var m model.AgentState
	if err := r.db.WithContext(ctx).Where("agent_id = ?", agentId).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.AgentStateToEntity(&m), nil
}
