package mapper

import (
	"encoding/json"

	"clarvis-be/internal/entity"
	"clarvis-be/internal/model"
	"clarvis-be/pkg/studymaterial"

	"gorm.io/datatypes"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Message Mappers

func (m *ChatMapper) ChatMessageToEntity(msg *model.ChatMessage) *entity.ChatMessage {
	if msg == nil {
		return nil
	}

	return &entity.ChatMessage{
		Id:        msg.Id,
		AgentId:   msg.AgentId,
		Role:      msg.Role,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
}

func (m *ChatMapper) ChatMessageToModel(msg *entity.ChatMessage) *model.ChatMessage {
	if msg == nil {
		return nil
	}

	return &model.ChatMessage{
		Id:        msg.Id,
		AgentId:   msg.AgentId,
		Role:      msg.Role,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
}

// Agent State Mappers

func (m *ChatMapper) AgentStateToEntity(s *model.AgentState) *entity.AgentState {
	if s == nil {
		return nil
	}

	var pageContext *studymaterial.PageContext
	if len(s.PageContext) > 0 && string(s.PageContext) != "null" {
		var pc studymaterial.PageContext
		if err := json.Unmarshal(s.PageContext, &pc); err == nil {
			pageContext = &pc
		}
	}

	return &entity.AgentState{
		AgentId:     s.AgentId,
		LastMessage: s.LastMessage,
		PageContext: pageContext,
		Cleared:     s.Cleared,
		UpdatedAt:   s.UpdatedAt,
	}
}

func (m *ChatMapper) AgentStateToModel(s *entity.AgentState) (*model.AgentState, error) {
	if s == nil {
		return nil, nil
	}

	var pageContext datatypes.JSON
	if s.PageContext != nil {
		raw, err := json.Marshal(s.PageContext)
		if err != nil {
			return nil, err
		}
		pageContext = raw
	}

	return &model.AgentState{
		AgentId:     s.AgentId,
		LastMessage: s.LastMessage,
		PageContext: pageContext,
		Cleared:     s.Cleared,
		UpdatedAt:   s.UpdatedAt,
	}, nil
}
