package service

import (
	"context"
	"time"

	"clarvis-be/internal/dto"
	"clarvis-be/internal/entity"
	"clarvis-be/internal/pkg/logger"
	"clarvis-be/internal/repository/memory"
	"clarvis-be/internal/repository/specification"
	"clarvis-be/internal/repository/unitofwork"
	"clarvis-be/pkg/llm"
)

const (
	chatModule   = "CHAT"
	historyLimit = 50
)

// IChatbotService defines the chat agent operations
type IChatbotService interface {
	Chat(ctx context.Context, agentId string, req *dto.ChatRequest) (*ChatReply, error)
	History(ctx context.Context, agentId string) (*dto.ChatHistoryResponse, error)
	Clear(ctx context.Context, agentId string) error
	State(ctx context.Context, agentId string) (*entity.AgentState, error)
}

type chatbotService struct {
	uowFactory unitofwork.RepositoryFactory
	responder  ChatResponder
	stateCache *memory.AgentStateCache
	logger     logger.ILogger
}

func NewChatbotService(
	uowFactory unitofwork.RepositoryFactory,
	responder ChatResponder,
	stateCache *memory.AgentStateCache,
	logger logger.ILogger,
) IChatbotService {
	return &chatbotService{
		uowFactory: uowFactory,
		responder:  responder,
		stateCache: stateCache,
		logger:     logger,
	}
}

// Chat opens the reply for the last message. Classified model failures come
// back as a one-chunk guidance reply, whether they happen on open or mid-stream;
// anything else on open is a ModelInvocationError.
func (s *chatbotService) Chat(ctx context.Context, agentId string, req *dto.ChatRequest) (*ChatReply, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, ErrEmptyMessages
	}

	userContent := req.Messages[len(req.Messages)-1].Text()
	history := make([]llm.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		history = append(history, llm.Message{Role: m.Role, Content: m.Text()})
	}

	stream, err := s.responder.Respond(ctx, ChatTurn{
		History:     history,
		UserContent: userContent,
		PageContext: req.PageContext,
	})
	if err != nil {
		guidance, ok := Guidance(err, userContent)
		if !ok {
			s.logger.Error(chatModule, "Model invocation failed", map[string]interface{}{
				"agent_id": agentId,
				"error":    err.Error(),
			})
			return nil, &ModelInvocationError{Err: err}
		}
		s.logger.Warn(chatModule, "Model invocation failed, replying with guidance", map[string]interface{}{
			"agent_id": agentId,
			"kind":     llm.KindOf(err).String(),
			"error":    err.Error(),
		})
		return newChatReply(llm.StreamOf(guidance), userContent, nil), nil
	}

	now := time.Now().UTC()
	if err := s.saveState(ctx, &entity.AgentState{
		AgentId:     agentId,
		LastMessage: userContent,
		PageContext: req.PageContext,
		UpdatedAt:   now,
	}); err != nil {
		stream.Close()
		return nil, err
	}
	if err := s.appendMessage(ctx, agentId, "user", userContent, now); err != nil {
		stream.Close()
		return nil, err
	}

	return newChatReply(stream, userContent, func(text string) {
		if text == "" {
			return
		}
		// the request context is gone once the stream has been written
		if err := s.appendMessage(context.Background(), agentId, "assistant", text, time.Now().UTC()); err != nil {
			s.logger.Error(chatModule, "Failed to store assistant reply", map[string]interface{}{
				"agent_id": agentId,
				"error":    err.Error(),
			})
		}
	}), nil
}

func (s *chatbotService) History(ctx context.Context, agentId string) (*dto.ChatHistoryResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	rows, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByAgentID{AgentID: agentId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: historyLimit},
	)
	if err != nil {
		return nil, err
	}

	res := &dto.ChatHistoryResponse{History: make([]*dto.ChatHistoryRow, 0, len(rows))}
	for _, row := range rows {
		res.History = append(res.History, &dto.ChatHistoryRow{
			Timestamp: row.CreatedAt,
			Role:      row.Role,
			Content:   row.Content,
		})
	}
	return res, nil
}

func (s *chatbotService) Clear(ctx context.Context, agentId string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ChatMessageRepository().DeleteByAgentId(ctx, agentId); err != nil {
		return err
	}
	state := &entity.AgentState{AgentId: agentId, Cleared: true, UpdatedAt: time.Now().UTC()}
	if err := uow.AgentStateRepository().Upsert(ctx, state); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	s.stateCache.Save(state)
	s.logger.Info(chatModule, "History cleared", map[string]interface{}{"agent_id": agentId})
	return nil
}

// State returns the last recorded state of the agent, or nil when it never chatted.
func (s *chatbotService) State(ctx context.Context, agentId string) (*entity.AgentState, error) {
	if state, ok := s.stateCache.Get(agentId); ok {
		return state, nil
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	state, err := uow.AgentStateRepository().FindByAgentId(ctx, agentId)
	if err != nil || state == nil {
		return nil, err
	}
	s.stateCache.Save(state)
	return state, nil
}

func (s *chatbotService) saveState(ctx context.Context, state *entity.AgentState) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.AgentStateRepository().Upsert(ctx, state); err != nil {
		return err
	}
	s.stateCache.Save(state)
	return nil
}

func (s *chatbotService) appendMessage(ctx context.Context, agentId, role, content string, at time.Time) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.ChatMessageRepository().Create(ctx, &entity.ChatMessage{
		AgentId:   agentId,
		Role:      role,
		Content:   content,
		CreatedAt: at,
	})
}
