package service_test

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"clarvis-be/internal/dto"
	"clarvis-be/internal/model"
	"clarvis-be/internal/pkg/logger"
	"clarvis-be/internal/repository/memory"
	"clarvis-be/internal/repository/unitofwork"
	"clarvis-be/internal/service"
	"clarvis-be/pkg/database"
	"clarvis-be/pkg/llm"
	"clarvis-be/pkg/studymaterial"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewSQLiteDB(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))
	return db
}

type responderFunc func(ctx context.Context, turn service.ChatTurn) (llm.Stream, error)

func (f responderFunc) Respond(ctx context.Context, turn service.ChatTurn) (llm.Stream, error) {
	return f(ctx, turn)
}

func newChatService(t *testing.T, responder service.ChatResponder) service.IChatbotService {
	t.Helper()
	uow := unitofwork.NewRepositoryFactory(newTestDB(t))
	return service.NewChatbotService(uow, responder, memory.NewAgentStateCache(), logger.NewNopLogger())
}

func userMessage(text string) *dto.ChatRequest {
	return &dto.ChatRequest{Messages: []dto.ChatMessage{{
		Id:    "m1",
		Role:  "user",
		Parts: []dto.MessagePart{{Type: "text", Text: text}},
	}}}
}

func drain(t *testing.T, reply *service.ChatReply) []string {
	t.Helper()
	var chunks []string
	for {
		chunk, err := reply.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
	require.NoError(t, reply.Close())
	return chunks
}

func TestChatCannedReplyIsOneChunk(t *testing.T) {
	svc := newChatService(t, service.CannedResponder{})
	req := userMessage("Summarize this")
	req.PageContext = &studymaterial.PageContext{Title: "Go Memory Model", URL: "https://go.dev/ref/mem"}

	reply, err := svc.Chat(context.Background(), "agent-1", req)
	require.NoError(t, err)
	chunks := drain(t, reply)

	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], `"Summarize this"`)
	assert.Contains(t, chunks[0], "I can see you're viewing: Go Memory Model (https://go.dev/ref/mem)")

	history, err := svc.History(context.Background(), "agent-1")
	require.NoError(t, err)
	require.Len(t, history.History, 2)
	assert.Equal(t, "assistant", history.History[0].Role)
	assert.Equal(t, chunks[0], history.History[0].Content)
	assert.Equal(t, "user", history.History[1].Role)
	assert.Equal(t, "Summarize this", history.History[1].Content)

	state, err := svc.State(context.Background(), "agent-1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "Summarize this", state.LastMessage)
	assert.Equal(t, "Go Memory Model", state.PageContext.Title)
	assert.False(t, state.Cleared)
}

func TestChatStoresConcatenatedChunks(t *testing.T) {
	var seen service.ChatTurn
	svc := newChatService(t, responderFunc(func(_ context.Context, turn service.ChatTurn) (llm.Stream, error) {
		seen = turn
		return llm.StreamOf("Hel", "lo ", "there"), nil
	}))

	req := &dto.ChatRequest{Messages: []dto.ChatMessage{
		{Role: "user", Parts: []dto.MessagePart{{Type: "text", Text: "hi"}}},
		{Role: "assistant", Parts: []dto.MessagePart{{Type: "text", Text: "hello"}}},
		{Role: "user", Parts: []dto.MessagePart{{Type: "text", Text: "line one"}, {Type: "text", Text: "line two"}}},
	}}
	reply, err := svc.Chat(context.Background(), "agent-2", req)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo ", "there"}, drain(t, reply))

	assert.Equal(t, "line one\nline two", seen.UserContent)
	require.Len(t, seen.History, 3)
	assert.Equal(t, "assistant", seen.History[1].Role)

	history, err := svc.History(context.Background(), "agent-2")
	require.NoError(t, err)
	require.Len(t, history.History, 2)
	assert.Equal(t, "Hello there", history.History[0].Content)
}

func TestChatRejectsEmptyMessages(t *testing.T) {
	svc := newChatService(t, service.CannedResponder{})
	_, err := svc.Chat(context.Background(), "agent-1", &dto.ChatRequest{})
	assert.ErrorIs(t, err, service.ErrEmptyMessages)
}

func TestChatClassifiedFailureRepliesWithGuidance(t *testing.T) {
	svc := newChatService(t, responderFunc(func(context.Context, service.ChatTurn) (llm.Stream, error) {
		return nil, &llm.Error{Kind: llm.KindNetwork, Provider: "ollama", Err: errors.New("connection refused")}
	}))

	reply, err := svc.Chat(context.Background(), "agent-3", userMessage("What is this page?"))
	require.NoError(t, err)
	chunks := drain(t, reply)

	require.Len(t, chunks, 1)
	assert.True(t, strings.HasPrefix(chunks[0], "⚠️ **AI Service Error**"))
	assert.Contains(t, chunks[0], "connection refused")
	assert.Contains(t, chunks[0], `"What is this page?"`)

	history, err := svc.History(context.Background(), "agent-3")
	require.NoError(t, err)
	assert.Empty(t, history.History)
}

func TestChatUnclassifiedFailureIsInvocationError(t *testing.T) {
	svc := newChatService(t, responderFunc(func(context.Context, service.ChatTurn) (llm.Stream, error) {
		return nil, errors.New("boom")
	}))

	_, err := svc.Chat(context.Background(), "agent-4", userMessage("hi"))
	var invocationErr *service.ModelInvocationError
	require.ErrorAs(t, err, &invocationErr)
	assert.Equal(t, "Failed to generate AI response: boom", invocationErr.Error())
}

func TestClearEmptiesHistory(t *testing.T) {
	svc := newChatService(t, service.CannedResponder{})
	reply, err := svc.Chat(context.Background(), "agent-5", userMessage("hi"))
	require.NoError(t, err)
	drain(t, reply)

	require.NoError(t, svc.Clear(context.Background(), "agent-5"))

	history, err := svc.History(context.Background(), "agent-5")
	require.NoError(t, err)
	assert.Empty(t, history.History)

	state, err := svc.State(context.Background(), "agent-5")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.True(t, state.Cleared)
	assert.Empty(t, state.LastMessage)
	assert.Nil(t, state.PageContext)
}

func TestStateOfUnknownAgent(t *testing.T) {
	svc := newChatService(t, service.CannedResponder{})
	state, err := svc.State(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestBuildSystemPrompt(t *testing.T) {
	assert.Equal(t, "base", service.BuildSystemPrompt("base", nil))

	prompt := service.BuildSystemPrompt("base", &studymaterial.PageContext{
		Title: "T",
		URL:   "https://example.com",
		Text:  "raw text",
	})
	assert.True(t, strings.HasPrefix(prompt, "base\n\n=== CURRENT WEB PAGE CONTEXT ==="))
	assert.Contains(t, prompt, "Description: N/A")
	assert.Contains(t, prompt, "Page Content:\nraw text")
	assert.Contains(t, prompt, "=== END CONTEXT ===")
}

func TestGuidanceKinds(t *testing.T) {
	_, ok := service.Guidance(errors.New("plain"), "q")
	assert.False(t, ok)

	for _, kind := range []llm.ErrorKind{llm.KindQuotaOrRegion, llm.KindNetwork, llm.KindMisconfiguration} {
		msg, ok := service.Guidance(&llm.Error{Kind: kind, Provider: "p", Err: errors.New("x")}, "q")
		assert.True(t, ok, kind.String())
		assert.Contains(t, msg, "**Your Question:** \"q\"")
	}
}

func TestLiveResponderFallsBackWhenModelUnavailable(t *testing.T) {
	responder := service.NewChatResponder(unavailableProvider{}, "prompt")
	stream, err := responder.Respond(context.Background(), service.ChatTurn{UserContent: "hi"})
	require.NoError(t, err)
	chunk, err := stream.Recv()
	require.NoError(t, err)
	assert.Contains(t, chunk, `"hi"`)
}

// unavailableProvider is not the stub type, so the live responder is chosen.
type unavailableProvider struct{}

func (unavailableProvider) Chat(context.Context, []llm.Message, ...llm.Option) (string, error) {
	return "", llm.ErrModelUnavailable
}

func (unavailableProvider) Generate(context.Context, string, ...llm.Option) (string, error) {
	return "", llm.ErrModelUnavailable
}

type brokenStream struct {
	chunks []string
	err    error
}

func (s *brokenStream) Recv() (string, error) {
	if len(s.chunks) > 0 {
		c := s.chunks[0]
		s.chunks = s.chunks[1:]
		return c, nil
	}
	return "", s.err
}

func (s *brokenStream) Close() error { return nil }

func TestChatMidStreamClassifiedFailureEndsWithGuidance(t *testing.T) {
	reset := &llm.Error{Kind: llm.KindNetwork, Provider: "ollama", Err: errors.New("connection reset")}
	svc := newChatService(t, responderFunc(func(context.Context, service.ChatTurn) (llm.Stream, error) {
		return &brokenStream{chunks: []string{"Partial"}, err: reset}, nil
	}))

	reply, err := svc.Chat(context.Background(), "agent-mid", userMessage("what now?"))
	require.NoError(t, err)
	chunks := drain(t, reply)

	require.Len(t, chunks, 2)
	assert.Equal(t, "Partial", chunks[0])
	assert.True(t, strings.HasPrefix(chunks[1], "\n\n⚠️ **AI Service Error**"))
	assert.Contains(t, chunks[1], "connection reset")
	assert.True(t, reply.Guided())

	history, err := svc.History(context.Background(), "agent-mid")
	require.NoError(t, err)
	require.Len(t, history.History, 2)
	assert.Equal(t, "assistant", history.History[0].Role)
	assert.Equal(t, reply.Text(), history.History[0].Content)
}

func TestChatMidStreamUnclassifiedFailureIsReturned(t *testing.T) {
	svc := newChatService(t, responderFunc(func(context.Context, service.ChatTurn) (llm.Stream, error) {
		return &brokenStream{err: errors.New("boom")}, nil
	}))

	reply, err := svc.Chat(context.Background(), "agent-mid", userMessage("hi"))
	require.NoError(t, err)
	_, err = reply.Recv()
	assert.EqualError(t, err, "boom")
	assert.False(t, reply.Guided())
	require.NoError(t, reply.Close())
}
