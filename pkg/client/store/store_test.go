package store_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clarvis-be/pkg/client/store"
	"clarvis-be/pkg/studymaterial"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickingClock advances one second per call so every mutation gets a distinct time.
func tickingClock() func() time.Time {
	t := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func backends(t *testing.T) map[string]store.KV {
	t.Helper()
	gormKV, err := store.OpenFile(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	return map[string]store.KV{
		"gorm":   gormKV,
		"memory": store.NewMemoryKV(),
	}
}

func TestKV(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var v map[string]int
			found, err := kv.Get(ctx, "missing", &v)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, kv.Set(ctx, "a_1", map[string]int{"x": 1}))
			require.NoError(t, kv.Set(ctx, "a_1", map[string]int{"x": 2}))
			require.NoError(t, kv.Set(ctx, "a_2", 3))
			require.NoError(t, kv.Set(ctx, "ab", 4))

			found, err = kv.Get(ctx, "a_1", &v)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, map[string]int{"x": 2}, v)

			keys, err := kv.Keys(ctx, "a_")
			require.NoError(t, err)
			assert.Equal(t, []string{"a_1", "a_2"}, keys)

			require.NoError(t, kv.Delete(ctx, "a_1"))
			found, err = kv.Get(ctx, "a_1", &v)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestConversationsSortedByLastMessageTime(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := store.New(kv).WithClock(tickingClock())

			first, err := s.CreateConversation(ctx, "", nil)
			require.NoError(t, err)
			second, err := s.CreateConversation(ctx, "Second", nil)
			require.NoError(t, err)

			list, err := s.Conversations(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, second.Id, list[0].Id)

			_, err = s.AppendMessages(ctx, first.Id, store.TextMessage("user", "hello", time.Now()))
			require.NoError(t, err)

			list, err = s.Conversations(ctx)
			require.NoError(t, err)
			assert.Equal(t, first.Id, list[0].Id)
			assert.Equal(t, "hello", list[0].Title)
			assert.Len(t, list[0].Messages, 1)
			assert.True(t, list[0].LastMessageTime.After(list[0].Timestamp))
		})
	}
}

func TestCreateMakesCurrentAndDeleteClearsIt(t *testing.T) {
	ctx := context.Background()
	s := store.New(store.NewMemoryKV())

	current, err := s.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	c, err := s.EnsureCurrent(ctx, &studymaterial.PageContext{Title: "Page"})
	require.NoError(t, err)
	again, err := s.EnsureCurrent(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, c.Id, again.Id)
	assert.Equal(t, "Page", again.PageContext.Title)

	other, err := s.CreateConversation(ctx, "Other", nil)
	require.NoError(t, err)
	require.NoError(t, s.SetCurrent(ctx, c.Id))

	require.NoError(t, s.DeleteConversation(ctx, other.Id))
	id, err := s.CurrentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, c.Id, id)

	require.NoError(t, s.DeleteConversation(ctx, c.Id))
	id, err = s.CurrentID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	list, err := s.Conversations(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestConversationNotFound(t *testing.T) {
	ctx := context.Background()
	s := store.New(store.NewMemoryKV())

	_, err := s.Conversation(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrConversationNotFound)
	_, err = s.AttachStudyMaterial(ctx, "nope", &studymaterial.StudyMaterial{})
	assert.ErrorIs(t, err, store.ErrConversationNotFound)
}

func TestAttachStudyMaterialReplaces(t *testing.T) {
	ctx := context.Background()
	s := store.New(store.NewMemoryKV())
	c, err := s.CreateConversation(ctx, "", nil)
	require.NoError(t, err)

	_, err = s.AttachStudyMaterial(ctx, c.Id, &studymaterial.StudyMaterial{Summary: "v1"})
	require.NoError(t, err)
	_, err = s.AttachStudyMaterial(ctx, c.Id, &studymaterial.StudyMaterial{Summary: "v2"})
	require.NoError(t, err)

	got, err := s.Conversation(ctx, c.Id)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.StudyMaterial.Summary)
}

func TestGenerateTitle(t *testing.T) {
	long := strings.Repeat("x", 60)
	tests := []struct {
		name string
		msgs []store.Message
		want string
	}{
		{"no messages", nil, store.DefaultTitle},
		{"no user message", []store.Message{store.TextMessage("assistant", "hi", time.Time{})}, store.DefaultTitle},
		{"user without parts", []store.Message{{Role: "user"}}, store.DefaultTitle},
		{"short", []store.Message{store.TextMessage("user", "What is Raft?", time.Time{})}, "What is Raft?"},
		{"exactly fifty", []store.Message{store.TextMessage("user", long[:50], time.Time{})}, long[:50]},
		{"long", []store.Message{store.TextMessage("user", long, time.Time{})}, long[:50] + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, store.GenerateTitle(tt.msgs))
		})
	}
}

func TestPollStatePerConversation(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := store.New(kv)

			ps, err := s.PollState(ctx, "c1")
			require.NoError(t, err)
			assert.Nil(t, ps)

			require.NoError(t, s.SavePollState(ctx, &store.PollState{InstanceId: "run-1", ConversationId: "c1", IsGenerating: true}))
			require.NoError(t, s.SavePollState(ctx, &store.PollState{InstanceId: "run-2", ConversationId: "c2", IsGenerating: true}))
			require.NoError(t, s.UpdateProgress(ctx, "c1", "Analyzing (11%)"))
			require.NoError(t, s.UpdateProgress(ctx, "missing", "ignored"))

			ps, err = s.PollState(ctx, "c1")
			require.NoError(t, err)
			require.NotNil(t, ps)
			assert.Equal(t, "run-1", ps.InstanceId)
			assert.Equal(t, "Analyzing (11%)", ps.ProgressText)

			all, err := s.PollStates(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 2)

			require.NoError(t, s.ClearPollState(ctx, "c1"))
			all, err = s.PollStates(ctx)
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, "c2", all[0].ConversationId)
		})
	}
}

func TestSettingsDefaults(t *testing.T) {
	ctx := context.Background()
	s := store.New(store.NewMemoryKV())

	url, err := s.BackendURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8787", url)
	theme, err := s.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dark", theme)

	require.NoError(t, s.SetBackendURL(ctx, "http://backend:9000"))
	require.NoError(t, s.SetTheme(ctx, "light"))
	url, _ = s.BackendURL(ctx)
	theme, _ = s.Theme(ctx)
	assert.Equal(t, "http://backend:9000", url)
	assert.Equal(t, "light", theme)
}
