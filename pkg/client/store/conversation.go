package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"clarvis-be/pkg/studymaterial"

	"github.com/google/uuid"
)

const (
	conversationsKey       = "clarvis_conversations"
	currentConversationKey = "clarvis_current_conversation"

	DefaultTitle   = "New Conversation"
	maxTitleLength = 50
)

var ErrConversationNotFound = errors.New("conversation not found")

type MessagePart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type Message struct {
	Id        string        `json:"id,omitempty"`
	Role      string        `json:"role"`
	Parts     []MessagePart `json:"parts"`
	Timestamp time.Time     `json:"timestamp,omitempty"`
}

// TextMessage builds a single text part message.
func TextMessage(role, text string, at time.Time) Message {
	return Message{
		Id:        uuid.NewString(),
		Role:      role,
		Parts:     []MessagePart{{Type: "text", Text: text}},
		Timestamp: at,
	}
}

type Conversation struct {
	Id              string                       `json:"id"`
	Title           string                       `json:"title"`
	Timestamp       time.Time                    `json:"timestamp"`
	LastMessageTime time.Time                    `json:"lastMessageTime"`
	Messages        []Message                    `json:"messages"`
	PageContext     *studymaterial.PageContext   `json:"pageContext,omitempty"`
	StudyMaterial   *studymaterial.StudyMaterial `json:"studyMaterial,omitempty"`
}

// Store is the client Session Store. Conversations are read and written as
// whole records; a single active client is assumed.
type Store struct {
	kv  KV
	now func() time.Time
}

func New(kv KV) *Store {
	return &Store{kv: kv, now: time.Now}
}

// WithClock overrides the time source used for conversation timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) load(ctx context.Context) ([]*Conversation, error) {
	var all []*Conversation
	if _, err := s.kv.Get(ctx, conversationsKey, &all); err != nil {
		return nil, fmt.Errorf("load conversations: %w", err)
	}
	return all, nil
}

func (s *Store) save(ctx context.Context, all []*Conversation) error {
	if err := s.kv.Set(ctx, conversationsKey, all); err != nil {
		return fmt.Errorf("save conversations: %w", err)
	}
	return nil
}

// Conversations lists every conversation, most recently active first.
func (s *Store) Conversations(ctx context.Context) ([]*Conversation, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].LastMessageTime.After(all[j].LastMessageTime)
	})
	return all, nil
}

func (s *Store) Conversation(ctx context.Context, id string) (*Conversation, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range all {
		if c.Id == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
}

// CreateConversation stores a new conversation and makes it current.
func (s *Store) CreateConversation(ctx context.Context, title string, pc *studymaterial.PageContext) (*Conversation, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = DefaultTitle
	}
	now := s.now().UTC()
	c := &Conversation{
		Id:              uuid.NewString(),
		Title:           title,
		Timestamp:       now,
		LastMessageTime: now,
		Messages:        []Message{},
		PageContext:     pc,
	}
	if err := s.save(ctx, append(all, c)); err != nil {
		return nil, err
	}
	if err := s.SetCurrent(ctx, c.Id); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateConversation applies fn to the stored record and bumps lastMessageTime.
func (s *Store) UpdateConversation(ctx context.Context, id string, fn func(c *Conversation)) (*Conversation, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range all {
		if c.Id != id {
			continue
		}
		fn(c)
		c.Id = id
		c.LastMessageTime = s.now().UTC()
		if err := s.save(ctx, all); err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
}

// AppendMessages adds messages in order. A conversation still carrying the
// default title is renamed after its first user message.
func (s *Store) AppendMessages(ctx context.Context, id string, msgs ...Message) (*Conversation, error) {
	return s.UpdateConversation(ctx, id, func(c *Conversation) {
		c.Messages = append(c.Messages, msgs...)
		if c.Title == DefaultTitle {
			c.Title = GenerateTitle(c.Messages)
		}
	})
}

// AttachStudyMaterial replaces the study material of a conversation.
func (s *Store) AttachStudyMaterial(ctx context.Context, id string, material *studymaterial.StudyMaterial) (*Conversation, error) {
	return s.UpdateConversation(ctx, id, func(c *Conversation) {
		c.StudyMaterial = material
	})
}

// DeleteConversation removes a conversation and clears the current pointer
// when it referenced it. Deleting an unknown id is not an error.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	all, err := s.load(ctx)
	if err != nil {
		return err
	}
	kept := all[:0]
	for _, c := range all {
		if c.Id != id {
			kept = append(kept, c)
		}
	}
	if err := s.save(ctx, kept); err != nil {
		return err
	}

	current, err := s.CurrentID(ctx)
	if err != nil {
		return err
	}
	if current == id {
		return s.kv.Delete(ctx, currentConversationKey)
	}
	return nil
}

// CurrentID returns the current conversation id, or "" when there is none.
func (s *Store) CurrentID(ctx context.Context) (string, error) {
	var id string
	if _, err := s.kv.Get(ctx, currentConversationKey, &id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) SetCurrent(ctx context.Context, id string) error {
	return s.kv.Set(ctx, currentConversationKey, id)
}

// Current returns the current conversation, or nil when there is none or it
// was deleted behind the pointer's back.
func (s *Store) Current(ctx context.Context) (*Conversation, error) {
	id, err := s.CurrentID(ctx)
	if err != nil || id == "" {
		return nil, err
	}
	c, err := s.Conversation(ctx, id)
	if errors.Is(err, ErrConversationNotFound) {
		return nil, nil
	}
	return c, err
}

// EnsureCurrent returns the current conversation, creating one on first use.
func (s *Store) EnsureCurrent(ctx context.Context, pc *studymaterial.PageContext) (*Conversation, error) {
	c, err := s.Current(ctx)
	if err != nil || c != nil {
		return c, err
	}
	return s.CreateConversation(ctx, "", pc)
}

// GenerateTitle derives a title from the first user message: its first text
// part, cut to 50 characters with an ellipsis.
func GenerateTitle(msgs []Message) string {
	for _, m := range msgs {
		if m.Role != "user" {
			continue
		}
		if len(m.Parts) == 0 {
			return DefaultTitle
		}
		text := []rune(m.Parts[0].Text)
		if len(text) > maxTitleLength {
			return string(text[:maxTitleLength]) + "..."
		}
		return string(text)
	}
	return DefaultTitle
}
