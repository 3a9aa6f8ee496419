package dto

import (
	"strings"
	"time"

	"clarvis-be/pkg/studymaterial"
)

type MessagePart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ChatMessage struct {
	Id        string        `json:"id"`
	Role      string        `json:"role" validate:"required,oneof=user assistant system tool"`
	Parts     []MessagePart `json:"parts" validate:"dive"`
	Timestamp string        `json:"timestamp,omitempty"`
}

// Text joins the text parts of the message with newlines.
func (m ChatMessage) Text() string {
	var texts []string
	for _, p := range m.Parts {
		if p.Type == "text" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

type ChatRequest struct {
	Messages    []ChatMessage              `json:"messages" validate:"dive"`
	PageContext *studymaterial.PageContext `json:"pageContext,omitempty"`
}

type ChatHistoryRow struct {
	Timestamp time.Time `json:"timestamp"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
}

type ChatHistoryResponse struct {
	History []*ChatHistoryRow `json:"history"`
}

type ClearHistoryResponse struct {
	Success bool `json:"success"`
}
