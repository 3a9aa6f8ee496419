// Package stub provides the provider installed when no model backend is configured.
package stub

import (
	"context"

	"clarvis-be/pkg/llm"
)

type Provider struct{}

var _ llm.StreamingProvider = Provider{}

func NewProvider() Provider {
	return Provider{}
}

func (Provider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return "", llm.ErrModelUnavailable
}

func (Provider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return "", llm.ErrModelUnavailable
}

func (Provider) ChatStream(ctx context.Context, history []llm.Message, options ...llm.Option) (llm.Stream, error) {
	return nil, llm.ErrModelUnavailable
}

// IsStub reports whether p is the unavailable-capability stub.
func IsStub(p llm.LLMProvider) bool {
	_, ok := p.(Provider)
	return ok
}
