package service

import (
	"context"
	"errors"
	"fmt"

	"clarvis-be/pkg/llm"
	"clarvis-be/pkg/llm/stub"
	"clarvis-be/pkg/studymaterial"
)

const DefaultAgentPrompt = `You are Clarvis, an intelligent AI assistant integrated into a browser extension. You help users understand and interact with web content.

Your capabilities:
- Answer questions about web pages the user is viewing
- Provide explanations and summaries
- Help with research and learning
- Assist with general knowledge questions

Be helpful, accurate, and concise. When discussing web page content, reference specific details from the provided context.`

// ChatTurn is everything a responder needs to answer one user turn.
type ChatTurn struct {
	History     []llm.Message
	UserContent string
	PageContext *studymaterial.PageContext
}

// ChatResponder opens the reply stream for a turn.
type ChatResponder interface {
	Respond(ctx context.Context, turn ChatTurn) (llm.Stream, error)
}

// NewChatResponder picks the canned responder when no model backend is configured.
func NewChatResponder(provider llm.LLMProvider, systemPrompt string, opts ...llm.Option) ChatResponder {
	if provider == nil || stub.IsStub(provider) {
		return CannedResponder{}
	}
	return &LiveResponder{provider: provider, systemPrompt: systemPrompt, opts: opts}
}

type LiveResponder struct {
	provider     llm.LLMProvider
	systemPrompt string
	opts         []llm.Option
}

func (r *LiveResponder) Respond(ctx context.Context, turn ChatTurn) (llm.Stream, error) {
	prompt := BuildSystemPrompt(r.systemPrompt, turn.PageContext)
	history := make([]llm.Message, 0, len(turn.History)+1)
	history = append(history, llm.Message{Role: "system", Content: prompt})
	history = append(history, turn.History...)

	stream, err := llm.OpenStream(ctx, r.provider, history, r.opts...)
	if errors.Is(err, llm.ErrModelUnavailable) {
		return CannedResponder{}.Respond(ctx, turn)
	}
	return stream, err
}

// CannedResponder answers without a model. The reply is a single chunk.
type CannedResponder struct{}

func (CannedResponder) Respond(ctx context.Context, turn ChatTurn) (llm.Stream, error) {
	return llm.StreamOf(CannedReply(turn.UserContent, turn.PageContext)), nil
}

func CannedReply(userContent string, pc *studymaterial.PageContext) string {
	viewing := ""
	if pc != nil {
		viewing = fmt.Sprintf("I can see you're viewing: %s (%s)", pc.Title, pc.URL)
	}
	return fmt.Sprintf(`Hello! I'm Clarvis, your AI assistant. I can see you said: "%s".

No language model is configured on this server, so this is a canned response.

%s

To enable full AI responses, set LLM_PROVIDER to ollama or huggingface and restart the server.`, userContent, viewing)
}

// BuildSystemPrompt appends the delimited page context block when a page is supplied.
func BuildSystemPrompt(base string, pc *studymaterial.PageContext) string {
	if pc == nil {
		return base
	}
	description := pc.Description
	if description == "" {
		description = "N/A"
	}
	return base + fmt.Sprintf(`

=== CURRENT WEB PAGE CONTEXT ===
Title: %s
URL: %s
Description: %s

Page Content:
%s

=== END CONTEXT ===

The user is currently viewing this web page. Use this context to answer their questions accurately. When they ask about "this page" or "what's on the page", refer to the content above.`, pc.Title, pc.URL, description, pc.Body())
}

// Guidance returns the explanatory reply for a classified failure, or false
// when the error carries no classification.
func Guidance(err error, userContent string) (string, bool) {
	var help string
	switch llm.KindOf(err) {
	case llm.KindQuotaOrRegion:
		help = `AI model error: The configured model may not be available in your region or account.

Try these solutions:
1. Check that your model provider account is active and has remaining quota
2. Verify the API key has permission to use the model
3. Check the provider dashboard for model availability`
	case llm.KindNetwork:
		help = `Network connection issue. The model backend could not be reached.

To get full AI functionality:
1. Check that the model server is running and OLLAMA_BASE_URL points at it
2. Or check your network connection and provider status`
	case llm.KindMisconfiguration:
		help = `Model configuration error. The AI model may not be available or properly configured.

Check:
1. LLM_MODEL names a model the provider serves
2. The provider is enabled for your account
3. You have proper permissions for AI inference`
	default:
		return "", false
	}

	return fmt.Sprintf(`⚠️ **AI Service Error**

%s

**Original Error:** %s

**Your Question:** "%s"

I'm unable to process your request right now due to this technical issue. Please try the suggested solutions above.`, help, err.Error(), userContent), true
}
