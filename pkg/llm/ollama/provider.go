package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"clarvis-be/pkg/llm"
)

const providerName = "ollama"

type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

// Ensure OllamaProvider implements StreamingProvider
var _ llm.StreamingProvider = &OllamaProvider{}

func NewOllamaProvider(baseURL, modelName string) *OllamaProvider {
	return &OllamaProvider{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		ModelName: modelName,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

// --- Interface Implementation ---

func (o *OllamaProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	resp, err := o.send(ctx, history, false, opts...)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", o.wrap(classifyTransport(err), 0, fmt.Errorf("read response: %w", err))
	}

	var ollamaResp ollamaChatResponse
	if err := json.Unmarshal(bodyBytes, &ollamaResp); err != nil {
		return "", o.wrap(llm.KindUnknown, 0, fmt.Errorf("unmarshal response: %w", err))
	}
	if ollamaResp.Error != "" {
		return "", o.wrap(classifyMessage(ollamaResp.Error), 0, errors.New(ollamaResp.Error))
	}

	return ollamaResp.Message.Content, nil
}

func (o *OllamaProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	// Reuse Chat for simplicity as most new LLMs are chat-optimized
	return o.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

// ChatStream reads the NDJSON stream produced by /api/chat with stream=true.
func (o *OllamaProvider) ChatStream(ctx context.Context, history []llm.Message, opts ...llm.Option) (llm.Stream, error) {
	resp, err := o.send(ctx, history, true, opts...)
	if err != nil {
		return nil, err
	}
	return &ndjsonStream{
		provider: o,
		body:     resp.Body,
		scanner:  bufio.NewScanner(resp.Body),
	}, nil
}

func (o *OllamaProvider) send(ctx context.Context, history []llm.Message, stream bool, opts ...llm.Option) (*http.Response, error) {
	options := llm.NewOptions(llm.Options{Temperature: 0.7}, opts...)

	ollamaMessages := make([]ollamaMessage, len(history))
	for i, msg := range history {
		role := msg.Role
		if role == "model" {
			role = "assistant"
		}
		ollamaMessages[i] = ollamaMessage{Role: role, Content: msg.Content}
	}

	model := o.ModelName
	if options.Model != "" {
		model = options.Model
	}

	reqPayload := ollamaChatRequest{
		Model:    model,
		Messages: ollamaMessages,
		Stream:   stream,
		Options: &ollamaOptions{
			Temperature: options.Temperature,
		},
	}
	if options.MaxTokens > 0 {
		reqPayload.Options.NumPredict = options.MaxTokens
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, o.wrap(llm.KindUnknown, 0, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/chat", bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, o.wrap(llm.KindMisconfiguration, 0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, o.wrap(classifyTransport(err), 0, fmt.Errorf("ollama request failed: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		kind := llm.KindForStatus(resp.StatusCode)
		if kind == llm.KindUnknown {
			kind = classifyMessage(string(body))
		}
		return nil, o.wrap(kind, resp.StatusCode, fmt.Errorf("ollama error: %s", strings.TrimSpace(string(body))))
	}
	return resp, nil
}

func (o *OllamaProvider) wrap(kind llm.ErrorKind, status int, err error) error {
	return &llm.Error{Kind: kind, Provider: providerName, Status: status, Err: err}
}

type ndjsonStream struct {
	provider *OllamaProvider
	body     io.ReadCloser
	scanner  *bufio.Scanner
	done     bool
}

func (s *ndjsonStream) Recv() (string, error) {
	for !s.done {
		if !s.scanner.Scan() {
			s.done = true
			if err := s.scanner.Err(); err != nil {
				return "", s.provider.wrap(classifyTransport(err), 0, err)
			}
			break
		}
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", s.provider.wrap(llm.KindUnknown, 0, fmt.Errorf("decode stream chunk: %w", err))
		}
		if chunk.Error != "" {
			s.done = true
			return "", s.provider.wrap(classifyMessage(chunk.Error), 0, errors.New(chunk.Error))
		}
		if chunk.Done {
			s.done = true
		}
		if chunk.Message.Content != "" {
			return chunk.Message.Content, nil
		}
	}
	return "", io.EOF
}

func (s *ndjsonStream) Close() error {
	s.done = true
	return s.body.Close()
}

func classifyTransport(err error) llm.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return llm.KindNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return llm.KindNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return llm.KindNetwork
	}
	return classifyMessage(err.Error())
}

func classifyMessage(msg string) llm.ErrorKind {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "quota"), strings.Contains(m, "rate limit"), strings.Contains(m, "region"):
		return llm.KindQuotaOrRegion
	case strings.Contains(m, "connection"), strings.Contains(m, "network"):
		return llm.KindNetwork
	case strings.Contains(m, "model"):
		return llm.KindMisconfiguration
	default:
		return llm.KindUnknown
	}
}
